// internal/config/config.go
package config

import (
	"fmt"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	ElevenLabs ElevenLabsConfig
	LogLevel   string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// StorageConfig selects and configures the bucket backend. Backend is
// "gcs" or "s3"; the S3 fields are only consulted for the latter.
type StorageConfig struct {
	Backend     string
	Bucket      string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
}

type ElevenLabsConfig struct {
	APIKey         string
	AgentID        string
	BaseURL        string
	PageSize       int
	TimeoutSeconds int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("STORAGE_BACKEND", "gcs")
		viper.SetDefault("STORAGE_BUCKET", "")
		viper.SetDefault("S3_ENDPOINT", "")
		viper.SetDefault("S3_ACCESS_KEY", "")
		viper.SetDefault("S3_SECRET_KEY", "")
		viper.SetDefault("S3_REGION", "us-east-1")
		viper.SetDefault("S3_USE_SSL", true)
		viper.SetDefault("ELEVENLABS_API_URL", "https://api.elevenlabs.io/v1")
		viper.SetDefault("ELEVENLABS_PAGE_SIZE", 100)
		viper.SetDefault("ELEVENLABS_TIMEOUT_SECONDS", 60)
		viper.SetDefault("LOG_LEVEL", "info")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Storage: StorageConfig{
				Backend:     viper.GetString("STORAGE_BACKEND"),
				Bucket:      viper.GetString("STORAGE_BUCKET"),
				S3Endpoint:  viper.GetString("S3_ENDPOINT"),
				S3AccessKey: viper.GetString("S3_ACCESS_KEY"),
				S3SecretKey: viper.GetString("S3_SECRET_KEY"),
				S3Region:    viper.GetString("S3_REGION"),
				S3UseSSL:    viper.GetBool("S3_USE_SSL"),
			},
			ElevenLabs: ElevenLabsConfig{
				APIKey:         viper.GetString("XI_API_KEY"),
				AgentID:        viper.GetString("AGENT_ID"),
				BaseURL:        viper.GetString("ELEVENLABS_API_URL"),
				PageSize:       viper.GetInt("ELEVENLABS_PAGE_SIZE"),
				TimeoutSeconds: viper.GetInt("ELEVENLABS_TIMEOUT_SECONDS"),
			},
			LogLevel: viper.GetString("LOG_LEVEL"),
		}
	})

	return instance
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.ElevenLabs.APIKey == "" {
		return fmt.Errorf("XI_API_KEY must be provided")
	}
	if c.ElevenLabs.AgentID == "" {
		return fmt.Errorf("AGENT_ID must be provided")
	}
	if c.Storage.Backend == "s3" {
		if c.Storage.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT must be provided for the s3 backend")
		}
		if c.Storage.S3AccessKey == "" || c.Storage.S3SecretKey == "" {
			return fmt.Errorf("s3 credentials must be provided")
		}
	}
	return nil
}
