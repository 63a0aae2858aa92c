package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/leekycauldron/gcs-xikb-bridge/internal/api"
	"github.com/leekycauldron/gcs-xikb-bridge/internal/config"
	"github.com/leekycauldron/gcs-xikb-bridge/internal/elevenlabs"
	"github.com/leekycauldron/gcs-xikb-bridge/internal/storage"
	"github.com/leekycauldron/gcs-xikb-bridge/internal/sync"
	"github.com/leekycauldron/gcs-xikb-bridge/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "bridge",
		Usage: "Keep an ElevenLabs agent's knowledge base in sync with a storage bucket",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server that receives storage change notifications",
				Action: runServe,
			},
			{
				Name:  "sync",
				Usage: "Run a single reconciliation pass and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "bucket",
						Usage:   "Bucket to reconcile (defaults to STORAGE_BUCKET)",
						EnvVars: []string{"STORAGE_BUCKET"},
					},
					&cli.StringFlag{
						Name:  "object",
						Usage: "Object name that triggered the run",
					},
					&cli.StringFlag{
						Name:  "event-type",
						Usage: "Event type of the trigger (e.g. " + sync.EventTypeFinalized + ")",
					},
				},
				Action: runSync,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("bridge failed")
	}
}

func runServe(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	reconciler, err := buildReconciler(c.Context, cfg)
	if err != nil {
		return err
	}

	router := api.NewRouter(reconciler, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info().Msg("Server exiting")
	return nil
}

func runSync(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	reconciler, err := buildReconciler(c.Context, cfg)
	if err != nil {
		return err
	}

	result, err := reconciler.Run(c.Context, sync.ChangeEvent{
		Bucket:     c.String("bucket"),
		ObjectName: c.String("object"),
		EventType:  c.String("event-type"),
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Status())
	return nil
}

func buildReconciler(ctx context.Context, cfg *config.Config) (*sync.Reconciler, error) {
	store, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	kb, err := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:   cfg.ElevenLabs.APIKey,
		AgentID:  cfg.ElevenLabs.AgentID,
		BaseURL:  cfg.ElevenLabs.BaseURL,
		PageSize: cfg.ElevenLabs.PageSize,
		Timeout:  time.Duration(cfg.ElevenLabs.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return sync.NewReconciler(store, kb, cfg.Storage.Bucket, ""), nil
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Backend {
	case "", "gcs":
		return storage.NewGCSClient(ctx)
	case "s3":
		return storage.NewS3Client(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
