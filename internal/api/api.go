// internal/api/api.go
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/leekycauldron/gcs-xikb-bridge/internal/api/middleware"
	"github.com/leekycauldron/gcs-xikb-bridge/internal/sync"
)

// Runner triggers a reconciliation pass. Satisfied by *sync.Reconciler.
type Runner interface {
	Run(ctx context.Context, event sync.ChangeEvent) (sync.Result, error)
}

func NewRouter(reconciler Runner, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	corsConfig := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := NewHandler(reconciler)
	router.POST("/pubsub", handler.PubSubPush)
	router.POST("/events", handler.CloudEvent)

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return nil, true
		}
		normalized = append(normalized, strings.TrimSuffix(origin, "/"))
	}
	return normalized, false
}
