// Command collector is a development stand-in for the collection service:
// it serves tracker configurations to initializing sessions and accepts the
// payloads they deliver.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/config"
	"github.com/trlogic/tracker-web/internal/domain"
	"github.com/trlogic/tracker-web/internal/logger"
)

func main() {
	cfg, err := config.LoadCollector()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		if err := log.Sync(); err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	trackers, err := loadTrackers(cfg.ConfigFile)
	if err != nil {
		log.Fatal("Failed to load tracker configs", zap.Error(err))
	}

	log.Info("Starting collector",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.Int("tracker_count", len(trackers)))

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Sessions bootstrap from this route; with no apiUrl in the response,
	// they deliver payloads back to it, so the POST handler below closes
	// the loop.
	router.GET("/sentinel/v1", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"configs": trackers,
			"apiUrl":  "",
		})
	})

	router.POST("/sentinel/v1", func(c *gin.Context) {
		var payload domain.Payload
		if err := c.ShouldBindJSON(&payload); err != nil {
			log.Warn("Invalid payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, domain.TransactionResult{
				Status:  "error",
				Message: "invalid payload",
			})
			return
		}

		log.Info("Payload received",
			zap.String("tenant", c.GetHeader("tenant")),
			zap.String("event", payload.Name),
			zap.String("key", payload.Key),
			zap.Int("variable_count", len(payload.Variables)))

		c.JSON(http.StatusOK, domain.TransactionResult{Status: "ok"})
	})

	addr := ":" + cfg.Port
	log.Info("Collector listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("Collector server error", zap.Error(err))
	}
}

func loadTrackers(path string) ([]domain.Tracker, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var trackers []domain.Tracker
	if err := json.Unmarshal(raw, &trackers); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return trackers, nil
}
