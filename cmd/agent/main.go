// Command agent replays a recorded interaction stream through a tracker
// session. Each line of the events file is one JSON-encoded host event,
// which makes it a quick way to exercise tracker configurations end to end
// against a running collector.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	tracker "github.com/trlogic/tracker-web"
	"github.com/trlogic/tracker-web/internal/config"
	"github.com/trlogic/tracker-web/internal/host"
	"github.com/trlogic/tracker-web/internal/logger"
)

// flushTimeout bounds the post-replay wait for the drain loop.
const flushTimeout = 30 * time.Second

// replayEvent is one recorded interaction. Navigations are encoded as
// {"name":"navigate","href":...}; everything else maps onto a host event.
type replayEvent struct {
	Name   string         `json:"name"`
	Href   string         `json:"href,omitempty"`
	X      float64        `json:"x,omitempty"`
	Y      float64        `json:"y,omitempty"`
	Target *host.Element  `json:"target,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func main() {
	cfg, err := config.LoadAgent()
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

	log.Info("Starting replay agent",
		zap.String("environment", cfg.Environment),
		zap.String("events_file", cfg.EventsFile))

	h := host.NewMemoryHost()

	session, err := tracker.Initialize(context.Background(), &tracker.Options{
		ServiceURL:  cfg.ServiceURL,
		TenantName:  cfg.TenantName,
		APIKey:      cfg.APIKey,
		Host:        h,
		Logger:      log,
		StoragePath: cfg.StoragePath,
	})
	if err != nil {
		log.Fatal("Failed to initialize tracker session", zap.Error(err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Error("Failed to close session", zap.Error(err))
		}
	}()

	replayed, err := replay(h, cfg.EventsFile, time.Duration(cfg.ReplayDelayMs)*time.Millisecond, log)
	if err != nil {
		log.Fatal("Replay failed", zap.Error(err))
	}

	log.Info("Replay finished",
		zap.Int("event_count", replayed),
		zap.Int("pending_deliveries", session.PendingDeliveries()))

	// Leave the drain loop time to flush what the replay produced, but do
	// not wait forever on an unreachable collector.
	deadline := time.Now().Add(flushTimeout)
	for session.PendingDeliveries() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Second)
	}
	if pending := session.PendingDeliveries(); pending > 0 {
		log.Warn("Exiting with undelivered payloads", zap.Int("pending", pending))
	}
}

func replay(h *host.MemoryHost, path string, delay time.Duration, log *zap.Logger) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open events file: %w", err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev replayEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn("Skipping undecodable event line", zap.Error(err))
			continue
		}

		if ev.Name == "navigate" {
			h.Navigate(ev.Href)
		} else {
			h.Emit(&host.Event{
				Name:   ev.Name,
				Target: ev.Target,
				X:      ev.X,
				Y:      ev.Y,
				Data:   ev.Data,
			})
		}
		count++

		if delay > 0 {
			time.Sleep(delay)
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read events file: %w", err)
	}
	return count, nil
}
