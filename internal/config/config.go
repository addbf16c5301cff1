package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Agent configures the replay agent command.
type Agent struct {
	Environment   string `envconfig:"TRACKER_ENVIRONMENT" default:"development"`
	ServiceURL    string `envconfig:"TRACKER_SERVICE_URL" required:"true"`
	TenantName    string `envconfig:"TRACKER_TENANT" required:"true"`
	APIKey        string `envconfig:"TRACKER_API_KEY" required:"true"`
	EventsFile    string `envconfig:"TRACKER_EVENTS_FILE" required:"true"`
	StoragePath   string `envconfig:"TRACKER_STORAGE_PATH" default:".tracker-data"`
	ReplayDelayMs int    `envconfig:"TRACKER_REPLAY_DELAY_MS" default:"0"`
}

// Collector configures the development collector command.
type Collector struct {
	Environment string `envconfig:"COLLECTOR_ENVIRONMENT" default:"development"`
	Port        string `envconfig:"COLLECTOR_PORT" default:"8080"`
	ConfigFile  string `envconfig:"COLLECTOR_CONFIG_FILE" required:"true"`
}

// LoadAgent reads agent configuration from the environment.
func LoadAgent() (*Agent, error) {
	var cfg Agent
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// LoadCollector reads collector configuration from the environment.
func LoadCollector() (*Collector, error) {
	var cfg Collector
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
