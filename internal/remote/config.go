// Package remote holds the clients for the tracker's external collaborators:
// configuration bootstrap, IP lookup, and device fingerprinting.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/domain"
)

const configPath = "/sentinel/v1"

// Config is the server-delivered session configuration.
type Config struct {
	Trackers []domain.Tracker
	APIURL   string
}

// ConfigClient fetches tracker configurations during initialization.
type ConfigClient struct {
	client *http.Client
	log    *zap.Logger
}

// NewConfigClient creates a config client. A nil httpClient falls back to
// http.DefaultClient.
func NewConfigClient(httpClient *http.Client, log *zap.Logger) *ConfigClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ConfigClient{client: httpClient, log: log}
}

// Fetch retrieves the tenant's tracker configurations. When the response
// names no delivery endpoint, the configuration URL doubles as one.
func (c *ConfigClient) Fetch(ctx context.Context, serviceURL, tenant, apiKey string) (*Config, error) {
	endpoint := strings.TrimSuffix(serviceURL, "/") + configPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build config request: %w", err)
	}
	req.Header.Set("tenant", tenant)
	req.Header.Set("api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("platform", "web")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracker config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker config fetch returned status %d", resp.StatusCode)
	}

	var body struct {
		Configs []domain.Tracker `json:"configs"`
		APIURL  string           `json:"apiUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode tracker config: %w", err)
	}

	apiURL := body.APIURL
	if apiURL == "" {
		apiURL = endpoint
	}

	c.log.Info("Tracker config fetched",
		zap.Int("tracker_count", len(body.Configs)),
		zap.String("api_url", apiURL))

	return &Config{Trackers: body.Configs, APIURL: apiURL}, nil
}
