package remote

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// DefaultIPLookupURL is the public lookup consulted when none is configured.
const DefaultIPLookupURL = "https://api.ipify.org?format=json"

// IPLookup resolves the session's public IP address.
type IPLookup interface {
	FetchIP(ctx context.Context) (string, error)
}

// IPClient is an IPLookup against an ipify-compatible JSON endpoint.
type IPClient struct {
	url    string
	client *http.Client
}

// NewIPClient creates a lookup client. Empty url and nil httpClient fall
// back to the defaults.
func NewIPClient(url string, httpClient *http.Client) *IPClient {
	if url == "" {
		url = DefaultIPLookupURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IPClient{url: url, client: httpClient}
}

// FetchIP returns the public IP reported by the lookup endpoint.
func (c *IPClient) FetchIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build IP lookup request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch IP address: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("IP lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode IP lookup response: %w", err)
	}
	return body.IP, nil
}
