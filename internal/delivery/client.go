package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/domain"
)

// HTTPTransport posts payloads to the session's collection endpoint with the
// tenant header the wire contract requires.
type HTTPTransport struct {
	apiURL string
	tenant string
	client *http.Client
	log    *zap.Logger
}

// NewHTTPTransport creates a transport for one (endpoint, tenant) pair.
// A nil httpClient falls back to http.DefaultClient.
func NewHTTPTransport(apiURL, tenant string, httpClient *http.Client, log *zap.Logger) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPTransport{
		apiURL: apiURL,
		tenant: tenant,
		client: httpClient,
		log:    log,
	}
}

// Send posts one payload. Non-2xx responses are failures.
func (t *HTTPTransport) Send(ctx context.Context, payload *domain.Payload) (*domain.TransactionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("tenant", t.tenant)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to deliver payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("delivery rejected with status %d", resp.StatusCode)
	}

	t.log.Debug("Payload delivered",
		zap.String("event", payload.Name),
		zap.String("key", payload.Key),
		zap.Int("status", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransactionResult{Status: "ok"}, nil
	}

	var result domain.TransactionResult
	if err := json.Unmarshal(respBody, &result); err != nil || result.Status == "" {
		result.Status = "ok"
	}
	return &result, nil
}
