package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/domain"
)

func TestHTTPTransport_Send(t *testing.T) {
	var gotTenant, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = r.Header.Get("tenant")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","message":"stored"}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL, "acme", server.Client(), zap.NewNop())
	result, err := transport.Send(context.Background(), &domain.Payload{
		Name:      "purchase",
		Key:       "A-1042",
		Variables: map[string]any{"total": 149.9},
	})

	assert.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "stored", result.Message)
	assert.Equal(t, "acme", gotTenant)
	assert.Equal(t, "application/json", gotContentType)

	var sent domain.Payload
	assert.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, "purchase", sent.Name)
	assert.Equal(t, "A-1042", sent.Key)
}

func TestHTTPTransport_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL, "acme", server.Client(), zap.NewNop())
	result, err := transport.Send(context.Background(), &domain.Payload{Name: "purchase"})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPTransport_LenientResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL, "acme", server.Client(), zap.NewNop())
	result, err := transport.Send(context.Background(), &domain.Payload{Name: "purchase"})

	// A 2xx with an unreadable body is still a success.
	assert.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
}

func TestHTTPTransport_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := NewHTTPTransport(server.URL, "acme", server.Client(), zap.NewNop())
	_, err := transport.Send(ctx, &domain.Payload{Name: "purchase"})
	assert.Error(t, err)
}
