// Package tracker is the Formica behavioral-telemetry SDK. A Session
// observes user interactions through a host environment, matches them
// against server-delivered tracker configurations, resolves their variables,
// scores behavioral risk, and ships the resulting payloads to the collection
// endpoint with offline buffering.
package tracker

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/browser"
	"github.com/trlogic/tracker-web/internal/delivery"
	"github.com/trlogic/tracker-web/internal/domain"
	"github.com/trlogic/tracker-web/internal/host"
	"github.com/trlogic/tracker-web/internal/remote"
	"github.com/trlogic/tracker-web/internal/risk"
	"github.com/trlogic/tracker-web/internal/storage"
	badgerstore "github.com/trlogic/tracker-web/internal/storage/badger"
	"github.com/trlogic/tracker-web/internal/trigger"
	"github.com/trlogic/tracker-web/internal/variable"
)

// Initialization validation errors, checked in fixed order.
var (
	ErrNilOptions         = errors.New("tracker initialization options must be provided")
	ErrServiceURLRequired = errors.New("service URL must be provided")
	ErrAPIKeyRequired     = errors.New("API key must be provided")
	ErrTenantNameRequired = errors.New("tenant name must be provided")
)

const viewTimerInterval = 100 * time.Millisecond

// TransactionResult is the collector's response to a synchronous send.
type TransactionResult = domain.TransactionResult

// RiskSnapshot is the aggregate risk state readable from a session.
type RiskSnapshot = risk.Snapshot

// Options configures session initialization. ServiceURL, TenantName, and
// APIKey are required; everything else has a working default.
type Options struct {
	ServiceURL string
	TenantName string
	APIKey     string

	// Host is the embedding environment. Defaults to an idle in-memory
	// host, which is only useful for programmatic custom triggers.
	Host host.Host

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// HTTPClient serves config fetch and delivery. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Store persists the environment baseline. When nil, a Badger store
	// is opened at StoragePath and owned (closed) by the session.
	Store       storage.Store
	StoragePath string

	// IPLookup and Fingerprinter override the default collaborators.
	IPLookup      remote.IPLookup
	Fingerprinter remote.Fingerprinter
}

// SyncOptions tunes a synchronous trigger. A zero Timeout leaves the
// caller's context in charge.
type SyncOptions struct {
	Timeout time.Duration
}

// RiskAlertConfig adjusts the alerting machine. Nil fields keep their
// current values; out-of-range thresholds and negative cooldowns are
// silently ignored.
type RiskAlertConfig struct {
	Threshold *float64
	Cooldown  *time.Duration
	Enabled   *bool
}

// Session is an initialized tracker. All operations are methods on the
// handle; multiple sessions can coexist, each with its own host and state.
type Session struct {
	id       string
	tenant   string
	log      *zap.Logger
	host     host.Host
	store    storage.Store
	ownStore bool

	agg      *risk.Aggregator
	monitor  *risk.Monitor
	resolver *variable.Resolver
	engine   *trigger.Engine
	queue    *delivery.Queue

	globals *globalVariables
	cancel  context.CancelFunc

	closeMu sync.Mutex
	closed  bool
}

// Initialize validates the options, bootstraps the session configuration,
// and starts the pipeline. Only initialization-time misconfiguration is
// surfaced as an error; steady-state faults degrade gracefully afterward.
func Initialize(ctx context.Context, opts *Options) (*Session, error) {
	if opts == nil {
		return nil, ErrNilOptions
	}
	if strings.TrimSpace(opts.ServiceURL) == "" {
		return nil, ErrServiceURLRequired
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	if strings.TrimSpace(opts.TenantName) == "" {
		return nil, ErrTenantNameRequired
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := opts.Host
	if h == nil {
		h = host.NewMemoryHost()
	}

	sessionID := uuid.NewString()
	log = log.With(zap.String("session_id", sessionID), zap.String("tenant", opts.TenantName))

	cfg, err := remote.NewConfigClient(opts.HTTPClient, log).Fetch(ctx, opts.ServiceURL, opts.TenantName, opts.APIKey)
	if err != nil {
		return nil, err
	}

	ipLookup := opts.IPLookup
	if ipLookup == nil {
		ipLookup = remote.NewIPClient("", opts.HTTPClient)
	}
	ip, err := ipLookup.FetchIP(ctx)
	if err != nil {
		log.Warn("IP lookup failed", zap.Error(err))
		ip = "unknown"
	}

	fingerprinter := opts.Fingerprinter
	if fingerprinter == nil {
		fingerprinter = remote.NewHostFingerprinter(h)
	}
	fingerprint, err := fingerprinter.DeviceFingerprint(ctx)
	if err != nil {
		log.Warn("Device fingerprinting failed", zap.Error(err))
		fingerprint = ""
	}

	store := opts.Store
	ownStore := false
	if store == nil {
		path := opts.StoragePath
		if path == "" {
			path = ".tracker-data"
		}
		badgerStore, err := badgerstore.NewStore(path, log)
		if err != nil {
			log.Warn("Durable store unavailable, baseline will not persist", zap.Error(err))
			store = storage.NewMemoryStore()
		} else {
			store = badgerStore
			ownStore = true
		}
	}

	detector := browser.NewDetector(h.Navigator())
	agg := risk.NewAggregator(detector, store, log)
	agg.EnsureBaseline(ctx, opts.TenantName, fingerprint)

	monitor := risk.NewMonitor(agg, log)
	monitor.Attach(h)

	globals := newGlobalVariables()
	resolver := variable.NewResolver(h, detector, agg, globals, ip, fingerprint, log)

	transport := delivery.NewHTTPTransport(cfg.APIURL, opts.TenantName, opts.HTTPClient, log)
	queue := delivery.NewQueue(transport, h.Online, log)

	engine := trigger.NewEngine(h, resolver, queue, agg, cfg.Trackers, log)

	runCtx, cancel := context.WithCancel(context.Background())
	queue.StartProcessing(runCtx)
	engine.Bind(runCtx)
	go agg.Run(runCtx)

	s := &Session{
		id:       sessionID,
		tenant:   opts.TenantName,
		log:      log,
		host:     h,
		store:    store,
		ownStore: ownStore,
		agg:      agg,
		monitor:  monitor,
		resolver: resolver,
		engine:   engine,
		queue:    queue,
		globals:  globals,
		cancel:   cancel,
	}
	go s.runViewTimer(runCtx)

	log.Info("Tracker session initialized",
		zap.Int("tracker_count", len(cfg.Trackers)),
		zap.String("api_url", cfg.APIURL))

	return s, nil
}

// TriggerCustom fires a programmatic custom event, fire-and-forget: the
// payload is queued for the next drain pass.
func (s *Session) TriggerCustom(ctx context.Context, name string, variables map[string]any) {
	payload := s.engine.BuildCustomPayload(ctx, name, variables)
	if payload == nil {
		s.log.Debug("No tracker matches custom trigger", zap.String("name", name))
		return
	}
	s.queue.Add(payload)
}

// TriggerCustomSync fires a programmatic custom event and waits for the
// delivery result. Failures are logged and surfaced as nil, never an error.
func (s *Session) TriggerCustomSync(ctx context.Context, name string, variables map[string]any, opts SyncOptions) *TransactionResult {
	payload := s.engine.BuildCustomPayload(ctx, name, variables)
	if payload == nil {
		return nil
	}
	result, err := s.queue.SendSync(ctx, payload, opts.Timeout)
	if err != nil {
		s.log.Error("Sync trigger failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	return result
}

// SetUserDefinedVariable sets a caller-defined variable consumed by
// CUSTOM-kind descriptors.
func (s *Session) SetUserDefinedVariable(name string, value any) {
	s.globals.Set(name, value)
}

// GetUserDefinedVariable returns a caller-defined variable, or nil.
func (s *Session) GetUserDefinedVariable(name string) any {
	value, _ := s.globals.Lookup(name)
	return value
}

// GetUserDefinedVariables returns a defensive copy of all caller-defined
// variables.
func (s *Session) GetUserDefinedVariables() map[string]any {
	return s.globals.Copy()
}

// ConfigureRiskAlert adjusts the risk alerting machine.
func (s *Session) ConfigureRiskAlert(cfg RiskAlertConfig) {
	s.agg.ConfigureAlerts(cfg.Threshold, cfg.Cooldown, cfg.Enabled)
}

// RiskSnapshot returns the current aggregate risk state.
func (s *Session) RiskSnapshot() RiskSnapshot {
	return s.agg.Snapshot()
}

// PendingDeliveries returns the number of payloads awaiting delivery.
func (s *Session) PendingDeliveries() int {
	return s.queue.Len()
}

// Close stops the pipeline: no new drains begin, subscriptions are removed,
// and the session-owned store is closed. In-flight sends are not aborted.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.queue.StopProcessing()
	s.engine.Unbind()
	s.monitor.Detach()
	s.cancel()

	if s.ownStore {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	s.log.Info("Tracker session closed")
	return nil
}

// runViewTimer accumulates the page view duration into the viewDuration
// user-defined variable, 100ms at a time.
func (s *Session) runViewTimer(ctx context.Context) {
	ticker := time.NewTicker(viewTimerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.globals.addInt("viewDuration", int(viewTimerInterval.Milliseconds()))
		}
	}
}

// globalVariables is the session's user-defined variable map.
type globalVariables struct {
	mu     sync.RWMutex
	values map[string]any
}

func newGlobalVariables() *globalVariables {
	return &globalVariables{values: map[string]any{"viewDuration": 0}}
}

// Lookup implements variable.Globals.
func (g *globalVariables) Lookup(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	value, ok := g.values[name]
	return value, ok
}

func (g *globalVariables) Set(name string, value any) {
	g.mu.Lock()
	g.values[name] = value
	g.mu.Unlock()
}

func (g *globalVariables) Copy() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	dup := make(map[string]any, len(g.values))
	for k, v := range g.values {
		dup[k] = v
	}
	return dup
}

func (g *globalVariables) addInt(name string, delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, _ := g.values[name].(int)
	g.values[name] = current + delta
}
