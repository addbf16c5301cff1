package trigger

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/browser"
	"github.com/trlogic/tracker-web/internal/delivery"
	"github.com/trlogic/tracker-web/internal/domain"
	"github.com/trlogic/tracker-web/internal/host"
	"github.com/trlogic/tracker-web/internal/risk"
	"github.com/trlogic/tracker-web/internal/storage"
	"github.com/trlogic/tracker-web/internal/variable"
)

type recordingTransport struct {
	sent []*domain.Payload
}

func (t *recordingTransport) Send(_ context.Context, p *domain.Payload) (*domain.TransactionResult, error) {
	t.sent = append(t.sent, p)
	return &domain.TransactionResult{Status: "ok"}, nil
}

type engineFixture struct {
	host   *host.MemoryHost
	engine *Engine
	queue  *delivery.Queue
	agg    *risk.Aggregator
}

func newFixture(t *testing.T, trackers ...domain.Tracker) *engineFixture {
	t.Helper()
	h := host.NewMemoryHost()
	detector := browser.NewDetector(h.Navigator())
	agg := risk.NewAggregator(detector, storage.NewMemoryStore(), zap.NewNop())
	resolver := variable.NewResolver(h, detector, agg, mapGlobals{}, "203.0.113.9", "fp-1", zap.NewNop())
	queue := delivery.NewQueue(&recordingTransport{}, h.Online, zap.NewNop())
	engine := NewEngine(h, resolver, queue, agg, trackers, zap.NewNop())
	t.Cleanup(engine.Unbind)
	return &engineFixture{host: h, engine: engine, queue: queue, agg: agg}
}

type mapGlobals map[string]any

func (g mapGlobals) Lookup(name string) (any, bool) {
	v, ok := g[name]
	return v, ok
}

func pageViewTracker(filters ...domain.Filter) domain.Tracker {
	return domain.Tracker{
		Name:     "pv",
		Platform: "web",
		Triggers: []domain.Trigger{
			{Name: "page-view", Type: domain.TriggerPageView, Filters: filters},
		},
		Variables: []domain.Variable{
			{Type: domain.VariableURL, Name: "pagePath", Selection: json.RawMessage(`"path"`)},
		},
		Event: domain.EventMapping{
			Name:       "pageview",
			KeyMapping: "page",
			VariableMappings: map[string]string{
				"page": "{pagePath}",
			},
		},
	}
}

func TestEngine_PageViewOnNavigation(t *testing.T) {
	f := newFixture(t, pageViewTracker())
	f.engine.Bind(context.Background())

	f.host.Navigate("https://example.com/pricing")
	assert.Equal(t, 1, f.queue.Len())

	// A mutation without a location change is debounced.
	f.host.Emit(&host.Event{Name: "mutation"})
	assert.Equal(t, 1, f.queue.Len())

	f.host.Navigate("https://example.com/docs")
	assert.Equal(t, 2, f.queue.Len())
}

func TestEngine_PageViewFeedsRiskCounters(t *testing.T) {
	f := newFixture(t, pageViewTracker())
	f.engine.Bind(context.Background())

	f.host.Navigate("https://example.com/a")
	f.host.Navigate("https://example.com/b")

	// Two back-to-back synchronous navigations land within the
	// fast-transition window.
	assert.True(t, f.agg.Aggregates().FastPageTransition)
}

func TestEngine_FiltersGateAcceptance(t *testing.T) {
	f := newFixture(t, pageViewTracker(domain.Filter{
		Left: "pagePath", Operator: "isStartsWith", Right: "/checkout",
	}))
	f.engine.Bind(context.Background())

	f.host.Navigate("https://example.com/pricing")
	assert.Equal(t, 0, f.queue.Len())

	f.host.Navigate("https://example.com/checkout/payment")
	assert.Equal(t, 1, f.queue.Len())
}

func clickTracker(option string) domain.Tracker {
	trig := domain.Trigger{Name: "click-trigger", Type: domain.TriggerClick}
	if option != "" {
		trig.Option = json.RawMessage(option)
	}
	return domain.Tracker{
		Name:     "clicks",
		Triggers: []domain.Trigger{trig},
		Variables: []domain.Variable{
			{Type: domain.VariableEvent, Name: "href", Selection: json.RawMessage(`{"cssSelector":"a","attribute":"href"}`)},
		},
		Event: domain.EventMapping{
			Name:       "link-click",
			KeyMapping: "target",
			VariableMappings: map[string]string{
				"target": "{href}",
			},
		},
	}
}

func TestEngine_ClickWithoutOptionAcceptsAnything(t *testing.T) {
	f := newFixture(t, clickTracker(""))
	f.engine.Bind(context.Background())

	// An absent option reads as the permissive default.
	f.host.Emit(&host.Event{Name: "click", Target: &host.Element{Tag: "button"}})
	assert.Equal(t, 1, f.queue.Len())

	f.host.Emit(&host.Event{Name: "click"})
	assert.Equal(t, 2, f.queue.Len())
}

func TestEngine_ClickJustLinksFalseAcceptsAnything(t *testing.T) {
	f := newFixture(t, clickTracker(`{"justLinks":false}`))
	f.engine.Bind(context.Background())

	f.host.Emit(&host.Event{Name: "click", Target: &host.Element{Tag: "button"}})
	assert.Equal(t, 1, f.queue.Len())
}

func TestEngine_ClickJustLinksTrue(t *testing.T) {
	f := newFixture(t, clickTracker(`{"justLinks":true}`))
	f.engine.Bind(context.Background())

	f.host.Emit(&host.Event{Name: "click", Target: &host.Element{Tag: "button"}})
	assert.Equal(t, 0, f.queue.Len())

	f.host.Emit(&host.Event{Name: "click"})
	assert.Equal(t, 0, f.queue.Len(), "targetless clicks are rejected under justLinks")

	f.host.Emit(&host.Event{
		Name:   "click",
		Target: &host.Element{Tag: "a", Attributes: map[string]string{"href": "#"}},
	})
	assert.Equal(t, 1, f.queue.Len())
}

func TestEngine_ScrollAlwaysPasses(t *testing.T) {
	tracker := domain.Tracker{
		Name: "scrolls",
		Triggers: []domain.Trigger{
			{Name: "scroll-trigger", Type: domain.TriggerScroll, Option: json.RawMessage(`{"vertical":true}`)},
		},
		Event: domain.EventMapping{Name: "scroll"},
	}
	f := newFixture(t, tracker)
	f.engine.Bind(context.Background())

	f.host.Emit(&host.Event{Name: "scroll"})
	assert.Equal(t, 1, f.queue.Len())
}

func customTracker() domain.Tracker {
	return domain.Tracker{
		Name: "signup",
		Triggers: []domain.Trigger{
			{Name: "signup-trigger", Type: domain.TriggerCustom, Option: json.RawMessage(`{"event":"signup-completed"}`)},
		},
		Variables: []domain.Variable{
			{Type: domain.VariableCustomValue, Name: "plan"},
			{Type: domain.VariableURL, Name: "pagePath", Selection: json.RawMessage(`"path"`)},
		},
		Event: domain.EventMapping{
			Name:       "signup",
			KeyMapping: "plan",
			VariableMappings: map[string]string{
				"plan": "{plan}",
				"page": "{pagePath}",
			},
		},
	}
}

func TestEngine_CustomTriggerByHostEvent(t *testing.T) {
	f := newFixture(t, customTracker())
	f.engine.Bind(context.Background())

	// Custom triggers listen under the trigger's own name.
	f.host.Emit(&host.Event{Name: "signup-trigger"})
	assert.Equal(t, 1, f.queue.Len())
}

func TestEngine_BuildCustomPayload(t *testing.T) {
	f := newFixture(t, customTracker())
	f.host.Navigate("https://example.com/welcome")

	payload := f.engine.BuildCustomPayload(context.Background(), "signup-completed", map[string]any{"plan": "premium"})

	assert.NotNil(t, payload)
	assert.Equal(t, "signup", payload.Name)
	assert.Equal(t, "premium", payload.Key)
	assert.Equal(t, "premium", payload.Variables["plan"], "supplied value wins for CUSTOM-kind variables")
	assert.Equal(t, "/welcome", payload.Variables["page"], "other kinds resolve fresh")
}

func TestEngine_BuildCustomPayloadByTriggerName(t *testing.T) {
	f := newFixture(t, customTracker())

	assert.NotNil(t, f.engine.BuildCustomPayload(context.Background(), "signup-trigger", nil))
	assert.Nil(t, f.engine.BuildCustomPayload(context.Background(), "no-such-event", nil))
}

func TestEngine_RiskAlertTrigger(t *testing.T) {
	tracker := domain.Tracker{
		Name: "alerts",
		Triggers: []domain.Trigger{
			{Name: "risk-trigger", Type: domain.TriggerRiskAlert},
		},
		Variables: []domain.Variable{
			{Type: domain.VariableRemoteAccessScore, Name: "score"},
		},
		Event: domain.EventMapping{
			Name:       "risk-alert",
			KeyMapping: "score",
			VariableMappings: map[string]string{
				"score": "{score}",
			},
		},
	}
	f := newFixture(t, tracker)
	f.engine.Bind(context.Background())

	// Every suspicion flag together scores 0.6; lower the threshold under
	// that and recompute.
	threshold := 0.5
	f.agg.ConfigureAlerts(&threshold, nil, nil)
	f.agg.SetSuspiciousFlags(risk.SuspiciousFlags{
		UnnaturalMouseMoves:  true,
		BigClipboardPaste:    true,
		LowFPSDetected:       true,
		DelayedClickDetected: true,
	})
	f.agg.Recompute()

	assert.Equal(t, 1, f.queue.Len())
}

func TestEngine_UnbindStopsHandling(t *testing.T) {
	f := newFixture(t, pageViewTracker())
	f.engine.Bind(context.Background())
	f.engine.Unbind()

	f.host.Navigate("https://example.com/after")
	assert.Equal(t, 0, f.queue.Len())
}
