package variable

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/browser"
	"github.com/trlogic/tracker-web/internal/domain"
	"github.com/trlogic/tracker-web/internal/host"
	"github.com/trlogic/tracker-web/internal/risk"
	"github.com/trlogic/tracker-web/internal/storage"
)

type mapGlobals map[string]any

func (g mapGlobals) Lookup(name string) (any, bool) {
	v, ok := g[name]
	return v, ok
}

func newTestResolver(h *host.MemoryHost, globals Globals, ip string) (*Resolver, *risk.Aggregator) {
	detector := browser.NewDetector(h.Navigator())
	agg := risk.NewAggregator(detector, storage.NewMemoryStore(), zap.NewNop())
	if globals == nil {
		globals = mapGlobals{}
	}
	return NewResolver(h, detector, agg, globals, ip, "fp-123", zap.NewNop()), agg
}

func TestResolve_URLSelections(t *testing.T) {
	h := host.NewMemoryHost()
	h.Navigate("https://shop.example.com:8443/checkout?step=2#payment")
	r, _ := newTestResolver(h, nil, "203.0.113.9")

	tests := []struct {
		selection string
		expected  string
	}{
		{"full", "https://shop.example.com:8443/checkout?step=2#payment"},
		{"protocol", "https"},
		{"host", "shop.example.com"},
		{"port", "8443"},
		{"path", "/checkout"},
		{"query", "step=2"},
		{"fragment", "payment"},
		{"bogus", ""},
	}

	for _, tt := range tests {
		t.Run(tt.selection, func(t *testing.T) {
			v := domain.Variable{
				Type:      domain.VariableURL,
				Name:      "url",
				Selection: json.RawMessage(`"` + tt.selection + `"`),
			}
			assert.Equal(t, tt.expected, r.Resolve(context.Background(), v, nil))
		})
	}
}

func TestResolve_URLSelectionWrongShape(t *testing.T) {
	h := host.NewMemoryHost()
	h.Navigate("https://example.com/")
	r, _ := newTestResolver(h, nil, "")

	v := domain.Variable{
		Type:      domain.VariableURL,
		Name:      "url",
		Selection: json.RawMessage(`{"cssSelector":"a"}`),
	}
	assert.Equal(t, "", r.Resolve(context.Background(), v, nil))
}

func TestResolve_Cookie(t *testing.T) {
	h := host.NewMemoryHost()
	h.SetCookies("session=abc123; theme=dark; formica_id=u%2F42")
	r, _ := newTestResolver(h, nil, "")

	read := func(name string, decode bool) any {
		return r.Resolve(context.Background(), domain.Variable{
			Type:            domain.VariableCookie,
			Name:            "cookie",
			CookieName:      name,
			DecodeURLCookie: decode,
		}, nil)
	}

	assert.Equal(t, "abc123", read("session", false))
	assert.Equal(t, "dark", read("theme", false))
	assert.Equal(t, "u%2F42", read("formica_id", false))
	assert.Equal(t, "u/42", read("formica_id", true))
	assert.Equal(t, "", read("absent", false))
	assert.Equal(t, "", read("", false))

	// Name matching is prefix-based, so the first cookie whose name starts
	// with the requested name wins.
	assert.Equal(t, "abc123", read("sess", false))
}

func TestResolve_Element(t *testing.T) {
	h := host.NewMemoryHost()
	h.SetDocument(&host.Element{
		Tag: "body",
		Children: []*host.Element{
			{Tag: "h1", Attributes: map[string]string{"id": "title"}, Text: "Checkout"},
			{Tag: "a", Attributes: map[string]string{"class": "cta", "href": "/pay"}, Text: "Pay now"},
		},
	})
	r, _ := newTestResolver(h, nil, "")

	text := r.Resolve(context.Background(), domain.Variable{
		Type:   domain.VariableElement,
		Option: json.RawMessage(`{"cssSelector":"#title"}`),
	}, nil)
	assert.Equal(t, "Checkout", text)

	attr := r.Resolve(context.Background(), domain.Variable{
		Type:   domain.VariableElement,
		Option: json.RawMessage(`{"cssSelector":".cta","attribute":"href"}`),
	}, nil)
	assert.Equal(t, "/pay", attr)

	missing := r.Resolve(context.Background(), domain.Variable{
		Type:   domain.VariableElement,
		Option: json.RawMessage(`{"cssSelector":"#nope"}`),
	}, nil)
	assert.Equal(t, "", missing)
}

func TestResolve_EventTarget(t *testing.T) {
	h := host.NewMemoryHost()
	r, _ := newTestResolver(h, nil, "")

	target := &host.Element{
		Tag:        "button",
		Attributes: map[string]string{"data-sku": "SKU-7"},
		Text:       "Add to cart",
	}
	v := domain.Variable{
		Type:      domain.VariableEvent,
		Selection: json.RawMessage(`{"cssSelector":"button","attribute":"data-sku"}`),
	}

	assert.Equal(t, "SKU-7", r.Resolve(context.Background(), v, &host.Event{Name: "click", Target: target}))
	assert.Equal(t, "", r.Resolve(context.Background(), v, nil), "programmatic occurrences have no target")
	assert.Equal(t, "", r.Resolve(context.Background(), v, &host.Event{Name: "click"}))
}

func TestResolve_Javascript(t *testing.T) {
	h := host.NewMemoryHost()
	r, _ := newTestResolver(h, nil, "")

	run := func(code string) any {
		return r.Resolve(context.Background(), domain.Variable{
			Type: domain.VariableJavascript,
			Name: "script",
			Code: code,
		}, nil)
	}

	assert.Equal(t, "6", run("2 * 3"))
	assert.Equal(t, "hello world", run(`"hello " + "world"`))
	assert.Equal(t, "", run("undefined"))
	assert.Equal(t, "", run("null"))
	assert.Equal(t, "", run("this is not javascript ((("), "script errors degrade to empty")
	assert.Equal(t, "kept", run(`var x = "kept"; x`), "state persists across evaluations in one session")
	assert.Equal(t, "kept", run("x"))
}

func TestResolve_IdentityKinds(t *testing.T) {
	h := host.NewMemoryHost()
	r, _ := newTestResolver(h, nil, "203.0.113.9")

	assert.Equal(t, "203.0.113.9", r.Resolve(context.Background(), domain.Variable{Type: domain.VariableIPAddress}, nil))
	assert.Equal(t, "fp-123", r.Resolve(context.Background(), domain.Variable{Type: domain.VariableDeviceFingerprint}, nil))

	unknown, _ := newTestResolver(h, nil, "unknown")
	assert.Equal(t, "", unknown.Resolve(context.Background(), domain.Variable{Type: domain.VariableIPAddress}, nil),
		"failed IP lookups read as empty, not the sentinel")
}

func TestResolve_EnvironmentKinds(t *testing.T) {
	h := host.NewMemoryHost()
	r, _ := newTestResolver(h, nil, "")

	resolve := func(kind domain.VariableType) any {
		return r.Resolve(context.Background(), domain.Variable{Type: kind}, nil)
	}

	assert.Equal(t, "Chrome", resolve(domain.VariableBrowser))
	assert.Equal(t, "Windows", resolve(domain.VariableOS))
	assert.Equal(t, "en-US", resolve(domain.VariableLanguage))
	assert.Equal(t, "UTC", resolve(domain.VariableTimezone))
	assert.Equal(t, "1920x1080", resolve(domain.VariableScreenResolution))
	assert.Equal(t, false, resolve(domain.VariableSuspiciousBrowser))
	assert.Contains(t, resolve(domain.VariableUserAgent), "Mozilla/5.0")
}

func TestResolve_SuspiciousActivityScore(t *testing.T) {
	h := host.NewMemoryHost()
	r, agg := newTestResolver(h, nil, "")

	v := domain.Variable{Type: domain.VariableSuspiciousActivity}
	assert.Equal(t, 0.0, r.Resolve(context.Background(), v, nil))

	agg.SetSuspiciousFlags(risk.SuspiciousFlags{BigClipboardPaste: true, LowFPSDetected: true})
	assert.Equal(t, 0.5, r.Resolve(context.Background(), v, nil))

	agg.SetSuspiciousFlags(risk.SuspiciousFlags{
		UnnaturalMouseMoves:  true,
		BigClipboardPaste:    true,
		LowFPSDetected:       true,
		DelayedClickDetected: true,
	})
	assert.Equal(t, 1.0, r.Resolve(context.Background(), v, nil))
}

func TestResolve_Custom(t *testing.T) {
	h := host.NewMemoryHost()
	r, _ := newTestResolver(h, mapGlobals{"planTier": "premium", "viewDuration": 4200}, "")

	assert.Equal(t, "premium", r.Resolve(context.Background(), domain.Variable{
		Type: domain.VariableCustomValue, Name: "planTier",
	}, nil))
	assert.Equal(t, "4200", r.Resolve(context.Background(), domain.Variable{
		Type: domain.VariableCustomValue, Name: "viewDuration",
	}, nil))
	assert.Equal(t, "", r.Resolve(context.Background(), domain.Variable{
		Type: domain.VariableCustomValue, Name: "absent",
	}, nil))
}

func TestResolve_RemoteAccessKinds(t *testing.T) {
	h := host.NewMemoryHost()
	r, agg := newTestResolver(h, nil, "")
	agg.SetSuspiciousFlags(risk.SuspiciousFlags{BigClipboardPaste: true})

	score := r.Resolve(context.Background(), domain.Variable{Type: domain.VariableRemoteAccessScore}, nil)
	assert.InDelta(t, 0.15, score.(float64), 0.0001)

	flagsJSON := r.Resolve(context.Background(), domain.Variable{Type: domain.VariableRemoteAccessFlags}, nil).(string)
	var flags map[string]any
	assert.NoError(t, json.Unmarshal([]byte(flagsJSON), &flags))
	assert.Equal(t, true, flags["bigClipboardPaste"])
	assert.Equal(t, false, flags["clickOnlyPattern"])
	assert.Contains(t, flags, "environmentMismatch")
	assert.Contains(t, flags, "headlessIndicatorCount")

	envJSON := r.Resolve(context.Background(), domain.Variable{Type: domain.VariableEnvChangeFlags}, nil).(string)
	var env map[string]any
	assert.NoError(t, json.Unmarshal([]byte(envJSON), &env))
	assert.Equal(t, false, env["browserChanged"])

	assert.Equal(t, 0.0, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableEnvChangeScore}, nil))
	assert.Equal(t, false, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableClickOnlyPattern}, nil))
	assert.Equal(t, false, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableFastPageTransition}, nil))
	assert.Equal(t, false, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableFormFillAnomaly}, nil))
	assert.Equal(t, int64(0), r.Resolve(context.Background(), domain.Variable{Type: domain.VariableFormFillDuration}, nil))
	assert.Equal(t, 0.0, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableNavigationVelocity}, nil))
	assert.Equal(t, 0.0, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableInputPasteRatio}, nil))
	assert.Equal(t, 0, r.Resolve(context.Background(), domain.Variable{Type: domain.VariableHeadlessIndicatorCount}, nil))
}

func TestResolve_UnknownKind(t *testing.T) {
	h := host.NewMemoryHost()
	r, _ := newTestResolver(h, nil, "")

	assert.Equal(t, "", r.Resolve(context.Background(), domain.Variable{Type: "SOME_FUTURE_KIND"}, nil))
}
