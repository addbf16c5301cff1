// Package variable resolves declarative variable descriptors into concrete
// values. Resolution never fails upward: bad selectors, failing scripts, and
// unknown kinds all degrade to the empty string, logged but not propagated.
package variable

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/dop251/goja"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/browser"
	"github.com/trlogic/tracker-web/internal/domain"
	"github.com/trlogic/tracker-web/internal/host"
	"github.com/trlogic/tracker-web/internal/risk"
)

// Globals supplies caller-defined variables for the CUSTOM kind.
type Globals interface {
	Lookup(name string) (any, bool)
}

// Resolver dispatches over descriptor kinds. One resolver serves a session;
// its identity inputs (IP, device fingerprint) are fixed at construction.
type Resolver struct {
	host        host.Host
	detector    *browser.Detector
	risk        *risk.Aggregator
	globals     Globals
	ip          string
	fingerprint string
	log         *zap.Logger

	// goja runtimes are not safe for concurrent use.
	vmMu sync.Mutex
	vm   *goja.Runtime
}

// NewResolver wires a resolver to its session collaborators.
func NewResolver(h host.Host, detector *browser.Detector, agg *risk.Aggregator, globals Globals, ip, fingerprint string, log *zap.Logger) *Resolver {
	return &Resolver{
		host:        h,
		detector:    detector,
		risk:        agg,
		globals:     globals,
		ip:          ip,
		fingerprint: fingerprint,
		log:         log,
		vm:          goja.New(),
	}
}

// Resolve computes the value for one descriptor against one occurrence.
// The occurrence may be nil for programmatic (non-interaction) triggers.
func (r *Resolver) Resolve(ctx context.Context, v domain.Variable, ev *host.Event) any {
	switch v.Type {
	case domain.VariableURL:
		return r.resolveURL(v)
	case domain.VariableCookie:
		return r.resolveCookie(v)
	case domain.VariableElement:
		return r.resolveElement(v)
	case domain.VariableJavascript:
		return r.resolveScript(v)
	case domain.VariableEvent:
		return r.resolveEventTarget(v, ev)
	case domain.VariableIPAddress:
		if r.ip == "unknown" {
			return ""
		}
		return r.ip
	case domain.VariableDeviceFingerprint:
		return r.fingerprint
	case domain.VariableSuspiciousActivity:
		return suspicionScore(r.risk.Flags())
	case domain.VariableSuspiciousBrowser:
		return r.detector.IsSuspicious()
	case domain.VariableLanguage:
		return r.detector.Language()
	case domain.VariableTimezone:
		return r.detector.Timezone()
	case domain.VariableOS:
		return r.detector.OS()
	case domain.VariableBrowser:
		return r.detector.Browser()
	case domain.VariableCustomValue:
		return r.resolveCustom(v)
	case domain.VariableScreenResolution:
		w, h := r.host.Viewport()
		return fmt.Sprintf("%dx%d", w, h)
	case domain.VariableUserAgent:
		return r.host.Navigator().UserAgent()
	case domain.VariableRemoteAccessScore:
		return r.risk.Snapshot().RemoteAccessScore
	case domain.VariableRemoteAccessFlags:
		return marshalFlags(remoteAccessFlagsView(r.risk.Snapshot()))
	case domain.VariableEnvChangeFlags:
		return marshalFlags(r.risk.Snapshot().EnvironmentChange)
	case domain.VariableEnvChangeScore:
		return r.risk.Snapshot().EnvironmentChangeScore
	case domain.VariableNoMouseMoveDuration:
		return r.risk.Aggregates().NoMouseMoveDuration.Milliseconds()
	case domain.VariableClickOnlyPattern:
		return r.risk.Aggregates().ClickOnlyPattern
	case domain.VariableFastPageTransition:
		return r.risk.Aggregates().FastPageTransition
	case domain.VariableFormFillAnomaly:
		return r.risk.Aggregates().FormFillAnomaly
	case domain.VariableFormFillDuration:
		return r.risk.Aggregates().FormFillDuration.Milliseconds()
	case domain.VariableNavigationVelocity:
		return r.risk.Aggregates().NavigationVelocity
	case domain.VariableInputPasteRatio:
		return r.risk.Aggregates().InputPasteRatio
	case domain.VariableHeadlessIndicatorCount:
		return r.risk.Aggregates().HeadlessIndicatorCount
	default:
		return ""
	}
}

func (r *Resolver) resolveURL(v domain.Variable) string {
	loc := r.host.Location()
	switch v.URLSelection() {
	case "full":
		return loc.Href
	case "host":
		return loc.Host
	case "port":
		return loc.Port
	case "path":
		return loc.Path
	case "query":
		return loc.Query
	case "fragment":
		return loc.Fragment
	case "protocol":
		return loc.Protocol
	default:
		return ""
	}
}

// resolveCookie returns the first cookie whose name starts with CookieName.
// Deployed configurations rely on the prefix match, so exact matching would
// break them.
func (r *Resolver) resolveCookie(v domain.Variable) string {
	name := v.CookieName
	if name == "" {
		return ""
	}
	for _, entry := range strings.Split(r.host.Cookies(), ";") {
		entry = strings.TrimSpace(entry)
		if !strings.HasPrefix(entry, name) || len(entry) <= len(name) {
			continue
		}
		value := entry[len(name)+1:]
		if v.DecodeURLCookie {
			if decoded, err := url.QueryUnescape(value); err == nil {
				return decoded
			}
		}
		return value
	}
	return ""
}

func (r *Resolver) resolveElement(v domain.Variable) string {
	opt := v.ElementOption()
	element := r.host.Query(opt.CSSSelector)
	if element == nil {
		return ""
	}
	if opt.Attribute == "" {
		return element.TextContent()
	}
	return element.Attribute(opt.Attribute)
}

// resolveEventTarget queries a detached clone of the occurrence's target, so
// selectors cannot escape into the surrounding document.
func (r *Resolver) resolveEventTarget(v domain.Variable, ev *host.Event) string {
	if ev == nil || ev.Target == nil {
		return ""
	}
	sel := v.ElementSelection()
	element := ev.Target.Clone().Find(sel.CSSSelector)
	if element == nil {
		return ""
	}
	if sel.Attribute == "" {
		return element.TextContent()
	}
	return element.Attribute(sel.Attribute)
}

func (r *Resolver) resolveScript(v domain.Variable) string {
	r.vmMu.Lock()
	defer r.vmMu.Unlock()

	value, err := r.vm.RunString(v.Code)
	if err != nil {
		r.log.Error("Error executing script variable",
			zap.String("variable", v.Name),
			zap.Error(err))
		return ""
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return ""
	}
	return value.String()
}

func (r *Resolver) resolveCustom(v domain.Variable) string {
	value, ok := r.globals.Lookup(v.Name)
	if !ok {
		return ""
	}
	return domain.String(value)
}

// suspicionScore weighs each live flag at 0.25, totalling exactly 1.0 when
// all four are set.
func suspicionScore(flags risk.SuspiciousFlags) float64 {
	score := 0.0
	if flags.UnnaturalMouseMoves {
		score += 0.25
	}
	if flags.BigClipboardPaste {
		score += 0.25
	}
	if flags.LowFPSDetected {
		score += 0.25
	}
	if flags.DelayedClickDetected {
		score += 0.25
	}
	return score
}

type remoteAccessFlags struct {
	risk.SuspiciousFlags
	ClickOnlyPattern       bool `json:"clickOnlyPattern"`
	FastPageTransition     bool `json:"fastPageTransition"`
	FormFillAnomaly        bool `json:"formFillAnomaly"`
	EnvironmentMismatch    bool `json:"environmentMismatch"`
	HeadlessIndicatorCount int  `json:"headlessIndicatorCount"`
}

func remoteAccessFlagsView(s risk.Snapshot) remoteAccessFlags {
	return remoteAccessFlags{
		SuspiciousFlags:        s.Flags,
		ClickOnlyPattern:       s.Aggregates.ClickOnlyPattern,
		FastPageTransition:     s.Aggregates.FastPageTransition,
		FormFillAnomaly:        s.Aggregates.FormFillAnomaly,
		EnvironmentMismatch:    s.EnvironmentChangeScore > 0.5,
		HeadlessIndicatorCount: s.Aggregates.HeadlessIndicatorCount,
	}
}

func marshalFlags(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
