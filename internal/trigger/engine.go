// Package trigger binds declarative triggers to the host's event stream,
// validates candidate occurrences, and forwards accepted ones into the
// payload pipeline.
package trigger

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/delivery"
	"github.com/trlogic/tracker-web/internal/domain"
	"github.com/trlogic/tracker-web/internal/event"
	"github.com/trlogic/tracker-web/internal/filter"
	"github.com/trlogic/tracker-web/internal/host"
	"github.com/trlogic/tracker-web/internal/risk"
	"github.com/trlogic/tracker-web/internal/variable"
)

// Engine wires one session's trackers to the host. Constructed once per
// initialized session; owns its subscription set exclusively.
type Engine struct {
	host     host.Host
	resolver *variable.Resolver
	queue    *delivery.Queue
	agg      *risk.Aggregator
	trackers []domain.Tracker
	log      *zap.Logger

	mu       sync.Mutex
	prevHref string
	cancels  []func()
}

// NewEngine creates an engine over the fetched tracker set.
func NewEngine(h host.Host, resolver *variable.Resolver, queue *delivery.Queue, agg *risk.Aggregator, trackers []domain.Tracker, log *zap.Logger) *Engine {
	return &Engine{
		host:     h,
		resolver: resolver,
		queue:    queue,
		agg:      agg,
		trackers: trackers,
		log:      log,
	}
}

// Bind subscribes every trigger of every tracker to its event source.
func (e *Engine) Bind(ctx context.Context) {
	for i := range e.trackers {
		tracker := e.trackers[i]
		for _, trig := range tracker.Triggers {
			e.bindTrigger(ctx, trig, tracker)
		}
	}
}

// Unbind cancels all host subscriptions.
func (e *Engine) Unbind() {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (e *Engine) bindTrigger(ctx context.Context, trig domain.Trigger, tracker domain.Tracker) {
	switch trig.Type {
	case domain.TriggerPageView:
		e.bindPageView(ctx, trig, tracker)
	case domain.TriggerCustom:
		// Custom triggers subscribe under the trigger's own name; an
		// explicit option.event only matters for programmatic firing.
		e.subscribe(trig.Name, func(ev *host.Event) {
			e.handle(ctx, ev, trig, tracker)
		})
	case domain.TriggerRiskAlert:
		// No external event source: fired only by the aggregator's
		// alerting machine.
		e.agg.OnAlert(func(alert risk.Alert) {
			ev := &host.Event{
				Name: "riskalert",
				Data: map[string]any{"score": alert.Score},
			}
			e.handle(ctx, ev, trig, tracker)
		})
	default:
		e.subscribe(strings.ToLower(string(trig.Type)), func(ev *host.Event) {
			e.handle(ctx, ev, trig, tracker)
		})
	}
}

func (e *Engine) bindPageView(ctx context.Context, trig domain.Trigger, tracker domain.Tracker) {
	e.mu.Lock()
	e.prevHref = e.host.Location().Href
	e.mu.Unlock()

	e.subscribe("load", func(*host.Event) {
		e.mu.Lock()
		e.prevHref = e.host.Location().Href
		e.mu.Unlock()
	})

	// Mutation notifications arrive in batches; firing only on a changed
	// location debounces to one occurrence per distinct navigation.
	e.subscribe("mutation", func(*host.Event) {
		href := e.host.Location().Href
		e.mu.Lock()
		changed := href != e.prevHref
		if changed {
			e.prevHref = href
		}
		e.mu.Unlock()
		if !changed {
			return
		}

		e.agg.RegisterPageView()
		e.handle(ctx, &host.Event{Name: "pageview"}, trig, tracker)
	})
}

func (e *Engine) subscribe(name string, fn func(*host.Event)) {
	cancel := e.host.Subscribe(name, fn)
	e.mu.Lock()
	e.cancels = append(e.cancels, cancel)
	e.mu.Unlock()
}

// handle runs the accept path for one candidate occurrence: type-specific
// validation, variable resolution, filters, then payload construction.
func (e *Engine) handle(ctx context.Context, ev *host.Event, trig domain.Trigger, tracker domain.Tracker) {
	if !validate(ev, trig) {
		return
	}

	vars := make(map[string]any, len(tracker.Variables))
	for _, v := range tracker.Variables {
		vars[v.Name] = e.resolver.Resolve(ctx, v, ev)
	}

	if !filter.EvaluateAll(trig.Filters, vars) {
		return
	}

	payload := event.Build(tracker, vars)
	e.queue.Add(payload)

	e.log.Debug("Occurrence accepted",
		zap.String("tracker", tracker.Name),
		zap.String("trigger", trig.Name),
		zap.String("event", payload.Name),
		zap.String("key", payload.Key))
}

// validate applies the trigger type's acceptance rule.
func validate(ev *host.Event, trig domain.Trigger) bool {
	switch trig.Type {
	case domain.TriggerClick:
		return validateClick(ev, trig)
	case domain.TriggerScroll:
		// The horizontal/vertical options are accepted but not yet
		// consulted; scroll occurrences pass unconditionally.
		return true
	default:
		return true
	}
}

// validateClick requires an href-bearing target when the trigger opts in via
// justLinks. Absent or ill-typed options read as the permissive default, and
// presence of the attribute is enough; navigability is not checked.
func validateClick(ev *host.Event, trig domain.Trigger) bool {
	if !trig.ClickOption().JustLinks {
		return true
	}
	if ev == nil || ev.Target == nil {
		return false
	}
	return ev.Target.HasAttribute("href")
}

// BuildCustomPayload resolves and builds the payload for a programmatic
// custom trigger. Caller-supplied values win for CUSTOM-kind variables;
// every other kind is resolved fresh. Returns nil when no tracker declares a
// matching custom trigger.
func (e *Engine) BuildCustomPayload(ctx context.Context, name string, supplied map[string]any) *domain.Payload {
	for i := range e.trackers {
		tracker := e.trackers[i]
		if !hasCustomTrigger(tracker, name) {
			continue
		}

		vars := make(map[string]any, len(tracker.Variables)+len(supplied))
		for k, v := range supplied {
			vars[k] = v
		}
		for _, v := range tracker.Variables {
			if v.Type == domain.VariableCustomValue {
				if _, ok := vars[v.Name]; ok {
					continue
				}
			}
			vars[v.Name] = e.resolver.Resolve(ctx, v, nil)
		}

		return event.Build(tracker, vars)
	}
	return nil
}

func hasCustomTrigger(tracker domain.Tracker, name string) bool {
	for _, trig := range tracker.Triggers {
		if trig.Type != domain.TriggerCustom {
			continue
		}
		if trig.CustomOption().Event == name || trig.Name == name {
			return true
		}
	}
	return false
}
