package risk

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/storage"
)

const (
	baselineKeyPrefix = "formica_baseline_"

	pageViewHorizon      = 5 * time.Minute
	fastTransitionWindow = 1500 * time.Millisecond
	recomputeInterval    = 5 * time.Second

	// Form fills faster than min(fieldCount*perFieldFloor, anomalyCeiling)
	// are flagged as implausibly fast for the number of fields.
	perFieldFloor  = 120 * time.Millisecond
	anomalyCeiling = 1500 * time.Millisecond

	// clickOnlyPattern: clicks arriving while the pointer has been still.
	clickOnlyIdle      = 10 * time.Second
	clickOnlyMinClicks = 3
	clickOnlyMaxMoves  = 2

	// Environment change score weights.
	weightLanguageChange = 0.25
	weightTimezoneChange = 0.25
	weightOSChange       = 0.20
	weightBrowserChange  = 0.30

	// Remote access score weights.
	weightUnnaturalMouse = 0.20
	weightBigPaste       = 0.15
	weightLowFPS         = 0.15
	weightDelayedClick   = 0.10
	weightClickOnly      = 0.15
	weightPerHeadless    = 0.05
	weightHeadlessCap    = 0.25
	weightEnvMismatch    = 0.20
	envMismatchThreshold = 0.5
)

// Aggregator owns the session's rolling behavioral counters and the baseline
// cache key. Counters are mutated by host-event observers and read by the
// recompute tick and variable resolution, so every access holds the mutex.
type Aggregator struct {
	env   EnvironmentSource
	store storage.Store
	log   *zap.Logger
	now   func() time.Time

	mu              sync.Mutex
	flags           SuspiciousFlags
	lastMouseMove   time.Time
	lastClick       time.Time
	mouseMoveWindow int
	clickWindow     int
	pageViews       []time.Time
	lastPageView    time.Time
	fastTransition  bool
	pasteChars      int
	typedChars      int
	formStarted     bool
	formStart       time.Time
	formFieldCount  int
	formDuration    time.Duration
	formAnomaly     bool
	baseline        *EnvironmentBaseline
	alerts          alertMachine
	alertFns        []func(Alert)
}

// NewAggregator creates an aggregator reading environment attributes from env
// and persisting the baseline through store.
func NewAggregator(env EnvironmentSource, store storage.Store, log *zap.Logger) *Aggregator {
	now := time.Now()
	return &Aggregator{
		env:           env,
		store:         store,
		log:           log,
		now:           time.Now,
		lastMouseMove: now,
		lastClick:     now,
		alerts:        newAlertMachine(),
	}
}

// ObservePointerMove records a pointer movement.
func (a *Aggregator) ObservePointerMove() {
	a.mu.Lock()
	a.lastMouseMove = a.now()
	a.mouseMoveWindow++
	a.mu.Unlock()
}

// ObserveClick records a click.
func (a *Aggregator) ObserveClick() {
	a.mu.Lock()
	a.lastClick = a.now()
	a.clickWindow++
	a.mu.Unlock()
}

// ObservePaste adds pasted characters to the paste/typed ratio.
func (a *Aggregator) ObservePaste(chars int) {
	if chars <= 0 {
		return
	}
	a.mu.Lock()
	a.pasteChars += chars
	a.mu.Unlock()
}

// ObserveKeystroke adds one typed character to the paste/typed ratio.
func (a *Aggregator) ObserveKeystroke() {
	a.mu.Lock()
	a.typedChars++
	a.mu.Unlock()
}

// ObserveFormFocus starts the form-interaction clock on the first focus into
// a form; later focuses within the same interaction are ignored.
func (a *Aggregator) ObserveFormFocus(fieldCount int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.formStarted {
		return
	}
	a.formStarted = true
	a.formStart = a.now()
	a.formFieldCount = fieldCount
}

// ObserveFormSubmit closes the form interaction, computing its duration and
// the implausibly-fast-fill anomaly flag.
func (a *Aggregator) ObserveFormSubmit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.formStarted {
		a.formDuration = a.now().Sub(a.formStart)
		a.formAnomaly = detectFormAnomaly(a.formDuration, a.formFieldCount)
	}
	a.formStarted = false
}

// RegisterPageView records a page navigation, updating the fast-transition
// flag and the 5-minute navigation ring.
func (a *Aggregator) RegisterPageView() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.fastTransition = !a.lastPageView.IsZero() && now.Sub(a.lastPageView) < fastTransitionWindow
	a.lastPageView = now

	a.pageViews = append(a.pageViews, now)
	cutoff := now.Add(-pageViewHorizon)
	kept := a.pageViews[:0]
	for _, t := range a.pageViews {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	a.pageViews = kept
}

// ResetRollingWindow zeroes the click and pointer-move window counters.
func (a *Aggregator) ResetRollingWindow() {
	a.mu.Lock()
	a.mouseMoveWindow = 0
	a.clickWindow = 0
	a.mu.Unlock()
}

// SetSuspiciousFlags replaces the live suspicion flags.
func (a *Aggregator) SetSuspiciousFlags(flags SuspiciousFlags) {
	a.mu.Lock()
	a.flags = flags
	a.mu.Unlock()
}

// Flags returns the current suspicion flags.
func (a *Aggregator) Flags() SuspiciousFlags {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flags
}

// Aggregates returns the current rolling-counter view.
func (a *Aggregator) Aggregates() RemoteAccessAggregates {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aggregatesLocked()
}

func (a *Aggregator) aggregatesLocked() RemoteAccessAggregates {
	now := a.now()
	idle := now.Sub(a.lastMouseMove)
	return RemoteAccessAggregates{
		HeadlessIndicatorCount: a.env.HeadlessIndicatorCount(),
		NoMouseMoveDuration:    idle,
		ClickOnlyPattern:       idle > clickOnlyIdle && a.clickWindow >= clickOnlyMinClicks && a.mouseMoveWindow < clickOnlyMaxMoves,
		FastPageTransition:     a.fastTransition,
		NavigationVelocity:     float64(len(a.pageViews)) / pageViewHorizon.Minutes(),
		FormFillAnomaly:        a.formAnomaly,
		FormFillDuration:       a.formDuration,
		InputPasteRatio:        pasteRatio(a.pasteChars, a.typedChars),
	}
}

// Snapshot produces the full aggregate state consumed by variable resolution.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	agg := a.aggregatesLocked()
	change := a.diffEnvironmentLocked()
	changeScore := EnvironmentChangeScore(change)
	return Snapshot{
		Flags:                  a.flags,
		Aggregates:             agg,
		EnvironmentChange:      change,
		EnvironmentChangeScore: changeScore,
		RemoteAccessScore:      RemoteAccessScore(a.flags, changeScore > envMismatchThreshold, agg),
	}
}

// EnsureBaseline loads the durable baseline for (tenant, deviceID), creating
// it from the current environment on first observation. Storage failures are
// swallowed: a missing baseline only disables drift detection.
func (a *Aggregator) EnsureBaseline(ctx context.Context, tenant, deviceID string) {
	key := baselineKeyPrefix + tenant + "_" + deviceID

	raw, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Warn("Failed to load environment baseline", zap.Error(err))
	}
	if ok {
		var baseline EnvironmentBaseline
		if err := json.Unmarshal(raw, &baseline); err == nil {
			a.mu.Lock()
			a.baseline = &baseline
			a.mu.Unlock()
			return
		}
		a.log.Warn("Discarding undecodable environment baseline", zap.String("key", key))
	}

	baseline := EnvironmentBaseline{
		Language:  a.env.Language(),
		Timezone:  a.env.Timezone(),
		OS:        a.env.OS(),
		Browser:   a.env.Browser(),
		FirstSeen: a.now().UnixMilli(),
	}

	encoded, err := json.Marshal(baseline)
	if err == nil {
		if err := a.store.Put(ctx, key, encoded); err != nil {
			a.log.Warn("Failed to persist environment baseline", zap.Error(err))
		}
	}

	a.mu.Lock()
	a.baseline = &baseline
	a.mu.Unlock()
}

func (a *Aggregator) diffEnvironmentLocked() EnvironmentChangeFlags {
	if a.baseline == nil {
		return EnvironmentChangeFlags{}
	}
	return EnvironmentChangeFlags{
		LanguageChanged: a.baseline.Language != a.env.Language(),
		TimezoneChanged: a.baseline.Timezone != a.env.Timezone(),
		OSChanged:       a.baseline.OS != a.env.OS(),
		BrowserChanged:  a.baseline.Browser != a.env.Browser(),
	}
}

// ConfigureAlerts adjusts the alerting parameters. Out-of-range thresholds
// and negative cooldowns are ignored field by field.
func (a *Aggregator) ConfigureAlerts(threshold *float64, cooldown *time.Duration, enabled *bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if threshold != nil && *threshold >= 0 && *threshold <= 1 {
		a.alerts.threshold = *threshold
	}
	if cooldown != nil && *cooldown >= 0 {
		a.alerts.cooldown = *cooldown
	}
	if enabled != nil {
		a.alerts.enabled = *enabled
	}
}

// OnAlert registers a callback invoked on each fired alert.
func (a *Aggregator) OnAlert(fn func(Alert)) {
	a.mu.Lock()
	a.alertFns = append(a.alertFns, fn)
	a.mu.Unlock()
}

// Recompute takes one scoring sample and drives the alert machine. The run
// loop calls it on a fixed cadence, independent of interaction events.
func (a *Aggregator) Recompute() {
	a.mu.Lock()
	snapshot := a.snapshotLocked()
	fired := a.alerts.observe(snapshot.RemoteAccessScore, a.now())
	fns := a.alertFns
	a.mu.Unlock()

	if !fired {
		return
	}

	a.log.Info("Risk alert fired", zap.Float64("score", snapshot.RemoteAccessScore))
	alert := Alert{Score: snapshot.RemoteAccessScore, Snapshot: snapshot, FiredAt: a.now()}
	for _, fn := range fns {
		fn(alert)
	}
}

// Run recomputes scores every 5 seconds until the context is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(recomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Risk aggregator shutting down")
			return
		case <-ticker.C:
			a.Recompute()
		}
	}
}

// EnvironmentChangeScore is the weighted drift score, capped at 1.
func EnvironmentChangeScore(flags EnvironmentChangeFlags) float64 {
	score := 0.0
	if flags.LanguageChanged {
		score += weightLanguageChange
	}
	if flags.TimezoneChanged {
		score += weightTimezoneChange
	}
	if flags.OSChanged {
		score += weightOSChange
	}
	if flags.BrowserChanged {
		score += weightBrowserChange
	}
	return clamp01(score)
}

// RemoteAccessScore is the composite weighted score over suspicion flags and
// behavioral aggregates, capped at 1.
func RemoteAccessScore(flags SuspiciousFlags, envMismatch bool, agg RemoteAccessAggregates) float64 {
	score := 0.0
	if flags.UnnaturalMouseMoves {
		score += weightUnnaturalMouse
	}
	if flags.BigClipboardPaste {
		score += weightBigPaste
	}
	if flags.LowFPSDetected {
		score += weightLowFPS
	}
	if flags.DelayedClickDetected {
		score += weightDelayedClick
	}
	if agg.ClickOnlyPattern {
		score += weightClickOnly
	}
	if agg.HeadlessIndicatorCount > 0 {
		headless := float64(agg.HeadlessIndicatorCount) * weightPerHeadless
		if headless > weightHeadlessCap {
			headless = weightHeadlessCap
		}
		score += headless
	}
	if envMismatch {
		score += weightEnvMismatch
	}
	return clamp01(score)
}

func detectFormAnomaly(duration time.Duration, fieldCount int) bool {
	if fieldCount == 0 {
		return false
	}
	threshold := time.Duration(fieldCount) * perFieldFloor
	if threshold > anomalyCeiling {
		threshold = anomalyCeiling
	}
	return duration < threshold
}

func pasteRatio(pasted, typed int) float64 {
	total := pasted + typed
	if total == 0 {
		return 0
	}
	return float64(pasted) / float64(total)
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
