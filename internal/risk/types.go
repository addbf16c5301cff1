// Package risk maintains the behavioral telemetry backing fraud, bot, and
// remote-access scoring: rolling interaction counters, an immutable
// environment baseline per device, composite weighted scores clamped to
// [0, 1], and an upward-crossing alert machine with cooldown.
package risk

import "time"

// SuspiciousFlags are the live remote-control suspicion signals produced by
// the behavioral monitor. Transient, session-scoped, never persisted.
type SuspiciousFlags struct {
	UnnaturalMouseMoves  bool `json:"unnaturalMouseMoves"`
	BigClipboardPaste    bool `json:"bigClipboardPaste"`
	LowFPSDetected       bool `json:"lowFpsDetected"`
	DelayedClickDetected bool `json:"delayedClickDetected"`
}

// RemoteAccessAggregates is the rolling-counter view produced on demand.
type RemoteAccessAggregates struct {
	HeadlessIndicatorCount int           `json:"headlessIndicatorCount"`
	NoMouseMoveDuration    time.Duration `json:"noMouseMoveDurationMs"`
	ClickOnlyPattern       bool          `json:"clickOnlyPattern"`
	FastPageTransition     bool          `json:"fastPageTransition"`
	NavigationVelocity     float64       `json:"navigationVelocity"`
	FormFillAnomaly        bool          `json:"formFillAnomaly"`
	FormFillDuration       time.Duration `json:"formFillDurationMs"`
	InputPasteRatio        float64       `json:"inputPasteRatio"`
}

// EnvironmentBaseline is the first-observed environment fingerprint for a
// (tenant, device) pair. Created once, read-only afterward.
type EnvironmentBaseline struct {
	Language  string `json:"language"`
	Timezone  string `json:"timezone"`
	OS        string `json:"os"`
	Browser   string `json:"browser"`
	FirstSeen int64  `json:"firstSeen"`
}

// EnvironmentChangeFlags marks which baseline attributes drifted.
type EnvironmentChangeFlags struct {
	LanguageChanged bool `json:"languageChanged"`
	TimezoneChanged bool `json:"timezoneChanged"`
	OSChanged       bool `json:"osChanged"`
	BrowserChanged  bool `json:"browserChanged"`
}

// Snapshot is the full aggregate state read by variable resolution.
type Snapshot struct {
	Flags                  SuspiciousFlags        `json:"flags"`
	Aggregates             RemoteAccessAggregates `json:"aggregates"`
	EnvironmentChange      EnvironmentChangeFlags `json:"environmentChange"`
	EnvironmentChangeScore float64                `json:"environmentChangeScore"`
	RemoteAccessScore      float64                `json:"remoteAccessScore"`
}

// Alert is delivered on each upward threshold crossing that survives the
// cooldown and enablement checks.
type Alert struct {
	Score    float64
	Snapshot Snapshot
	FiredAt  time.Time
}

// EnvironmentSource supplies the current environment attributes compared
// against the baseline, plus the headless indicator count.
type EnvironmentSource interface {
	Language() string
	Timezone() string
	OS() string
	Browser() string
	HeadlessIndicatorCount() int
}
