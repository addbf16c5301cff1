package domain

import (
	json "github.com/goccy/go-json"
)

// TriggerType identifies the interaction source a trigger binds to.
type TriggerType string

const (
	TriggerPageView  TriggerType = "PAGE_VIEW"
	TriggerClick     TriggerType = "CLICK"
	TriggerScroll    TriggerType = "SCROLL"
	TriggerCustom    TriggerType = "CUSTOM"
	TriggerRiskAlert TriggerType = "RISK_ALERT"
)

// VariableType identifies how a declared variable is resolved.
type VariableType string

const (
	VariableURL                    VariableType = "URL"
	VariableElement                VariableType = "ELEMENT"
	VariableCookie                 VariableType = "COOKIE"
	VariableJavascript             VariableType = "JAVASCRIPT"
	VariableEvent                  VariableType = "EVENT"
	VariableIPAddress              VariableType = "IP_ADDRESS"
	VariableDeviceFingerprint      VariableType = "DEVICE_FINGERPRINT"
	VariableSuspiciousActivity     VariableType = "SUSPICIOUS_ACTIVITY"
	VariableSuspiciousBrowser      VariableType = "SUSPICIOUS_BROWSER"
	VariableLanguage               VariableType = "LANGUAGE"
	VariableTimezone               VariableType = "TIMEZONE"
	VariableOS                     VariableType = "OS"
	VariableBrowser                VariableType = "BROWSER"
	VariableCustomValue            VariableType = "CUSTOM"
	VariableScreenResolution       VariableType = "SCREEN_RESOLUTION"
	VariableUserAgent              VariableType = "USER_AGENT"
	VariableRemoteAccessScore      VariableType = "REMOTE_ACCESS_SCORE"
	VariableRemoteAccessFlags      VariableType = "REMOTE_ACCESS_FLAGS_JSON"
	VariableEnvChangeFlags         VariableType = "ENVIRONMENT_CHANGE_FLAGS"
	VariableEnvChangeScore         VariableType = "ENVIRONMENT_CHANGE_SCORE"
	VariableNoMouseMoveDuration    VariableType = "NO_MOUSE_MOVE_DURATION_MS"
	VariableClickOnlyPattern       VariableType = "CLICK_ONLY_PATTERN"
	VariableFastPageTransition     VariableType = "FAST_PAGE_TRANSITION"
	VariableFormFillAnomaly        VariableType = "FORM_FILL_ANOMALY"
	VariableFormFillDuration       VariableType = "FORM_FILL_DURATION_MS"
	VariableNavigationVelocity     VariableType = "NAVIGATION_VELOCITY"
	VariableInputPasteRatio        VariableType = "INPUT_PASTE_RATIO"
	VariableHeadlessIndicatorCount VariableType = "HEADLESS_INDICATOR_COUNT"
)

// Filter is a name/operator/literal predicate evaluated against resolved variables.
type Filter struct {
	Left     string `json:"left"`
	Operator string `json:"operator"`
	Right    string `json:"right"`
}

// Tracker is one immutable event-producing configuration unit.
type Tracker struct {
	Name      string       `json:"name"`
	Platform  string       `json:"platform"`
	Triggers  []Trigger    `json:"triggers"`
	Variables []Variable   `json:"variables"`
	Event     EventMapping `json:"event"`
}

// EventMapping maps resolved variables into the delivered payload.
type EventMapping struct {
	Name             string            `json:"name"`
	KeyMapping       string            `json:"keyMapping"`
	VariableMappings map[string]string `json:"variableMappings"`
}

// Payload is the wire-level unit of delivery.
type Payload struct {
	Name      string         `json:"name"`
	Key       string         `json:"key"`
	Variables map[string]any `json:"variables"`
}

// TransactionResult is the collector's response to a synchronous send.
type TransactionResult struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// marshal helpers shared by the lenient option accessors below.
func decodeLenient(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
