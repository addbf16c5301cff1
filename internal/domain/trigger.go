package domain

import (
	json "github.com/goccy/go-json"
)

// Trigger binds an interaction source to filters and type-specific options.
// Option is kept raw: its shape is keyed by Type, and configurations in the
// wild carry absent or mismatched options, which must read as permissive
// defaults rather than fail decoding.
type Trigger struct {
	Name    string          `json:"name"`
	Type    TriggerType     `json:"type"`
	Filters []Filter        `json:"filters"`
	Option  json.RawMessage `json:"option"`
}

// ClickOption narrows click triggers to href-bearing targets.
type ClickOption struct {
	JustLinks bool `json:"justLinks"`
}

// ScrollOption is accepted but not consulted during validation.
type ScrollOption struct {
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
}

// CustomOption names the application event a CUSTOM trigger subscribes to.
type CustomOption struct {
	Event string `json:"event"`
}

// ClickOption decodes the trigger option as a click option. Absent or
// ill-typed options yield the zero value.
func (t Trigger) ClickOption() ClickOption {
	var opt ClickOption
	decodeLenient(t.Option, &opt)
	return opt
}

// ScrollOption decodes the trigger option as a scroll option.
func (t Trigger) ScrollOption() ScrollOption {
	var opt ScrollOption
	decodeLenient(t.Option, &opt)
	return opt
}

// CustomOption decodes the trigger option as a custom-event option.
func (t Trigger) CustomOption() CustomOption {
	var opt CustomOption
	decodeLenient(t.Option, &opt)
	return opt
}
