// Package host defines the boundary between the tracker and the interactive
// environment that embeds it. Everything the pipeline knows about pages,
// cookies, elements, and user interactions arrives through these interfaces;
// the tracker itself never assumes a concrete environment.
package host

import "time"

// Event is one interaction occurrence delivered by the host. Emitted is the
// host-side timestamp; handlers use it to measure dispatch lag.
type Event struct {
	Name    string
	Target  *Element
	X, Y    float64
	Emitted time.Time

	// Data carries event-specific extras: "text" for paste events,
	// "key" for keydown, "fieldCount" for form focus.
	Data map[string]any
}

// Text returns the string value under the given data key, or "".
func (e *Event) Text(key string) string {
	if e == nil || e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}

// Int returns the integer value under the given data key, or 0. JSON-sourced
// events carry numbers as float64.
func (e *Event) Int(key string) int {
	if e == nil || e.Data == nil {
		return 0
	}
	switch v := e.Data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Location is the host's current address, pre-split into the parts the URL
// variable kind selects between.
type Location struct {
	Href     string
	Protocol string // without trailing colon
	Host     string
	Port     string
	Path     string
	Query    string // without leading "?"
	Fragment string // without leading "#"
}

// Navigator exposes the environment characteristics consulted by browser
// classification and headless detection.
type Navigator interface {
	UserAgent() string
	Language() string
	Languages() []string
	Timezone() string
	PluginCount() int
	Automation() bool
	HasGraphics() bool
	HardwareConcurrency() int
}

// Host is the full environment surface the tracker consumes.
type Host interface {
	Location() Location
	// Cookies returns the raw cookie string, "name=value; name2=value2".
	Cookies() string
	// Query finds the first document element matching a selector, or nil.
	Query(selector string) *Element
	Viewport() (width, height int)
	Navigator() Navigator
	Online() bool
	// Subscribe registers a handler for a named interaction event and
	// returns its cancel function. Handlers for one subscription are
	// invoked in arrival order.
	Subscribe(name string, fn func(*Event)) (cancel func())
}
