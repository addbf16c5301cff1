package host

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// MemoryHost is a deterministic, programmable host environment. The replay
// agent feeds recorded interactions through it, and tests drive it directly.
type MemoryHost struct {
	mu          sync.Mutex
	location    Location
	cookies     string
	document    *Element
	width       int
	height      int
	navigator   MemoryNavigator
	online      bool
	subscribers map[string][]*subscription
	nextSub     int
}

type subscription struct {
	id int
	fn func(*Event)
}

// MemoryNavigator is the programmable Navigator used by MemoryHost.
type MemoryNavigator struct {
	UA          string
	Lang        string
	Langs       []string
	TZ          string
	Plugins     int
	Webdriver   bool
	Graphics    bool
	Concurrency int
}

func (n MemoryNavigator) UserAgent() string        { return n.UA }
func (n MemoryNavigator) Language() string         { return n.Lang }
func (n MemoryNavigator) Languages() []string      { return n.Langs }
func (n MemoryNavigator) Timezone() string         { return n.TZ }
func (n MemoryNavigator) PluginCount() int         { return n.Plugins }
func (n MemoryNavigator) Automation() bool         { return n.Webdriver }
func (n MemoryNavigator) HasGraphics() bool        { return n.Graphics }
func (n MemoryNavigator) HardwareConcurrency() int { return n.Concurrency }

// NewMemoryHost returns a host that starts online at about:blank with an
// ordinary desktop-looking navigator.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		location: ParseLocation("about:blank"),
		width:    1920,
		height:   1080,
		online:   true,
		navigator: MemoryNavigator{
			UA:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
			Lang:        "en-US",
			Langs:       []string{"en-US", "en"},
			TZ:          "UTC",
			Plugins:     3,
			Graphics:    true,
			Concurrency: 8,
		},
		subscribers: make(map[string][]*subscription),
	}
}

// ParseLocation splits an href into the parts the URL variable selects on.
func ParseLocation(href string) Location {
	loc := Location{Href: href}
	u, err := url.Parse(href)
	if err != nil {
		return loc
	}
	loc.Protocol = u.Scheme
	loc.Host = u.Hostname()
	loc.Port = u.Port()
	loc.Path = u.Path
	loc.Query = u.RawQuery
	loc.Fragment = u.Fragment
	return loc
}

func (h *MemoryHost) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.location
}

func (h *MemoryHost) Cookies() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cookies
}

func (h *MemoryHost) SetCookies(raw string) {
	h.mu.Lock()
	h.cookies = raw
	h.mu.Unlock()
}

func (h *MemoryHost) Query(selector string) *Element {
	h.mu.Lock()
	doc := h.document
	h.mu.Unlock()
	if doc == nil {
		return nil
	}
	return doc.Find(selector)
}

// SetDocument replaces the document tree used by Query.
func (h *MemoryHost) SetDocument(root *Element) {
	h.mu.Lock()
	h.document = root
	h.mu.Unlock()
}

func (h *MemoryHost) Viewport() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

func (h *MemoryHost) SetViewport(width, height int) {
	h.mu.Lock()
	h.width, h.height = width, height
	h.mu.Unlock()
}

func (h *MemoryHost) Navigator() Navigator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.navigator
}

func (h *MemoryHost) SetNavigator(nav MemoryNavigator) {
	h.mu.Lock()
	h.navigator = nav
	h.mu.Unlock()
}

func (h *MemoryHost) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

func (h *MemoryHost) SetOnline(online bool) {
	h.mu.Lock()
	h.online = online
	h.mu.Unlock()
}

func (h *MemoryHost) Subscribe(name string, fn func(*Event)) func() {
	h.mu.Lock()
	h.nextSub++
	sub := &subscription{id: h.nextSub, fn: fn}
	h.subscribers[name] = append(h.subscribers[name], sub)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[name]
		for i, s := range subs {
			if s.id == sub.id {
				h.subscribers[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit dispatches an event synchronously to every subscriber of its name,
// preserving arrival order.
func (h *MemoryHost) Emit(ev *Event) {
	if ev.Emitted.IsZero() {
		ev.Emitted = time.Now()
	}
	h.mu.Lock()
	subs := make([]*subscription, len(h.subscribers[ev.Name]))
	copy(subs, h.subscribers[ev.Name])
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Navigate changes the location and notifies mutation observers, the way a
// single-page app rewrites history and touches the document.
func (h *MemoryHost) Navigate(href string) {
	h.mu.Lock()
	h.location = ParseLocation(href)
	h.mu.Unlock()
	h.Emit(&Event{Name: "mutation"})
}

// SetCookie appends one cookie to the raw cookie string.
func (h *MemoryHost) SetCookie(name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pair := name + "=" + value
	if h.cookies == "" {
		h.cookies = pair
		return
	}
	h.cookies = strings.Join([]string{h.cookies, pair}, "; ")
}
