package risk

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/host"
)

const (
	unnaturalJump      = 100.0
	unnaturalThreshold = 5
	bigPasteChars      = 5000
	delayedClickLag    = 150 * time.Millisecond
	frameGap           = 250 * time.Millisecond
	lowFPSThreshold    = 10
)

// Monitor derives the live suspicion flags from raw host interactions and
// feeds both the flags and the rolling counters into the aggregator.
type Monitor struct {
	agg *Aggregator
	log *zap.Logger

	mu             sync.Mutex
	flags          SuspiciousFlags
	lastX, lastY   float64
	hasLast        bool
	unnaturalCount int
	lastFrame      time.Time
	lowFPSCount    int
	cancels        []func()
}

// NewMonitor creates a monitor feeding the given aggregator.
func NewMonitor(agg *Aggregator, log *zap.Logger) *Monitor {
	return &Monitor{agg: agg, log: log}
}

// Attach subscribes to the host's interaction events. Calling it twice
// attaches a second set of listeners, so the session calls it exactly once.
func (m *Monitor) Attach(h host.Host) {
	m.cancels = append(m.cancels,
		h.Subscribe("mousemove", m.onMouseMove),
		h.Subscribe("click", m.onClick),
		h.Subscribe("paste", m.onPaste),
		h.Subscribe("keydown", m.onKeyDown),
		h.Subscribe("focusin", m.onFocusIn),
		h.Subscribe("submit", m.onSubmit),
		h.Subscribe("frame", m.onFrame),
	)
}

// Detach removes all listeners registered by Attach.
func (m *Monitor) Detach() {
	for _, cancel := range m.cancels {
		cancel()
	}
	m.cancels = nil
}

func (m *Monitor) onMouseMove(ev *host.Event) {
	m.agg.ObservePointerMove()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasLast {
		dx := math.Abs(ev.X - m.lastX)
		dy := math.Abs(ev.Y - m.lastY)
		if dx > unnaturalJump || dy > unnaturalJump || (dx == 0 && dy == 0) {
			m.unnaturalCount++
		}
		if m.unnaturalCount > unnaturalThreshold && !m.flags.UnnaturalMouseMoves {
			m.flags.UnnaturalMouseMoves = true
			m.publishLocked()
		}
	}
	m.lastX, m.lastY = ev.X, ev.Y
	m.hasLast = true
}

func (m *Monitor) onClick(ev *host.Event) {
	m.agg.ObserveClick()

	// Dispatch lag on the click handler stands in for an overloaded or
	// remotely driven event loop.
	if !ev.Emitted.IsZero() && time.Since(ev.Emitted) > delayedClickLag {
		m.mu.Lock()
		if !m.flags.DelayedClickDetected {
			m.flags.DelayedClickDetected = true
			m.publishLocked()
		}
		m.mu.Unlock()
	}
}

func (m *Monitor) onPaste(ev *host.Event) {
	text := ev.Text("text")
	m.agg.ObservePaste(len(text))

	if len(text) > bigPasteChars {
		m.mu.Lock()
		if !m.flags.BigClipboardPaste {
			m.flags.BigClipboardPaste = true
			m.publishLocked()
		}
		m.mu.Unlock()
	}
}

func (m *Monitor) onKeyDown(ev *host.Event) {
	// Only printable keys count toward the typed-character total.
	if len([]rune(ev.Text("key"))) == 1 {
		m.agg.ObserveKeystroke()
	}
}

func (m *Monitor) onFocusIn(ev *host.Event) {
	if fields := ev.Int("fieldCount"); fields > 0 {
		m.agg.ObserveFormFocus(fields)
	}
}

func (m *Monitor) onSubmit(*host.Event) {
	m.agg.ObserveFormSubmit()
}

func (m *Monitor) onFrame(ev *host.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lastFrame.IsZero() && ev.Emitted.Sub(m.lastFrame) > frameGap {
		m.lowFPSCount++
	}
	if m.lowFPSCount > lowFPSThreshold && !m.flags.LowFPSDetected {
		m.flags.LowFPSDetected = true
		m.publishLocked()
	}
	m.lastFrame = ev.Emitted
}

// Flags returns the current suspicion flags.
func (m *Monitor) Flags() SuspiciousFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

func (m *Monitor) publishLocked() {
	m.log.Debug("Suspicion flags updated",
		zap.Bool("unnatural_mouse", m.flags.UnnaturalMouseMoves),
		zap.Bool("big_paste", m.flags.BigClipboardPaste),
		zap.Bool("low_fps", m.flags.LowFPSDetected),
		zap.Bool("delayed_click", m.flags.DelayedClickDetected))
	m.agg.SetSuspiciousFlags(m.flags)
}
