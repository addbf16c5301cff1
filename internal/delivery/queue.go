// Package delivery buffers built payloads and drains them to the collection
// endpoint on a fixed cadence, gated on host connectivity. Delivery is
// at-least-once: a failed send puts the payload back at the head of the
// buffer and aborts the pass.
package delivery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trlogic/tracker-web/internal/domain"
)

const drainInterval = 3 * time.Second

// Transport ships one payload to the collection endpoint.
type Transport interface {
	Send(ctx context.Context, payload *domain.Payload) (*domain.TransactionResult, error)
}

// Queue owns the pending-payload buffer. Producers call Add from trigger
// handlers; the drain loop is the sole consumer.
type Queue struct {
	transport Transport
	online    func() bool
	log       *zap.Logger

	mu      sync.Mutex
	items   []*domain.Payload
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates a queue draining through transport while online reports
// connectivity.
func NewQueue(transport Transport, online func() bool, log *zap.Logger) *Queue {
	return &Queue{
		transport: transport,
		online:    online,
		log:       log,
	}
}

// Add appends a payload to the pending buffer.
func (q *Queue) Add(payload *domain.Payload) {
	q.mu.Lock()
	q.items = append(q.items, payload)
	q.mu.Unlock()
}

// Len returns the exact pending count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// StartProcessing launches the drain loop. Starting an already-running queue
// is a no-op.
func (q *Queue) StartProcessing(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				q.log.Info("Delivery queue shutting down",
					zap.Int("pending", q.Len()))
				return
			case <-ticker.C:
				q.drain(loopCtx)
			}
		}
	}()
}

// StopProcessing stops the drain loop. In-flight sends are not aborted, but
// no new drain passes begin. Stopping an idle queue is a no-op.
func (q *Queue) StopProcessing() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	done := q.done
	q.cancel = nil
	q.mu.Unlock()

	cancel()
	<-done
}

// SendSync delivers one payload immediately, bypassing the buffer. A
// non-positive timeout leaves the caller's context in charge.
func (q *Queue) SendSync(ctx context.Context, payload *domain.Payload, timeout time.Duration) (*domain.TransactionResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return q.transport.Send(ctx, payload)
}

// drain attempts to flush the buffer. Connectivity is checked before the
// pass and again before each item, so a mid-pass disconnection halts sends
// without losing the in-flight payload.
func (q *Queue) drain(ctx context.Context) {
	if !q.online() {
		return
	}

	for q.online() {
		payload, ok := q.takeFront()
		if !ok {
			return
		}

		if _, err := q.transport.Send(ctx, payload); err != nil {
			q.log.Error("Failed to send event",
				zap.String("event", payload.Name),
				zap.Error(err))
			q.pushFront(payload)
			return
		}
	}
}

func (q *Queue) takeFront() (*domain.Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	payload := q.items[0]
	q.items = q.items[1:]
	return payload, true
}

func (q *Queue) pushFront(payload *domain.Payload) {
	q.mu.Lock()
	q.items = append([]*domain.Payload{payload}, q.items...)
	q.mu.Unlock()
}
