// Package notify delivers best-effort messages to submitters after their
// document has been stored.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

// Message is what a submitter is told about their upload.
type Message struct {
	ExternalUserID string
	Name           string
	GroupID        string
	Phone          string
	Time           time.Time
}

// Notifier sends one message.  Implementations make exactly one attempt.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Outcome labels reported to Observer.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
	OutcomeSkipped = "skipped"
)

// Observer receives one call per dispatched message.
type Observer interface {
	ObserveNotification(outcome string)
}

// Dispatcher runs notifications on a bounded worker pool, detached from the
// request that queued them.  Failures are logged and counted, never returned.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	workers  int
	logger   core.Logger
	observer Observer

	mu      sync.RWMutex
	stopped bool
	queue   chan Message
	wg      sync.WaitGroup
	once    sync.Once

	sent    int64
	failed  int64
	dropped int64
}

// NewDispatcher creates a Dispatcher.  Call Start before Dispatch and Stop on
// shutdown.
func NewDispatcher(n Notifier, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		notifier: n,
		timeout:  timeout,
		workers:  workers,
		queue:    make(chan Message, queueSize),
	}
}

// SetLogger attaches a structured logger.
func (d *Dispatcher) SetLogger(l core.Logger) { d.logger = l }

// SetObserver attaches an outcome observer.
func (d *Dispatcher) SetObserver(o Observer) { d.observer = o }

// Start launches the workers.  It is idempotent.
func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop refuses new messages, delivers what is already queued and waits for
// the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()
	d.Start() // a never-started pool still drains
	d.wg.Wait()
}

// Dispatch queues m without blocking.  Messages with no ExternalUserID are
// skipped; a full queue or a stopped dispatcher drops the message.
func (d *Dispatcher) Dispatch(m Message) {
	if m.ExternalUserID == "" {
		d.observe(OutcomeSkipped)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(m, "stopped")
		return
	}
	select {
	case d.queue <- m:
	default:
		d.drop(m, apperrors.ErrQueueFull.Error())
	}
}

// Stats returns the delivered, failed and dropped message counts.
func (d *Dispatcher) Stats() (sent, failed, dropped int64) {
	return atomic.LoadInt64(&d.sent), atomic.LoadInt64(&d.failed), atomic.LoadInt64(&d.dropped)
}

// ── worker pool internals ──────────────────────────────────────────────────────

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for m := range d.queue {
		d.deliver(m)
	}
}

func (d *Dispatcher) deliver(m Message) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.notifier.Notify(ctx, m); err != nil {
		atomic.AddInt64(&d.failed, 1)
		d.observe(OutcomeFailed)
		if d.logger != nil {
			err = apperrors.Wrap(apperrors.CategoryNotification, "notify.deliver", err)
			d.logger.Warn("notify.failed",
				"external_user_id", m.ExternalUserID,
				"group_id", m.GroupID,
				"error", err.Error(),
			)
		}
		return
	}
	atomic.AddInt64(&d.sent, 1)
	d.observe(OutcomeSent)
	if d.logger != nil {
		d.logger.Debug("notify.sent", "external_user_id", m.ExternalUserID)
	}
}

func (d *Dispatcher) drop(m Message, reason string) {
	atomic.AddInt64(&d.dropped, 1)
	d.observe(OutcomeDropped)
	if d.logger != nil {
		d.logger.Warn("notify.dropped", "external_user_id", m.ExternalUserID, "reason", reason)
	}
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.ObserveNotification(outcome)
	}
}
