// Package poll runs named, cancellable retry loops over a live tree.
//
// A Task calls its Job on every tick of a fixed interval, the first call
// one interval after the start, until the job reports something to deliver, a bound is reached,
// or the task is cancelled. Delivery happens at most once per task and never
// after cancellation: both outcomes are decided by a single compare-and-swap
// on the task state.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrGaveUp is reported through Options.OnFail and Task.Err when
	// MaxAttempts or Timeout is reached.
	ErrGaveUp = errors.New("poll: gave up")
	// ErrCancelled is Task.Err for a task stopped before delivering.
	ErrCancelled = errors.New("poll: cancelled")
)

// State is the lifecycle position of a Task.
type State int32

const (
	Idle State = iota
	Polling
	Delivered
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether s is an end state.
func (s State) Terminal() bool { return s >= Delivered }

// Job is one attempt. It returns a non-nil deliver func when the attempt
// succeeded; the task calls it at most once. A nil deliver with a nil error
// means "not ready, retry". Errors are logged and retried too.
type Job func(ctx context.Context) (deliver func(), err error)

// Options bound a task. The zero value polls every second forever.
type Options struct {
	// Interval between attempts. Default: 1s.
	Interval time.Duration
	// MaxAttempts stops the task after this many attempts. 0 = unbounded.
	MaxAttempts int
	// Timeout stops the task after this much time. 0 = unbounded.
	Timeout time.Duration
	// Immediate makes the first attempt run at start instead of one
	// Interval later. An immediate task can deliver before a restart under
	// the same name reaches the registry; leave it off when the same name
	// may be restarted in quick succession.
	Immediate bool
	// OnFail is called once when a bound is hit, with an error wrapping
	// ErrGaveUp. It is not called on cancellation.
	OnFail func(error)
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Task is one running poll loop. Obtain it from Registry.Start.
type Task struct {
	name string
	id   string

	state    atomic.Int32
	attempts atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (t *Task) Name() string  { return t.name }
func (t *Task) ID() string    { return t.id }
func (t *Task) State() State  { return State(t.state.Load()) }
func (t *Task) Attempts() int { return int(t.attempts.Load()) }

// Done is closed when the task loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err is nil while polling and after delivery; ErrCancelled or an error
// wrapping ErrGaveUp otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel stops the task. A task that already delivered stays Delivered.
func (t *Task) Cancel() {
	t.finish(Cancelled, ErrCancelled)
	t.cancel()
}

// Wait blocks until the task ends or ctx is done, and returns Err.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish moves Polling to an end state. Only the first caller wins.
func (t *Task) finish(to State, err error) bool {
	if !t.state.CompareAndSwap(int32(Polling), int32(to)) {
		return false
	}
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}
	return true
}

func (t *Task) run(ctx context.Context, job Job, opts Options) {
	defer close(t.done)
	log := opts.Logger.With("task", t.name, "task_id", t.id)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	log.Debug("poll: started", "interval", opts.Interval, "max_attempts", opts.MaxAttempts, "timeout", opts.Timeout)

	wait := !opts.Immediate
	for {
		if wait {
			select {
			case <-ctx.Done():
				if t.finish(Cancelled, ErrCancelled) {
					log.Debug("poll: stopped")
				}
				return
			case <-deadline:
				t.giveUp(fmt.Errorf("%w after %s", ErrGaveUp, opts.Timeout), opts, log)
				return
			case <-ticker.C:
			}
		}
		wait = true

		if t.attempt(ctx, job, log) {
			return
		}
		if n := t.Attempts(); opts.MaxAttempts > 0 && n >= opts.MaxAttempts {
			t.giveUp(fmt.Errorf("%w after %d attempts", ErrGaveUp, n), opts, log)
			return
		}
	}
}

// attempt runs the job once and reports whether the loop is over.
func (t *Task) attempt(ctx context.Context, job Job, log *slog.Logger) bool {
	if t.State() != Polling || ctx.Err() != nil {
		t.finish(Cancelled, ErrCancelled)
		return true
	}
	n := t.attempts.Add(1)

	deliver, err := job(ctx)
	if err != nil {
		log.Debug("poll: attempt failed", "attempt", n, "error", err)
		return false
	}
	if deliver == nil {
		return false
	}
	if !t.finish(Delivered, nil) {
		return true
	}
	deliver()
	log.Debug("poll: delivered", "attempt", n)
	return true
}

func (t *Task) giveUp(err error, opts Options, log *slog.Logger) {
	if !t.finish(Failed, err) {
		return
	}
	log.Warn("poll: gave up", "attempts", t.Attempts(), "error", err)
	if opts.OnFail != nil {
		opts.OnFail(err)
	}
}
