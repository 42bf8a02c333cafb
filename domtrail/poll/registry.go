package poll

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/domtrail/idgen"
)

// Registry owns the named tasks of a process. At most one task per name is
// live: starting a name again cancels the previous task first.
type Registry struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	wg     sync.WaitGroup
	ctx    context.Context
	stop   context.CancelFunc
	logger *slog.Logger
	newID  idgen.Generator
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Registry{
		tasks:  make(map[string]*Task),
		ctx:    ctx,
		stop:   stop,
		logger: logger,
		newID:  idgen.Prefixed("poll_", idgen.Default),
	}
}

// Start launches job under name. The first attempt runs one Interval
// later unless opts.Immediate is set.
func (r *Registry) Start(name string, job Job, opts Options) *Task {
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	opts.defaults()

	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task{
		name:   name,
		id:     r.newID(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.state.Store(int32(Polling))

	r.mu.Lock()
	if prev, ok := r.tasks[name]; ok {
		prev.Cancel()
		r.logger.Debug("poll: replaced", "task", name, "previous", prev.id)
	}
	r.tasks[name] = t
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		t.run(ctx, job, opts)
		r.forget(t)
	}()
	return t
}

// Cancel stops the task registered under name, if any.
func (r *Registry) Cancel(name string) bool {
	r.mu.Lock()
	t, ok := r.tasks[name]
	if ok {
		delete(r.tasks, name)
	}
	r.mu.Unlock()
	if ok {
		t.Cancel()
	}
	return ok
}

// Active returns the live task registered under name.
func (r *Registry) Active(name string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[name]
	if !ok || t.State().Terminal() {
		return nil, false
	}
	return t, true
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Close cancels every task and waits for their loops to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	for name, t := range r.tasks {
		t.Cancel()
		delete(r.tasks, name)
	}
	r.mu.Unlock()
	r.stop()
	r.wg.Wait()
}

func (r *Registry) forget(t *Task) {
	r.mu.Lock()
	if r.tasks[t.name] == t {
		delete(r.tasks, t.name)
	}
	r.mu.Unlock()
}
