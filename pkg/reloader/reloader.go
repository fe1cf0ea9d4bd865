// Package reloader drives policy reloads from a watcher. It checks the
// watcher on a fixed interval and runs the reload function whenever a change
// has been signalled, never running two reloads at once.
package reloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	"github.com/kart-io/pg-watcher/pkg/infra/pool"
)

// DefaultInterval is how often the watcher is checked.
const DefaultInterval = time.Second

// maxDrain bounds how many pending notifications one tick folds into a reload.
const maxDrain = 64

// Checker reports, without blocking, whether policies changed since the last call.
type Checker interface {
	ShouldReload() bool
}

// ReloadFunc reloads policies, typically Enforcer.LoadPolicy.
type ReloadFunc func() error

// Reloader polls a Checker and runs a ReloadFunc on changes.
type Reloader struct {
	checker  Checker
	reload   ReloadFunc
	interval time.Duration
	log      core.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	tasks   sync.WaitGroup
	running atomic.Bool

	notify   chan struct{}
	reloads  atomic.Int64
	failures atomic.Int64
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithInterval sets the check interval.
func WithInterval(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(r *Reloader) { r.log = l }
}

// New creates a stopped Reloader.
func New(checker Checker, reload ReloadFunc, opts ...Option) *Reloader {
	r := &Reloader{
		checker:  checker,
		reload:   reload,
		interval: DefaultInterval,
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Global()
	}
	r.log = r.log.With("component", "policy.reloader")
	return r
}

// Start begins checking in the background.
func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return nil
	}
	if r.checker == nil || r.reload == nil {
		return werrors.ErrWatcherConfig.WithMessage("reloader needs a checker and a reload function")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx, r.done)
	r.log.Debugw("Policy reloader started", "interval", r.interval.String())
	return nil
}

// Stop ends the loop and waits for an in-flight reload to finish.
func (r *Reloader) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.tasks.Wait()
	r.log.Debugw("Policy reloader stopped")
}

// Chan receives a value after a successful reload. Reloads that happen while
// nobody reads are collapsed into one.
func (r *Reloader) Chan() <-chan struct{} {
	return r.notify
}

// Reloads returns the number of successful reloads.
func (r *Reloader) Reloads() int64 {
	return r.reloads.Load()
}

// Failures returns the number of failed reloads.
func (r *Reloader) Failures() int64 {
	return r.failures.Load()
}

func (r *Reloader) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// 每个周期最多消费 maxDrain 条通知, 合并为一次重载
		for i := 0; i < maxDrain && r.checker.ShouldReload(); i++ {
			pending = true
		}
		// 上一次重载未结束时保留标记, 下个周期再执行
		if !pending || !r.running.CompareAndSwap(false, true) {
			continue
		}
		pending = false
		r.submit()
	}
}

// submit runs one reload on the callback pool, falling back to a goroutine
// when the pool is unavailable.
func (r *Reloader) submit() {
	r.tasks.Add(1)
	task := func() {
		defer r.tasks.Done()
		defer r.running.Store(false)
		r.execute()
	}

	if err := pool.SubmitToType(pool.CallbackPool, task); err != nil {
		r.log.Warnw("failed to submit reload to pool, fallback to goroutine", "error", err.Error())
		go task()
	}
}

func (r *Reloader) execute() {
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("reload panic: %v", rec)
			}
		}()
		err = r.reload()
	}()

	if err != nil {
		r.failures.Add(1)
		r.log.Errorw("Failed to reload policy", "error", err.Error())
		return
	}

	r.reloads.Add(1)
	r.log.Infow("Policy reloaded")
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
