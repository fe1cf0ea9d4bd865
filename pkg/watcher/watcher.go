// Package watcher keeps casbin enforcers in different processes in sync by
// exchanging policy-change notifications over a publish/subscribe channel,
// PostgreSQL LISTEN/NOTIFY by default.
//
// A Watcher owns a background subscriber that forwards every notification
// into an in-process pipe. ShouldReload drains that pipe without blocking,
// so enforcers can check for changes on their own schedule.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/casbin/casbin/v3/persist"
	"github.com/kart-io/logger/core"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	pgopts "github.com/kart-io/pg-watcher/pkg/options/postgres"
	"github.com/kart-io/pg-watcher/pkg/pubsub"
	"github.com/kart-io/pg-watcher/pkg/pubsub/postgres"
)

var _ persist.Watcher = (*Watcher)(nil)

// Watcher is a casbin persist.Watcher backed by a pubsub.Driver.
type Watcher struct {
	mu       sync.Mutex
	cfg      Config
	driver   pubsub.Driver
	log      core.Logger
	reader   *pipeReader
	worker   *worker
	callback func(string)
	closed   bool
}

// New creates a watcher on driver. Unless disabled with
// WithStartListening(false), the subscriber starts immediately and connects
// after the startup delay.
func New(driver pubsub.Driver, opts ...Option) (*Watcher, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(driver, cfg)
}

// NewWithConfig creates a watcher from a complete Config.
func NewWithConfig(driver pubsub.Driver, cfg Config) (*Watcher, error) {
	if driver == nil {
		return nil, werrors.ErrWatcherConfig.WithMessage("driver is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:    cfg,
		driver: driver,
		log:    cfg.Logger.With("component", "pg.watcher", "channel", cfg.Channel, "driver", driver.Name()),
	}
	w.createSubscriber(cfg.StartListening, cfg.StartupDelay)
	runtime.SetFinalizer(w, (*Watcher).finalize)

	return w, nil
}

// NewPostgres creates a watcher that uses PostgreSQL LISTEN/NOTIFY.
func NewPostgres(o *pgopts.Options, opts ...Option) (*Watcher, error) {
	driver, err := postgres.NewFromOptions(o)
	if err != nil {
		return nil, err
	}
	return New(driver, opts...)
}

// createSubscriber replaces any existing pipe and worker. Callers hold mu.
func (w *Watcher) createSubscriber(start bool, delay time.Duration) {
	w.cleanup()

	reader, writer := newPipe(w.cfg.PipeBuffer)
	w.reader = reader
	w.worker = newWorker(newSubscriber(w.driver, &w.cfg, writer, delay, w.log))
	if start {
		w.worker.start()
	}
}

// cleanup terminates the worker and closes the pipe. Callers hold mu.
func (w *Watcher) cleanup() {
	if w.worker != nil {
		w.worker.terminate()
		w.worker = nil
	}
	if w.reader != nil {
		_ = w.reader.Close()
		w.reader = nil
	}
}

// Start launches the subscriber if it has not been started yet.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return werrors.ErrWatcherClosed
	}
	w.worker.start()
	return nil
}

// SetUpdateCallback stores fn and makes sure the subscriber is running. The
// watcher never calls fn itself; see UpdateCallback.
func (w *Watcher) SetUpdateCallback(fn func(string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return werrors.ErrWatcherClosed
	}
	w.callback = fn
	w.worker.start()
	w.log.Debugw("Update callback set")
	return nil
}

// UpdateCallback returns the callback registered by SetUpdateCallback.
func (w *Watcher) UpdateCallback() func(string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.callback
}

// Update publishes a policy change notification.
func (w *Watcher) Update() error {
	return w.UpdateContext(context.Background())
}

// UpdateContext publishes a policy change notification using its own short
// lived connection. Connection failures are reported as
// ErrWatcherConnection, failed sends as ErrWatcherPublish.
func (w *Watcher) UpdateContext(ctx context.Context) error {
	payload := fmt.Sprintf("casbin policy update at %.6f", float64(time.Now().UnixNano())/float64(time.Second))

	if err := w.driver.Publish(ctx, w.cfg.Channel, payload); err != nil {
		var errno *werrors.Errno
		if !errors.As(err, &errno) {
			err = werrors.ErrWatcherPublish.WithCause(err)
		}
		w.log.Errorw("Failed to publish policy update", "error", err.Error())
		return err
	}

	w.log.Debugw("Published policy update", "payload", payload)
	return nil
}

// ShouldReload reports whether a notification is waiting, consuming exactly
// one. It never blocks. A lost subscriber is recreated after the recreate
// delay and the call returns false.
func (w *Watcher) ShouldReload() bool {
	reload, err := w.Poll()
	if err != nil {
		// 关闭后的轮询属于正常的退出流程
		if errors.Is(err, werrors.ErrWatcherClosed) {
			return false
		}
		w.log.Errorw("Failed to check for policy updates", "error", err.Error())
		return false
	}
	return reload
}

// Poll is ShouldReload with error reporting. It returns ErrWatcherClosed once
// the watcher has been closed.
func (w *Watcher) Poll() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.reader == nil {
		return false, werrors.ErrWatcherClosed
	}

	payload, ok, err := w.reader.Poll()
	if err != nil {
		if errors.Is(err, errPipeClosed) {
			return false, werrors.ErrWatcherClosed
		}
		cause := err
		if errors.Is(err, io.EOF) {
			cause = nil
		}
		w.log.Warnw("Subscriber has stopped, attempting to recreate",
			"delay", w.cfg.RecreateDelay.String(),
			"cause", errString(cause),
		)
		w.createSubscriber(true, w.cfg.RecreateDelay)
		return false, nil
	}
	if !ok {
		return false, nil
	}

	w.log.Debugw("Received policy update", "payload", payload)
	return true, nil
}

// Close stops the subscriber and releases the pipe. It is safe to call more
// than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.cleanup()
	runtime.SetFinalizer(w, nil)
	w.log.Debugw("Watcher closed")
}

func (w *Watcher) finalize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		w.cleanup()
	}
}

func errString(err error) string {
	if err == nil {
		return "none"
	}
	return err.Error()
}
