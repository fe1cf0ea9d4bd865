package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger/core"
	"github.com/oklog/ulid/v2"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	"github.com/kart-io/pg-watcher/pkg/pubsub"
)

// subscriber is the background loop that listens on a channel and forwards
// every payload it receives into the pipe.
type subscriber struct {
	id          string
	driver      pubsub.Driver
	channel     string
	delay       time.Duration
	pollTimeout time.Duration
	out         *pipeWriter
	log         core.Logger
}

func newSubscriber(driver pubsub.Driver, cfg *Config, out *pipeWriter, delay time.Duration, log core.Logger) *subscriber {
	id := ulid.Make().String()
	return &subscriber{
		id:          id,
		driver:      driver,
		channel:     cfg.Channel,
		delay:       delay,
		pollTimeout: cfg.PollTimeout,
		out:         out,
		log:         log.With("worker", id),
	}
}

// run blocks until ctx is cancelled or the subscription fails. A nil return
// means the loop was asked to stop.
func (s *subscriber) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Recovered from panic in subscriber", "error", r)
			err = werrors.ErrPanic.WithMessagef("subscriber panic: %v", r)
		}
	}()

	if !sleepContext(ctx, s.delay) {
		return nil
	}

	s.log.Debugw("Connecting to notification channel", "driver", s.driver.Name())
	sub, err := s.driver.Subscribe(ctx, s.channel)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.log.Errorw("Failed to subscribe", "driver", s.driver.Name(), "error", err.Error())
		return err
	}
	defer func() {
		if cerr := sub.Close(context.Background()); cerr != nil {
			s.log.Debugw("Failed to close subscription", "error", cerr.Error())
		}
	}()

	s.log.Debugw("Waiting for casbin policy update")
	for {
		if ctx.Err() != nil {
			return nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
		n, err := sub.WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			s.log.Warnw("Subscription lost", "error", err.Error())
			return err
		}

		s.log.Debugw("Casbin policy update identified", "pid", n.PID)
		if err := s.forward(ctx, n); err != nil {
			return err
		}
		if err := s.drain(ctx, sub); err != nil {
			return err
		}
	}
}

// forward pushes one payload into the pipe. Cancellation is not an error.
func (s *subscriber) forward(ctx context.Context, n *pubsub.Notification) error {
	if err := s.out.Send(ctx, n.Payload); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return werrors.ErrSubscriberLost.WithCause(err)
	}
	return nil
}

// drain forwards every notification already buffered on the subscription
// without waiting for new ones.
func (s *subscriber) drain(ctx context.Context, sub pubsub.Subscription) error {
	done, cancel := context.WithCancel(context.Background())
	cancel()

	for {
		n, err := sub.WaitForNotification(done)
		if err != nil {
			// a dead subscription is reported by the next blocking wait
			return nil
		}
		if err := s.forward(ctx, n); err != nil {
			return err
		}
	}
}

// sleepContext waits for d and reports whether ctx was still live at the end.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// worker owns the goroutine running a subscriber.
type worker struct {
	sub     *subscriber
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func newWorker(sub *subscriber) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		sub:    sub,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (w *worker) start() {
	if w.started {
		return
	}
	w.started = true

	go func() {
		defer close(w.done)
		err := w.sub.run(w.ctx)
		// 子协程退出时关闭写端, 读端据此感知
		w.sub.out.CloseWithError(err)
	}()
}

// terminate stops the goroutine and waits for it to exit. A worker that was
// never started only has its pipe end closed.
func (w *worker) terminate() {
	w.cancel()
	if !w.started {
		w.sub.out.CloseWithError(nil)
		return
	}
	<-w.done
}
