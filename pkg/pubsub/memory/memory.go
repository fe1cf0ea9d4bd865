// Package memory implements an in-process pubsub.Driver.
//
// It gives a single process (or a test) the same broadcast semantics as the
// database drivers, plus switches to simulate an unreachable server and to
// drop live subscriptions.
package memory

import (
	"context"
	"sync"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	"github.com/kart-io/pg-watcher/pkg/pubsub"
)

// DriverName is the backend name of this driver.
const DriverName = "memory"

// DefaultBufferSize is the per-subscription queue length.
const DefaultBufferSize = 64

// Driver is an in-memory broadcast hub.
type Driver struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscription]struct{} // channel -> subscriptions
	down        bool
	bufferSize  int
	published   int
}

var _ pubsub.Driver = (*Driver)(nil)

// New creates a new in-memory driver.
func New() *Driver {
	return &Driver{
		subscribers: make(map[string]map[*subscription]struct{}),
		bufferSize:  DefaultBufferSize,
	}
}

// Name implements pubsub.Driver.
func (d *Driver) Name() string {
	return DriverName
}

// SetDown makes Subscribe and Publish fail with a connection error while down is true.
func (d *Driver) SetDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

// Subscribe registers a subscription on channel.
func (d *Driver) Subscribe(ctx context.Context, channel string) (pubsub.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.down {
		return nil, werrors.ErrWatcherConnection.WithMessage("memory driver is down")
	}

	s := &subscription{
		driver:  d,
		channel: channel,
		ch:      make(chan pubsub.Notification, d.bufferSize),
		dead:    make(chan struct{}),
	}
	if d.subscribers[channel] == nil {
		d.subscribers[channel] = make(map[*subscription]struct{})
	}
	d.subscribers[channel][s] = struct{}{}

	return s, nil
}

// Publish delivers payload to every subscription on channel.
func (d *Driver) Publish(ctx context.Context, channel, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.down {
		return werrors.ErrWatcherConnection.WithMessage("memory driver is down")
	}
	d.published++

	n := pubsub.Notification{Channel: channel, Payload: payload}
	for s := range d.subscribers[channel] {
		select {
		case s.ch <- n:
		default:
			// Queue full, drop like a server would for a stalled listener.
		}
	}
	return nil
}

// Disconnect kills every live subscription on channel, as if the server
// terminated their connections. It returns the number of subscriptions killed.
func (d *Driver) Disconnect(channel string) int {
	d.mu.Lock()
	subs := d.subscribers[channel]
	delete(d.subscribers, channel)
	d.mu.Unlock()

	for s := range subs {
		s.kill()
	}
	return len(subs)
}

// Subscribers returns the number of live subscriptions on channel.
func (d *Driver) Subscribers(channel string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[channel])
}

// Published returns the number of successful Publish calls.
func (d *Driver) Published() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.published
}

func (d *Driver) remove(s *subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if subs, ok := d.subscribers[s.channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(d.subscribers, s.channel)
		}
	}
}

type subscription struct {
	driver   *Driver
	channel  string
	ch       chan pubsub.Notification
	dead     chan struct{}
	killOnce sync.Once
}

func (s *subscription) kill() {
	s.killOnce.Do(func() { close(s.dead) })
}

func (s *subscription) WaitForNotification(ctx context.Context) (*pubsub.Notification, error) {
	select {
	case n := <-s.ch:
		return &n, nil
	default:
	}

	select {
	case n := <-s.ch:
		return &n, nil
	case <-s.dead:
		return nil, werrors.ErrWatcherConnection.WithMessage("subscription closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) Close(_ context.Context) error {
	s.driver.remove(s)
	s.kill()
	return nil
}
