// Package redis implements pubsub.Driver on Redis PUBLISH/SUBSCRIBE.
//
// It is the non-PostgreSQL deployment option: processes sharing a policy store
// that is not PostgreSQL can still broadcast reloads through Redis.
package redis

import (
	"context"
	"sync"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	redisopts "github.com/kart-io/pg-watcher/pkg/options/redis"
	"github.com/kart-io/pg-watcher/pkg/pubsub"
)

// DriverName is the backend name of this driver.
const DriverName = "redis"

// Driver publishes and subscribes through a shared Redis client.
type Driver struct {
	client *redis.Client
}

var _ pubsub.Driver = (*Driver)(nil)

// New creates a driver on an existing client. The caller owns the client.
func New(client *redis.Client) *Driver {
	return &Driver{client: client}
}

// NewFromOptions creates a driver and its client from options.
func NewFromOptions(opts *redisopts.Options) *Driver {
	return New(redis.NewClient(opts.ClientOptions()))
}

// Name implements pubsub.Driver.
func (d *Driver) Name() string {
	return DriverName
}

// Client returns the underlying client.
func (d *Driver) Client() *redis.Client {
	return d.client
}

// Subscribe subscribes to channel and waits for the server confirmation so
// that an unreachable server fails here rather than on the first wait.
func (d *Driver) Subscribe(ctx context.Context, channel string) (pubsub.Subscription, error) {
	ps := d.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, werrors.ErrWatcherConnection.WithCause(err)
	}

	return &subscription{
		pubsub: ps,
		ch:     ps.Channel(),
	}, nil
}

// Publish publishes payload on channel.
func (d *Driver) Publish(ctx context.Context, channel, payload string) error {
	if err := d.client.Publish(ctx, channel, payload).Err(); err != nil {
		return werrors.ErrWatcherPublish.WithCause(err)
	}
	return nil
}

type subscription struct {
	pubsub    *redis.PubSub
	ch        <-chan *redis.Message
	closeOnce sync.Once
}

func (s *subscription) WaitForNotification(ctx context.Context) (*pubsub.Notification, error) {
	// Buffered messages first, regardless of ctx.
	select {
	case msg, ok := <-s.ch:
		return s.toNotification(msg, ok)
	default:
	}

	select {
	case msg, ok := <-s.ch:
		return s.toNotification(msg, ok)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) toNotification(msg *redis.Message, ok bool) (*pubsub.Notification, error) {
	if !ok {
		logger.Global().Warnw("Redis subscription channel closed unexpectedly",
			"component", "redis.pubsub",
			"reason", "possible network disconnect or Redis error",
		)
		return nil, werrors.ErrWatcherConnection.WithMessage("redis subscription channel closed")
	}
	return &pubsub.Notification{
		Channel: msg.Channel,
		Payload: msg.Payload,
	}, nil
}

func (s *subscription) Close(_ context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}
