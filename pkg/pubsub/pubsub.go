// Package pubsub defines the broadcast transport the policy watcher runs on.
//
// A Driver opens subscriptions on a named channel and publishes text payloads
// to every session subscribed to that channel. The PostgreSQL driver maps this
// onto LISTEN/NOTIFY; the Redis and in-memory drivers provide the same
// semantics for deployments and tests without a shared database.
package pubsub

import (
	"context"
)

// Notification is a single message received on a channel.
type Notification struct {
	// Channel is the channel the message was published on.
	Channel string
	// Payload is the opaque text carried by the message.
	Payload string
	// PID identifies the publishing backend when the transport reports one.
	PID uint32
}

// Subscription is a live subscription on one channel.
//
// Implementations must return an already buffered notification before
// consulting ctx, so that a caller can drain buffered messages by calling
// WaitForNotification with a context that is already done.
type Subscription interface {
	// WaitForNotification blocks until a notification arrives or ctx is done.
	// A context error means the wait timed out or was canceled; any other
	// error means the subscription is dead.
	WaitForNotification(ctx context.Context) (*Notification, error)

	// Close releases the subscription and its connection.
	Close(ctx context.Context) error
}

// Driver opens subscriptions and publishes notifications.
type Driver interface {
	// Name returns the backend name used in logs and configuration.
	Name() string

	// Subscribe opens a dedicated connection subscribed to channel.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Publish sends payload to every subscriber of channel using a
	// short-lived connection.
	Publish(ctx context.Context, channel, payload string) error
}
