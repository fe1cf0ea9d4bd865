// Package postgres implements pubsub.Driver on PostgreSQL LISTEN/NOTIFY.
//
// Every subscription owns a dedicated connection. pgx runs statements outside
// an explicit transaction in autocommit mode, which is required for the server
// to deliver notifications to the listening session.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
	pgopts "github.com/kart-io/pg-watcher/pkg/options/postgres"
	"github.com/kart-io/pg-watcher/pkg/pubsub"
)

// DriverName is the backend name of this driver.
const DriverName = "postgres"

// notifySQL publishes through pg_notify so the channel and payload are bound
// as parameters instead of being spliced into a NOTIFY statement.
const notifySQL = "SELECT pg_notify($1, $2)"

// Driver connects to PostgreSQL with a fixed connection config.
type Driver struct {
	config *pgx.ConnConfig
}

var _ pubsub.Driver = (*Driver)(nil)

// New creates a driver from a parsed pgx config.
func New(config *pgx.ConnConfig) *Driver {
	return &Driver{config: config}
}

// NewFromOptions creates a driver from PostgreSQL options.
func NewFromOptions(opts *pgopts.Options) (*Driver, error) {
	cfg, err := opts.ConnConfig()
	if err != nil {
		return nil, werrors.ErrWatcherConfig.WithCause(err)
	}
	return New(cfg), nil
}

// Name implements pubsub.Driver.
func (d *Driver) Name() string {
	return DriverName
}

func (d *Driver) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, d.config)
	if err != nil {
		return nil, werrors.ErrWatcherConnection.WithCause(err)
	}
	return conn, nil
}

// Subscribe opens a connection and issues LISTEN on channel.
func (d *Driver) Subscribe(ctx context.Context, channel string) (pubsub.Subscription, error) {
	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, werrors.ErrWatcherSubscribe.WithCause(err)
	}

	return &subscription{conn: conn, channel: channel}, nil
}

// Publish opens a short-lived connection, notifies channel and closes it.
func (d *Driver) Publish(ctx context.Context, channel, payload string) error {
	conn, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, notifySQL, channel, payload); err != nil {
		return werrors.ErrWatcherPublish.WithCause(err)
	}
	return nil
}

type subscription struct {
	conn    *pgx.Conn
	channel string
}

// WaitForNotification returns buffered notifications first; pgx only consults
// ctx once its internal queue is empty.
func (s *subscription) WaitForNotification(ctx context.Context) (*pubsub.Notification, error) {
	n, err := s.conn.WaitForNotification(ctx)
	if err != nil {
		// A timeout leaves the connection usable; report it as the context error.
		if ctxErr := ctx.Err(); ctxErr != nil && !s.conn.IsClosed() {
			return nil, ctxErr
		}
		return nil, werrors.ErrWatcherConnection.WithCause(err)
	}

	return &pubsub.Notification{
		Channel: n.Channel,
		Payload: n.Payload,
		PID:     n.PID,
	}, nil
}

func (s *subscription) Close(ctx context.Context) error {
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close(ctx)
}
