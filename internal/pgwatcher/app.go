// Package pgwatcher implements the pg-watcher command: an agent that keeps
// casbin policies in sync across processes, and a notify subcommand that
// signals a policy change.
package pgwatcher

import (
	"context"
	"fmt"

	"github.com/kart-io/pg-watcher/pkg/app"
)

const (
	appName        = "pg-watcher"
	appDescription = `pg-watcher keeps casbin policies in sync across processes.

It listens on a PostgreSQL LISTEN/NOTIFY channel (or Redis pub/sub) and
reloads casbin policies from the casbin_rule table whenever another
process signals a change.

Examples:
  # Report policy updates on the default channel
  pg-watcher --postgres.host=db --postgres.password=secret

  # Keep an enforcer loaded from PostgreSQL in sync
  pg-watcher --policy.enabled --policy.model-path=/etc/casbin/rbac.conf

  # Signal a policy change
  pg-watcher notify --postgres.host=db

Configuration:
  Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (prefix: PG_WATCHER_)
  - Configuration file (YAML)
  - Default values (lowest priority)`
)

// NewApp creates the pg-watcher application.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Casbin policy watcher over PostgreSQL LISTEN/NOTIFY"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithSubApps(newNotifyApp()),
		app.WithRunFunc(func(ctx context.Context, _ []string) error {
			return Run(ctx, opts)
		}),
	)
}

func newNotifyApp() *app.App {
	opts := NewNotifyOptions()

	return app.NewApp(
		app.WithName("notify"),
		app.WithEnvPrefix("PG_WATCHER"),
		app.WithShortDescription("Publish a policy update notification"),
		app.WithDescription(notifyDescription),
		app.WithOptions(opts),
		app.WithNoVersion(),
		app.WithRunFunc(func(ctx context.Context, _ []string) error {
			if err := Notify(ctx, opts); err != nil {
				return err
			}
			fmt.Printf("policy update published on channel %q\n", opts.Watcher.Channel)
			return nil
		}),
	)
}
