package pgwatcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"github.com/kart-io/pg-watcher/pkg/app"
	"github.com/kart-io/pg-watcher/pkg/authz/casbin"
	pgclient "github.com/kart-io/pg-watcher/pkg/component/postgres"
	"github.com/kart-io/pg-watcher/pkg/infra/pool"
	"github.com/kart-io/pg-watcher/pkg/reloader"
	"github.com/kart-io/pg-watcher/pkg/watcher"
)

const shutdownTimeout = 5 * time.Second

// Run starts the agent and blocks until ctx is done or a termination signal
// arrives.
func Run(ctx context.Context, opts *Options) error {
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Flush() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pool.InitGlobal(); err != nil {
		return fmt.Errorf("failed to initialize worker pools: %w", err)
	}
	defer func() {
		if err := pool.CloseGlobal(shutdownTimeout); err != nil {
			logger.Warnw("Worker pools did not drain", "error", err.Error())
		}
	}()

	return runAgent(ctx, opts, logger.Global().With("component", appName))
}

func runAgent(ctx context.Context, opts *Options, log core.Logger) error {
	driver, err := NewDriver(opts.Watcher.Backend, opts.Postgres, opts.Redis)
	if err != nil {
		return err
	}

	w, err := watcher.New(driver, append(opts.Watcher.WatcherOptions(), watcher.WithLogger(log))...)
	if err != nil {
		return err
	}
	defer w.Close()

	log.Infow("Starting policy watcher",
		"backend", driver.Name(),
		"channel", opts.Watcher.Channel,
		"policy", opts.Policy.Enabled,
	)

	if opts.Policy.Enabled {
		return runEnforcer(ctx, opts, w, log)
	}
	return runNotifier(ctx, opts, w, log)
}

// runEnforcer keeps a casbin enforcer in sync with the policy table.
func runEnforcer(ctx context.Context, opts *Options, w *watcher.Watcher, log core.Logger) error {
	client, err := pgclient.New(ctx, opts.Postgres)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	e, err := casbin.NewEnforcer(client.DB(), w, casbin.Config{
		ModelPath:      opts.Policy.ModelPath,
		ReloadInterval: opts.Watcher.ReloadInterval,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	log.Infow("Policy enforcer ready", "store", opts.Postgres.String())
	for {
		select {
		case <-ctx.Done():
			log.Infow("Shutting down policy watcher")
			return nil
		case <-e.Reloaded():
			log.Debugw("Enforcer policies refreshed")
		}
	}
}

// runNotifier only reports that policies changed.
func runNotifier(ctx context.Context, opts *Options, w *watcher.Watcher, log core.Logger) error {
	if err := w.Start(); err != nil {
		return err
	}

	r := reloader.New(w, func() error {
		log.Infow("Casbin policy update received")
		return nil
	}, reloader.WithInterval(opts.Watcher.ReloadInterval), reloader.WithLogger(log))
	if err := r.Start(); err != nil {
		return err
	}
	defer r.Stop()

	<-ctx.Done()
	log.Infow("Shutting down policy watcher")
	return nil
}
