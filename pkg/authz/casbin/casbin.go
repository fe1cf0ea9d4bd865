// Package casbin provides Casbin enforcers whose policies live in a SQL
// database and stay in sync across processes through a policy watcher.
package casbin

import (
	"fmt"
	"time"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"github.com/kart-io/pg-watcher/pkg/reloader"
	"github.com/kart-io/pg-watcher/pkg/watcher"
)

// gorm-adapter and the enforcer must share one casbin major version.
var _ persist.Adapter = (*gormadapter.Adapter)(nil)

// DefaultModel is the RBAC model used when no model file is configured.
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Config configures NewEnforcer.
type Config struct {
	// ModelPath is a casbin model file. DefaultModel is used when empty.
	ModelPath string
	// ReloadInterval is how often the watcher is checked for changes.
	ReloadInterval time.Duration
}

// Enforcer is a synced casbin enforcer kept up to date by a watcher.
type Enforcer struct {
	*casbin.SyncedEnforcer

	watcher  *watcher.Watcher
	reloader *reloader.Reloader
}

// LoadModel reads the model at path, or DefaultModel when path is empty.
func LoadModel(path string) (model.Model, error) {
	if path == "" {
		return model.NewModelFromString(DefaultModel)
	}
	return model.NewModelFromFile(path)
}

// NewGormEnforcer creates a synced enforcer backed by the casbin_rule table
// and loads its policies.
func NewGormEnforcer(db *gorm.DB, modelPath string) (*casbin.SyncedEnforcer, error) {
	// This will automatically create the casbin_rule table if it doesn't exist
	a, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm adapter: %w", err)
	}

	m, err := LoadModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, a)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	return e, nil
}

// NewEnforcer creates an enforcer on db and attaches w. Policy changes made
// through the enforcer publish a notification; notifications from any
// process trigger a reload.
func NewEnforcer(db *gorm.DB, w *watcher.Watcher, cfg Config) (*Enforcer, error) {
	e, err := NewGormEnforcer(db, cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	// SetWatcher registers LoadPolicy as the update callback, which also
	// starts the subscriber.
	if err := e.SetWatcher(w); err != nil {
		return nil, fmt.Errorf("failed to set watcher: %w", err)
	}

	r := reloader.New(w, e.LoadPolicy, reloader.WithInterval(cfg.ReloadInterval))
	if err := r.Start(); err != nil {
		return nil, err
	}

	return &Enforcer{
		SyncedEnforcer: e,
		watcher:        w,
		reloader:       r,
	}, nil
}

// Reloaded receives a value after each successful policy reload.
func (e *Enforcer) Reloaded() <-chan struct{} {
	return e.reloader.Chan()
}

// Close stops reloading and closes the watcher.
func (e *Enforcer) Close() {
	e.reloader.Stop()
	e.watcher.Close()
}
