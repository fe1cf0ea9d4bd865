package casbin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/casbin/casbin/v3/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/pg-watcher/pkg/pubsub/memory"
	"github.com/kart-io/pg-watcher/pkg/watcher"
)

func openDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newWatcher(t *testing.T, d *memory.Driver) *watcher.Watcher {
	t.Helper()
	w, err := watcher.New(d,
		watcher.WithStartListening(false),
		watcher.WithStartupDelay(0),
		watcher.WithPollTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)
	return w
}

func TestGormAdapterSatisfiesEnforcer(t *testing.T) {
	db := openDB(t, ":memory:")
	a, err := gormadapter.NewAdapterByDB(db)
	require.NoError(t, err)

	var adapter interface{} = a
	_, ok := adapter.(persist.Adapter)
	assert.True(t, ok)
	w := newWatcher(t, memory.New())
	defer w.Close()
	assert.Implements(t, (*persist.Watcher)(nil), w)

	assert.NotPanics(t, func() {
		e, err := NewGormEnforcer(db, "")
		require.NoError(t, err)
		require.NotNil(t, e)
	})
}

func TestGormEnforcer(t *testing.T) {
	db := openDB(t, ":memory:")

	tmpModel := filepath.Join(t.TempDir(), "rbac_model.conf")
	require.NoError(t, os.WriteFile(tmpModel, []byte(DefaultModel), 0o600))

	e, err := NewGormEnforcer(db, tmpModel)
	require.NoError(t, err)

	success, err := e.AddGroupingPolicy("alice", "admin")
	assert.NoError(t, err)
	assert.True(t, success)

	success, err = e.AddPolicy("admin", "data1", "read")
	assert.NoError(t, err)
	assert.True(t, success)

	allowed, err := e.Enforce("alice", "data1", "read")
	assert.NoError(t, err)
	assert.True(t, allowed, "alice should be able to read data1")

	allowed, err = e.Enforce("alice", "data1", "write")
	assert.NoError(t, err)
	assert.False(t, allowed, "alice should not be able to write data1")
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestPolicySyncAcrossEnforcers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "policy.db")
	d := memory.New()
	cfg := Config{ReloadInterval: 20 * time.Millisecond}

	a, err := NewEnforcer(openDB(t, dbPath), newWatcher(t, d), cfg)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewEnforcer(openDB(t, dbPath), newWatcher(t, d), cfg)
	require.NoError(t, err)
	defer b.Close()

	// SetWatcher 启动了两个订阅者
	require.Eventually(t, func() bool { return d.Subscribers(watcher.DefaultChannel) == 2 },
		2*time.Second, 5*time.Millisecond)

	allowed, err := b.Enforce("bob", "data2", "write")
	require.NoError(t, err)
	assert.False(t, allowed)

	// AddPolicy 会自动调用 watcher.Update
	_, err = a.AddPolicy("bob", "data2", "write")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Published())

	select {
	case <-b.Reloaded():
	case <-time.After(3 * time.Second):
		t.Fatal("enforcer b did not reload")
	}

	allowed, err = b.Enforce("bob", "data2", "write")
	require.NoError(t, err)
	assert.True(t, allowed)
}
