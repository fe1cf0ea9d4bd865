package reloader

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
)

// flagChecker reports true once per Signal.
type flagChecker struct {
	mu      sync.Mutex
	pending bool
}

func (c *flagChecker) Signal() {
	c.mu.Lock()
	c.pending = true
	c.mu.Unlock()
}

func (c *flagChecker) ShouldReload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	c.pending = false
	return p
}

func TestReloadOnSignal(t *testing.T) {
	c := &flagChecker{}
	var calls atomic.Int32
	r := New(c, func() error {
		calls.Add(1)
		return nil
	}, WithInterval(10*time.Millisecond))
	require.NoError(t, r.Start())
	defer r.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	c.Signal()
	select {
	case <-r.Chan():
	case <-time.After(2 * time.Second):
		t.Fatal("reload not triggered")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), r.Reloads())
}

func TestReloadNotConcurrent(t *testing.T) {
	c := &flagChecker{}
	release := make(chan struct{})
	var inFlight, maxInFlight, calls atomic.Int32

	r := New(c, func() error {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		if calls.Add(1) == 1 {
			<-release
		}
		inFlight.Add(-1)
		return nil
	}, WithInterval(5*time.Millisecond))
	require.NoError(t, r.Start())
	defer r.Stop()

	c.Signal()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// 重载进行中到达的变更不能丢失
	c.Signal()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestReloadFailureAndPanic(t *testing.T) {
	c := &flagChecker{}
	var calls atomic.Int32
	r := New(c, func() error {
		switch calls.Add(1) {
		case 1:
			return errors.New("database unavailable")
		case 2:
			panic("adapter bug")
		}
		return nil
	}, WithInterval(5*time.Millisecond))
	require.NoError(t, r.Start())
	defer r.Stop()

	for i := 0; i < 3; i++ {
		c.Signal()
		want := int32(i + 1)
		require.Eventually(t, func() bool { return calls.Load() == want }, time.Second, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool { return r.Reloads() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), r.Failures())
}

func TestStartStop(t *testing.T) {
	r := New(&flagChecker{}, func() error { return nil })
	require.NoError(t, r.Start())
	require.NoError(t, r.Start())
	r.Stop()
	r.Stop()

	err := New(nil, nil).Start()
	assert.ErrorIs(t, err, werrors.ErrWatcherConfig)
}

// countChecker reports true n times.
type countChecker struct{ n atomic.Int32 }

func (c *countChecker) ShouldReload() bool {
	return c.n.Add(-1) >= 0
}

func TestReloadFoldsBurst(t *testing.T) {
	c := &countChecker{}
	c.n.Store(5)
	var calls atomic.Int32
	r := New(c, func() error {
		calls.Add(1)
		return nil
	}, WithInterval(10*time.Millisecond))
	require.NoError(t, r.Start())
	defer r.Stop()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
