package datasets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGate implements Gate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireDataset(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseDataset() { g.releases.Add(1) }

func TestAdoptGetClose(t *testing.T) {
	gate := &fakeGate{}
	// Long TTL and no Start so nothing is evicted in the background.
	m := NewManager(2*time.Second, time.Second, gate, time.Now)

	id, err := m.Adopt(context.Background(), &Dataset{Origin: "a.csv", Fingerprint: "fp1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, 1, m.Count())

	d, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, id, d.ID)
	require.Equal(t, "a.csv", d.Origin)

	found, ok := m.FindByFingerprint("fp1")
	require.True(t, ok)
	require.Equal(t, id, found.ID)
	_, ok = m.FindByFingerprint("other")
	require.False(t, ok)

	require.NoError(t, m.CloseHandle(context.Background(), id))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
	require.ErrorIs(t, m.CloseHandle(context.Background(), id), ErrHandleNotFound)
}

func TestTTLExpiryAndEviction(t *testing.T) {
	var now atomic.Int64
	start := time.Now()
	now.Store(start.UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	gate := &fakeGate{}
	m := NewManager(50*time.Millisecond, 5*time.Millisecond, gate, clock)
	var evicted []string
	m.OnEvict(func(d *Dataset) { evicted = append(evicted, d.ID) })

	id, err := m.Adopt(context.Background(), &Dataset{})
	require.NoError(t, err)

	// Access inside the TTL refreshes the deadline.
	now.Store(start.Add(40 * time.Millisecond).UnixNano())
	_, ok := m.Get(id)
	require.True(t, ok)
	now.Store(start.Add(80 * time.Millisecond).UnixNano())
	require.Equal(t, 0, m.EvictExpired())

	now.Store(start.Add(200 * time.Millisecond).UnixNano())
	require.Equal(t, 1, m.EvictExpired())
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
	require.Equal(t, []string{id}, evicted)
}

func TestAdoptGateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: errors.New("full")}
	m := NewManager(time.Second, time.Second, gate, time.Now)

	_, err := m.Adopt(context.Background(), &Dataset{})
	require.Error(t, err)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(0), gate.releases.Load())
	require.Equal(t, 0, m.Count())
}

func TestStartAndClose(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Millisecond, time.Millisecond, gate, time.Now)
	m.Start()

	_, err := m.Adopt(context.Background(), &Dataset{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)

	_, err = m.Adopt(context.Background(), &Dataset{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
	require.Equal(t, 0, m.Count())
	require.Equal(t, gate.acquires.Load(), gate.releases.Load())
}

func TestConcurrentGet(t *testing.T) {
	m := NewManager(time.Second, time.Second, nil, time.Now)
	id, err := m.Adopt(context.Background(), &Dataset{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, ok := m.Get(id)
				if !ok {
					t.Error("handle vanished")
					return
				}
			}
		}()
	}
	wg.Wait()
}
