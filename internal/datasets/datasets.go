package datasets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/mcpsales/config"
	"github.com/vinodismyname/mcpsales/internal/ingest"
	"github.com/vinodismyname/mcpsales/internal/sales"
)

// Dataset is a loaded, normalized sales table held in memory behind a handle.
// Everything except the expiry is immutable after Adopt.
type Dataset struct {
	ID             string
	Origin         string
	MappingOrigin  string
	Format         ingest.Format
	Fingerprint    string
	Data           sales.Normalized
	MappingApplied bool
	Warnings       []ingest.Warning
	LoadedAt       time.Time

	mu        sync.RWMutex
	expiresAt time.Time
}

// ExpiresAt reports the current idle deadline.
func (d *Dataset) ExpiresAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.expiresAt
}

// Expired reports whether the dataset has reached its TTL.
func (d *Dataset) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt())
}

func (d *Dataset) touch(deadline time.Time) {
	d.mu.Lock()
	d.expiresAt = deadline
	d.mu.Unlock()
}

// Gate coordinates capacity for open dataset handles (backed by runtime.Controller).
type Gate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// ErrHandleNotFound is returned for ids that were never issued, were closed,
// or expired.
var ErrHandleNotFound = errors.New("datasets: handle not found")

// Manager owns dataset handles with idle-TTL eviction.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Dataset
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         Gate
	onEvict      func(*Dataset)
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// NewManager constructs a lifecycle manager with a TTL-bearing handle cache.
// Non-positive durations take the config defaults. A nil gate admits every
// dataset and a nil clock means time.Now.
func NewManager(ttl, cleanupEvery time.Duration, gate Gate, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultDatasetIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultEvictInterval
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Dataset),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
	}
}

// OnEvict registers a callback run after a dataset expires. Set it before Start.
func (m *Manager) OnEvict(fn func(*Dataset)) { m.onEvict = fn }

// Start runs EvictExpired every cleanupEvery until Close.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all handles.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.handles {
		delete(m.handles, id)
		m.release()
	}
	return nil
}

// Adopt registers a dataset under a fresh handle ID, reserving capacity via
// the gate. The dataset's ID, LoadedAt, and expiry are assigned here.
func (m *Manager) Adopt(ctx context.Context, d *Dataset) (string, error) {
	if d == nil {
		return "", fmt.Errorf("datasets: nil dataset")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	now := m.clock()
	d.ID = uuid.NewString()
	d.LoadedAt = now
	d.touch(now.Add(m.ttl))

	m.mu.Lock()
	m.handles[d.ID] = d
	m.mu.Unlock()
	return d.ID, nil
}

// Get returns the dataset when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Dataset, bool) {
	m.mu.RLock()
	d, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Idle timeout semantics.
	d.touch(m.clock().Add(m.ttl))
	return d, true
}

// FindByFingerprint returns a live dataset with the same content, if any.
func (m *Manager) FindByFingerprint(fp string) (*Dataset, bool) {
	m.mu.RLock()
	var found *Dataset
	for _, d := range m.handles {
		if d.Fingerprint == fp {
			found = d
			break
		}
	}
	m.mu.RUnlock()
	if found == nil {
		return nil, false
	}
	return m.Get(found.ID)
}

// CloseHandle removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(_ context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	m.release()
	return nil
}

// EvictExpired drops expired handles and returns how many were removed.
func (m *Manager) EvictExpired() int {
	now := m.clock()
	var expired []*Dataset

	m.mu.Lock()
	for id, d := range m.handles {
		if d.Expired(now) {
			expired = append(expired, d)
			delete(m.handles, id)
		}
	}
	m.mu.Unlock()

	for _, d := range expired {
		m.release()
		if m.onEvict != nil {
			m.onEvict(d)
		}
	}
	return len(expired)
}

// Count reports how many datasets are held, expired ones included until the
// next sweep.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}
