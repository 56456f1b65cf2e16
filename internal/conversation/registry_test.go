package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/chatcheckout/internal/domain"
)

type memoryStore struct {
	mu    sync.Mutex
	convs map[string]*domain.StoredConversation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{convs: make(map[string]*domain.StoredConversation)}
}

func (m *memoryStore) GetConversation(_ context.Context, id string) (*domain.StoredConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memoryStore) UpsertConversation(_ context.Context, c *domain.StoredConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.convs[c.SessionID] = &cp
	return nil
}

func (m *memoryStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, id)
	return nil
}

func (m *memoryStore) CleanupExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.convs {
		if time.Since(c.UpdatedAt) > ttl {
			delete(m.convs, id)
			n++
		}
	}
	return n, nil
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, nil)

	s := r.CreateSession(ctx, "s1")
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, domain.StepInitial, s.Step)
	assert.Equal(t, 1, r.Len())

	got, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	require.NoError(t, r.DisposeSession(ctx, "s1"))
	_, err = r.Session(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestAcquireSeedsOnlyNewSessions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, nil)
	seeded := 0
	seed := func(s *domain.ConversationSession) {
		seeded++
		s.ProductID = "couple-quiz"
	}

	lease, err := r.Acquire(ctx, "s1", seed)
	require.NoError(t, err)
	assert.True(t, lease.Created)
	lease.Release(ctx)

	lease, err = r.Acquire(ctx, "s1", seed)
	require.NoError(t, err)
	assert.False(t, lease.Created)
	assert.Equal(t, "couple-quiz", lease.Session.ProductID)
	lease.Release(ctx)
	lease.Release(ctx)

	assert.Equal(t, 1, seeded)

	_, err = r.Acquire(ctx, "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAcquireExistingUnknown(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, err := r.AcquireExisting(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore()

	first := NewRegistry(st, nil)
	lease, err := first.Acquire(ctx, "s1", nil)
	require.NoError(t, err)
	lease.Session.Step = domain.StepExpressPhone
	lease.Session.Draft = &domain.OrderDraft{ProductID: "couple-quiz", UnitPrice: 14000, Quantity: 1, Total: 14000}
	lease.Release(ctx)

	// A new registry stands in for a restarted process.
	second := NewRegistry(st, nil)
	lease, err = second.AcquireExisting(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, lease.Created)
	assert.Equal(t, domain.StepExpressPhone, lease.Session.Step)
	require.NotNil(t, lease.Session.Draft)
	assert.Equal(t, int64(14000), lease.Session.Draft.Total)
	lease.Release(ctx)

	require.NoError(t, second.DisposeSession(ctx, "s1"))
	stored, err := st.GetConversation(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSweepDropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.CreateSession(ctx, "old")
	now = now.Add(2 * time.Hour)
	r.CreateSession(ctx, "fresh")

	busy, err := r.Acquire(ctx, "busy", nil)
	require.NoError(t, err)
	busy.Session.LastActivity = now.Add(-3 * time.Hour)

	removed := r.Sweep(time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, r.Len())

	_, err = r.Session(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	busy.Release(ctx)
	assert.Equal(t, 1, r.Sweep(time.Hour))
}

func TestTTLWorkerCleanup(t *testing.T) {
	ctx := context.Background()
	st := newMemoryStore()
	r := NewRegistry(st, nil)
	now := time.Now()
	r.now = func() time.Time { return now.Add(-2 * time.Hour) }
	r.CreateSession(ctx, "stale")
	r.now = time.Now

	require.NoError(t, st.UpsertConversation(ctx, &domain.StoredConversation{SessionID: "orphan", SessionJSON: "{}", UpdatedAt: now.Add(-2 * time.Hour)}))

	cleanupExpiredSessions(ctx, r, st, time.Hour)

	assert.Equal(t, 0, r.Len())
	stored, err := st.GetConversation(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestStartTTLWorkerSweepsOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(nil, nil)
	r.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	r.CreateSession(ctx, "stale")
	r.now = time.Now

	StartTTLWorker(ctx, r, nil, time.Hour, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 10*time.Millisecond)
}
