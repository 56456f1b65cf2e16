package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/metrics"
	"github.com/ashureev/chatcheckout/internal/store"
)

const persistTimeout = 5 * time.Second

type slot struct {
	mu       sync.Mutex
	session  *domain.ConversationSession
	disposed bool
}

// Registry owns every live ConversationSession. Turns on the same session
// are serialized by a per-session lock; different sessions never contend.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*slot

	store  store.ConversationStore
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates a registry. conversations may be nil, in which case
// sessions live only in memory.
func NewRegistry(conversations store.ConversationStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*slot),
		store:    conversations,
		now:      time.Now,
		logger:   logger,
	}
}

// Lease is exclusive access to one session for the duration of a turn.
type Lease struct {
	Session *domain.ConversationSession
	// Created is true when the session did not exist before this lease.
	Created bool

	registry *Registry
	slot     *slot
	released bool
}

// Release persists the session and unlocks it.
func (l *Lease) Release(ctx context.Context) {
	if l.released {
		return
	}
	l.released = true
	l.registry.persist(ctx, l.Session)
	l.slot.mu.Unlock()
}

// CreateSession registers a fresh session under id, replacing any previous one.
func (r *Registry) CreateSession(ctx context.Context, id string) *domain.ConversationSession {
	s := &slot{session: domain.NewConversationSession(id, r.now())}
	r.mu.Lock()
	old, ok := r.sessions[id]
	r.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if ok {
		old.mu.Lock()
		old.disposed = true
		old.mu.Unlock()
	}

	r.persist(ctx, s.session)
	return s.session.Snapshot()
}

// Acquire locks the session with id, restoring it from the store or creating
// it when unknown. seed initializes sessions created by this call.
func (r *Registry) Acquire(ctx context.Context, id string, seed func(*domain.ConversationSession)) (*Lease, error) {
	return r.acquire(ctx, id, true, seed)
}

// AcquireExisting is Acquire without creation: unknown ids fail with
// domain.ErrSessionNotFound.
func (r *Registry) AcquireExisting(ctx context.Context, id string) (*Lease, error) {
	return r.acquire(ctx, id, false, nil)
}

func (r *Registry) acquire(ctx context.Context, id string, create bool, seed func(*domain.ConversationSession)) (*Lease, error) {
	if id == "" {
		return nil, fmt.Errorf("empty session id: %w", domain.ErrInvalidInput)
	}
	for {
		r.mu.Lock()
		s, ok := r.sessions[id]
		if !ok {
			s = &slot{}
			r.sessions[id] = s
			metrics.ActiveSessions.Set(float64(len(r.sessions)))
		}
		r.mu.Unlock()

		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			continue
		}

		created := false
		if s.session == nil {
			s.session = r.restore(ctx, id)
			if s.session == nil && !create {
				r.drop(id, s)
				s.mu.Unlock()
				return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
			}
			if s.session == nil {
				s.session = domain.NewConversationSession(id, r.now())
				if seed != nil {
					seed(s.session)
				}
				created = true
			}
		}
		return &Lease{Session: s.session, Created: created, registry: r, slot: s}, nil
	}
}

// drop removes an empty slot. The caller holds s.mu.
func (r *Registry) drop(id string, s *slot) {
	s.disposed = true
	r.mu.Lock()
	if r.sessions[id] == s {
		delete(r.sessions, id)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()
}

// Session returns a copy of the session with id.
func (r *Registry) Session(ctx context.Context, id string) (*domain.ConversationSession, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.disposed && s.session != nil {
			return s.session.Snapshot(), nil
		}
	}
	if restored := r.restore(ctx, id); restored != nil {
		return restored, nil
	}
	return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
}

// DisposeSession forgets the session in memory and in the store.
func (r *Registry) DisposeSession(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.disposed = true
		s.mu.Unlock()
	}
	if r.store != nil {
		if err := r.store.DeleteConversation(ctx, id); err != nil {
			return fmt.Errorf("dispose session %s: %w", id, err)
		}
	}
	return nil
}

// Sweep drops in-memory sessions idle for longer than maxAge. Sessions
// busy with a turn are skipped.
func (r *Registry) Sweep(maxAge time.Duration) int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.session == nil || s.session.Idle(now, maxAge) {
			s.disposed = true
			delete(r.sessions, id)
			removed++
		}
		s.mu.Unlock()
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return removed
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) restore(ctx context.Context, id string) *domain.ConversationSession {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.GetConversation(ctx, id)
	if err != nil {
		r.logger.Warn("failed to load conversation snapshot",
			"session_id", id,
			"error", err)
		return nil
	}
	if stored == nil {
		return nil
	}
	var s domain.ConversationSession
	if err := json.Unmarshal([]byte(stored.SessionJSON), &s); err != nil {
		r.logger.Warn("discarding unreadable conversation snapshot",
			"session_id", id,
			"error", err)
		return nil
	}
	if s.ID == "" {
		s.ID = id
	}
	if s.Profile == nil {
		s.Profile = domain.NewUserProfile()
	}
	if !s.Step.Valid() {
		s.Step = domain.StepInitial
	}
	return &s
}

func (r *Registry) persist(ctx context.Context, s *domain.ConversationSession) {
	if r.store == nil || s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("failed to encode conversation snapshot",
			"session_id", s.ID,
			"error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err = r.store.UpsertConversation(ctx, &domain.StoredConversation{
		SessionID:   s.ID,
		ProductID:   s.ProductID,
		Step:        s.Step,
		SessionJSON: string(data),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.LastActivity,
	})
	if err != nil {
		r.logger.Warn("failed to persist conversation snapshot",
			"session_id", s.ID,
			"error", err)
	}
}
