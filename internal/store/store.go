// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/chatcheckout/internal/domain"
)

// CatalogReader is the read side used by the engine.
type CatalogReader interface {
	// GetProduct retrieves a product by id. It returns nil, nil when absent.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// ListProducts returns every product, active or not.
	ListProducts(ctx context.Context) ([]*domain.Product, error)

	// ListTestimonials returns reviews for a product, best rated first.
	ListTestimonials(ctx context.Context, productID string) ([]*domain.Testimonial, error)

	// ListKnowledge returns the FAQ table ordered by priority.
	ListKnowledge(ctx context.Context) ([]*domain.KnowledgeEntry, error)
}

// CatalogWriter seeds and maintains catalog records.
type CatalogWriter interface {
	UpsertProduct(ctx context.Context, p *domain.Product) error
	UpsertTestimonial(ctx context.Context, t *domain.Testimonial) error
	UpsertKnowledge(ctx context.Context, k *domain.KnowledgeEntry) error
}

// ConversationStore persists conversation snapshots keyed by session id.
type ConversationStore interface {
	// GetConversation retrieves a snapshot. It returns nil, nil when absent.
	GetConversation(ctx context.Context, sessionID string) (*domain.StoredConversation, error)

	// UpsertConversation creates or updates a snapshot.
	UpsertConversation(ctx context.Context, c *domain.StoredConversation) error

	// DeleteConversation removes a snapshot.
	DeleteConversation(ctx context.Context, sessionID string) error

	// CleanupExpiredSessions removes snapshots not updated within ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// Repository is the full persistent store.
type Repository interface {
	CatalogReader
	CatalogWriter
	ConversationStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
