package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/chatcheckout/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := newSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &domain.Product{
		ID:            "couples",
		Name:          "Jeu pour couples",
		Description:   "Des questions pour mieux se connaître",
		Price:         14000,
		StockQuantity: 12,
		Active:        true,
		Images:        []string{"https://cdn.example/couples.png"},
		Metadata:      domain.ProductMetadata{Category: "couple", Tags: []string{"communication"}},
	}
	require.NoError(t, s.UpsertProduct(ctx, p))

	got, err := s.GetProduct(ctx, "couples")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, int64(14000), got.Price)
	assert.Equal(t, 12, got.StockQuantity)
	assert.True(t, got.Active)
	assert.Equal(t, p.Images, got.Images)
	assert.Equal(t, "couple", got.Metadata.Category)

	p.StockQuantity = 0
	require.NoError(t, s.UpsertProduct(ctx, p))
	got, err = s.GetProduct(ctx, "couples")
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetProductMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetProduct(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTestimonialsAndKnowledge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTestimonial(ctx, &domain.Testimonial{ID: "t1", ProductID: "p1", Author: "Awa", Rating: 4, Content: "Super"}))
	require.NoError(t, s.UpsertTestimonial(ctx, &domain.Testimonial{ID: "t2", ProductID: "p1", Author: "Moussa", Rating: 5, Content: "Génial"}))
	require.NoError(t, s.UpsertTestimonial(ctx, &domain.Testimonial{ID: "t3", ProductID: "p2", Author: "Fatou", Rating: 5, Content: "Top"}))

	ts, err := s.ListTestimonials(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "t2", ts[0].ID)

	require.NoError(t, s.UpsertKnowledge(ctx, &domain.KnowledgeEntry{ID: "k1", Question: "Livraison ?", Answer: "24h à Dakar", Keywords: []string{"livraison"}, Priority: 1}))
	require.NoError(t, s.UpsertKnowledge(ctx, &domain.KnowledgeEntry{ID: "k2", Question: "Retour ?", Answer: "7 jours", Priority: 5}))

	ks, err := s.ListKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, ks, 2)
	assert.Equal(t, "k2", ks[0].ID)
	assert.Equal(t, []string{"livraison"}, ks[1].Keywords)
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetConversation(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	c := &domain.StoredConversation{
		SessionID:   "sess-1",
		ProductID:   "p1",
		Step:        domain.StepExpressPhone,
		SessionJSON: `{"id":"sess-1"}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.UpsertConversation(ctx, c))

	got, err = s.GetConversation(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StepExpressPhone, got.Step)
	assert.Equal(t, c.SessionJSON, got.SessionJSON)

	require.NoError(t, s.DeleteConversation(ctx, "sess-1"))
	got, err = s.GetConversation(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCleanupExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.UpsertConversation(ctx, &domain.StoredConversation{
		SessionID: "old", Step: domain.StepInitial, SessionJSON: "{}", CreatedAt: old, UpdatedAt: old,
	}))
	require.NoError(t, s.UpsertConversation(ctx, &domain.StoredConversation{
		SessionID: "fresh", Step: domain.StepInitial, SessionJSON: "{}", CreatedAt: time.Now(),
	}))

	n, err := s.CleanupExpiredSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetConversation(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestApplySeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := &Seed{
		Products:  []*domain.Product{{ID: "p1", Name: "Famille", Price: 12000, StockQuantity: 3, Active: true}},
		Knowledge: []*domain.KnowledgeEntry{{ID: "k1", Question: "Q", Answer: "A"}},
	}
	require.NoError(t, ApplySeed(ctx, s, seed))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	ks, err := s.ListKnowledge(ctx)
	require.NoError(t, err)
	assert.Len(t, ks, 1)
	assert.NotNil(t, ks[0].Keywords)
}
