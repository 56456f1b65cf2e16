package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/chatcheckout/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db             *sql.DB
	conversationMu sync.Mutex // Serializes snapshot writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	return newSQLiteStore(dbPath)
}

func newSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL,
		discounted_price INTEGER NOT NULL DEFAULT 0,
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		images_json TEXT NOT NULL DEFAULT '[]',
		metadata_json TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_products_active ON products(active);

	CREATE TABLE IF NOT EXISTS testimonials (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		author TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		rating INTEGER NOT NULL DEFAULT 5,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_testimonials_product ON testimonials(product_id);

	CREATE TABLE IF NOT EXISTS knowledge (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		keywords_json TEXT NOT NULL DEFAULT '[]',
		priority INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS conversation_sessions (
		session_id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL DEFAULT '',
		step TEXT NOT NULL,
		session_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated ON conversation_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const productColumns = `id, name, description, price, discounted_price,
	stock_quantity, active, images_json, metadata_json, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var imagesJSON, metadataJSON string
	var updatedAt int64

	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.DiscountedPrice,
		&p.StockQuantity, &p.Active, &imagesJSON, &metadataJSON, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(imagesJSON), &p.Images); err != nil {
		return nil, fmt.Errorf("decode images for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &p.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", p.ID, err)
	}
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// GetProduct retrieves a product by id.
func (s *SQLiteStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, productID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product row: %w", err)
	}
	return p, nil
}

// ListProducts returns every product ordered by name.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close product rows", "error", closeErr)
		}
	}()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// UpsertProduct creates or updates a product.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	if p.Images == nil {
		images = []byte("[]")
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := `
	INSERT INTO products (` + productColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		price = excluded.price,
		discounted_price = excluded.discounted_price,
		stock_quantity = excluded.stock_quantity,
		active = excluded.active,
		images_json = excluded.images_json,
		metadata_json = excluded.metadata_json,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.DiscountedPrice,
		p.StockQuantity, p.Active, string(images), string(metadata), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// ListTestimonials returns reviews for a product, best rated and newest first.
func (s *SQLiteStore) ListTestimonials(ctx context.Context, productID string) ([]*domain.Testimonial, error) {
	query := `
		SELECT id, product_id, author, location, rating, content, created_at
		FROM testimonials WHERE product_id = ?
		ORDER BY rating DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query testimonials: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close testimonial rows", "error", closeErr)
		}
	}()

	var out []*domain.Testimonial
	for rows.Next() {
		var t domain.Testimonial
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.ProductID, &t.Author, &t.Location, &t.Rating, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan testimonial row: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate testimonials: %w", err)
	}
	return out, nil
}

// UpsertTestimonial creates or updates a testimonial.
func (s *SQLiteStore) UpsertTestimonial(ctx context.Context, t *domain.Testimonial) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
	INSERT INTO testimonials (id, product_id, author, location, rating, content, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		product_id = excluded.product_id,
		author = excluded.author,
		location = excluded.location,
		rating = excluded.rating,
		content = excluded.content`

	if _, err := s.db.ExecContext(ctx, query,
		t.ID, t.ProductID, t.Author, t.Location, t.Rating, t.Content, createdAt.Unix(),
	); err != nil {
		return fmt.Errorf("upsert testimonial: %w", err)
	}
	return nil
}

// ListKnowledge returns the FAQ entries, highest priority first.
func (s *SQLiteStore) ListKnowledge(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	query := `SELECT id, question, answer, keywords_json, priority FROM knowledge ORDER BY priority DESC, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close knowledge rows", "error", closeErr)
		}
	}()

	var out []*domain.KnowledgeEntry
	for rows.Next() {
		var k domain.KnowledgeEntry
		var keywordsJSON string
		if err := rows.Scan(&k.ID, &k.Question, &k.Answer, &keywordsJSON, &k.Priority); err != nil {
			return nil, fmt.Errorf("scan knowledge row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &k.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords for %s: %w", k.ID, err)
		}
		out = append(out, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge: %w", err)
	}
	return out, nil
}

// UpsertKnowledge creates or updates an FAQ entry.
func (s *SQLiteStore) UpsertKnowledge(ctx context.Context, k *domain.KnowledgeEntry) error {
	keywords, err := json.Marshal(k.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	if k.Keywords == nil {
		keywords = []byte("[]")
	}
	query := `
	INSERT INTO knowledge (id, question, answer, keywords_json, priority)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		question = excluded.question,
		answer = excluded.answer,
		keywords_json = excluded.keywords_json,
		priority = excluded.priority`

	if _, err := s.db.ExecContext(ctx, query, k.ID, k.Question, k.Answer, string(keywords), k.Priority); err != nil {
		return fmt.Errorf("upsert knowledge: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation snapshot.
func (s *SQLiteStore) GetConversation(ctx context.Context, sessionID string) (*domain.StoredConversation, error) {
	s.conversationMu.Lock()
	defer s.conversationMu.Unlock()

	query := `
		SELECT session_id, product_id, step, session_json, created_at, updated_at
		FROM conversation_sessions WHERE session_id = ?`

	var c domain.StoredConversation
	var step string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&c.SessionID, &c.ProductID, &step, &c.SessionJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.Step = domain.StepTag(step)
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// UpsertConversation creates or updates a conversation snapshot.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, c *domain.StoredConversation) error {
	s.conversationMu.Lock()
	defer s.conversationMu.Unlock()

	query := `
		INSERT INTO conversation_sessions (
			session_id, product_id, step, session_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			product_id = excluded.product_id,
			step = excluded.step,
			session_json = excluded.session_json,
			updated_at = excluded.updated_at`

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	err := retryConflicts(ctx, "upsert conversation", func() error {
		_, err := s.db.ExecContext(ctx, query,
			c.SessionID, c.ProductID, string(c.Step), c.SessionJSON,
			c.CreatedAt.Unix(), updatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation snapshot, retrying on lock
// contention.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, sessionID string) error {
	err := retryConflicts(ctx, "delete conversation", func() error {
		s.conversationMu.Lock()
		defer s.conversationMu.Unlock()

		_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE session_id = ?`, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", sessionID, err)
	}
	return nil
}

// CleanupExpiredSessions removes snapshots older than ttl.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.conversationMu.Lock()
	defer s.conversationMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}
