// Package catalog serves products, testimonials and FAQ entries to the
// engine through TTL caches in front of the persistent store.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/ashureev/chatcheckout/internal/cache"
	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/store"
	"github.com/ashureev/chatcheckout/internal/textnorm"
)

const (
	// DefaultTTL is how long catalog reads stay fresh.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxAttempts bounds store calls per fetch.
	DefaultMaxAttempts = 3
	// DefaultInitialBackoff is the first retry delay.
	DefaultInitialBackoff = 100 * time.Millisecond

	activeProductsKey = "active"
	knowledgeKey      = "all"
)

// Options configures an Accessor.
type Options struct {
	TTL            time.Duration
	MaxEntries     int
	FetchTimeout   time.Duration
	Gate           *cache.Gate
	MaxAttempts    int
	InitialBackoff time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Accessor is the cached read side of the catalog.
type Accessor struct {
	reader         store.CatalogReader
	ttl            time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	logger         *slog.Logger

	products     *cache.Cache[*domain.Product]
	listing      *cache.Cache[[]*domain.Product]
	testimonials *cache.Cache[[]*domain.Testimonial]
	knowledge    *cache.Cache[[]*domain.KnowledgeEntry]
}

// New creates an Accessor over reader.
func New(reader store.CatalogReader, opts Options) *Accessor {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gate == nil {
		opts.Gate = cache.NewGate(0)
	}

	cacheOpts := func(name string) cache.Options {
		return cache.Options{
			Name:         name,
			MaxEntries:   opts.MaxEntries,
			FetchTimeout: opts.FetchTimeout,
			Gate:         opts.Gate,
			Logger:       opts.Logger,
			Now:          opts.Now,
		}
	}

	return &Accessor{
		reader:         reader,
		ttl:            opts.TTL,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		logger:         opts.Logger,
		products:       cache.New[*domain.Product](cacheOpts("products")),
		listing:        cache.New[[]*domain.Product](cacheOpts("product_listing")),
		testimonials:   cache.New[[]*domain.Testimonial](cacheOpts("testimonials")),
		knowledge:      cache.New[[]*domain.KnowledgeEntry](cacheOpts("knowledge")),
	}
}

// Caches returns the underlying caches for the expiry sweeper.
func (a *Accessor) Caches() []cache.Sweeper {
	return []cache.Sweeper{a.products, a.listing, a.testimonials, a.knowledge}
}

// withRetry runs op at most maxAttempts times with exponential backoff.
func (a *Accessor) withRetry(ctx context.Context, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialBackoff
	b.MaxInterval = 4 * a.initialBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := op()
		if err != nil && attempt < a.maxAttempts {
			a.logger.Warn("store read failed, retrying",
				"read", what,
				"attempt", attempt,
				"error", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.maxAttempts-1)), ctx))
	if err != nil {
		return fmt.Errorf("%s after %d attempts: %w", what, attempt, err)
	}
	return nil
}

// Product returns the product with id, or domain.ErrProductNotFound.
func (a *Accessor) Product(ctx context.Context, id string) (*domain.Product, error) {
	return a.product(ctx, id, false)
}

// RefreshProduct reloads the product from the store, used before stock
// checks. A stale copy is still served if the store is unreachable.
func (a *Accessor) RefreshProduct(ctx context.Context, id string) (*domain.Product, error) {
	return a.product(ctx, id, true)
}

func (a *Accessor) product(ctx context.Context, id string, force bool) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("empty product id: %w", domain.ErrProductNotFound)
	}
	return a.products.GetOrFetch(ctx, id, func(ctx context.Context) (*domain.Product, error) {
		var p *domain.Product
		err := a.withRetry(ctx, "get product", func() error {
			var err error
			p, err = a.reader.GetProduct(ctx, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
		}
		return p, nil
	}, a.ttl, force)
}

// ActiveProducts returns active products ordered by name.
func (a *Accessor) ActiveProducts(ctx context.Context) ([]*domain.Product, error) {
	return a.listing.GetOrFetch(ctx, activeProductsKey, func(ctx context.Context) ([]*domain.Product, error) {
		var all []*domain.Product
		err := a.withRetry(ctx, "list products", func() error {
			var err error
			all, err = a.reader.ListProducts(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		active := make([]*domain.Product, 0, len(all))
		for _, p := range all {
			if p.Active {
				active = append(active, p)
			}
		}
		return active, nil
	}, a.ttl, false)
}

// Testimonials returns reviews for productID, best first.
func (a *Accessor) Testimonials(ctx context.Context, productID string) ([]*domain.Testimonial, error) {
	return a.testimonials.GetOrFetch(ctx, productID, func(ctx context.Context) ([]*domain.Testimonial, error) {
		var ts []*domain.Testimonial
		err := a.withRetry(ctx, "list testimonials", func() error {
			var err error
			ts, err = a.reader.ListTestimonials(ctx, productID)
			return err
		})
		return ts, err
	}, a.ttl, false)
}

// Knowledge returns the FAQ table.
func (a *Accessor) Knowledge(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	return a.knowledge.GetOrFetch(ctx, knowledgeKey, func(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
		var ks []*domain.KnowledgeEntry
		err := a.withRetry(ctx, "list knowledge", func() error {
			var err error
			ks, err = a.reader.ListKnowledge(ctx)
			return err
		})
		return ks, err
	}, a.ttl, false)
}

// AnswerFor returns the FAQ entry best matching message, or nil.
// Entries are ranked by the number of keywords found, then by priority.
func (a *Accessor) AnswerFor(ctx context.Context, message string) (*domain.KnowledgeEntry, error) {
	entries, err := a.Knowledge(ctx)
	if err != nil {
		return nil, err
	}
	return BestAnswer(entries, message), nil
}

// BestAnswer ranks entries against message.
func BestAnswer(entries []*domain.KnowledgeEntry, message string) *domain.KnowledgeEntry {
	folded := textnorm.Fold(message)
	if folded == "" {
		return nil
	}

	type scored struct {
		entry *domain.KnowledgeEntry
		hits  int
	}
	var matches []scored
	for _, e := range entries {
		hits := 0
		for _, kw := range e.Keywords {
			if textnorm.ContainsPhrase(folded, kw) || textnorm.HasStem(folded, textnorm.Fold(kw)) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{entry: e, hits: hits})
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return matches[i].entry.Priority > matches[j].entry.Priority
	})
	return matches[0].entry
}
