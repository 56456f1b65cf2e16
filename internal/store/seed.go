package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/chatcheckout/internal/domain"
)

// Seed is the on-disk catalog fixture loaded at startup.
type Seed struct {
	Products     []*domain.Product        `json:"products"`
	Testimonials []*domain.Testimonial    `json:"testimonials"`
	Knowledge    []*domain.KnowledgeEntry `json:"knowledge"`
}

// LoadSeedFile reads a JSON seed file and upserts every record.
// A missing path is not an error.
func LoadSeedFile(ctx context.Context, w CatalogWriter, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("seed file not found, skipping", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	return ApplySeed(ctx, w, &seed)
}

// ApplySeed upserts the records of seed.
func ApplySeed(ctx context.Context, w CatalogWriter, seed *Seed) error {
	for _, p := range seed.Products {
		if err := w.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, t := range seed.Testimonials {
		if err := w.UpsertTestimonial(ctx, t); err != nil {
			return fmt.Errorf("seed testimonial %s: %w", t.ID, err)
		}
	}
	for _, k := range seed.Knowledge {
		if err := w.UpsertKnowledge(ctx, k); err != nil {
			return fmt.Errorf("seed knowledge %s: %w", k.ID, err)
		}
	}
	slog.Info("catalog seeded",
		"products", len(seed.Products),
		"testimonials", len(seed.Testimonials),
		"knowledge", len(seed.Knowledge))
	return nil
}
