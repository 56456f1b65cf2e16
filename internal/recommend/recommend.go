// Package recommend scores catalog products as cross-sell suggestions for a
// visitor profile.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ashureev/chatcheckout/internal/cache"
	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/textnorm"
)

// Scoring weights.
const (
	baseScore         = 0.5
	relationshipBonus = 0.3
	interestBonus     = 0.1
	priceBonus        = 0.1
)

// DefaultTTL bounds how long a computed list is reused.
const DefaultTTL = 2 * time.Minute

// ProductSource lists candidate products.
type ProductSource interface {
	ActiveProducts(ctx context.Context) ([]*domain.Product, error)
}

var relationshipTerms = map[domain.RelationshipContext][]string{
	domain.RelationshipCouple:       {"couple", "couples", "amoureux", "duo", "deux"},
	domain.RelationshipFamily:       {"famille", "family", "enfants", "enfant"},
	domain.RelationshipFriends:      {"amis", "friends", "soiree", "apero", "groupe"},
	domain.RelationshipProfessional: {"pro", "equipe", "entreprise", "collegues", "team"},
	domain.RelationshipSingle:       {"solo", "perso", "soi"},
}

var relationshipReasons = map[domain.RelationshipContext]string{
	domain.RelationshipCouple:       "Parfait pour vos moments à deux",
	domain.RelationshipFamily:       "Idéal pour rassembler toute la famille",
	domain.RelationshipFriends:      "Le compagnon idéal de vos soirées entre amis",
	domain.RelationshipProfessional: "Parfait pour renforcer la cohésion d'équipe",
	domain.RelationshipSingle:       "Pour apprendre à mieux vous connaître",
}

// Options configures a Generator.
type Options struct {
	TTL    time.Duration
	Gate   *cache.Gate
	Logger *slog.Logger
	Now    func() time.Time
}

// Generator produces recommendations.
type Generator struct {
	source ProductSource
	ttl    time.Duration
	cache  *cache.Cache[[]domain.ProductRecommendation]
	logger *slog.Logger
}

// New creates a Generator reading candidates from source.
func New(source ProductSource, opts Options) *Generator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		source: source,
		ttl:    opts.TTL,
		logger: opts.Logger,
		cache: cache.New[[]domain.ProductRecommendation](cache.Options{
			Name:   "recommendations",
			Gate:   opts.Gate,
			Logger: opts.Logger,
			Now:    opts.Now,
		}),
	}
}

// Cache exposes the result cache for the expiry sweeper.
func (g *Generator) Cache() cache.Sweeper {
	return g.cache
}

// Recommend returns at most limit suggestions other than currentID. It
// returns an empty list when candidates cannot be loaded.
func (g *Generator) Recommend(ctx context.Context, currentID string, intent domain.Intent, profile *domain.UserProfile, limit int) []domain.ProductRecommendation {
	if limit <= 0 {
		return []domain.ProductRecommendation{}
	}
	if profile == nil {
		profile = domain.NewUserProfile()
	}

	recs, err := g.cache.GetOrFetch(ctx, cacheKey(currentID, intent, profile), func(ctx context.Context) ([]domain.ProductRecommendation, error) {
		products, err := g.source.ActiveProducts(ctx)
		if err != nil {
			return nil, err
		}
		return Score(products, currentID, intent, profile), nil
	}, g.ttl, false)
	if err != nil {
		g.logger.Warn("recommendations unavailable",
			"product_id", currentID,
			"error", err)
		return []domain.ProductRecommendation{}
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]domain.ProductRecommendation, len(recs))
	copy(out, recs)
	return out
}

func cacheKey(currentID string, intent domain.Intent, p *domain.UserProfile) string {
	return strings.Join([]string{
		currentID,
		string(intent),
		string(p.Relationship),
		string(p.PriceSensitivity),
		strings.Join(p.Interests.Items, ","),
	}, "|")
}

// Score ranks every eligible candidate, best first.
func Score(products []*domain.Product, currentID string, intent domain.Intent, profile *domain.UserProfile) []domain.ProductRecommendation {
	var candidates []*domain.Product
	var total int64
	for _, p := range products {
		if p == nil || p.ID == currentID || !p.Active || !p.InStock() {
			continue
		}
		candidates = append(candidates, p)
		total += p.UnitPrice()
	}
	if len(candidates) == 0 {
		return []domain.ProductRecommendation{}
	}
	avg := total / int64(len(candidates))

	recs := make([]domain.ProductRecommendation, 0, len(candidates))
	for _, p := range candidates {
		recs = append(recs, scoreOne(p, avg, intent, profile))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Name < recs[j].Name
	})
	return recs
}

func scoreOne(p *domain.Product, avgPrice int64, intent domain.Intent, profile *domain.UserProfile) domain.ProductRecommendation {
	nameCategory := textnorm.Fold(p.Name + " " + p.Metadata.Category + " " + p.Metadata.Audience)
	text := textnorm.Fold(p.Name + " " + p.Description + " " + strings.Join(p.Metadata.Tags, " "))

	score := baseScore
	var relMatch bool
	if terms, ok := relationshipTerms[profile.Relationship]; ok && textnorm.ContainsAny(nameCategory, terms) {
		score += relationshipBonus
		relMatch = true
	}

	var matchedInterests []string
	for _, interest := range profile.Interests.Items {
		if matchesInterest(text, interest) {
			score += interestBonus
			matchedInterests = append(matchedInterests, interest)
		}
	}

	price := p.UnitPrice()
	priceMatch := false
	switch profile.PriceSensitivity {
	case domain.PriceBudget:
		priceMatch = price <= avgPrice
	case domain.PricePremium:
		priceMatch = price >= avgPrice
	}
	if priceMatch {
		score += priceBonus
	}

	// Round to avoid float noise in ordering and comparisons.
	score = float64(int(score*100+0.5)) / 100

	rec := domain.ProductRecommendation{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Score:     score,
		Priority:  priority(score),
	}
	if p.DiscountedPrice > 0 && p.DiscountedPrice < p.Price {
		rec.DiscountedPrice = p.DiscountedPrice
	}

	// The reason names the signal that added the most to the score. Ties go
	// to relationship, then interests, then price.
	var best float64
	if relMatch {
		best = relationshipBonus
		rec.Reason = relationshipReasons[profile.Relationship]
	}
	if gain := interestBonus * float64(len(matchedInterests)); gain > 0 && outweighs(gain, best) {
		best = gain
		rec.Reason = fmt.Sprintf("Idéal si vous aimez : %s", strings.Join(matchedInterests, ", "))
	}
	if priceMatch && outweighs(priceBonus, best) {
		if profile.PriceSensitivity == domain.PriceBudget {
			rec.Reason = "Un excellent rapport qualité-prix"
		} else {
			rec.Reason = "Notre édition la plus complète"
		}
	}
	if rec.Reason == "" {
		if intent == domain.IntentObjection || intent == domain.IntentHesitation {
			rec.Reason = "Une autre façon de découvrir nos jeux"
		} else {
			rec.Reason = "Un favori de nos clients"
		}
	}
	return rec
}

// outweighs reports whether a beats b by more than float noise.
func outweighs(a, b float64) bool {
	return a-b > 1e-9
}

func matchesInterest(text, interest string) bool {
	folded := textnorm.Fold(interest)
	if folded == "" {
		return false
	}
	if textnorm.ContainsPhrase(text, folded) {
		return true
	}
	stem := folded
	if len(stem) > 6 {
		stem = stem[:6]
	}
	return textnorm.HasStem(text, stem)
}

func priority(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "medium"
	default:
		return "low"
	}
}
