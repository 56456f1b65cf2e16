package domain

import (
	"fmt"
	"time"
)

// ProductMetadata carries the free-form attributes stored alongside a product.
type ProductMetadata struct {
	Category string   `json:"category,omitempty"`
	Audience string   `json:"audience,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Rules    string   `json:"rules,omitempty"`
	Players  string   `json:"players,omitempty"`
}

// Product is a catalog record. Prices are in the store's local currency.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           int64           `json:"price"`
	DiscountedPrice int64           `json:"discounted_price,omitempty"`
	StockQuantity   int             `json:"stock_quantity"`
	Active          bool            `json:"active"`
	Images          []string        `json:"images,omitempty"`
	Metadata        ProductMetadata `json:"metadata"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// InStock returns true if at least one unit is available.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// CheckStock returns ErrOutOfStock when fewer than qty units remain.
func (p *Product) CheckStock(qty int) error {
	if qty < 1 {
		qty = 1
	}
	if p.StockQuantity < qty {
		return fmt.Errorf("%w: %s has %d left", ErrOutOfStock, p.ID, p.StockQuantity)
	}
	return nil
}

// UnitPrice returns the effective selling price.
func (p *Product) UnitPrice() int64 {
	if p.DiscountedPrice > 0 && p.DiscountedPrice < p.Price {
		return p.DiscountedPrice
	}
	return p.Price
}

// Testimonial is a customer review attached to a product.
type Testimonial struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Author    string    `json:"author"`
	Location  string    `json:"location,omitempty"`
	Rating    int       `json:"rating"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeEntry is a single FAQ item used by the rule-based answer path.
type KnowledgeEntry struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
	Priority int      `json:"priority"`
}

// ProductRecommendation is a scored cross-sell suggestion. It is computed per
// response and never persisted.
type ProductRecommendation struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	Price           int64   `json:"price"`
	DiscountedPrice int64   `json:"discountedPrice,omitempty"`
	Reason          string  `json:"reason"`
	Priority        string  `json:"priority"`
	Score           float64 `json:"score"`
}
