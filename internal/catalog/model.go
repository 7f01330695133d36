package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// NUMERIC in Postgres; never a float.
	Price      decimal.Decimal `json:"price"`
	CategoryID int64           `json:"category_id"`
	ImageURL   string          `json:"image_url,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Offer is a time-windowed percentage discount on specific items and/or whole categories.
type Offer struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ItemIDs         []int64         `json:"item_ids"`
	CategoryIDs     []int64         `json:"category_ids"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	IsActive        bool            `json:"is_active"`
	ImageURL        string          `json:"image_url,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// ActiveAt reports whether the offer applies at t. Both window ends are inclusive.
func (o Offer) ActiveAt(t time.Time) bool {
	return o.IsActive && !t.Before(o.StartDate) && !t.After(o.EndDate)
}

// AppliesTo reports whether the offer is linked to the item, directly or through its category.
func (o Offer) AppliesTo(it Item) bool {
	for _, id := range o.ItemIDs {
		if id == it.ID {
			return true
		}
	}
	for _, id := range o.CategoryIDs {
		if id == it.CategoryID {
			return true
		}
	}
	return false
}

func (o Offer) Validate() error {
	if o.Title == "" {
		return ErrInvalidOffer
	}
	if o.DiscountPercent.IsNegative() || o.DiscountPercent.GreaterThan(hundred) {
		return ErrInvalidOffer
	}
	if o.EndDate.Before(o.StartDate) {
		return ErrInvalidOffer
	}
	return nil
}

func (it Item) Validate() error {
	if it.Name == "" || it.CategoryID == 0 || it.Price.IsNegative() {
		return ErrInvalidItem
	}
	return nil
}
