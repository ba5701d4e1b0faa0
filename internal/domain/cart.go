package domain

import (
	"strings"
	"time"
)

// CartLine is one vehicle in the cart. Quantity is always 1 in this store.
type CartLine struct {
	ProductRef        string   `json:"productRef"`
	SelectedColor     string   `json:"selectedColor,omitempty"`
	SelectedOptions   []string `json:"selectedOptions,omitempty"`
	Quantity          int      `json:"quantity"`
	UnitPrice         int64    `json:"unitPrice"`
	OriginalUnitPrice *int64   `json:"originalUnitPrice,omitempty"`
}

// BasePrice is the undiscounted price promotions are applied to.
func (l CartLine) BasePrice() int64 {
	if l.OriginalUnitPrice != nil {
		return *l.OriginalUnitPrice
	}
	return l.UnitPrice
}

func (l CartLine) Validate() error {
	if strings.TrimSpace(l.ProductRef) == "" {
		return NewValidationError("productRef", "product is required")
	}
	if l.Quantity != 1 {
		return NewValidationError("quantity", "quantity must be 1")
	}
	if l.UnitPrice < 0 {
		return NewValidationError("unitPrice", "unit price must not be negative")
	}
	if l.OriginalUnitPrice != nil && l.UnitPrice > *l.OriginalUnitPrice {
		return NewValidationError("unitPrice", "unit price exceeds original price")
	}
	return nil
}

type Promotion struct {
	ID              uint64    `json:"id"`
	AppliesTo       []string  `json:"appliesToProductRefs"`
	DiscountPercent int       `json:"discountPercent"`
	IsActive        bool      `json:"isActive"`
	ExpiresAt       time.Time `json:"expiry"`
}

// AppliesAt reports whether the promotion discounts productRef at time now.
// A zero ExpiresAt never expires.
func (p Promotion) AppliesAt(productRef string, now time.Time) bool {
	if !p.IsActive || p.DiscountPercent <= 0 || p.DiscountPercent > 100 {
		return false
	}
	if !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt) {
		return false
	}
	for _, ref := range p.AppliesTo {
		if ref == productRef {
			return true
		}
	}
	return false
}

type Showroom struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}
