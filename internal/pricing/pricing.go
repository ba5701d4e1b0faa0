// Package pricing turns cart lines and a promotion snapshot into the amounts
// shown at every checkout step. Nothing here performs I/O; the same inputs
// always produce the same quote.
package pricing

import (
	"time"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Policy holds the values that are business decisions rather than arithmetic.
type Policy struct {
	VATRate     decimal.Decimal
	ShippingFee int64
}

var DefaultPolicy = Policy{
	VATRate:     decimal.RequireFromString("0.10"),
	ShippingFee: 0,
}

var hundred = decimal.NewFromInt(100)

type LinePrice struct {
	ProductRef        string `json:"productRef"`
	UnitPrice         int64  `json:"unitPrice"`
	OriginalUnitPrice int64  `json:"originalUnitPrice"`
	DiscountPercent   int    `json:"discountPercent"`
	PromotionID       uint64 `json:"promotionId,omitempty"`
	// VAT is this line's share, for display only. Quote.VAT is authoritative.
	VAT         int64 `json:"vat"`
	ShippingFee int64 `json:"shippingFee"`
}

type Quote struct {
	Lines            []LinePrice `json:"lines"`
	OriginalSubtotal int64       `json:"originalSubtotal"`
	Discount         int64       `json:"discount"`
	Subtotal         int64       `json:"subtotal"`
	VAT              int64       `json:"vat"`
	ShippingFee      int64       `json:"shippingFee"`
	Total            int64       `json:"total"`
}

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

func (e *Engine) PriceLine(line domain.CartLine, promos []domain.Promotion, now time.Time) LinePrice {
	base := line.BasePrice()
	best, ok := BestPromotion(line.ProductRef, promos, now)

	lp := LinePrice{
		ProductRef:        line.ProductRef,
		UnitPrice:         base,
		OriginalUnitPrice: base,
		ShippingFee:       e.policy.ShippingFee,
	}
	if ok {
		lp.DiscountPercent = best.DiscountPercent
		lp.PromotionID = best.ID
		lp.UnitPrice = applyDiscount(base, best.DiscountPercent)
	}
	lp.VAT = Round(decimal.NewFromInt(lp.UnitPrice * int64(quantity(line))).Mul(e.policy.VATRate))
	return lp
}

// Quote prices every line and computes VAT once on the discounted subtotal so
// per-line rounding never accumulates.
func (e *Engine) Quote(lines []domain.CartLine, promos []domain.Promotion, now time.Time) Quote {
	q := Quote{Lines: make([]LinePrice, 0, len(lines))}
	for _, line := range lines {
		lp := e.PriceLine(line, promos, now)
		qty := int64(quantity(line))
		q.Lines = append(q.Lines, lp)
		q.OriginalSubtotal += lp.OriginalUnitPrice * qty
		q.Subtotal += lp.UnitPrice * qty
	}
	q.Discount = q.OriginalSubtotal - q.Subtotal
	q.VAT = Round(decimal.NewFromInt(q.Subtotal).Mul(e.policy.VATRate))
	q.ShippingFee = e.policy.ShippingFee
	q.Total = q.Subtotal + q.VAT + q.ShippingFee
	return q
}

// BestPromotion picks the highest discount among promotions that apply to
// productRef at now. Equal discounts resolve to the lowest promotion id.
func BestPromotion(productRef string, promos []domain.Promotion, now time.Time) (domain.Promotion, bool) {
	var best domain.Promotion
	found := false
	for _, p := range promos {
		if !p.AppliesAt(productRef, now) {
			continue
		}
		if !found || p.DiscountPercent > best.DiscountPercent ||
			(p.DiscountPercent == best.DiscountPercent && p.ID < best.ID) {
			best = p
			found = true
		}
	}
	return best, found
}

func applyDiscount(base int64, percent int) int64 {
	factor := hundred.Sub(decimal.NewFromInt(int64(percent))).Div(hundred)
	return Round(decimal.NewFromInt(base).Mul(factor))
}

// Round rounds half up to a whole currency unit. Amounts are never negative.
func Round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func quantity(line domain.CartLine) int {
	if line.Quantity <= 0 {
		return 1
	}
	return line.Quantity
}
