package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
)

// Price is the amount charged per canonical Unit of a product during
// [ValidFrom, ValidTo]. A nil ValidTo leaves the window open. Both bounds are
// calendar days in UTC and inclusive.
type Price struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProductID snowflake.ID    `json:"product_id" gorm:"not null;index:idx_prices_lookup,priority:1"`
	Unit      unit.Unit       `json:"unit" gorm:"size:16;not null;index:idx_prices_lookup,priority:2"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(18,4);not null"`
	ValidFrom time.Time       `json:"valid_from" gorm:"not null;index:idx_prices_lookup,priority:3"`
	ValidTo   *time.Time      `json:"valid_to,omitempty"`
	Active    bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"not null"`
}

func (Price) TableName() string { return "prices" }

// Covers reports whether day falls inside the price window.
func (p Price) Covers(day time.Time) bool {
	if day.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || !day.After(*p.ValidTo)
}

// Resolution is the outcome of a price lookup. Priced is false when no
// price was in effect, in which case Amount is zero and PriceID is unset.
type Resolution struct {
	Amount  decimal.Decimal `json:"amount"`
	Unit    unit.Unit       `json:"unit"`
	AsOf    time.Time       `json:"as_of"`
	Priced  bool            `json:"priced"`
	PriceID snowflake.ID    `json:"price_id,omitempty"`
}

// LineAmounts are the monetary fields of one priced order line. UnitPrice
// carries 4 decimal places, every other amount 2.
type LineAmounts struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
	Priced    bool            `json:"priced"`
	PriceID   snowflake.ID    `json:"price_id,omitempty"`
}

// WindowIssue describes price rows whose windows break the one-price-per-day rule.
type WindowIssue struct {
	Kind    string       `json:"kind"`
	PriceID snowflake.ID `json:"price_id"`
	OtherID snowflake.ID `json:"other_id,omitempty"`
	Detail  string       `json:"detail"`
}

const (
	IssueOverlap       = "overlap"
	IssueMultipleOpen  = "multiple_open"
	IssueInvertedRange = "inverted_range"
)

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
