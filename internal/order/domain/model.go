package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPrepared  Status = "prepared"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusPrepared, StatusCancelled},
}

// CanTransition reports whether an order may move from s to to.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, bool) {
	switch st := Status(raw); st {
	case StatusPending, StatusApproved, StatusPrepared, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Order is a customer order. Date drives price resolution. StockConsumedAt is
// the deduction marker and is set once, together with the stock decrements.
type Order struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	Number          string          `json:"number" gorm:"size:64;not null;uniqueIndex:ux_orders_number"`
	Date            time.Time       `json:"date" gorm:"not null;index:idx_orders_date"`
	Status          Status          `json:"status" gorm:"type:text;not null"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:numeric(18,2);not null;default:0"`
	TaxAmount       decimal.Decimal `json:"tax_amount" gorm:"type:numeric(18,2);not null;default:0"`
	Total           decimal.Decimal `json:"total" gorm:"type:numeric(18,2);not null;default:0"`
	Note            string          `json:"note" gorm:"type:text"`
	StockConsumedAt *time.Time      `json:"stock_consumed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

func (o Order) StockConsumed() bool {
	return o.StockConsumedAt != nil
}

type Line struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderID   snowflake.ID    `json:"order_id" gorm:"not null;index:idx_order_lines_order"`
	ProductID snowflake.ID    `json:"product_id" gorm:"not null"`
	Quantity  decimal.Decimal `json:"quantity" gorm:"type:numeric(20,6);not null"`
	Unit      unit.Unit       `json:"unit" gorm:"type:text;not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(18,4);not null;default:0"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:numeric(18,2);not null;default:0"`
	TaxRate   decimal.Decimal `json:"tax_rate" gorm:"type:numeric(6,4);not null;default:0"`
	TaxAmount decimal.Decimal `json:"tax_amount" gorm:"type:numeric(18,2);not null;default:0"`
	Total     decimal.Decimal `json:"total" gorm:"type:numeric(18,2);not null;default:0"`
	Priced    bool            `json:"priced" gorm:"not null;default:false"`
	PriceID   *snowflake.ID   `json:"price_id,omitempty"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"not null"`
}

func (Line) TableName() string { return "order_lines" }

// Apply copies computed amounts onto the line.
func (l *Line) Apply(a pricedomain.LineAmounts) {
	l.UnitPrice = a.UnitPrice
	l.Subtotal = a.Subtotal
	l.TaxRate = a.TaxRate
	l.TaxAmount = a.TaxAmount
	l.Total = a.Total
	l.Priced = a.Priced
	l.PriceID = nil
	if a.PriceID != 0 {
		id := a.PriceID
		l.PriceID = &id
	}
}

// Totals sums already rounded line amounts.
func Totals(lines []Line) (subtotal, tax, total decimal.Decimal) {
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal)
		tax = tax.Add(l.TaxAmount)
		total = total.Add(l.Total)
	}
	return subtotal, tax, total
}
