package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListFilter selects orders by id keyset. Zero values match everything.
type ListFilter struct {
	IDs      []snowflake.ID
	From     *time.Time
	To       *time.Time
	Statuses []Status
	AfterID  snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order, lines []Line) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// LockByID selects the order FOR UPDATE.
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	ListLines(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Line, error)
	UpdateLineAmounts(ctx context.Context, db *gorm.DB, line *Line, now time.Time) error
	UpdateTotals(ctx context.Context, db *gorm.DB, orderID snowflake.ID, subtotal, tax, total decimal.Decimal, now time.Time) error
	// UpdateStatus moves the order only while it is still in from.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (bool, error)
	// MarkStockConsumed writes the deduction marker if it is unset and
	// reports whether it did.
	MarkStockConsumed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ListIDs(ctx context.Context, db *gorm.DB, filter ListFilter) ([]snowflake.ID, error)
}
