package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
	"gorm.io/gorm"
)

// Resolver answers which price was in effect for a product on a given day.
type Resolver interface {
	ResolvePrice(ctx context.Context, productID snowflake.ID, u unit.Unit, asOf time.Time) (Resolution, error)
	ResolvePriceTx(ctx context.Context, tx *gorm.DB, productID snowflake.ID, u unit.Unit, asOf time.Time) (Resolution, error)
	ComputeLineAmounts(ctx context.Context, productID snowflake.ID, qty decimal.Decimal, u unit.Unit, date time.Time) (LineAmounts, error)
	// ComputeLineAmountsTx is ComputeLineAmounts reading through tx.
	ComputeLineAmountsTx(ctx context.Context, tx *gorm.DB, productID snowflake.ID, qty decimal.Decimal, u unit.Unit, date time.Time) (LineAmounts, error)
}

// Service administers price rows.
type Service interface {
	Resolver
	Create(ctx context.Context, req CreateRequest) (*Price, error)
	History(ctx context.Context, productID snowflake.ID, u unit.Unit) ([]Price, error)
	ValidateWindows(ctx context.Context, productID snowflake.ID, u unit.Unit) ([]WindowIssue, error)
}

// CreateRequest appends a price. When CloseOpen is set, a currently open
// window for the same product and unit is closed the day before ValidFrom.
type CreateRequest struct {
	ProductID snowflake.ID    `json:"product_id"`
	Unit      string          `json:"unit"`
	Amount    decimal.Decimal `json:"amount"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   *time.Time      `json:"valid_to"`
	CloseOpen bool            `json:"close_open"`
}

var (
	ErrInvalidAmount = apperror.New(apperror.KindValidation, "invalid_price_amount")
	ErrInvalidWindow = apperror.New(apperror.KindValidation, "invalid_price_window")
	ErrOverlap       = apperror.New(apperror.KindConflict, "price_window_overlap")
	ErrNotCanonical  = apperror.New(apperror.KindValidation, "price_unit_not_canonical")
)
