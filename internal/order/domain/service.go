package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Detail, error)
	Get(ctx context.Context, id snowflake.ID) (*Detail, error)
	// Transition moves the order along its lifecycle. Entering prepared
	// consumes stock in the same transaction.
	Transition(ctx context.Context, id snowflake.ID, to Status) (*Detail, error)
	// Reprice prices every line at the order date and recomputes totals.
	Reprice(ctx context.Context, id snowflake.ID) (*Detail, error)
}

type CreateRequest struct {
	Number string        `json:"number"`
	Date   time.Time     `json:"date"`
	Note   string        `json:"note"`
	Lines  []LineRequest `json:"lines"`
}

type LineRequest struct {
	ProductID snowflake.ID    `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
}

type Detail struct {
	Order Order  `json:"order"`
	Lines []Line `json:"lines"`
}

var (
	ErrInvalidNumber     = apperror.New(apperror.KindValidation, "invalid_order_number")
	ErrInvalidDate       = apperror.New(apperror.KindValidation, "invalid_order_date")
	ErrNoLines           = apperror.New(apperror.KindValidation, "order_without_lines")
	ErrInvalidStatus     = apperror.New(apperror.KindValidation, "invalid_order_status")
	ErrInvalidTransition = apperror.New(apperror.KindConflict, "invalid_order_transition")
	ErrStatusChanged     = apperror.New(apperror.KindConflict, "order_status_changed")
	ErrDuplicate         = apperror.New(apperror.KindConflict, "order_exists")
	ErrNotFound          = apperror.New(apperror.KindNotFound, "order_not_found")
)
