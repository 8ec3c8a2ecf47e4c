package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
}

type CreateRequest struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	SalesUnit        string          `json:"sales_unit"`
	FallbackUnitCost decimal.Decimal `json:"fallback_unit_cost"`
	Metadata         map[string]any  `json:"metadata"`
}

type Response struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	SalesUnit        string          `json:"sales_unit"`
	FallbackUnitCost decimal.Decimal `json:"fallback_unit_cost"`
	Active           bool            `json:"active"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

var (
	ErrInvalidName = apperror.New(apperror.KindValidation, "invalid_name")
	ErrInvalidCost = apperror.New(apperror.KindValidation, "invalid_fallback_cost")
	ErrInvalidID   = apperror.New(apperror.KindValidation, "invalid_id")
	ErrDuplicate   = apperror.New(apperror.KindConflict, "product_exists")
	ErrNotFound    = apperror.New(apperror.KindNotFound, "product_not_found")
)
