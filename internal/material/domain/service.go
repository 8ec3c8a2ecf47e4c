package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Material, error)
	Get(ctx context.Context, id snowflake.ID) (*Material, error)
	LowStock(ctx context.Context, limit int) ([]Material, error)
	Movements(ctx context.Context, materialID snowflake.ID, limit int) ([]StockMovement, error)
}

// CreateRequest registers a material. Quantities are given in Unit and
// stored in its canonical unit.
type CreateRequest struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MinimumStock  decimal.Decimal `json:"minimum_stock"`
	Metadata      map[string]any  `json:"metadata"`
}

var (
	ErrInvalidName     = apperror.New(apperror.KindValidation, "invalid_material_name")
	ErrInvalidQuantity = apperror.New(apperror.KindValidation, "invalid_material_quantity")
	ErrInvalidPrice    = apperror.New(apperror.KindValidation, "invalid_material_price")
	ErrDuplicate       = apperror.New(apperror.KindConflict, "material_exists")
	ErrNotFound        = apperror.New(apperror.KindNotFound, "material_not_found")
)
