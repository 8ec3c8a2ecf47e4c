package domain

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

var (
	ErrOrderNotFound          = apperror.New(apperror.KindNotFound, "order_not_found")
	ErrDuplicateDeduction     = apperror.New(apperror.KindConflict, "duplicate_deduction")
	ErrOrderNotApproved       = apperror.New(apperror.KindConflict, "order_not_approved")
	ErrConcurrentModification = apperror.New(apperror.KindConflict, "concurrent_modification")
	ErrTimeout                = apperror.New(apperror.KindConflict, "stock_consumption_timeout")
	ErrInsufficientStock      = apperror.New(apperror.KindInsufficient, "insufficient_stock")
)

type Shortfall struct {
	MaterialID snowflake.ID    `json:"material_id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Unit       unit.Unit       `json:"unit"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Missing    decimal.Decimal `json:"missing"`
}

// InsufficientStockError lists every material an order is short of.
type InsufficientStockError struct {
	OrderID    snowflake.ID
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s missing %s %s", s.Code, s.Missing.String(), s.Unit))
	}
	return "insufficient_stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) ErrorKind() apperror.Kind {
	return apperror.KindInsufficient
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
