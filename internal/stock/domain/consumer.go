package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"gorm.io/gorm"
)

// Consumer deducts an order's material requirements from stock exactly once.
type Consumer interface {
	// ConsumeStockForOrder runs ConsumeTx in its own bounded transaction and
	// moves the order from approved to prepared in that same transaction.
	ConsumeStockForOrder(ctx context.Context, orderID snowflake.ID) (*Result, error)
	// ConsumeTx performs the deduction inside tx for an approved order. The
	// caller owns the status change. Any error leaves tx to be rolled back
	// by the caller.
	ConsumeTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*Result, error)
	// ReportLowStock logs materials at or below their minimum. It is meant
	// to run after the consuming transaction commits.
	ReportLowStock(ctx context.Context, materialIDs []snowflake.ID)
}

type Consumption struct {
	MaterialID   snowflake.ID    `json:"material_id"`
	Code         string          `json:"code"`
	Unit         unit.Unit       `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

type Result struct {
	OrderID      snowflake.ID    `json:"order_id"`
	ConsumedAt   time.Time       `json:"consumed_at"`
	Consumptions []Consumption   `json:"consumptions"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// MaterialIDs lists consumed materials in ascending id order.
func (r *Result) MaterialIDs() []snowflake.ID {
	if r == nil {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(r.Consumptions))
	for _, c := range r.Consumptions {
		ids = append(ids, c.MaterialID)
	}
	return ids
}
