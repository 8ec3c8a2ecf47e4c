package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"gorm.io/datatypes"
)

// Material is an ingredient or semi-finished good held in stock.
// StockQuantity and MinimumStock are expressed in Unit, which is canonical.
type Material struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	Code          string            `json:"code" gorm:"size:64;not null;uniqueIndex:ux_materials_code"`
	Name          string            `json:"name" gorm:"type:text;not null"`
	Unit          unit.Unit         `json:"unit" gorm:"type:text;not null"`
	StockQuantity decimal.Decimal   `json:"stock_quantity" gorm:"type:numeric(20,6);not null;default:0;check:chk_materials_stock_non_negative,stock_quantity >= 0"`
	UnitPrice     decimal.Decimal   `json:"unit_price" gorm:"type:numeric(18,4);not null;default:0"`
	MinimumStock  decimal.Decimal   `json:"minimum_stock" gorm:"type:numeric(20,6);not null;default:0"`
	Active        bool              `json:"active" gorm:"not null;default:true"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null"`
}

func (Material) TableName() string { return "materials" }

// IsLow reports whether stock sits at or below a configured minimum.
func (m Material) IsLow() bool {
	return m.MinimumStock.IsPositive() && m.StockQuantity.LessThanOrEqual(m.MinimumStock)
}

const (
	ReasonOpeningBalance   = "opening_balance"
	ReasonOrderConsumption = "order_consumption"
)

// StockMovement records one change of a material's stock. Quantity is
// negative for consumption.
type StockMovement struct {
	ID           snowflake.ID      `json:"id" gorm:"primaryKey"`
	MaterialID   snowflake.ID      `json:"material_id" gorm:"not null;index:idx_stock_movements_material,priority:1"`
	OrderID      *snowflake.ID     `json:"order_id,omitempty" gorm:"index:idx_stock_movements_order"`
	Quantity     decimal.Decimal   `json:"quantity" gorm:"type:numeric(20,6);not null"`
	BalanceAfter decimal.Decimal   `json:"balance_after" gorm:"type:numeric(20,6);not null"`
	Reason       string            `json:"reason" gorm:"type:text;not null"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null;index:idx_stock_movements_material,priority:2"`
}

func (StockMovement) TableName() string { return "stock_movements" }
