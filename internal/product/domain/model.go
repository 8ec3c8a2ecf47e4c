package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"gorm.io/datatypes"
)

// Product is a sellable item. FallbackUnitCost is the cost of one canonical
// unit of the product when it has no active recipe.
type Product struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	Code             string            `json:"code" gorm:"size:64;not null;uniqueIndex:ux_products_code"`
	Name             string            `json:"name" gorm:"type:text;not null"`
	SalesUnit        unit.Unit         `json:"sales_unit" gorm:"type:text;not null"`
	FallbackUnitCost decimal.Decimal   `json:"fallback_unit_cost" gorm:"type:numeric(18,4);not null;default:0"`
	Active           bool              `json:"active" gorm:"not null;default:true"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }
