package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/unit"
)

// Recipe describes how one canonical unit of a product is made.
type Recipe struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID snowflake.ID `json:"product_id" gorm:"not null;index:idx_recipes_product"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	YieldUnit unit.Unit    `json:"yield_unit" gorm:"type:text;not null"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Recipe) TableName() string { return "recipes" }

// Ingredient is one material line of a recipe. Quantity is needed per one
// canonical unit of yield. Fire1 and Fire2 are loss fractions that compound.
// GrossQuantity and UnitCost are caches; a positive UnitCost overrides the
// material's current price when costing.
type Ingredient struct {
	ID            snowflake.ID        `json:"id" gorm:"primaryKey"`
	RecipeID      snowflake.ID        `json:"recipe_id" gorm:"not null;index:idx_recipe_ingredients_recipe"`
	MaterialID    snowflake.ID        `json:"material_id" gorm:"not null"`
	Quantity      decimal.Decimal     `json:"quantity" gorm:"type:numeric(20,6);not null"`
	Unit          unit.Unit           `json:"unit" gorm:"type:text;not null"`
	Fire1         decimal.Decimal     `json:"fire1" gorm:"type:numeric(6,4);not null;default:0"`
	Fire2         decimal.Decimal     `json:"fire2" gorm:"type:numeric(6,4);not null;default:0"`
	GrossQuantity decimal.NullDecimal `json:"gross_quantity" gorm:"type:numeric(20,6)"`
	UnitCost      decimal.NullDecimal `json:"unit_cost" gorm:"type:numeric(18,4)"`
	CreatedAt     time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time           `json:"updated_at" gorm:"not null"`
}

func (Ingredient) TableName() string { return "recipe_ingredients" }

// WastageFactor is (1 + fire1) * (1 + fire2).
func (i Ingredient) WastageFactor() decimal.Decimal {
	one := decimal.NewFromInt(1)
	return one.Add(i.Fire1).Mul(one.Add(i.Fire2))
}

// CachedUnitCost returns the cached cost when it is set and positive.
func (i Ingredient) CachedUnitCost() (decimal.Decimal, bool) {
	if i.UnitCost.Valid && i.UnitCost.Decimal.IsPositive() {
		return i.UnitCost.Decimal, true
	}
	return decimal.Zero, false
}
