package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Detail, error)
	Get(ctx context.Context, id snowflake.ID) (*Detail, error)
}

type CreateRequest struct {
	ProductID   snowflake.ID        `json:"product_id"`
	Name        string              `json:"name"`
	YieldUnit   string              `json:"yield_unit"`
	Ingredients []IngredientRequest `json:"ingredients"`
	// Replace deactivates the product's current recipes.
	Replace bool `json:"replace"`
}

type IngredientRequest struct {
	MaterialID snowflake.ID     `json:"material_id"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Unit       string           `json:"unit"`
	Fire1      decimal.Decimal  `json:"fire1"`
	Fire2      decimal.Decimal  `json:"fire2"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
}

type Detail struct {
	Recipe      Recipe       `json:"recipe"`
	Ingredients []Ingredient `json:"ingredients"`
}

var (
	ErrInvalidName        = apperror.New(apperror.KindValidation, "invalid_recipe_name")
	ErrNoIngredients      = apperror.New(apperror.KindValidation, "recipe_without_ingredients")
	ErrInvalidFire        = apperror.New(apperror.KindValidation, "invalid_wastage_fraction")
	ErrInvalidIngredient  = apperror.New(apperror.KindValidation, "invalid_ingredient")
	ErrProductNotFound    = apperror.New(apperror.KindNotFound, "product_not_found")
	ErrMaterialNotFound   = apperror.New(apperror.KindNotFound, "material_not_found")
	ErrNotFound           = apperror.New(apperror.KindNotFound, "recipe_not_found")
	ErrActiveRecipeExists = apperror.New(apperror.KindConflict, "active_recipe_exists")
)
