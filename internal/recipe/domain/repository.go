package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, recipe *Recipe, ingredients []Ingredient) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Recipe, error)
	// FindActiveByProduct returns active recipes ordered by id.
	FindActiveByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]Recipe, error)
	ListIngredients(ctx context.Context, db *gorm.DB, recipeID snowflake.ID) ([]Ingredient, error)
	UpdateIngredientCache(ctx context.Context, db *gorm.DB, id snowflake.ID, gross decimal.Decimal, unitCost decimal.Decimal, now time.Time) error
	Deactivate(ctx context.Context, db *gorm.DB, productID snowflake.ID, now time.Time) error
}
