package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, recipe *domain.Recipe, ingredients []domain.Ingredient) error {
	if err := db.WithContext(ctx).Create(recipe).Error; err != nil {
		return err
	}
	if len(ingredients) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&ingredients).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Recipe, error) {
	var rec domain.Recipe
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, name, yield_unit, active, created_at, updated_at
		 FROM recipes WHERE id = ?`,
		id,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) FindActiveByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]domain.Recipe, error) {
	var rows []domain.Recipe
	err := db.WithContext(ctx).
		Where("product_id = ? AND active = ?", productID, true).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) ListIngredients(ctx context.Context, db *gorm.DB, recipeID snowflake.ID) ([]domain.Ingredient, error) {
	var rows []domain.Ingredient
	err := db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) UpdateIngredientCache(ctx context.Context, db *gorm.DB, id snowflake.ID, gross decimal.Decimal, unitCost decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recipe_ingredients SET gross_quantity = ?, unit_cost = ?, updated_at = ? WHERE id = ?`,
		gross, unitCost, now, id,
	).Error
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, productID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recipes SET active = ?, updated_at = ? WHERE product_id = ? AND active = ?`,
		false, now, productID, true,
	).Error
}
