package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/costing/domain"
	recipedomain "github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) RefreshRecipeCache(ctx context.Context, recipeID snowflake.ID) ([]recipedomain.Ingredient, error) {
	var ingredients []recipedomain.Ingredient
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.recipeRepo.FindByID(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		if recipe == nil {
			return domain.ErrRecipeNotFound
		}

		ingredients, err = s.recipeRepo.ListIngredients(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		materials, err := s.loadMaterials(ctx, tx, ingredients)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for i := range ingredients {
			ing := &ingredients[i]
			perYield, _, err := s.units.ToCanonical(ing.Quantity, ing.Unit)
			if err != nil {
				return err
			}
			gross := perYield.Mul(ing.WastageFactor())
			unitCost := materials[ing.MaterialID].UnitPrice
			if err := s.recipeRepo.UpdateIngredientCache(ctx, tx, ing.ID, gross, unitCost, now); err != nil {
				return fmt.Errorf("update ingredient %s: %w", ing.ID, err)
			}
			ing.GrossQuantity = decimal.NewNullDecimal(gross)
			ing.UnitCost = decimal.NewNullDecimal(unitCost)
			ing.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recipe cache refreshed",
		zap.String("recipe_id", recipeID.String()),
		zap.Int("ingredients", len(ingredients)),
	)
	return ingredients, nil
}
