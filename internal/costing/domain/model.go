package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	recipedomain "github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
	"gorm.io/gorm"
)

// Calculator expands order lines into material requirements and cost.
type Calculator interface {
	ComputeRequirements(ctx context.Context, lines []LineInput) (*Requirements, error)
	// ComputeRequirementsTx is ComputeRequirements reading through tx.
	ComputeRequirementsTx(ctx context.Context, tx *gorm.DB, lines []LineInput) (*Requirements, error)
	// RefreshRecipeCache recomputes cached gross quantities and unit costs
	// of a recipe's ingredients from current material prices.
	RefreshRecipeCache(ctx context.Context, recipeID snowflake.ID) ([]recipedomain.Ingredient, error)
}

type LineInput struct {
	ProductID snowflake.ID    `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      unit.Unit       `json:"unit"`
	// Date is used when the cost falls back to the sale price.
	Date time.Time `json:"date"`
}

// Requirement is the aggregated gross need for one material, in its
// canonical unit.
type Requirement struct {
	MaterialID snowflake.ID    `json:"material_id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Unit       unit.Unit       `json:"unit"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
}

type CostSource string

const (
	SourceRecipe       CostSource = "recipe"
	SourceFallbackCost CostSource = "fallback_cost"
	SourcePrice        CostSource = "price"
	// SourceNone means neither a cost nor a sale price was available.
	SourceNone CostSource = "none"
)

type LineCost struct {
	ProductID         snowflake.ID    `json:"product_id"`
	CanonicalQuantity decimal.Decimal `json:"canonical_quantity"`
	CanonicalUnit     unit.Unit       `json:"canonical_unit"`
	Source            CostSource      `json:"source"`
	RecipeID          *snowflake.ID   `json:"recipe_id,omitempty"`
	Cost              decimal.Decimal `json:"cost"`
}

type Requirements struct {
	// Materials is sorted by material id.
	Materials []Requirement   `json:"materials"`
	Lines     []LineCost      `json:"lines"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// MaterialIDs lists the required materials in ascending id order.
func (r *Requirements) MaterialIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(r.Materials))
	for _, m := range r.Materials {
		ids = append(ids, m.MaterialID)
	}
	return ids
}

var (
	ErrNoLines          = apperror.New(apperror.KindValidation, "no_lines")
	ErrProductNotFound  = apperror.New(apperror.KindNotFound, "product_not_found")
	ErrRecipeNotFound   = apperror.New(apperror.KindNotFound, "recipe_not_found")
	ErrMaterialNotFound = apperror.New(apperror.KindNotFound, "material_not_found")
)
