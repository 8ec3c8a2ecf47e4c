package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/costing/domain"
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	"github.com/smallbiznis/bakehouse/internal/observability/tracing"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	recipedomain "github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	ProductRepo  productdomain.Repository
	RecipeRepo   recipedomain.Repository
	MaterialRepo materialdomain.Repository
	Prices       pricedomain.Resolver
	Units        *unit.Converter
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	productRepo  productdomain.Repository
	recipeRepo   recipedomain.Repository
	materialRepo materialdomain.Repository
	prices       pricedomain.Resolver
	units        *unit.Converter
}

func New(p Params) domain.Calculator {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("costing.service"),
		clock:        p.Clock,
		productRepo:  p.ProductRepo,
		recipeRepo:   p.RecipeRepo,
		materialRepo: p.MaterialRepo,
		prices:       p.Prices,
		units:        p.Units,
	}
}

func (s *Service) ComputeRequirements(ctx context.Context, lines []domain.LineInput) (*domain.Requirements, error) {
	return s.ComputeRequirementsTx(ctx, s.db, lines)
}

func (s *Service) ComputeRequirementsTx(ctx context.Context, tx *gorm.DB, lines []domain.LineInput) (out *domain.Requirements, err error) {
	if len(lines) == 0 {
		return nil, domain.ErrNoLines
	}
	for _, line := range lines {
		if err := unit.ValidateQuantity(line.Quantity, line.Unit); err != nil {
			return nil, err
		}
	}

	ctx, span := tracing.Start(ctx, "costing.compute_requirements",
		attribute.Int("costing.lines", len(lines)),
	)
	defer func() { tracing.End(span, err) }()

	b := newBuilder(len(lines))
	for _, line := range lines {
		if err := s.costLine(ctx, tx, line, b); err != nil {
			return nil, err
		}
	}
	return b.result(), nil
}

func (s *Service) costLine(ctx context.Context, tx *gorm.DB, line domain.LineInput, b *builder) error {
	product, err := s.productRepo.FindByID(ctx, tx, line.ProductID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return domain.ErrProductNotFound
	}

	qty, canonical, err := s.units.ToCanonical(line.Quantity, line.Unit)
	if err != nil {
		return err
	}

	recipes, err := s.recipeRepo.FindActiveByProduct(ctx, tx, product.ID)
	if err != nil {
		return fmt.Errorf("load recipe: %w", err)
	}
	if len(recipes) == 0 {
		if canonical != product.SalesUnit.Canonical() {
			return unit.ErrIncompatibleUnits
		}
		return s.costWithoutRecipe(ctx, tx, product, line, qty, canonical, b)
	}
	if len(recipes) > 1 {
		s.log.Warn("multiple active recipes, using lowest id",
			zap.String("product_id", product.ID.String()),
			zap.Int("count", len(recipes)),
		)
	}
	recipe := recipes[0]
	if canonical != recipe.YieldUnit.Canonical() {
		return unit.ErrIncompatibleUnits
	}

	ingredients, err := s.recipeRepo.ListIngredients(ctx, tx, recipe.ID)
	if err != nil {
		return fmt.Errorf("load ingredients: %w", err)
	}
	materials, err := s.loadMaterials(ctx, tx, ingredients)
	if err != nil {
		return err
	}

	lineCost := decimal.Zero
	for _, ing := range ingredients {
		material := materials[ing.MaterialID]
		perYield, ingUnit, err := s.units.ToCanonical(ing.Quantity, ing.Unit)
		if err != nil {
			return err
		}
		if ingUnit != material.Unit {
			return fmt.Errorf("ingredient %s: %w", material.Code, unit.ErrIncompatibleUnits)
		}

		gross := perYield.Mul(qty).Mul(ing.WastageFactor())
		unitCost, ok := ing.CachedUnitCost()
		if !ok {
			unitCost = material.UnitPrice
		}
		cost := gross.Mul(unitCost)
		b.addMaterial(material, gross, cost)
		lineCost = lineCost.Add(cost)
	}

	recipeID := recipe.ID
	b.addLine(domain.LineCost{
		ProductID:         product.ID,
		CanonicalQuantity: qty,
		CanonicalUnit:     canonical,
		Source:            domain.SourceRecipe,
		RecipeID:          &recipeID,
	}, lineCost)
	return nil
}

// costWithoutRecipe uses the product's flat cost, then its sale price on the
// line date. Neither contributes material requirements.
func (s *Service) costWithoutRecipe(ctx context.Context, tx *gorm.DB, product *productdomain.Product, line domain.LineInput, qty decimal.Decimal, canonical unit.Unit, b *builder) error {
	lc := domain.LineCost{
		ProductID:         product.ID,
		CanonicalQuantity: qty,
		CanonicalUnit:     canonical,
		Source:            domain.SourceFallbackCost,
	}
	if product.FallbackUnitCost.IsPositive() {
		b.addLine(lc, product.FallbackUnitCost.Mul(qty))
		return nil
	}

	date := line.Date
	if date.IsZero() {
		date = s.clock.Now()
	}
	res, err := s.prices.ResolvePriceTx(ctx, tx, product.ID, canonical, date)
	if err != nil {
		return err
	}
	lc.Source = domain.SourcePrice
	if !res.Priced {
		lc.Source = domain.SourceNone
	}
	s.log.Warn("product has no recipe or fallback cost, costing at sale price",
		zap.String("product_id", product.ID.String()),
		zap.Bool("priced", res.Priced),
	)
	b.addLine(lc, res.Amount.Mul(qty))
	return nil
}

func (s *Service) loadMaterials(ctx context.Context, tx *gorm.DB, ingredients []recipedomain.Ingredient) (map[snowflake.ID]materialdomain.Material, error) {
	ids := make([]snowflake.ID, 0, len(ingredients))
	for _, ing := range ingredients {
		ids = append(ids, ing.MaterialID)
	}
	rows, err := s.materialRepo.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	byID := make(map[snowflake.ID]materialdomain.Material, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("material %s: %w", id, domain.ErrMaterialNotFound)
		}
	}
	return byID, nil
}

// builder aggregates requirements per material across lines.
type builder struct {
	materials map[snowflake.ID]*domain.Requirement
	costs     map[snowflake.ID]decimal.Decimal
	lines     []domain.LineCost
	total     decimal.Decimal
}

func newBuilder(n int) *builder {
	return &builder{
		materials: make(map[snowflake.ID]*domain.Requirement),
		costs:     make(map[snowflake.ID]decimal.Decimal),
		lines:     make([]domain.LineCost, 0, n),
		total:     decimal.Zero,
	}
}

func (b *builder) addMaterial(m materialdomain.Material, gross, cost decimal.Decimal) {
	req, ok := b.materials[m.ID]
	if !ok {
		req = &domain.Requirement{
			MaterialID: m.ID,
			Code:       m.Code,
			Name:       m.Name,
			Unit:       m.Unit,
			Quantity:   decimal.Zero,
		}
		b.materials[m.ID] = req
		b.costs[m.ID] = decimal.Zero
	}
	req.Quantity = req.Quantity.Add(gross)
	b.costs[m.ID] = b.costs[m.ID].Add(cost)
}

func (b *builder) addLine(lc domain.LineCost, cost decimal.Decimal) {
	lc.Cost = pricedomain.RoundMoney(cost)
	b.lines = append(b.lines, lc)
	b.total = b.total.Add(cost)
}

func (b *builder) result() *domain.Requirements {
	out := &domain.Requirements{
		Materials: make([]domain.Requirement, 0, len(b.materials)),
		Lines:     b.lines,
		TotalCost: pricedomain.RoundMoney(b.total),
	}
	for id, req := range b.materials {
		req.Cost = pricedomain.RoundMoney(b.costs[id])
		out.Materials = append(out.Materials, *req)
	}
	sort.Slice(out.Materials, func(i, j int) bool {
		return out.Materials[i].MaterialID < out.Materials[j].MaterialID
	})
	return out
}
