package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	"github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	ProductRepo  productdomain.Repository
	MaterialRepo materialdomain.Repository
	Units        *unit.Converter
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	productRepo  productdomain.Repository
	materialRepo materialdomain.Repository
	units        *unit.Converter
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("recipe.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		productRepo:  p.ProductRepo,
		materialRepo: p.MaterialRepo,
		units:        p.Units,
	}
}

var one = decimal.NewFromInt(1)

func validFire(f decimal.Decimal) bool {
	return !f.IsNegative() && f.LessThan(one)
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Detail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	yieldUnit, err := unit.Parse(req.YieldUnit)
	if err != nil {
		return nil, err
	}
	if len(req.Ingredients) == 0 {
		return nil, domain.ErrNoIngredients
	}

	now := s.clock.Now()
	recipe := &domain.Recipe{
		ID:        s.genID.Generate(),
		ProductID: req.ProductID,
		Name:      name,
		YieldUnit: yieldUnit.Canonical(),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var ingredients []domain.Ingredient
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.productRepo.FindByID(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrProductNotFound
		}

		active, err := s.repo.FindActiveByProduct(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			if !req.Replace {
				return domain.ErrActiveRecipeExists
			}
			if err := s.repo.Deactivate(ctx, tx, req.ProductID, now); err != nil {
				return err
			}
		}

		ingredients = make([]domain.Ingredient, 0, len(req.Ingredients))
		for _, in := range req.Ingredients {
			ing, err := s.buildIngredient(ctx, tx, recipe.ID, in, now)
			if err != nil {
				return err
			}
			ingredients = append(ingredients, ing)
		}
		return s.repo.Insert(ctx, tx, recipe, ingredients)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recipe created",
		zap.String("recipe_id", recipe.ID.String()),
		zap.String("product_id", recipe.ProductID.String()),
		zap.Int("ingredients", len(ingredients)),
	)
	return &domain.Detail{Recipe: *recipe, Ingredients: ingredients}, nil
}

func (s *Service) buildIngredient(ctx context.Context, tx *gorm.DB, recipeID snowflake.ID, in domain.IngredientRequest, now time.Time) (domain.Ingredient, error) {
	u, err := unit.Parse(in.Unit)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if err := unit.ValidateQuantity(in.Quantity, u); err != nil {
		return domain.Ingredient{}, err
	}
	if !validFire(in.Fire1) || !validFire(in.Fire2) {
		return domain.Ingredient{}, domain.ErrInvalidFire
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return domain.Ingredient{}, domain.ErrInvalidIngredient
	}

	material, err := s.materialRepo.FindByID(ctx, tx, in.MaterialID)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if material == nil {
		return domain.Ingredient{}, domain.ErrMaterialNotFound
	}
	net, canonical, err := s.units.ToCanonical(in.Quantity, u)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if canonical != material.Unit {
		return domain.Ingredient{}, unit.ErrIncompatibleUnits
	}

	ing := domain.Ingredient{
		ID:         s.genID.Generate(),
		RecipeID:   recipeID,
		MaterialID: in.MaterialID,
		Quantity:   in.Quantity,
		Unit:       u,
		Fire1:      in.Fire1,
		Fire2:      in.Fire2,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ing.GrossQuantity = decimal.NewNullDecimal(net.Mul(ing.WastageFactor()))
	if in.UnitCost != nil {
		ing.UnitCost = decimal.NewNullDecimal(*in.UnitCost)
	}
	return ing, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Detail, error) {
	recipe, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, domain.ErrNotFound
	}
	ingredients, err := s.repo.ListIngredients(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &domain.Detail{Recipe: *recipe, Ingredients: ingredients}, nil
}
