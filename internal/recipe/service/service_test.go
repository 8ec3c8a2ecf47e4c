package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/dbtest"
	materialrepo "github.com/smallbiznis/bakehouse/internal/material/repository"
	productrepo "github.com/smallbiznis/bakehouse/internal/product/repository"
	"github.com/smallbiznis/bakehouse/internal/recipe/domain"
	"github.com/smallbiznis/bakehouse/internal/recipe/repository"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *dbtest.Fixtures) {
	t.Helper()
	conn := dbtest.Open(t)
	svc := New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        dbtest.Node(t),
		Clock:        clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		Repo:         repository.Provide(),
		ProductRepo:  productrepo.Provide(),
		MaterialRepo: materialrepo.Provide(),
		Units:        unit.NewConverter(unit.DefaultPieceWeightKg, zap.NewNop()),
	})
	return svc, dbtest.NewFixtures(t, conn)
}

func TestCreateCachesGrossQuantity(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	product := fx.Product("meringue", unit.KG, "0")
	sugar := fx.Material("sugar", unit.KG, "100", "20")

	detail, err := svc.Create(ctx, domain.CreateRequest{
		ProductID: product.ID,
		Name:      "Meringue",
		YieldUnit: "kg",
		Ingredients: []domain.IngredientRequest{
			{MaterialID: sugar.ID, Quantity: dbtest.Dec("500"), Unit: "GRAM", Fire1: dbtest.Dec("0.05")},
		},
	})
	require.NoError(t, err)
	require.Len(t, detail.Ingredients, 1)
	assert.Equal(t, unit.KG, detail.Recipe.YieldUnit)

	ing := detail.Ingredients[0]
	require.True(t, ing.GrossQuantity.Valid)
	assert.True(t, ing.GrossQuantity.Decimal.Equal(dbtest.Dec("0.525")), ing.GrossQuantity.Decimal.String())
	assert.False(t, ing.UnitCost.Valid)

	stored, err := svc.Get(ctx, detail.Recipe.ID)
	require.NoError(t, err)
	require.Len(t, stored.Ingredients, 1)
	assert.Equal(t, sugar.ID, stored.Ingredients[0].MaterialID)
}

func TestCreateRejectsSecondActiveRecipe(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	product := fx.Product("tart", unit.KG, "0")
	flour := fx.Material("flour", unit.KG, "100", "10")

	req := domain.CreateRequest{
		ProductID:   product.ID,
		Name:        "Tart",
		YieldUnit:   "KG",
		Ingredients: []domain.IngredientRequest{{MaterialID: flour.ID, Quantity: dbtest.Dec("0.6"), Unit: "KG"}},
	}
	first, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrActiveRecipeExists)

	req.Replace = true
	second, err := svc.Create(ctx, req)
	require.NoError(t, err)

	old, err := svc.Get(ctx, first.Recipe.ID)
	require.NoError(t, err)
	assert.False(t, old.Recipe.Active)
	assert.True(t, second.Recipe.Active)
}

func TestCreateValidation(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	product := fx.Product("syrup", unit.Litre, "0")
	sugar := fx.Material("sugar", unit.KG, "100", "20")

	base := func(in domain.IngredientRequest) domain.CreateRequest {
		return domain.CreateRequest{
			ProductID:   product.ID,
			Name:        "Syrup",
			YieldUnit:   "L",
			Ingredients: []domain.IngredientRequest{in},
		}
	}

	_, err := svc.Create(ctx, domain.CreateRequest{ProductID: product.ID, Name: "Syrup", YieldUnit: "L"})
	assert.ErrorIs(t, err, domain.ErrNoIngredients)

	_, err = svc.Create(ctx, base(domain.IngredientRequest{MaterialID: sugar.ID, Quantity: dbtest.Dec("1"), Unit: "KG", Fire1: dbtest.Dec("1")}))
	assert.ErrorIs(t, err, domain.ErrInvalidFire)

	_, err = svc.Create(ctx, base(domain.IngredientRequest{MaterialID: sugar.ID, Quantity: dbtest.Dec("1"), Unit: "KG", Fire2: dbtest.Dec("-0.1")}))
	assert.ErrorIs(t, err, domain.ErrInvalidFire)

	_, err = svc.Create(ctx, base(domain.IngredientRequest{MaterialID: sugar.ID, Quantity: decimal.Zero, Unit: "KG"}))
	assert.ErrorIs(t, err, unit.ErrInvalidQuantity)

	_, err = svc.Create(ctx, base(domain.IngredientRequest{MaterialID: sugar.ID, Quantity: dbtest.Dec("1"), Unit: "ML"}))
	assert.ErrorIs(t, err, unit.ErrIncompatibleUnits)

	_, err = svc.Create(ctx, base(domain.IngredientRequest{MaterialID: 999, Quantity: dbtest.Dec("1"), Unit: "KG"}))
	assert.ErrorIs(t, err, domain.ErrMaterialNotFound)

	req := base(domain.IngredientRequest{MaterialID: sugar.ID, Quantity: dbtest.Dec("1"), Unit: "KG"})
	req.ProductID = 999
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestWastageFactorCompounds(t *testing.T) {
	ing := domain.Ingredient{Fire1: dbtest.Dec("0.1"), Fire2: dbtest.Dec("0.2")}
	assert.True(t, ing.WastageFactor().Equal(dbtest.Dec("1.32")))
}
