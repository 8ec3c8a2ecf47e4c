package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	costingservice "github.com/smallbiznis/bakehouse/internal/costing/service"
	"github.com/smallbiznis/bakehouse/internal/dbtest"
	materialrepo "github.com/smallbiznis/bakehouse/internal/material/repository"
	"github.com/smallbiznis/bakehouse/internal/order/domain"
	"github.com/smallbiznis/bakehouse/internal/order/repository"
	pricerepo "github.com/smallbiznis/bakehouse/internal/price/repository"
	priceservice "github.com/smallbiznis/bakehouse/internal/price/service"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
	productrepo "github.com/smallbiznis/bakehouse/internal/product/repository"
	reciperepo "github.com/smallbiznis/bakehouse/internal/recipe/repository"
	stockdomain "github.com/smallbiznis/bakehouse/internal/stock/domain"
	stockservice "github.com/smallbiznis/bakehouse/internal/stock/service"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var orderDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (domain.Service, *dbtest.Fixtures) {
	t.Helper()
	svc, _, fx := newTestStack(t)
	return svc, fx
}

func newTestStack(t *testing.T) (domain.Service, stockdomain.Consumer, *dbtest.Fixtures) {
	t.Helper()
	conn := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	policy := config.NewStaticPolicyHolder(config.DefaultCostingPolicy())
	units := unit.NewConverter(policy.Get().PieceWeightKg, zap.NewNop())

	prices := priceservice.New(priceservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk,
		Repo: pricerepo.Provide(), Units: units, Policy: policy,
	})
	calc := costingservice.New(costingservice.Params{
		DB: conn, Log: zap.NewNop(), Clock: clk,
		ProductRepo: productrepo.Provide(), RecipeRepo: reciperepo.Provide(), MaterialRepo: materialrepo.Provide(),
		Prices: prices, Units: units,
	})
	stock := stockservice.New(stockservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk,
		OrderRepo: repository.Provide(), MaterialRepo: materialrepo.Provide(), Calculator: calc,
	})
	svc := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		ProductRepo: productrepo.Provide(),
		Prices:      prices,
		Stock:       stock,
	})
	return svc, stock, dbtest.NewFixtures(t, conn)
}

func TestCreatePricesLinesAtOrderDate(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	cake := fx.Product("cake", unit.KG, "0")
	gift := fx.Product("gift", unit.Piece, "0")
	old := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fx.Price(cake, unit.KG, "80", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), &old)
	fx.Price(cake, unit.KG, "100", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), nil)

	detail, err := svc.Create(ctx, domain.CreateRequest{
		Number: " ORD-1 ",
		Date:   orderDay.Add(15 * time.Hour),
		Lines: []domain.LineRequest{
			{ProductID: cake.ID, Quantity: dbtest.Dec("2.5"), Unit: "kg"},
			{ProductID: gift.ID, Quantity: dbtest.Dec("1"), Unit: "adet"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD-1", detail.Order.Number)
	assert.Equal(t, domain.StatusPending, detail.Order.Status)
	assert.Equal(t, orderDay, detail.Order.Date)
	require.Len(t, detail.Lines, 2)
	assert.True(t, detail.Lines[0].Priced)
	assert.True(t, detail.Lines[0].UnitPrice.Equal(dbtest.Dec("100")))
	assert.True(t, detail.Lines[0].Total.Equal(dbtest.Dec("295")))
	assert.False(t, detail.Lines[1].Priced)
	assert.True(t, detail.Lines[1].Total.IsZero())
	assert.True(t, detail.Order.Subtotal.Equal(dbtest.Dec("250")))
	assert.True(t, detail.Order.TaxAmount.Equal(dbtest.Dec("45")))
	assert.True(t, detail.Order.Total.Equal(dbtest.Dec("295")))

	stored, err := svc.Get(ctx, detail.Order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
}

func TestCreateValidation(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	cake := fx.Product("cake", unit.KG, "0")
	line := domain.LineRequest{ProductID: cake.ID, Quantity: dbtest.Dec("1"), Unit: "KG"}

	_, err := svc.Create(ctx, domain.CreateRequest{Date: orderDay, Lines: []domain.LineRequest{line}})
	assert.ErrorIs(t, err, domain.ErrInvalidNumber)

	_, err = svc.Create(ctx, domain.CreateRequest{Number: "A", Lines: []domain.LineRequest{line}})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = svc.Create(ctx, domain.CreateRequest{Number: "A", Date: orderDay})
	assert.ErrorIs(t, err, domain.ErrNoLines)

	_, err = svc.Create(ctx, domain.CreateRequest{Number: "A", Date: orderDay, Lines: []domain.LineRequest{{ProductID: 999, Quantity: dbtest.Dec("1"), Unit: "KG"}}})
	assert.ErrorIs(t, err, productdomain.ErrNotFound)

	_, err = svc.Create(ctx, domain.CreateRequest{Number: "A", Date: orderDay, Lines: []domain.LineRequest{{ProductID: cake.ID, Quantity: dbtest.Dec("1"), Unit: "crate"}}})
	assert.ErrorIs(t, err, unit.ErrInvalidUnit)

	_, err = svc.Create(ctx, domain.CreateRequest{Number: "A", Date: orderDay, Lines: []domain.LineRequest{line}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Number: "A", Date: orderDay, Lines: []domain.LineRequest{line}})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestTransitionConsumesStockOnlyWhenPrepared(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	flour := fx.Material("flour", unit.KG, "10", "5")
	bread := fx.Product("bread", unit.KG, "0")
	fx.Recipe(bread, unit.KG, dbtest.IngredientSpec{Material: flour, Quantity: "1", Unit: unit.KG})
	order, _ := fx.Order("ORD-1", orderDay, domain.StatusPending,
		dbtest.LineSpec{Product: bread, Quantity: "4", Unit: unit.KG},
	)

	_, err := svc.Transition(ctx, order.ID, domain.StatusPrepared)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	detail, err := svc.Transition(ctx, order.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, detail.Order.Status)
	assert.False(t, detail.Order.StockConsumed())
	assert.True(t, fx.ReloadMaterial(flour.ID).StockQuantity.Equal(dbtest.Dec("10")))

	detail, err = svc.Transition(ctx, order.ID, domain.StatusPrepared)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, detail.Order.Status)
	assert.True(t, detail.Order.StockConsumed())
	assert.True(t, fx.ReloadMaterial(flour.ID).StockQuantity.Equal(dbtest.Dec("6")))

	_, err = svc.Transition(ctx, order.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDirectConsumeFollowsLifecycle(t *testing.T) {
	svc, stock, fx := newTestStack(t)
	ctx := context.Background()
	flour := fx.Material("flour", unit.KG, "10", "5")
	bread := fx.Product("bread", unit.KG, "0")
	fx.Recipe(bread, unit.KG, dbtest.IngredientSpec{Material: flour, Quantity: "1", Unit: unit.KG})
	order, _ := fx.Order("ORD-1", orderDay, domain.StatusPending,
		dbtest.LineSpec{Product: bread, Quantity: "4", Unit: unit.KG},
	)

	_, err := stock.ConsumeStockForOrder(ctx, order.ID)
	assert.ErrorIs(t, err, stockdomain.ErrOrderNotApproved)
	stored, _ := fx.ReloadOrder(order.ID)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.False(t, stored.StockConsumed())

	_, err = svc.Transition(ctx, order.ID, domain.StatusApproved)
	require.NoError(t, err)

	_, err = stock.ConsumeStockForOrder(ctx, order.ID)
	require.NoError(t, err)
	stored, _ = fx.ReloadOrder(order.ID)
	assert.Equal(t, domain.StatusPrepared, stored.Status)
	assert.True(t, stored.StockConsumed())
	assert.True(t, fx.ReloadMaterial(flour.ID).StockQuantity.Equal(dbtest.Dec("6")))

	_, err = svc.Transition(ctx, order.ID, domain.StatusPrepared)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.True(t, fx.ReloadMaterial(flour.ID).StockQuantity.Equal(dbtest.Dec("6")))
}

func TestTransitionToPreparedRollsBackOnShortage(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	flour := fx.Material("flour", unit.KG, "3", "5")
	bread := fx.Product("bread", unit.KG, "0")
	fx.Recipe(bread, unit.KG, dbtest.IngredientSpec{Material: flour, Quantity: "1", Unit: unit.KG})
	order, _ := fx.Order("ORD-1", orderDay, domain.StatusApproved,
		dbtest.LineSpec{Product: bread, Quantity: "4", Unit: unit.KG},
	)

	_, err := svc.Transition(ctx, order.ID, domain.StatusPrepared)
	assert.ErrorIs(t, err, stockdomain.ErrInsufficientStock)

	stored, _ := fx.ReloadOrder(order.ID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.False(t, stored.StockConsumed())
	assert.True(t, fx.ReloadMaterial(flour.ID).StockQuantity.Equal(dbtest.Dec("3")))
}

func TestTransitionErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Transition(ctx, 1, domain.Status("baked"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.Transition(ctx, 1, domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepricePicksUpNewPrices(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	cake := fx.Product("cake", unit.KG, "0")

	created, err := svc.Create(ctx, domain.CreateRequest{
		Number: "ORD-1",
		Date:   orderDay,
		Lines:  []domain.LineRequest{{ProductID: cake.ID, Quantity: dbtest.Dec("2"), Unit: "KG"}},
	})
	require.NoError(t, err)
	assert.False(t, created.Lines[0].Priced)

	fx.Price(cake, unit.KG, "50", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	detail, err := svc.Reprice(ctx, created.Order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
	assert.True(t, detail.Lines[0].Priced)
	assert.NotNil(t, detail.Lines[0].PriceID)
	assert.True(t, detail.Order.Subtotal.Equal(dbtest.Dec("100")))
	assert.True(t, detail.Order.Total.Equal(dbtest.Dec("118")))
}

func TestRepriceKeepsLinesWithoutPrice(t *testing.T) {
	svc, fx := newTestService(t)
	ctx := context.Background()
	cake := fx.Product("cake", unit.KG, "0")
	bread := fx.Product("bread", unit.KG, "0")
	fx.Price(bread, unit.KG, "50", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	order, _ := fx.Order("ORD-1", orderDay, domain.StatusPending,
		dbtest.LineSpec{Product: cake, Quantity: "2", Unit: unit.KG, UnitPrice: "90"},
		dbtest.LineSpec{Product: bread, Quantity: "2", Unit: unit.KG, UnitPrice: "40"},
	)

	detail, err := svc.Reprice(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 2)

	byProduct := map[snowflake.ID]domain.Line{}
	for _, l := range detail.Lines {
		byProduct[l.ProductID] = l
	}
	kept := byProduct[cake.ID]
	assert.True(t, kept.Priced)
	assert.True(t, kept.UnitPrice.Equal(dbtest.Dec("90")))
	assert.True(t, kept.Total.Equal(dbtest.Dec("180")))
	assert.True(t, byProduct[bread.ID].UnitPrice.Equal(dbtest.Dec("50")))

	assert.True(t, detail.Order.Subtotal.Equal(dbtest.Dec("280")), detail.Order.Subtotal.String())
	assert.True(t, detail.Order.Total.Equal(dbtest.Dec("298")), detail.Order.Total.String())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, domain.StatusPending.CanTransition(domain.StatusApproved))
	assert.True(t, domain.StatusPending.CanTransition(domain.StatusCancelled))
	assert.True(t, domain.StatusApproved.CanTransition(domain.StatusPrepared))
	assert.False(t, domain.StatusPending.CanTransition(domain.StatusPrepared))
	assert.False(t, domain.StatusCancelled.CanTransition(domain.StatusPending))
	assert.False(t, domain.StatusPrepared.CanTransition(domain.StatusApproved))
}
