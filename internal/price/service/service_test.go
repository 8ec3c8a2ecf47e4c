package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	"github.com/smallbiznis/bakehouse/internal/dbtest"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/price/repository"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	policy := config.NewStaticPolicyHolder(config.DefaultCostingPolicy())
	return New(Params{
		DB:     dbtest.Open(t),
		Log:    zap.NewNop(),
		GenID:  dbtest.Node(t),
		Clock:  clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		Repo:   repository.Provide(),
		Units:  unit.NewConverter(policy.Get().PieceWeightKg, zap.NewNop()),
		Policy: policy,
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedScenarioA(t *testing.T, svc *Service, productID snowflake.ID) {
	t.Helper()
	ctx := context.Background()
	end := day(2024, 3, 1)
	_, err := svc.Create(ctx, pricedomain.CreateRequest{
		ProductID: productID, Unit: "KG", Amount: dec("100"),
		ValidFrom: day(2024, 1, 1), ValidTo: &end,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, pricedomain.CreateRequest{
		ProductID: productID, Unit: "KG", Amount: dec("120"),
		ValidFrom: day(2024, 3, 2),
	})
	require.NoError(t, err)
}

func TestResolvePriceHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	productID := snowflake.ID(42)
	seedScenarioA(t, svc, productID)

	res, err := svc.ResolvePrice(ctx, productID, unit.KG, day(2024, 2, 15))
	require.NoError(t, err)
	assert.True(t, res.Priced)
	assert.True(t, res.Amount.Equal(dec("100")), res.Amount.String())

	res, err = svc.ResolvePrice(ctx, productID, unit.KG, time.Date(2024, 4, 1, 17, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("120")), res.Amount.String())
	assert.Equal(t, day(2024, 4, 1), res.AsOf)

	res, err = svc.ResolvePrice(ctx, productID, unit.KG, day(2023, 12, 1))
	require.NoError(t, err)
	assert.False(t, res.Priced)
	assert.True(t, res.Amount.IsZero())
}

func TestResolvePriceWindowBoundsAreInclusive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	productID := snowflake.ID(42)
	seedScenarioA(t, svc, productID)

	res, err := svc.ResolvePrice(ctx, productID, unit.KG, day(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("100")))

	res, err = svc.ResolvePrice(ctx, productID, unit.KG, day(2024, 3, 2))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("120")))
}

func TestResolvePriceScalesToRequestedUnit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	productID := snowflake.ID(42)
	seedScenarioA(t, svc, productID)

	res, err := svc.ResolvePrice(ctx, productID, unit.Gram, day(2024, 4, 1))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("0.12")), res.Amount.String())
	assert.Equal(t, unit.Gram, res.Unit)

	_, err = svc.ResolvePrice(ctx, productID, unit.Unit("BUSHEL"), day(2024, 4, 1))
	assert.ErrorIs(t, err, unit.ErrInvalidUnit)
}

func TestComputeLineAmounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	productID := snowflake.ID(42)
	seedScenarioA(t, svc, productID)

	amounts, err := svc.ComputeLineAmounts(ctx, productID, dec("2.5"), unit.KG, day(2024, 2, 15))
	require.NoError(t, err)
	assert.True(t, amounts.Priced)
	assert.True(t, amounts.UnitPrice.Equal(dec("100")))
	assert.True(t, amounts.Subtotal.Equal(dec("250")))
	assert.True(t, amounts.TaxAmount.Equal(dec("45")))
	assert.True(t, amounts.Total.Equal(dec("295")))

	unpriced, err := svc.ComputeLineAmounts(ctx, productID, dec("1"), unit.KG, day(2023, 6, 1))
	require.NoError(t, err)
	assert.False(t, unpriced.Priced)
	assert.True(t, unpriced.Total.IsZero())

	_, err = svc.ComputeLineAmounts(ctx, productID, decimal.Zero, unit.KG, day(2024, 2, 15))
	assert.ErrorIs(t, err, unit.ErrInvalidQuantity)
}

func TestCreateRejectsOverlapUnlessClosingOpenWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	productID := snowflake.ID(42)
	seedScenarioA(t, svc, productID)

	_, err := svc.Create(ctx, pricedomain.CreateRequest{
		ProductID: productID, Unit: "KG", Amount: dec("130"), ValidFrom: day(2024, 5, 1),
	})
	assert.ErrorIs(t, err, pricedomain.ErrOverlap)

	_, err = svc.Create(ctx, pricedomain.CreateRequest{
		ProductID: productID, Unit: "KG", Amount: dec("130"), ValidFrom: day(2024, 5, 1), CloseOpen: true,
	})
	require.NoError(t, err)

	res, err := svc.ResolvePrice(ctx, productID, unit.KG, day(2024, 4, 30))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("120")))
	res, err = svc.ResolvePrice(ctx, productID, unit.KG, day(2024, 5, 1))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("130")))

	issues, err := svc.ValidateWindows(ctx, productID, unit.KG)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestOpenWindowIsUniquePerProductAndUnit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	repo := repository.Provide()
	productID := snowflake.ID(7)

	insert := func(u unit.Unit, from time.Time) (snowflake.ID, error) {
		id := svc.genID.Generate()
		return id, repo.Insert(ctx, svc.db, &pricedomain.Price{
			ID: id, ProductID: productID, Unit: u, Amount: dec("10"),
			ValidFrom: from, Active: true, CreatedAt: from, UpdatedAt: from,
		})
	}

	first, err := insert(unit.KG, day(2024, 1, 1))
	require.NoError(t, err)
	_, err = insert(unit.Piece, day(2024, 1, 1))
	require.NoError(t, err)

	_, err = insert(unit.KG, day(2024, 2, 1))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))

	require.NoError(t, repo.Close(ctx, svc.db, first, day(2024, 1, 31), day(2024, 1, 31)))
	_, err = insert(unit.KG, day(2024, 2, 1))
	require.NoError(t, err)
}

func TestConcurrentOpenPricesKeepOne(t *testing.T) {
	svc := newTestService(t)
	productID := snowflake.ID(9)

	const workers = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		overlaps int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), pricedomain.CreateRequest{
				ProductID: productID, Unit: "KG", Amount: dec("100"), ValidFrom: day(2024, 1, 1+i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, pricedomain.ErrOverlap):
				overlaps++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, overlaps)
	rows, err := svc.History(context.Background(), productID, unit.KG)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, pricedomain.CreateRequest{ProductID: 1, Unit: "GRAM", Amount: dec("1"), ValidFrom: day(2024, 1, 1)})
	assert.ErrorIs(t, err, pricedomain.ErrNotCanonical)

	_, err = svc.Create(ctx, pricedomain.CreateRequest{ProductID: 1, Unit: "KG", Amount: dec("-1"), ValidFrom: day(2024, 1, 1)})
	assert.ErrorIs(t, err, pricedomain.ErrInvalidAmount)

	end := day(2023, 12, 31)
	_, err = svc.Create(ctx, pricedomain.CreateRequest{ProductID: 1, Unit: "KG", Amount: dec("1"), ValidFrom: day(2024, 1, 1), ValidTo: &end})
	assert.ErrorIs(t, err, pricedomain.ErrInvalidWindow)
}

func TestFindWindowIssues(t *testing.T) {
	end := day(2024, 2, 1)
	inverted := day(2023, 1, 1)
	rows := []pricedomain.Price{
		{ID: 1, Active: true, ValidFrom: day(2024, 1, 1), ValidTo: &end},
		{ID: 2, Active: true, ValidFrom: day(2024, 1, 15)},
		{ID: 3, Active: true, ValidFrom: day(2024, 6, 1)},
		{ID: 4, Active: true, ValidFrom: day(2024, 1, 1), ValidTo: &inverted},
		{ID: 5, Active: false, ValidFrom: day(2020, 1, 1)},
	}

	issues := findWindowIssues(rows)

	kinds := map[string]int{}
	for _, issue := range issues {
		kinds[issue.Kind]++
	}
	assert.Equal(t, 1, kinds[pricedomain.IssueInvertedRange])
	assert.Equal(t, 1, kinds[pricedomain.IssueMultipleOpen])
	assert.GreaterOrEqual(t, kinds[pricedomain.IssueOverlap], 2)
}
