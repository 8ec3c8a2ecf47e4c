package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/dbtest"
	"github.com/smallbiznis/bakehouse/internal/material/domain"
	"github.com/smallbiznis/bakehouse/internal/material/repository"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Units: unit.NewConverter(unit.DefaultPieceWeightKg, zap.NewNop()),
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateStoresCanonicalQuantities(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, domain.CreateRequest{
		Name:          "Powdered Sugar",
		Unit:          "gr",
		StockQuantity: dec("2500"),
		UnitPrice:     dec("0.05"),
		MinimumStock:  dec("500"),
	})
	require.NoError(t, err)

	assert.Equal(t, "powdered-sugar", m.Code)
	assert.Equal(t, unit.KG, m.Unit)
	assert.True(t, m.StockQuantity.Equal(dec("2.5")), m.StockQuantity.String())
	assert.True(t, m.MinimumStock.Equal(dec("0.5")), m.MinimumStock.String())
	assert.True(t, m.UnitPrice.Equal(dec("50")), m.UnitPrice.String())

	stored, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.StockQuantity.Equal(dec("2.5")))

	movements, err := svc.Movements(ctx, m.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.ReasonOpeningBalance, movements[0].Reason)
	assert.True(t, movements[0].BalanceAfter.Equal(dec("2.5")))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: " ", Unit: "KG"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Flour", Unit: "sack"})
	assert.ErrorIs(t, err, unit.ErrInvalidUnit)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Flour", Unit: "KG", StockQuantity: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Flour", Unit: "KG", UnitPrice: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Flour", Unit: "KG"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "flour", Name: "Flour again", Unit: "KG"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestCreateWithoutStockSkipsOpeningMovement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, domain.CreateRequest{Name: "Butter", Unit: "KG"})
	require.NoError(t, err)

	movements, err := svc.Movements(ctx, m.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestLowStock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	low, err := svc.Create(ctx, domain.CreateRequest{Name: "Cocoa", Unit: "KG", StockQuantity: dec("1"), MinimumStock: dec("2")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Flour", Unit: "KG", StockQuantity: dec("50"), MinimumStock: dec("10")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Salt", Unit: "KG"})
	require.NoError(t, err)

	rows, err := svc.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, low.ID, rows[0].ID)
	assert.True(t, rows[0].IsLow())
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Movements(context.Background(), 12345, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
