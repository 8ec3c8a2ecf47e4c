package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/dbtest"
	"github.com/smallbiznis/bakehouse/internal/product/domain"
	"github.com/smallbiznis/bakehouse/internal/product/repository"
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
	})
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		Name:             "Chocolate Éclair",
		SalesUnit:        "adet",
		FallbackUnitCost: decimal.RequireFromString("12.5"),
		Metadata:         map[string]any{"shelf": "B2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "chocolate-eclair", created.Code)
	assert.Equal(t, string(unit.Piece), created.SalesUnit)
	assert.True(t, created.Active)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.FallbackUnitCost.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "B2", got.Metadata["shelf"])
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "", SalesUnit: "KG"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Tart", SalesUnit: "dozen"})
	assert.ErrorIs(t, err, unit.ErrInvalidUnit)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Tart", SalesUnit: "KG", FallbackUnitCost: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidCost)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Tart", SalesUnit: "KG"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "TART", Name: "Another tart", SalesUnit: "KG"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestGetErrors(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Get(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
