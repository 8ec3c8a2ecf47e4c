package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	"github.com/smallbiznis/bakehouse/internal/dbtest"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	orderrepo "github.com/smallbiznis/bakehouse/internal/order/repository"
	pricerepo "github.com/smallbiznis/bakehouse/internal/price/repository"
	priceservice "github.com/smallbiznis/bakehouse/internal/price/service"
	"github.com/smallbiznis/bakehouse/internal/reconciliation/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var orderDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type stubLocker struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	l.acquired++
	return "token", true, nil
}

func (l *stubLocker) Release(ctx context.Context, key, token string) error {
	l.released++
	return nil
}

func newTestService(t *testing.T, locker domain.Locker) (domain.Service, *dbtest.Fixtures) {
	t.Helper()
	conn := dbtest.Open(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	policy := config.NewStaticPolicyHolder(config.DefaultCostingPolicy())

	prices := priceservice.New(priceservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: dbtest.Node(t), Clock: clk,
		Repo:   pricerepo.Provide(),
		Units:  unit.NewConverter(policy.Get().PieceWeightKg, zap.NewNop()),
		Policy: policy,
	})
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Clock:     clk,
		Config:    config.Config{Reconcile: config.ReconcileConfig{BatchSize: 2, Concurrency: 3}},
		Policy:    policy,
		OrderRepo: orderrepo.Provide(),
		Prices:    prices,
		Locker:    locker,
	})
	return svc, dbtest.NewFixtures(t, conn)
}

func TestReconcileCorrectsDriftBeyondThreshold(t *testing.T) {
	svc, fx := newTestService(t, nil)
	cake := fx.Product("cake", unit.KG, "0")
	bun := fx.Product("bun", unit.KG, "0")
	fx.Price(cake, unit.KG, "110", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	fx.Price(bun, unit.KG, "105", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	order, lines := fx.Order("ORD-1", orderDay, orderdomain.StatusApproved,
		dbtest.LineSpec{Product: cake, Quantity: "1", Unit: unit.KG, UnitPrice: "90"},
		dbtest.LineSpec{Product: bun, Quantity: "1", Unit: unit.KG, UnitPrice: "100"},
	)

	summary, err := svc.ReconcilePrices(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.OrdersChecked)
	assert.Equal(t, 1, summary.OrdersCorrected)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Corrected)
	assert.Zero(t, summary.Failed)

	stored, storedLines := fx.ReloadOrder(order.ID)
	require.Len(t, storedLines, 2)
	assert.Equal(t, lines[0].ID, storedLines[0].ID)
	assert.True(t, storedLines[0].UnitPrice.Equal(dbtest.Dec("110")), storedLines[0].UnitPrice.String())
	assert.True(t, storedLines[0].Total.Equal(dbtest.Dec("129.8")), storedLines[0].Total.String())
	assert.True(t, storedLines[1].UnitPrice.Equal(dbtest.Dec("100")))
	assert.True(t, storedLines[1].Total.Equal(dbtest.Dec("100")))

	assert.True(t, stored.Subtotal.Equal(dbtest.Dec("210")), stored.Subtotal.String())
	assert.True(t, stored.TaxAmount.Equal(dbtest.Dec("19.8")), stored.TaxAmount.String())
	assert.True(t, stored.Total.Equal(dbtest.Dec("229.8")), stored.Total.String())

	again, err := svc.ReconcilePrices(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Zero(t, again.Corrected)
}

func TestReconcileSkipsUnpricedLines(t *testing.T) {
	svc, fx := newTestService(t, nil)
	cake := fx.Product("cake", unit.KG, "0")
	order, _ := fx.Order("ORD-1", orderDay, orderdomain.StatusPending,
		dbtest.LineSpec{Product: cake, Quantity: "2", Unit: unit.KG, UnitPrice: "40"},
	)

	summary, err := svc.ReconcilePrices(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Corrected)

	stored, lines := fx.ReloadOrder(order.ID)
	assert.True(t, lines[0].UnitPrice.Equal(dbtest.Dec("40")))
	assert.True(t, stored.Total.Equal(dbtest.Dec("80")))
}

func TestReconcileContinuesPastFailures(t *testing.T) {
	svc, fx := newTestService(t, nil)
	cake := fx.Product("cake", unit.KG, "0")
	fx.Price(cake, unit.KG, "110", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	broken, _ := fx.Order("ORD-1", orderDay, orderdomain.StatusApproved,
		dbtest.LineSpec{Product: cake, Quantity: "1", Unit: unit.Unit("BUSHEL"), UnitPrice: "90"},
	)
	healthy, _ := fx.Order("ORD-2", orderDay, orderdomain.StatusApproved,
		dbtest.LineSpec{Product: cake, Quantity: "1", Unit: unit.KG, UnitPrice: "90"},
	)

	summary, err := svc.ReconcilePrices(context.Background(), domain.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, broken.ID, summary.Failures[0].OrderID)
	assert.Equal(t, "invalid_unit", summary.Failures[0].Reason)
	assert.Equal(t, 1, summary.OrdersCorrected)

	_, lines := fx.ReloadOrder(healthy.ID)
	assert.True(t, lines[0].UnitPrice.Equal(dbtest.Dec("110")))
}

func TestReconcileFilterPagesAndLimits(t *testing.T) {
	svc, fx := newTestService(t, nil)
	cake := fx.Product("cake", unit.KG, "0")
	fx.Price(cake, unit.KG, "110", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	for _, number := range []string{"A", "B", "C", "D", "E"} {
		fx.Order(number, orderDay, orderdomain.StatusApproved,
			dbtest.LineSpec{Product: cake, Quantity: "1", Unit: unit.KG, UnitPrice: "90"},
		)
	}
	fx.Order("X", orderDay, orderdomain.StatusCancelled,
		dbtest.LineSpec{Product: cake, Quantity: "1", Unit: unit.KG, UnitPrice: "90"},
	)
	fx.Order("OLD", orderDay.AddDate(0, -2, 0), orderdomain.StatusApproved,
		dbtest.LineSpec{Product: cake, Quantity: "1", Unit: unit.KG, UnitPrice: "90"},
	)

	from := orderDay.AddDate(0, 0, -7)
	summary, err := svc.ReconcilePrices(context.Background(), domain.Filter{
		From:     &from,
		Statuses: []orderdomain.Status{orderdomain.StatusApproved},
		Limit:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.OrdersChecked)

	summary, err = svc.ReconcilePrices(context.Background(), domain.Filter{
		From:     &from,
		Statuses: []orderdomain.Status{orderdomain.StatusApproved},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.OrdersChecked)
	assert.Equal(t, 2, summary.OrdersCorrected)
}

func TestReconcileRespectsRunLock(t *testing.T) {
	locker := &stubLocker{held: true}
	svc, _ := newTestService(t, locker)

	_, err := svc.ReconcilePrices(context.Background(), domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Zero(t, locker.released)

	locker.held = false
	_, err = svc.ReconcilePrices(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)

	locker.err = errors.New("redis down")
	_, err = svc.ReconcilePrices(context.Background(), domain.Filter{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRunInProgress)
}

func TestDrifted(t *testing.T) {
	threshold := dbtest.Dec("0.10")
	assert.True(t, domain.Drifted(dbtest.Dec("90"), dbtest.Dec("110"), threshold))
	assert.False(t, domain.Drifted(dbtest.Dec("100"), dbtest.Dec("105"), threshold))
	assert.False(t, domain.Drifted(dbtest.Dec("100"), dbtest.Dec("110"), threshold))
	assert.True(t, domain.Drifted(dbtest.Dec("100"), dbtest.Dec("89"), threshold))
	assert.True(t, domain.Drifted(decimal.Zero, dbtest.Dec("1"), threshold))
	assert.False(t, domain.Drifted(decimal.Zero, decimal.Zero, threshold))
}
