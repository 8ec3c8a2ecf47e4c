package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	obslogger "github.com/smallbiznis/bakehouse/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bakehouse/internal/observability/metrics"
	"github.com/smallbiznis/bakehouse/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/reconciliation/domain"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	lockKey            = "reconcile_prices"
	defaultBatchSize   = 100
	defaultConcurrency = 4
	defaultLockTTL     = 30 * time.Minute
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Policy    *config.CostingPolicyHolder
	OrderRepo orderdomain.Repository
	Prices    pricedomain.Resolver
	Locker    domain.Locker       `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	policy      *config.CostingPolicyHolder
	orderRepo   orderdomain.Repository
	prices      pricedomain.Resolver
	locker      domain.Locker
	metrics     *obsmetrics.Metrics
	batchSize   int
	concurrency int
	lockTTL     time.Duration
}

func New(p Params) domain.Service {
	cfg := p.Config.Reconcile
	s := &Service{
		db:          p.DB,
		log:         p.Log.Named("reconciliation.service"),
		clock:       p.Clock,
		policy:      p.Policy,
		orderRepo:   p.OrderRepo,
		prices:      p.Prices,
		locker:      p.Locker,
		metrics:     p.Metrics,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		lockTTL:     cfg.LockTTL,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultLockTTL
	}
	return s
}

// orderOutcome is the result of reconciling one order.
type orderOutcome struct {
	checked   int
	corrected int
	skipped   int
}

func (s *Service) ReconcilePrices(ctx context.Context, filter domain.Filter) (summary domain.Summary, err error) {
	summary.RunID = ulid.Make().String()
	log := obslogger.WithContext(ctx, s.log).With(zap.String("run_id", summary.RunID))

	ctx, span := tracing.Start(ctx, "reconciliation.reconcile_prices",
		attribute.String("reconciliation.run_id", summary.RunID),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("reconciliation.checked", summary.Checked),
			attribute.Int("reconciliation.corrected", summary.Corrected),
			attribute.Int("reconciliation.failed", summary.Failed),
		)
		tracing.End(span, err)
	}()

	if s.locker != nil {
		lockStart := time.Now()
		token, ok, lockErr := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceReconcileRun, time.Since(lockStart))
		if lockErr != nil {
			return summary, fmt.Errorf("acquire reconcile lock: %w", lockErr)
		}
		if !ok {
			return summary, domain.ErrRunInProgress
		}
		defer func() {
			if relErr := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); relErr != nil {
				log.Warn("release reconcile lock failed", zap.Error(relErr))
			}
		}()
	}

	threshold := s.policy.Get().ReconcileThreshold
	started := time.Now()
	log.Info("price reconciliation started",
		zap.String("threshold", threshold.String()),
		zap.Int("batch_size", s.batchSize),
		zap.Int("concurrency", s.concurrency),
	)

	var mu sync.Mutex
	var after snowflake.ID
	remaining := filter.Limit
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		pageSize := s.batchSize
		if filter.Limit > 0 {
			if remaining <= 0 {
				break
			}
			pageSize = min(pageSize, remaining)
		}

		ids, err := s.orderRepo.ListIDs(ctx, s.db, orderdomain.ListFilter{
			IDs:      filter.OrderIDs,
			From:     filter.From,
			To:       filter.To,
			Statuses: filter.Statuses,
			AfterID:  after,
			Limit:    pageSize,
		})
		if err != nil {
			return summary, fmt.Errorf("list orders: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, id := range ids {
			g.Go(func() error {
				out, err := s.reconcileOrder(gctx, id, threshold)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					summary.Failures = append(summary.Failures, domain.Failure{OrderID: id, Reason: failureReason(err)})
					s.metrics.RecordReconcileFailure(gctx)
					log.Error("order reconciliation failed",
						zap.String("order_id", id.String()),
						zap.Error(err),
					)
					return nil
				}
				summary.OrdersChecked++
				summary.Checked += out.checked
				summary.Corrected += out.corrected
				summary.Skipped += out.skipped
				if out.corrected > 0 {
					summary.OrdersCorrected++
				}
				return nil
			})
		}
		_ = g.Wait()

		after = ids[len(ids)-1]
		remaining -= len(ids)
		if len(ids) < pageSize {
			break
		}
	}

	s.metrics.RecordReconcileLines(ctx, obsmetrics.LineChecked, summary.Checked)
	s.metrics.RecordReconcileLines(ctx, obsmetrics.LineCorrected, summary.Corrected)
	s.metrics.RecordReconcileLines(ctx, obsmetrics.LineUnpriced, summary.Skipped)

	log.Info("price reconciliation finished",
		zap.Int("orders_checked", summary.OrdersChecked),
		zap.Int("orders_corrected", summary.OrdersCorrected),
		zap.Int("lines_checked", summary.Checked),
		zap.Int("lines_corrected", summary.Corrected),
		zap.Int("lines_skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return summary, nil
}

// reconcileOrder corrects one order inside its own transaction. The order
// row is locked so a concurrent stock consumption never sees half-written
// totals.
func (s *Service) reconcileOrder(ctx context.Context, orderID snowflake.ID, threshold decimal.Decimal) (orderOutcome, error) {
	var out orderOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		order, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceOrderForReconcile, time.Since(lockStart))
		if order == nil {
			return orderdomain.ErrNotFound
		}
		lines, err := s.orderRepo.ListLines(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}

		now := s.clock.Now()
		for i := range lines {
			line := &lines[i]
			out.checked++

			amounts, err := s.prices.ComputeLineAmountsTx(ctx, tx, line.ProductID, line.Quantity, line.Unit, order.Date)
			if err != nil {
				return fmt.Errorf("line %s: %w", line.ID, err)
			}
			if !amounts.Priced {
				out.skipped++
				s.log.Warn("no price for order line, left unchanged",
					zap.String("order_id", orderID.String()),
					zap.String("line_id", line.ID.String()),
				)
				continue
			}
			if !domain.Drifted(line.UnitPrice, amounts.UnitPrice, threshold) {
				continue
			}

			s.log.Info("correcting order line price",
				zap.String("order_id", orderID.String()),
				zap.String("line_id", line.ID.String()),
				zap.String("stored_unit_price", line.UnitPrice.String()),
				zap.String("unit_price", amounts.UnitPrice.String()),
			)
			line.Apply(amounts)
			if err := s.orderRepo.UpdateLineAmounts(ctx, tx, line, now); err != nil {
				return fmt.Errorf("update line %s: %w", line.ID, err)
			}
			out.corrected++
		}

		if out.corrected == 0 {
			return nil
		}
		subtotal, tax, total := orderdomain.Totals(lines)
		return s.orderRepo.UpdateTotals(ctx, tx, orderID, subtotal, tax, total, now)
	})
	if err != nil {
		return orderOutcome{}, err
	}
	return out, nil
}

func failureReason(err error) string {
	if code := apperror.CodeOf(err); code != "" {
		return code
	}
	return string(apperror.KindOf(err))
}
