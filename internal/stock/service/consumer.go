package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	costingdomain "github.com/smallbiznis/bakehouse/internal/costing/domain"
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	obslogger "github.com/smallbiznis/bakehouse/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bakehouse/internal/observability/metrics"
	"github.com/smallbiznis/bakehouse/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	"github.com/smallbiznis/bakehouse/internal/stock/domain"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
	pkgdb "github.com/smallbiznis/bakehouse/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultTxTimeout = 10 * time.Second

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	OrderRepo    orderdomain.Repository
	MaterialRepo materialdomain.Repository
	Calculator   costingdomain.Calculator
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	txTimeout    time.Duration
	orderRepo    orderdomain.Repository
	materialRepo materialdomain.Repository
	calculator   costingdomain.Calculator
	metrics      *obsmetrics.Metrics
}

func New(p Params) domain.Consumer {
	timeout := p.Config.Stock.TxTimeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("stock.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		txTimeout:    timeout,
		orderRepo:    p.OrderRepo,
		materialRepo: p.MaterialRepo,
		calculator:   p.Calculator,
		metrics:      p.Metrics,
	}
}

func (s *Service) ConsumeStockForOrder(ctx context.Context, orderID snowflake.ID) (result *domain.Result, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "stock.consume_for_order",
		attribute.String("order.id", orderID.String()),
	)
	defer func() {
		tracing.End(span, err)
		s.metrics.RecordStockConsumption(ctx, outcomeOf(err), time.Since(started))
	}()

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.ConsumeTx(txCtx, tx, orderID)
		if txErr != nil {
			return txErr
		}
		ok, txErr := s.orderRepo.UpdateStatus(txCtx, tx, orderID, orderdomain.StatusApproved, orderdomain.StatusPrepared, result.ConsumedAt)
		if txErr != nil {
			return fmt.Errorf("mark order prepared: %w", txErr)
		}
		if !ok {
			return domain.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(ctx, orderID, err)
	}

	s.ReportLowStock(ctx, result.MaterialIDs())
	return result, nil
}

func (s *Service) ConsumeTx(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*domain.Result, error) {
	order, err := s.orderRepo.LockByID(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.StockConsumed() {
		return nil, domain.ErrDuplicateDeduction
	}
	if order.Status != orderdomain.StatusApproved {
		return nil, domain.ErrOrderNotApproved
	}

	lines, err := s.orderRepo.ListLines(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}

	now := s.clock.Now()
	result := &domain.Result{
		OrderID:    orderID,
		ConsumedAt: now,
		TotalCost:  decimal.Zero,
	}

	if len(lines) > 0 {
		inputs := make([]costingdomain.LineInput, 0, len(lines))
		for _, l := range lines {
			inputs = append(inputs, costingdomain.LineInput{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Unit:      l.Unit,
				Date:      order.Date,
			})
		}
		reqs, err := s.calculator.ComputeRequirementsTx(ctx, tx, inputs)
		if err != nil {
			return nil, err
		}
		result.TotalCost = reqs.TotalCost

		consumptions, err := s.decrement(ctx, tx, order, reqs.Materials, now)
		if err != nil {
			return nil, err
		}
		result.Consumptions = consumptions
	}

	marked, err := s.orderRepo.MarkStockConsumed(ctx, tx, orderID, now)
	if err != nil {
		return nil, fmt.Errorf("mark stock consumed: %w", err)
	}
	if !marked {
		return nil, domain.ErrDuplicateDeduction
	}

	s.logger(ctx).Info("stock consumed for order",
		zap.String("order_id", orderID.String()),
		zap.Int("materials", len(result.Consumptions)),
		zap.String("total_cost", result.TotalCost.String()),
	)
	return result, nil
}

// decrement locks the required materials in id order, verifies every one of
// them before writing anything, then applies the decrements and movements.
func (s *Service) decrement(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, reqs []costingdomain.Requirement, now time.Time) ([]domain.Consumption, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.MaterialID)
	}
	lockStart := time.Now()
	locked, err := s.materialRepo.LockByIDs(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock materials: %w", err)
	}
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceMaterials, time.Since(lockStart))

	byID := make(map[snowflake.ID]materialdomain.Material, len(locked))
	for _, m := range locked {
		byID[m.ID] = m
	}

	var shortfalls []domain.Shortfall
	for _, r := range reqs {
		m, ok := byID[r.MaterialID]
		if !ok {
			return nil, fmt.Errorf("material %s: %w", r.MaterialID, costingdomain.ErrMaterialNotFound)
		}
		if m.StockQuantity.LessThan(r.Quantity) {
			shortfalls = append(shortfalls, domain.Shortfall{
				MaterialID: m.ID,
				Code:       m.Code,
				Name:       m.Name,
				Unit:       m.Unit,
				Required:   r.Quantity,
				Available:  m.StockQuantity,
				Missing:    r.Quantity.Sub(m.StockQuantity),
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &domain.InsufficientStockError{OrderID: order.ID, Shortfalls: shortfalls}
	}

	orderID := order.ID
	consumptions := make([]domain.Consumption, 0, len(reqs))
	movements := make([]materialdomain.StockMovement, 0, len(reqs))
	for _, r := range reqs {
		ok, err := s.materialRepo.Decrement(ctx, tx, r.MaterialID, r.Quantity, now)
		if err != nil {
			return nil, fmt.Errorf("decrement material %s: %w", r.MaterialID, err)
		}
		if !ok {
			return nil, domain.ErrConcurrentModification
		}
		balance := byID[r.MaterialID].StockQuantity.Sub(r.Quantity)
		consumptions = append(consumptions, domain.Consumption{
			MaterialID:   r.MaterialID,
			Code:         r.Code,
			Unit:         r.Unit,
			Quantity:     r.Quantity,
			BalanceAfter: balance,
		})
		movements = append(movements, materialdomain.StockMovement{
			ID:           s.genID.Generate(),
			MaterialID:   r.MaterialID,
			OrderID:      &orderID,
			Quantity:     r.Quantity.Neg(),
			BalanceAfter: balance,
			Reason:       materialdomain.ReasonOrderConsumption,
			Metadata:     datatypes.JSONMap{"order_number": order.Number},
			CreatedAt:    now,
		})
	}
	if err := s.materialRepo.InsertMovements(ctx, tx, movements); err != nil {
		return nil, fmt.Errorf("insert stock movements: %w", err)
	}
	return consumptions, nil
}

func (s *Service) ReportLowStock(ctx context.Context, materialIDs []snowflake.ID) {
	if len(materialIDs) == 0 {
		return
	}
	low, err := s.materialRepo.ListLowStock(ctx, s.db, materialIDs, len(materialIDs))
	if err != nil {
		s.logger(ctx).Warn("low stock check failed", zap.Error(err))
		return
	}
	for _, m := range low {
		s.logger(ctx).Warn("material at or below minimum stock",
			zap.String("material_id", m.ID.String()),
			zap.String("code", m.Code),
			zap.String("stock_quantity", m.StockQuantity.String()),
			zap.String("minimum_stock", m.MinimumStock.String()),
			zap.String("unit", m.Unit.String()),
		)
	}
	s.metrics.RecordLowStock(ctx, len(low))
}

// classify maps driver and context failures onto retryable conflicts.
func (s *Service) classify(ctx context.Context, orderID snowflake.ID, err error) error {
	log := s.logger(ctx).With(zap.String("order_id", orderID.String()))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("stock consumption timed out", zap.Duration("timeout", s.txTimeout))
		return domain.ErrTimeout
	case pkgdb.IsRetryable(err), pkgdb.IsCheckViolation(err):
		log.Warn("stock consumption conflicted", zap.Error(err))
		return domain.ErrConcurrentModification
	case apperror.KindOf(err) != apperror.KindInternal:
		return err
	default:
		log.Error("stock consumption failed", zap.Error(err))
		return fmt.Errorf("consume stock for order %s: %w", orderID, err)
	}
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return obsmetrics.OutcomeConsumed
	case errors.Is(err, domain.ErrDuplicateDeduction):
		return obsmetrics.OutcomeDuplicate
	case apperror.IsInsufficient(err):
		return obsmetrics.OutcomeInsufficient
	case apperror.IsConflict(err):
		return obsmetrics.OutcomeConflict
	default:
		return obsmetrics.OutcomeError
	}
}
