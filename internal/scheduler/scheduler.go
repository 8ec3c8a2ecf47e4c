package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bakehouse/internal/clock"
	materialdomain "github.com/smallbiznis/bakehouse/internal/material/domain"
	obsmetrics "github.com/smallbiznis/bakehouse/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	reconciliationdomain "github.com/smallbiznis/bakehouse/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobReconcilePrices = "reconcile_prices"
	JobLowStockReport  = "low_stock_report"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log          *zap.Logger
	Reconciler   reconciliationdomain.Service
	MaterialSvc  materialdomain.Service
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config            `optional:"true"`
	MetricPusher obsmetrics.Pusher `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	reconciler  reconciliationdomain.Service
	materialSvc materialdomain.Service
	pusher      obsmetrics.Pusher
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Reconciler == nil || p.MaterialSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		reconciler:  p.Reconciler,
		materialSvc: p.MaterialSvc,
		pusher:      p.MetricPusher,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.beginRun(ctx, name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		s.finishRun(ctx, run, err)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobReconcilePrices, s.isJobEnabled(JobReconcilePrices), func(ctx context.Context) error {
			return s.runJob(ctx, JobReconcilePrices, s.cfg.BatchSize, s.cfg.ReconcileTime, s.ReconcilePricesJob)
		}},
		{JobLowStockReport, s.isJobEnabled(JobLowStockReport), func(ctx context.Context) error {
			return s.runJob(ctx, JobLowStockReport, s.cfg.BatchSize, s.cfg.ReportTime, s.LowStockReportJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	s.pushMetrics(parent)
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) pushMetrics(ctx context.Context) {
	if s.pusher == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.pusher.Push(pushCtx, obsmetrics.Scheduler().Registry()); err != nil {
		s.log.Warn("scheduler metrics push failed", zap.Error(err))
	}
}

// ReconcilePricesJob re-prices orders dated within the lookback window.
// A run held by another replica is deferred, not failed.
func (s *Scheduler) ReconcilePricesJob(ctx context.Context) error {
	from := s.clock.Now().Add(-s.cfg.Lookback).Truncate(24 * time.Hour)

	summary, err := s.reconciler.ReconcilePrices(ctx, reconciliationdomain.Filter{
		From: &from,
		Statuses: []orderdomain.Status{
			orderdomain.StatusPending,
			orderdomain.StatusApproved,
			orderdomain.StatusPrepared,
		},
	})
	if errors.Is(err, reconciliationdomain.ErrRunInProgress) {
		obsmetrics.Scheduler().IncBatchDeferred(JobReconcilePrices, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Info("reconciliation already running elsewhere, deferred")
		return nil
	}
	if err != nil {
		return err
	}

	runFromContext(ctx).record(summary.OrdersChecked, summary.Corrected, summary.Failed)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobReconcilePrices, "orders", summary.OrdersChecked)
	schedMetrics.AddBatchProcessed(JobReconcilePrices, "order_lines", summary.Checked)
	schedMetrics.AddBatchProcessed(JobReconcilePrices, "order_lines_corrected", summary.Corrected)
	for _, f := range summary.Failures {
		s.logger(ctx).Warn("scheduler.reconcile.order_failed",
			zap.String("run_id", summary.RunID),
			zap.String("order_id", f.OrderID.String()),
			zap.String("reason", f.Reason),
		)
	}
	return nil
}

// LowStockReportJob logs every material at or below its minimum stock.
func (s *Scheduler) LowStockReportJob(ctx context.Context) error {
	materials, err := s.materialSvc.LowStock(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logJobError(ctx, "scheduler.low_stock.failed", JobLowStockReport, err)
		return err
	}
	for _, m := range materials {
		s.logger(ctx).Warn("scheduler.low_stock",
			zap.String("material_id", m.ID.String()),
			zap.String("code", m.Code),
			zap.String("stock_quantity", m.StockQuantity.String()),
			zap.String("minimum_stock", m.MinimumStock.String()),
			zap.String("unit", m.Unit.String()),
		)
	}
	runFromContext(ctx).record(len(materials), 0, 0)
	obsmetrics.Scheduler().AddBatchProcessed(JobLowStockReport, "materials", len(materials))
	return nil
}
