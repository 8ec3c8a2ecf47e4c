package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/bakehouse/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bakehouse/internal/observability/metrics"
	"github.com/smallbiznis/bakehouse/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// jobRun accumulates the counters reported when a job finishes.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	processed int
	corrected int
	failed    int
}

type jobRunKey struct{}

func (r *jobRun) record(processed, corrected, failed int) {
	if r == nil {
		return
	}
	r.processed += max(processed, 0)
	r.corrected += max(corrected, 0)
	r.failed += max(failed, 0)
}

// beginRun attaches a run to ctx unless one is already present. owner
// reports whether this call created it.
func (s *Scheduler) beginRun(ctx context.Context, job string, batchSize int) (_ context.Context, run *jobRun, owner bool) {
	if existing := runFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run = &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = correlation.ContextWithCorrelationID(ctx, run.runID)

	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", batchSize),
	)
	return ctx, run, true
}

func runFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun, err error) {
	if err != nil && run.failed == 0 {
		run.failed = 1
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processed),
		zap.Int("corrected_count", run.corrected),
		zap.Int("error_count", run.failed),
	}
	if run.failed > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logJobError(ctx context.Context, msg, job string, err error, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("job", job),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}
	s.logger(ctx).Error(msg, append(base, fields...)...)
}
