package scheduler

import (
	"time"

	"github.com/smallbiznis/bakehouse/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval   time.Duration
	BatchSize     int
	Lookback      time.Duration
	EnabledJobs   []string
	ReconcileTime time.Duration
	ReportTime    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Hour,
		BatchSize:     100,
		Lookback:      90 * 24 * time.Hour,
		ReconcileTime: 30 * time.Minute,
		ReportTime:    30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		BatchSize:   cfg.Reconcile.BatchSize,
		Lookback:    cfg.Reconcile.Lookback,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Lookback <= 0 {
		c.Lookback = defaults.Lookback
	}
	if c.ReconcileTime <= 0 {
		c.ReconcileTime = defaults.ReconcileTime
	}
	if c.ReportTime <= 0 {
		c.ReportTime = defaults.ReportTime
	}
	return c
}
