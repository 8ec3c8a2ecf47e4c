package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	"github.com/smallbiznis/bakehouse/internal/observability"
	"github.com/smallbiznis/bakehouse/internal/scheduler"
	"github.com/smallbiznis/bakehouse/internal/server"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the reconcile and low stock jobs
		server.Services,
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),

		// No server module!
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.SnowflakeID)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
