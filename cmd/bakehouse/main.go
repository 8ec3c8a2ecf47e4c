package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bakehouse/internal/clock"
	"github.com/smallbiznis/bakehouse/internal/config"
	"github.com/smallbiznis/bakehouse/internal/migration"
	"github.com/smallbiznis/bakehouse/internal/observability"
	"github.com/smallbiznis/bakehouse/internal/scheduler"
	"github.com/smallbiznis/bakehouse/internal/server"
	"github.com/smallbiznis/bakehouse/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		server.Services,
		scheduler.Module,

		server.Module,
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
