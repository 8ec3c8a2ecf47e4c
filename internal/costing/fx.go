package costing

import (
	"github.com/smallbiznis/bakehouse/internal/costing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("costing.service",
	fx.Provide(service.New),
)
