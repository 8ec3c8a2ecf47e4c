package stock

import (
	"github.com/smallbiznis/bakehouse/internal/stock/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stock.service",
	fx.Provide(service.New),
)
