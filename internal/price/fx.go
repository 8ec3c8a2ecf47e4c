package price

import (
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/price/repository"
	"github.com/smallbiznis/bakehouse/internal/price/service"
	"go.uber.org/fx"
)

var Module = fx.Module("price.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) pricedomain.Service { return s },
		func(s *service.Service) pricedomain.Resolver { return s },
	),
)
