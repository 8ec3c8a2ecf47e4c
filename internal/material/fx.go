package material

import (
	"github.com/smallbiznis/bakehouse/internal/material/repository"
	"github.com/smallbiznis/bakehouse/internal/material/service"
	"go.uber.org/fx"
)

var Module = fx.Module("material.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
