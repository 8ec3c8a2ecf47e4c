package unit

import (
	"github.com/smallbiznis/bakehouse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("unit",
	fx.Provide(newFromPolicy),
)

func newFromPolicy(policy *config.CostingPolicyHolder, log *zap.Logger) *Converter {
	c := NewConverter(policy.Get().PieceWeightKg, log)
	policy.OnChange(func(p config.CostingPolicy) {
		c.SetPieceWeight(p.PieceWeightKg)
	})
	return c
}
