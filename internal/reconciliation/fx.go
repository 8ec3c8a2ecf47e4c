package reconciliation

import (
	"github.com/smallbiznis/bakehouse/internal/reconciliation/domain"
	"github.com/smallbiznis/bakehouse/internal/reconciliation/service"
	"github.com/smallbiznis/bakehouse/internal/runlock"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(provideLocker),
	fx.Provide(service.New),
)

// provideLocker keeps a missing redis client from becoming a typed nil.
func provideLocker(l *runlock.Locker) domain.Locker {
	if l == nil {
		return nil
	}
	return l
}
