package health

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/domain/scheduler"
)

// Module provides health check functionality
var Module = fx.Module("health",
	fx.Provide(provideHandler),
	fx.Invoke(RegisterRoutes),
)

type handlerParams struct {
	fx.In

	Pool      *pgxpool.Pool        `optional:"true"`
	Checks    *checks.Service      `optional:"true"`
	Scheduler *scheduler.Scheduler `optional:"true"`
}

func provideHandler(p handlerParams) *Handler {
	var db Pinger
	if p.Pool != nil {
		db = p.Pool
	}
	return NewHandler(db, p.Checks, p.Scheduler)
}
