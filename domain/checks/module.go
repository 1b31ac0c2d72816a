package checks

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/internal/config"
)

// Module provides the check service, handler and routes.
var Module = fx.Module("checks",
	fx.Provide(
		ProvideSuite,
		provideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// ProvideSuite loads QA_SUITE_PATH, or the built-in suite when unset.
func ProvideSuite(cfg *config.Config) (*Suite, error) {
	suite := DefaultSuite()
	if cfg.QA.SuitePath != "" {
		loaded, err := LoadSuite(cfg.QA.SuitePath)
		if err != nil {
			return nil, err
		}
		suite = loaded
	}
	if cfg.QA.Parallelism > 0 {
		suite.Parallelism = cfg.QA.Parallelism
	}
	return suite, nil
}

// ServiceParams are the fx dependencies of the check service.
type ServiceParams struct {
	fx.In

	Log      *slog.Logger
	Store    instances.Store
	Suite    *Suite
	Archiver Archiver `optional:"true"`
}

func provideService(p ServiceParams) (*Service, error) {
	return NewService(p.Log, p.Store, p.Suite, p.Archiver)
}
