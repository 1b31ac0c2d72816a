package schema

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

// Module provides the *Model selected by QA_SCHEMA_SOURCE.
var Module = fx.Module("schema",
	fx.Provide(ProvideModel),
)

// ModelParams are the fx dependencies of ProvideModel.
type ModelParams struct {
	fx.In

	Config *config.Config
	Log    *slog.Logger
	DB     bun.IDB `optional:"true"`
}

// ProvideModel loads the schema from a YAML file or the schema tables.
func ProvideModel(p ModelParams) (*Model, error) {
	switch p.Config.QA.SchemaSource {
	case "file", "":
		return LoadYAML(p.Config.QA.SchemaPath)
	case "database":
		if p.DB == nil {
			return nil, apperror.NewInvalidConfig("schema source database requires a database connection")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return NewRepository(p.DB, p.Log).Load(ctx)
	default:
		return nil, apperror.NewInvalidConfig("unknown schema source: " + p.Config.QA.SchemaSource)
	}
}
