package instances

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// Module provides the instances Store.
var Module = fx.Module("instances",
	fx.Provide(ProvideStore),
)

// StoreParams are the fx dependencies of ProvideStore.
type StoreParams struct {
	fx.In

	Config *config.Config
	Model  *schema.Model
	Log    *slog.Logger
	DB     bun.IDB `optional:"true"`
}

// ProvideStore returns a snapshot-backed store when QA_SNAPSHOT_PATH is set
// and a database repository otherwise.
func ProvideStore(p StoreParams) (Store, error) {
	qa := p.Config.QA
	if qa.SnapshotPath != "" {
		store, err := LoadSnapshot(p.Model, qa.SnapshotPath)
		if err != nil {
			return nil, err
		}
		p.Log.Info("instances loaded from snapshot",
			logger.Scope("instances"),
			slog.String("path", qa.SnapshotPath),
			slog.Int("count", len(store.All())))
		return store, nil
	}
	if p.DB == nil {
		return nil, apperror.NewInvalidConfig("no instance source: set QA_SNAPSHOT_PATH or configure the database")
	}
	return NewRepository(p.DB, p.Model, p.Log, WithQueryRateLimit(qa.QueryRateLimit, qa.QueryBurst)), nil
}
