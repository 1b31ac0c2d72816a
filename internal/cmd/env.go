package cmd

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/internal/database"
)

// environment is the schema, store and connections a command works on.
type environment struct {
	model   *schema.Model
	store   instances.Store
	closers []func()
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// openEnvironment connects to PostgreSQL only when the schema or the
// instances come from it. withStore false loads the schema alone.
func openEnvironment(ctx context.Context, cfg *config.Config, log *slog.Logger, withStore bool) (*environment, error) {
	env := &environment{}

	needDB := cfg.QA.SchemaSource == "database" || (withStore && cfg.QA.SnapshotPath == "")
	var db bun.IDB
	if needDB {
		pool, err := database.OpenPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		bunDB := database.Wrap(pool, cfg.Database.QueryDebug, log)
		env.closers = append(env.closers, pool.Close, func() { _ = bunDB.Close() })
		db = bunDB
	}

	model, err := schema.ProvideModel(schema.ModelParams{Config: cfg, Log: log, DB: db})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.model = model

	if withStore {
		store, err := instances.ProvideStore(instances.StoreParams{Config: cfg, Model: model, Log: log, DB: db})
		if err != nil {
			env.Close()
			return nil, err
		}
		env.store = store
	}
	return env, nil
}
