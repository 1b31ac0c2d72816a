package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// Archiver persists serialized runs.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Service owns the configured checks and the latest run.
type Service struct {
	log      *slog.Logger
	store    instances.Store
	suite    *Suite
	checks   []Check
	runner   *Runner
	archiver Archiver

	mu      sync.Mutex
	running bool
	latest  *Run
}

// NewService builds the suite's checks against the store's schema. A nil
// archiver disables archiving.
func NewService(log *slog.Logger, store instances.Store, suite *Suite, archiver Archiver) (*Service, error) {
	checks, err := suite.Build(store.Model(), log)
	if err != nil {
		return nil, err
	}
	return &Service{
		log:      log.With(logger.Scope("checks.svc")),
		store:    store,
		suite:    suite,
		checks:   checks,
		runner:   NewRunner(log, WithParallelism(suite.Parallelism), WithAuthors(suite.Resolver())),
		archiver: archiver,
	}, nil
}

// Entries returns the enabled suite entries.
func (s *Service) Entries() []Entry {
	var out []Entry
	for _, e := range s.suite.Checks {
		if !e.Disabled {
			out = append(out, e)
		}
	}
	return out
}

// Execute runs every check once. Concurrent calls are rejected.
func (s *Service) Execute(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, apperror.ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	run := s.runner.Run(ctx, s.store, s.checks)
	if s.archiver != nil {
		if key, err := s.archive(ctx, run); err != nil {
			s.log.Warn("archive run failed", slog.String("run_id", run.ID.String()), logger.Error(err))
		} else {
			s.log.Info("run archived", slog.String("key", key))
		}
	}

	s.mu.Lock()
	s.latest = run
	s.mu.Unlock()
	return run, nil
}

// Latest returns the most recent completed run.
func (s *Service) Latest() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, apperror.ErrNoRun
	}
	return s.latest, nil
}

// ArchiveKey is the object key a run is stored under.
func ArchiveKey(run *Run) string {
	return fmt.Sprintf("runs/%s/%s.json", run.StartedAt.Format("2006-01-02"), run.ID)
}

func (s *Service) archive(ctx context.Context, run *Run) (string, error) {
	body, err := json.Marshal(run)
	if err != nil {
		return "", err
	}
	key := ArchiveKey(run)
	return key, s.archiver.Put(ctx, key, body, "application/json")
}
