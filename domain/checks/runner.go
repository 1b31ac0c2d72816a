package checks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/reactome/release-qa-sub001/domain/authors"
	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/pkg/logger"
	"github.com/reactome/release-qa-sub001/pkg/report"
	"github.com/reactome/release-qa-sub001/pkg/tracing"
)

// Header is the column layout of every check report.
var Header = []string{"InstanceId", "DisplayName", "SchemaClassName", "Issue", "MostRecentAuthor"}

// Status of one check execution.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Result is the outcome of one check.
type Result struct {
	Check      string         `json:"check"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"durationMs"`
	Report     *report.Report `json:"report"`
}

// Run is the outcome of one pass over a list of checks. Results keep the
// order of the checks.
type Run struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Results    []*Result `json:"results"`
}

// Anomalies counts report rows across all checks.
func (r *Run) Anomalies() int {
	n := 0
	for _, res := range r.Results {
		n += res.Report.Len()
	}
	return n
}

// Failed returns the names of checks that were skipped.
func (r *Run) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res.Check)
		}
	}
	return out
}

// Result returns the named check's result.
func (r *Run) Result(name string) (*Result, bool) {
	for _, res := range r.Results {
		if res.Check == name {
			return res, true
		}
	}
	return nil, false
}

// Runner executes checks with per-check failure isolation.
type Runner struct {
	log         *slog.Logger
	authors     *authors.Resolver
	parallelism int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithParallelism runs up to n checks at once. n <= 1 runs sequentially.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) { r.parallelism = n }
}

// WithAuthors fills MostRecentAuthor through res.
func WithAuthors(res *authors.Resolver) RunnerOption {
	return func(r *Runner) { r.authors = res }
}

// NewRunner creates a runner.
func NewRunner(log *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		log:         log.With(logger.Scope("checks.runner")),
		authors:     authors.NewResolver(nil, ""),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every check against store. It never fails: a check that
// errors or panics yields an empty report and a logged skip reason.
func (r *Runner) Run(ctx context.Context, store instances.Store, checks []Check) *Run {
	run := &Run{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Results:   make([]*Result, len(checks)),
	}
	log := r.log.With(slog.String("run_id", run.ID.String()))
	log.Info("run started", slog.Int("checks", len(checks)), slog.Int("parallelism", r.parallelism))

	if r.parallelism <= 1 {
		for i, c := range checks {
			run.Results[i] = r.runCheck(ctx, log, store, c)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.parallelism)
		for i, c := range checks {
			g.Go(func() error {
				run.Results[i] = r.runCheck(ctx, log, store, c)
				return nil
			})
		}
		_ = g.Wait()
	}

	run.FinishedAt = time.Now().UTC()
	RunsTotal.Inc()
	log.Info("run finished",
		slog.Int("anomalies", run.Anomalies()),
		slog.Int("failed", len(run.Failed())),
		slog.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	return run
}

func (r *Runner) runCheck(ctx context.Context, log *slog.Logger, store instances.Store, c Check) (res *Result) {
	name := c.Name()
	log = log.With(slog.String("check", name))
	start := time.Now()
	res = &Result{Check: name, Status: StatusOK, Report: report.New(name, Header...)}

	ctx, span := tracing.Start(ctx, "checks.run", attribute.String("qa.check", name))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			log.Error("check panicked", slog.Any("panic", p), slog.String("stack", string(debug.Stack())))
			r.fail(res, fmt.Errorf("panic: %v", p))
		}
		if res.Status == StatusFailed {
			span.SetStatus(codes.Error, res.Error)
		}
		took := time.Since(start)
		res.DurationMS = took.Milliseconds()
		CheckDuration.WithLabelValues(name).Observe(took.Seconds())
		CheckAnomalies.WithLabelValues(name).Set(float64(res.Report.Len()))
	}()

	st := store
	if snap, ok := store.(instances.Snapshotter); ok {
		s, release, err := snap.Snapshot(ctx)
		if err != nil {
			log.Warn("check skipped", logger.Error(err))
			r.fail(res, err)
			return res
		}
		defer func() {
			if err := release(); err != nil {
				log.Warn("release snapshot", logger.Error(err))
			}
		}()
		st = s
	}

	found, err := c.Run(ctx, st)
	if err != nil {
		log.Warn("check skipped", logger.Error(err))
		r.fail(res, err)
		return res
	}

	names := r.resolveAuthors(ctx, log, st, found)
	if err := appendRows(res.Report, found, names); err != nil {
		log.Warn("report row rejected", logger.Error(err))
	}
	log.Info("check finished", slog.Int("anomalies", len(found)))
	return res
}

// appendRows adds one row per anomaly, keeping going past rejected rows and
// returning the first rejection.
func appendRows(rep *report.Report, found []instances.Anomaly, names map[int64]string) error {
	var first error
	for _, a := range found {
		err := rep.Append(
			strconv.FormatInt(a.Instance.ID, 10),
			a.Instance.DisplayName,
			a.Instance.ClassName,
			a.Issue,
			names[a.Instance.ID],
		)
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Runner) resolveAuthors(ctx context.Context, log *slog.Logger, store instances.Store, found []instances.Anomaly) map[int64]string {
	if len(found) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(found))
	var subjects []*instances.Instance
	for _, a := range found {
		if _, dup := seen[a.Instance.ID]; dup {
			continue
		}
		seen[a.Instance.ID] = struct{}{}
		subjects = append(subjects, a.Instance)
	}
	names, err := r.authors.Resolve(ctx, store, subjects)
	if err != nil {
		log.Warn("author resolution failed", logger.Error(err))
		names = make(map[int64]string, len(subjects))
		for _, s := range subjects {
			names[s.ID] = authors.NoAuthor
		}
	}
	return names
}

func (r *Runner) fail(res *Result, err error) {
	res.Status = StatusFailed
	res.Error = err.Error()
	res.Report = report.New(res.Check, Header...)
	CheckFailures.WithLabelValues(res.Check).Inc()
}
