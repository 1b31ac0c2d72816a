package instances

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"golang.org/x/time/rate"

	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// batchSize bounds the number of ids bound into one IN list.
const batchSize = 500

// Repository reads instances from the relational store through bun. It
// only issues SELECT statements.
type Repository struct {
	db      bun.IDB
	model   *schema.Model
	log     *slog.Logger
	limiter *rate.Limiter
	txOpts  *sql.TxOptions
}

// Option configures a Repository.
type Option func(*Repository)

// WithQueryRateLimit throttles queries to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithQueryRateLimit(perSecond float64, burst int) Option {
	return func(r *Repository) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithSnapshotOptions overrides the transaction options used by Snapshot.
func WithSnapshotOptions(opts *sql.TxOptions) Option {
	return func(r *Repository) {
		r.txOpts = opts
	}
}

// NewRepository creates a repository over db.
func NewRepository(db bun.IDB, model *schema.Model, log *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		db:     db,
		model:  model,
		log:    log.With(logger.Scope("instances.repo")),
		txOpts: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the store's schema.
func (r *Repository) Model() *schema.Model {
	return r.model
}

// Snapshot opens a read-only transaction and returns a repository bound to
// it. Release rolls the transaction back.
func (r *Repository) Snapshot(ctx context.Context) (Store, func() error, error) {
	tx, err := r.db.BeginTx(ctx, r.txOpts)
	if err != nil {
		return nil, nil, apperror.ErrQueryExecution.WithMessage("open snapshot transaction").WithInternal(err)
	}
	snap := *r
	snap.db = tx
	return &snap, tx.Rollback, nil
}

type objectRow struct {
	ID          int64          `bun:"id"`
	DisplayName sql.NullString `bun:"display_name"`
	ClassName   string         `bun:"class_name"`
}

func (o objectRow) instance() *Instance {
	return &Instance{ID: o.ID, DisplayName: o.DisplayName.String, ClassName: o.ClassName}
}

type refRow struct {
	SourceID int64 `bun:"source_id"`
	Value    int64 `bun:"value"`
}

type scalarRow struct {
	SourceID int64          `bun:"source_id"`
	Value    sql.NullString `bun:"value"`
}

type idRow struct {
	ID int64 `bun:"id"`
}

func (r *Repository) scan(ctx context.Context, dest any, query string, args ...any) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return apperror.NewQueryExecution(query, err)
		}
	}
	r.log.Debug("query", slog.String("sql", query), slog.Int("args", len(args)))
	if err := r.db.NewRaw(query, args...).Scan(ctx, dest); err != nil {
		return apperror.NewQueryExecution(query, err)
	}
	return nil
}

// FetchByID returns one instance.
func (r *Repository) FetchByID(ctx context.Context, id int64) (*Instance, error) {
	insts, err := r.FetchByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, apperror.ErrInstanceNotFound.WithMessage(fmt.Sprintf("instance %d not found", id))
	}
	return insts[0], nil
}

// FetchByIDs returns the existing instances among ids.
func (r *Repository) FetchByIDs(ctx context.Context, ids []int64) ([]*Instance, error) {
	var out []*Instance
	for _, chunk := range chunks(uniqueSorted(ids)) {
		var rows []objectRow
		q, args := relquery.ObjectsByID(chunk)
		if err := r.scan(ctx, &rows, q, args...); err != nil {
			return nil, err
		}
		for _, row := range rows {
			out = append(out, row.instance())
		}
	}
	sortByID(out)
	return out, nil
}

// FetchByClass returns instances of class and its subclasses.
func (r *Repository) FetchByClass(ctx context.Context, class string) ([]*Instance, error) {
	classes, err := r.model.Subclasses(class)
	if err != nil {
		return nil, err
	}
	var rows []objectRow
	q, args := relquery.ObjectsByClass(classes)
	if err := r.scan(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]*Instance, len(rows))
	for n, row := range rows {
		out[n] = row.instance()
	}
	return out, nil
}

// FetchByAttributePredicate runs the rendered predicate plan.
func (r *Repository) FetchByAttributePredicate(ctx context.Context, class, attr string, op relquery.Operator, value any) ([]*Instance, error) {
	return fetchByPredicate(ctx, r, class, attr, op, value)
}

// LoadAttributeValues loads attr in one query per storage and id batch.
func (r *Repository) LoadAttributeValues(ctx context.Context, insts []*Instance, attr string) error {
	groups := make(map[*schema.Attribute][]*Instance)
	var order []*schema.Attribute
	for _, inst := range insts {
		a, err := r.model.Attribute(inst.ClassName, attr)
		if err != nil {
			continue
		}
		if _, ok := groups[a]; !ok {
			order = append(order, a)
		}
		groups[a] = append(groups[a], inst)
	}

	for _, a := range order {
		members := groups[a]
		st := relquery.Storage{Class: a.Origin.Name, Attribute: a.Name, Multiple: a.IsMultiple()}
		if a.IsInstance() {
			values := make(map[int64][]int64)
			for _, chunk := range chunks(IDs(members)) {
				var rows []refRow
				q, args := relquery.Values(st, chunk)
				if err := r.scan(ctx, &rows, q, args...); err != nil {
					return err
				}
				for _, row := range rows {
					values[row.SourceID] = append(values[row.SourceID], row.Value)
				}
			}
			for _, inst := range members {
				inst.setRefs(attr, append([]int64{}, values[inst.ID]...))
			}
			continue
		}

		values := make(map[int64][]any)
		for _, chunk := range chunks(IDs(members)) {
			var rows []scalarRow
			q, args := relquery.Values(st, chunk)
			if err := r.scan(ctx, &rows, q, args...); err != nil {
				return err
			}
			for _, row := range rows {
				if row.Value.Valid {
					values[row.SourceID] = append(values[row.SourceID], row.Value.String)
				}
			}
		}
		for _, inst := range members {
			inst.setScalars(attr, append([]any{}, values[inst.ID]...))
		}
	}
	return nil
}

// LoadReverseAttributeValues finds the referrers of targets through attr.
func (r *Repository) LoadReverseAttributeValues(ctx context.Context, targets []*Instance, attr *schema.Attribute) (map[int64][]int64, error) {
	if attr == nil || !attr.IsInstance() {
		return nil, apperror.ErrQueryExecution.WithMessage(fmt.Sprintf("reverse lookup needs an instance attribute, got %v", attr))
	}
	st := relquery.Storage{Class: attr.Origin.Name, Attribute: attr.Name, Multiple: attr.IsMultiple()}
	out := make(map[int64][]int64)
	for _, chunk := range chunks(uniqueSorted(IDs(targets))) {
		var rows []refRow
		q, args := relquery.Referrers(st, chunk)
		if err := r.scan(ctx, &rows, q, args...); err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.Value] = append(out[row.Value], row.SourceID)
		}
	}
	for k, v := range out {
		out[k] = uniqueSorted(v)
	}
	return out, nil
}

// QueryPairs runs a rendered join plan.
func (r *Repository) QueryPairs(ctx context.Context, q *relquery.JoinQuery) ([]relquery.Pair, error) {
	if q == nil || len(q.On) == 0 {
		return nil, apperror.ErrQueryExecution.WithMessage("join plan without conditions")
	}
	query, args := q.Render()
	var pairs []relquery.Pair
	if err := r.scan(ctx, &pairs, query, args...); err != nil {
		return nil, err
	}
	return pairs, nil
}

// QueryIDs runs a rendered predicate plan.
func (r *Repository) QueryIDs(ctx context.Context, q *relquery.PredicateQuery) ([]int64, error) {
	query, args := q.Render()
	var rows []idRow
	if err := r.scan(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for n, row := range rows {
		ids[n] = row.ID
	}
	return uniqueSorted(ids), nil
}

func chunks(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > 0 {
		n := min(batchSize, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}
