package instances

import (
	"context"

	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/domain/schema"
)

// Store is the read-only instance store the checks run against.
type Store interface {
	// Model returns the schema the store is typed by.
	Model() *schema.Model

	// FetchByID returns one instance or apperror.ErrInstanceNotFound.
	FetchByID(ctx context.Context, id int64) (*Instance, error)

	// FetchByIDs returns the existing instances among ids, ordered by id.
	FetchByIDs(ctx context.Context, ids []int64) ([]*Instance, error)

	// FetchByClass returns all instances of class and its subclasses,
	// ordered by id.
	FetchByClass(ctx context.Context, class string) ([]*Instance, error)

	// FetchByAttributePredicate returns instances of class whose attr
	// satisfies op, ordered by id.
	FetchByAttributePredicate(ctx context.Context, class, attr string, op relquery.Operator, value any) ([]*Instance, error)

	// LoadAttributeValues fills attr on every instance whose class has it.
	// Instances whose class lacks attr are left untouched.
	LoadAttributeValues(ctx context.Context, insts []*Instance, attr string) error

	// LoadReverseAttributeValues maps each target id to the sorted ids of
	// instances referring to it through attr. Targets without referrers
	// are absent.
	LoadReverseAttributeValues(ctx context.Context, targets []*Instance, attr *schema.Attribute) (map[int64][]int64, error)

	// QueryPairs executes a join plan.
	QueryPairs(ctx context.Context, q *relquery.JoinQuery) ([]relquery.Pair, error)

	// QueryIDs executes a predicate plan.
	QueryIDs(ctx context.Context, q *relquery.PredicateQuery) ([]int64, error)
}

// Snapshotter is implemented by stores that can pin a consistent read view.
// The returned release func must be called once the snapshot is done.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Store, func() error, error)
}

func fetchByPredicate(ctx context.Context, s Store, class, attr string, op relquery.Operator, value any) ([]*Instance, error) {
	q, err := relquery.NewBuilder(s.Model()).Predicate(class, attr, op, value)
	if err != nil {
		return nil, err
	}
	ids, err := s.QueryIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.FetchByIDs(ctx, ids)
}
