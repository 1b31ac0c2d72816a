package instances

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

// MemoryStore holds fully-loaded instances in memory and evaluates query
// plans directly. Fetches hand out identity-only copies so callers load
// attributes exactly as they would against the database.
type MemoryStore struct {
	model *schema.Model

	mu      sync.RWMutex
	objects map[int64]*Instance
}

// NewMemoryStore creates an empty store typed by model.
func NewMemoryStore(model *schema.Model) *MemoryStore {
	return &MemoryStore{model: model, objects: make(map[int64]*Instance)}
}

// Model returns the store's schema.
func (s *MemoryStore) Model() *schema.Model {
	return s.model
}

// Add validates inst against the schema and stores a copy.
func (s *MemoryStore) Add(inst *Instance) error {
	if _, err := s.model.Class(inst.ClassName); err != nil {
		return err
	}
	cp := inst.identity()
	for name, ids := range inst.Refs {
		a, err := s.model.Attribute(inst.ClassName, name)
		if err != nil {
			return err
		}
		if !a.IsInstance() {
			return apperror.NewInvalidConfig(fmt.Sprintf("instance %d: %s holds plain values, not references", inst.ID, a))
		}
		if !a.IsMultiple() && len(ids) > 1 {
			return apperror.NewInvalidConfig(fmt.Sprintf("instance %d: %s is single-valued", inst.ID, a))
		}
		cp.setRefs(name, append([]int64(nil), ids...))
	}
	for name, vs := range inst.Scalars {
		a, err := s.model.Attribute(inst.ClassName, name)
		if err != nil {
			return err
		}
		if a.IsInstance() {
			return apperror.NewInvalidConfig(fmt.Sprintf("instance %d: %s holds references", inst.ID, a))
		}
		cp.setScalars(name, append([]any(nil), vs...))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.objects[inst.ID]; dup {
		return apperror.NewInvalidConfig(fmt.Sprintf("duplicate instance id %d", inst.ID))
	}
	s.objects[inst.ID] = cp
	return nil
}

// All returns full copies of every instance ordered by id.
func (s *MemoryStore) All() []*Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Instance, 0, len(s.objects))
	for _, inst := range s.objects {
		cp := inst.identity()
		for k, v := range inst.Refs {
			cp.setRefs(k, append([]int64(nil), v...))
		}
		for k, v := range inst.Scalars {
			cp.setScalars(k, append([]any(nil), v...))
		}
		out = append(out, cp)
	}
	sortByID(out)
	return out
}

// FetchByID returns an identity copy of the instance.
func (s *MemoryStore) FetchByID(_ context.Context, id int64) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.objects[id]
	if !ok {
		return nil, apperror.ErrInstanceNotFound.WithMessage(fmt.Sprintf("instance %d not found", id))
	}
	return inst.identity(), nil
}

// FetchByIDs returns identity copies of the known ids.
func (s *MemoryStore) FetchByIDs(_ context.Context, ids []int64) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Instance
	for _, id := range uniqueSorted(ids) {
		if inst, ok := s.objects[id]; ok {
			out = append(out, inst.identity())
		}
	}
	return out, nil
}

// FetchByClass returns identity copies of instances that isa class.
func (s *MemoryStore) FetchByClass(_ context.Context, class string) ([]*Instance, error) {
	if _, err := s.model.Class(class); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Instance
	for _, inst := range s.objects {
		if s.model.Isa(inst.ClassName, class) {
			out = append(out, inst.identity())
		}
	}
	sortByID(out)
	return out, nil
}

// FetchByAttributePredicate evaluates the predicate plan in memory.
func (s *MemoryStore) FetchByAttributePredicate(ctx context.Context, class, attr string, op relquery.Operator, value any) ([]*Instance, error) {
	return fetchByPredicate(ctx, s, class, attr, op, value)
}

// LoadAttributeValues copies attr from the stored instances.
func (s *MemoryStore) LoadAttributeValues(_ context.Context, insts []*Instance, attr string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inst := range insts {
		a, err := s.model.Attribute(inst.ClassName, attr)
		if err != nil {
			continue
		}
		src, ok := s.objects[inst.ID]
		if !ok {
			return apperror.ErrInstanceNotFound.WithMessage(fmt.Sprintf("instance %d not found", inst.ID))
		}
		if a.IsInstance() {
			inst.setRefs(attr, append([]int64{}, src.Refs[attr]...))
		} else {
			inst.setScalars(attr, append([]any{}, src.Scalars[attr]...))
		}
	}
	return nil
}

// LoadReverseAttributeValues scans every holder of attr for references to
// the targets.
func (s *MemoryStore) LoadReverseAttributeValues(_ context.Context, targets []*Instance, attr *schema.Attribute) (map[int64][]int64, error) {
	if attr == nil || !attr.IsInstance() {
		return nil, apperror.ErrQueryExecution.WithMessage(fmt.Sprintf("reverse lookup needs an instance attribute, got %v", attr))
	}
	want := make(map[int64]struct{}, len(targets))
	for _, t := range targets {
		want[t.ID] = struct{}{}
	}
	out := make(map[int64][]int64)
	for _, e := range s.edges(relquery.Storage{Class: attr.Origin.Name, Attribute: attr.Name, Multiple: attr.IsMultiple()}) {
		if _, ok := want[e.target]; ok {
			out[e.target] = append(out[e.target], e.source)
		}
	}
	for k, v := range out {
		out[k] = uniqueSorted(v)
	}
	return out, nil
}

// QueryPairs evaluates a join plan over the stored edges.
func (s *MemoryStore) QueryPairs(_ context.Context, q *relquery.JoinQuery) ([]relquery.Pair, error) {
	if q == nil || len(q.On) == 0 {
		return nil, apperror.ErrQueryExecution.WithMessage("join plan without conditions")
	}
	left := s.edges(q.Left)
	right := s.edges(q.Right)

	first := q.On[0]
	index := make(map[int64][]edge)
	for _, r := range right {
		k := r.part(first.Right.Part)
		index[k] = append(index[k], r)
	}

	seen := make(map[relquery.Pair]struct{})
	var out []relquery.Pair
	for _, l := range left {
		for _, r := range index[l.part(first.Left.Part)] {
			if !matchesAll(q.On, l, r) {
				continue
			}
			p := relquery.Pair{SourceID: l.source, TargetID: l.target}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].SourceID != out[b].SourceID {
			return out[a].SourceID < out[b].SourceID
		}
		return out[a].TargetID < out[b].TargetID
	})
	return out, nil
}

// QueryIDs evaluates a predicate plan.
func (s *MemoryStore) QueryIDs(_ context.Context, q *relquery.PredicateQuery) ([]int64, error) {
	classes := make(map[string]struct{}, len(q.Classes))
	for _, c := range q.Classes {
		classes[c] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for _, inst := range s.objects {
		if _, ok := classes[inst.ClassName]; !ok {
			continue
		}
		vals := inst.values(q.Storage.Attribute)
		var match bool
		switch q.Op {
		case relquery.IsNull:
			match = len(vals) == 0
		case relquery.IsNotNull:
			match = len(vals) > 0
		case relquery.Equals:
			for _, v := range vals {
				if fmt.Sprint(v) == fmt.Sprint(q.Value) {
					match = true
					break
				}
			}
		default:
			return nil, apperror.ErrQueryExecution.WithMessage(fmt.Sprintf("unsupported operator %q", q.Op))
		}
		if match {
			ids = append(ids, inst.ID)
		}
	}
	return uniqueSorted(ids), nil
}

type edge struct {
	source, target int64
}

func (e edge) part(p relquery.Part) int64 {
	if p == relquery.Source {
		return e.source
	}
	return e.target
}

func matchesAll(on []relquery.Equality, l, r edge) bool {
	for _, eq := range on {
		lv, rv := l, r
		if eq.Left.Side == relquery.Right {
			lv = r
		}
		if eq.Right.Side == relquery.Left {
			rv = l
		}
		if lv.part(eq.Left.Part) != rv.part(eq.Right.Part) {
			return false
		}
	}
	return true
}

// edges lists (holder, value) for every instance stored under st.
func (s *MemoryStore) edges(st relquery.Storage) []edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []edge
	for _, inst := range s.objects {
		if !s.model.Isa(inst.ClassName, st.Class) {
			continue
		}
		for _, v := range inst.Refs[st.Attribute] {
			out = append(out, edge{source: inst.ID, target: v})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].source != out[b].source {
			return out[a].source < out[b].source
		}
		return out[a].target < out[b].target
	})
	return out
}

func (i *Instance) values(attr string) []any {
	if refs, ok := i.Refs[attr]; ok {
		out := make([]any, len(refs))
		for n, r := range refs {
			out[n] = r
		}
		return out
	}
	return i.Scalars[attr]
}
