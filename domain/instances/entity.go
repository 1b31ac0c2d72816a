// Package instances provides read-only access to knowledgebase instances:
// identity rows, on-demand attribute values and the raw relation queries
// built by relquery.
package instances

import (
	"sort"
)

// Instance is a read-only snapshot of one stored object. Attribute values
// are absent until loaded through Store.LoadAttributeValues.
type Instance struct {
	ID          int64              `json:"id" yaml:"id"`
	DisplayName string             `json:"displayName" yaml:"name"`
	ClassName   string             `json:"schemaClass" yaml:"class"`
	Refs        map[string][]int64 `json:"refs,omitempty" yaml:"refs,omitempty"`
	Scalars     map[string][]any   `json:"values,omitempty" yaml:"values,omitempty"`
}

// Values returns the ordered instance references held in attr.
func (i *Instance) Values(attr string) []int64 {
	return i.Refs[attr]
}

// Value returns the first reference held in attr.
func (i *Instance) Value(attr string) (int64, bool) {
	vs := i.Refs[attr]
	if len(vs) == 0 {
		return 0, false
	}
	return vs[0], true
}

// ScalarValues returns the plain values held in attr.
func (i *Instance) ScalarValues(attr string) []any {
	return i.Scalars[attr]
}

// Loaded reports whether attr has been loaded, even if empty.
func (i *Instance) Loaded(attr string) bool {
	if _, ok := i.Refs[attr]; ok {
		return true
	}
	_, ok := i.Scalars[attr]
	return ok
}

func (i *Instance) setRefs(attr string, ids []int64) {
	if i.Refs == nil {
		i.Refs = make(map[string][]int64)
	}
	i.Refs[attr] = ids
}

func (i *Instance) setScalars(attr string, vs []any) {
	if i.Scalars == nil {
		i.Scalars = make(map[string][]any)
	}
	i.Scalars[attr] = vs
}

// identity returns a copy carrying only id, name and class.
func (i *Instance) identity() *Instance {
	return &Instance{ID: i.ID, DisplayName: i.DisplayName, ClassName: i.ClassName}
}

func (i *Instance) String() string {
	return i.DisplayName
}

// IDs returns the ids of insts in order.
func IDs(insts []*Instance) []int64 {
	ids := make([]int64, len(insts))
	for n, inst := range insts {
		ids[n] = inst.ID
	}
	return ids
}

// ByID indexes insts by id.
func ByID(insts []*Instance) map[int64]*Instance {
	m := make(map[int64]*Instance, len(insts))
	for _, inst := range insts {
		m[inst.ID] = inst
	}
	return m
}

func sortByID(insts []*Instance) {
	sort.Slice(insts, func(a, b int) bool { return insts[a].ID < insts[b].ID })
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	n := 1
	for k := 1; k < len(out); k++ {
		if out[k] != out[n-1] {
			out[n] = out[k]
			n++
		}
	}
	return out[:n]
}

// Anomaly is a detected structural issue on one instance. Anomalies are
// results, never errors.
type Anomaly struct {
	Instance *Instance `json:"instance"`
	Issue    string    `json:"issue"`
}
