// Package pairs enumerates attribute pairs that can reference the same
// target instance from a shared source.
package pairs

import (
	"sort"

	"github.com/reactome/release-qa-sub001/domain/schema"
)

// DefaultSkip names attributes that share targets by design: audit,
// authorship, containment and inference bookkeeping.
var DefaultSkip = []string{
	"created",
	"modified",
	"reviewed",
	"revised",
	"authored",
	"edited",
	"author",
	"hasComponent",
	"hasMember",
	"hasCandidate",
	"repeatedUnit",
	"compartment",
	"species",
	"inferredFrom",
	"inferredTo",
	"orthologousEvent",
}

// Pair is an unordered attribute pair in canonical order (A.Key() < B.Key()).
// ValueClass is the first value class, in lexicographic order, through
// which the pair was found.
type Pair struct {
	A          *schema.Attribute
	B          *schema.Attribute
	ValueClass string
}

func (p Pair) String() string {
	return p.A.Key() + " ~ " + p.B.Key()
}

// Enumerator finds attribute pairs that may collide.
type Enumerator struct {
	model *schema.Model
	skip  map[string]struct{}
}

// NewEnumerator creates an enumerator excluding the attribute names in skip.
func NewEnumerator(model *schema.Model, skip []string) *Enumerator {
	set := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		set[s] = struct{}{}
	}
	return &Enumerator{model: model, skip: set}
}

// Enumerate returns every compatible pair exactly once, in deterministic
// order.
func (e *Enumerator) Enumerate() []Pair {
	byValue := e.attributesByValueClass()
	values := make([]string, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Strings(values)

	seen := make(map[[2]string]struct{})
	var out []Pair
	for i, v1 := range values {
		for _, v2 := range values[i:] {
			if !e.model.Related(v1, v2) {
				continue
			}
			for _, a := range byValue[v1] {
				for _, b := range byValue[v2] {
					if a == b || !e.model.Related(a.Origin.Name, b.Origin.Name) {
						continue
					}
					first, second := a, b
					if second.Key() < first.Key() {
						first, second = second, first
					}
					key := [2]string{first.Key(), second.Key()}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					out = append(out, Pair{A: first, B: second, ValueClass: v1})
				}
			}
		}
	}
	return out
}

// attributesByValueClass maps each allowed value class to the instance
// attributes accepting it, each list sorted by key.
func (e *Enumerator) attributesByValueClass() map[string][]*schema.Attribute {
	out := make(map[string][]*schema.Attribute)
	seen := make(map[*schema.Attribute]struct{})
	for _, class := range e.model.ClassNames() {
		attrs, _ := e.model.AttributesOf(class)
		for _, a := range attrs {
			if _, done := seen[a]; done {
				continue
			}
			seen[a] = struct{}{}
			if !a.IsInstance() {
				continue
			}
			if _, skipped := e.skip[a.Name]; skipped {
				continue
			}
			for _, vc := range e.model.AllowedValueClasses(a) {
				out[vc.Name] = append(out[vc.Name], a)
			}
		}
	}
	for v := range out {
		attrs := out[v]
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key() < attrs[j].Key() })
	}
	return out
}
