// Package containment walks containment relations (components, members,
// candidates, repeated units) with an explicit visit state, so malformed
// cyclic data is reported instead of followed.
package containment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// DefaultAttributes are the containment relations of physical entities.
var DefaultAttributes = []string{"hasComponent", "hasMember", "hasCandidate", "repeatedUnit"}

// Checker reports containers whose contained entities carry species the
// container does not list, and containment cycles.
type Checker struct {
	root        string
	containment []string
	species     string
	log         *slog.Logger
}

// NewChecker creates a checker over instances of root, following the
// containment attributes and collecting the species attribute.
func NewChecker(root string, containment []string, species string, log *slog.Logger) *Checker {
	if len(containment) == 0 {
		containment = DefaultAttributes
	}
	return &Checker{
		root:        root,
		containment: containment,
		species:     species,
		log:         log.With(logger.Scope("containment")),
	}
}

type state int

const (
	unvisited state = iota
	visiting
	done
)

type walker struct {
	byID        map[int64]*instances.Instance
	containment []string
	species     string
	state       map[int64]state
	memo        map[int64]map[int64]struct{}
	stack       []int64
	cycles      map[string][]int64
}

// visit returns the species of id and everything it contains. A node
// reached while still on the stack closes a cycle; the cycle is recorded
// and not followed.
func (w *walker) visit(id int64) map[int64]struct{} {
	switch w.state[id] {
	case done:
		return w.memo[id]
	case visiting:
		w.recordCycle(id)
		return nil
	}
	inst, ok := w.byID[id]
	if !ok {
		return nil
	}
	w.state[id] = visiting
	w.stack = append(w.stack, id)

	set := make(map[int64]struct{})
	for _, s := range inst.Values(w.species) {
		set[s] = struct{}{}
	}
	for _, child := range w.children(inst) {
		for s := range w.visit(child) {
			set[s] = struct{}{}
		}
	}

	w.stack = w.stack[:len(w.stack)-1]
	w.state[id] = done
	w.memo[id] = set
	return set
}

func (w *walker) children(inst *instances.Instance) []int64 {
	var out []int64
	for _, a := range w.containment {
		out = append(out, inst.Values(a)...)
	}
	return out
}

func (w *walker) recordCycle(id int64) {
	start := len(w.stack) - 1
	for start >= 0 && w.stack[start] != id {
		start--
	}
	cycle := append([]int64(nil), w.stack[start:]...)
	// rotate so the smallest id leads; one entry per distinct cycle
	low := 0
	for i, v := range cycle {
		if v < cycle[low] {
			low = i
		}
	}
	cycle = append(cycle[low:], cycle[:low]...)
	parts := make([]string, len(cycle))
	for i, v := range cycle {
		parts[i] = fmt.Sprint(v)
	}
	w.cycles[strings.Join(parts, ",")] = cycle
}

// Check inspects every instance of class. Contained entities are looked up
// among instances of the checker's root class.
func (c *Checker) Check(ctx context.Context, store instances.Store, class string) ([]instances.Anomaly, error) {
	if _, err := store.Model().Subclasses(class); err != nil {
		return nil, err
	}
	all, err := store.FetchByClass(ctx, c.root)
	if err != nil {
		return nil, err
	}
	for _, attr := range append(append([]string(nil), c.containment...), c.species) {
		if err := store.LoadAttributeValues(ctx, all, attr); err != nil {
			return nil, err
		}
	}

	w := &walker{
		byID:        instances.ByID(all),
		containment: c.containment,
		species:     c.species,
		state:       make(map[int64]state),
		memo:        make(map[int64]map[int64]struct{}),
		cycles:      make(map[string][]int64),
	}

	type mismatch struct {
		inst    *instances.Instance
		missing []int64
	}
	var mismatches []mismatch
	var speciesIDs []int64
	for _, inst := range all {
		if !store.Model().Isa(inst.ClassName, class) || !inst.Loaded(c.species) {
			continue
		}
		own := make(map[int64]struct{})
		for _, s := range inst.Values(c.species) {
			own[s] = struct{}{}
		}
		w.visit(inst.ID)
		contained := make(map[int64]struct{})
		for _, child := range w.children(inst) {
			for s := range w.memo[child] {
				contained[s] = struct{}{}
			}
		}

		var missing []int64
		for s := range contained {
			if _, ok := own[s]; !ok {
				missing = append(missing, s)
			}
		}
		if len(missing) == 0 {
			continue
		}
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		mismatches = append(mismatches, mismatch{inst: inst, missing: missing})
		speciesIDs = append(speciesIDs, missing...)
	}

	names := make(map[int64]string)
	if len(speciesIDs) > 0 {
		found, err := store.FetchByIDs(ctx, speciesIDs)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			names[s.ID] = s.DisplayName
		}
	}
	label := func(id int64) string {
		if n, ok := names[id]; ok {
			return n
		}
		if inst, ok := w.byID[id]; ok {
			return inst.DisplayName
		}
		return fmt.Sprint(id)
	}

	var out []instances.Anomaly
	for _, m := range mismatches {
		parts := make([]string, len(m.missing))
		for i, s := range m.missing {
			parts[i] = label(s)
		}
		out = append(out, instances.Anomaly{
			Instance: m.inst,
			Issue:    fmt.Sprintf("contained %s not listed: %s", c.species, strings.Join(parts, ", ")),
		})
	}

	keys := make([]string, 0, len(w.cycles))
	for k := range w.cycles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cycle := w.cycles[k]
		parts := make([]string, 0, len(cycle)+1)
		for _, id := range cycle {
			parts = append(parts, label(id))
		}
		parts = append(parts, label(cycle[0]))
		out = append(out, instances.Anomaly{
			Instance: w.byID[cycle[0]],
			Issue:    "containment cycle: " + strings.Join(parts, " -> "),
		})
		c.log.Warn("containment cycle", slog.Int64("id", cycle[0]), slog.Int("length", len(cycle)))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Instance.ID < out[j].Instance.ID })
	return out, nil
}
