// Package duplicates finds collections with identical membership inside a
// partition scope and collections that repeat or lack members.
package duplicates

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// Strategy selects how equal memberships are found within a bucket.
type Strategy string

const (
	// Pairwise compares each instance with every earlier one in its bucket.
	Pairwise Strategy = "pairwise"
	// Hash groups instances by a key built from their sorted member ids.
	Hash Strategy = "hash"
)

// Collection describes the instances to compare.
type Collection struct {
	Class     string
	Partition string
	Members   []string
	Strategy  Strategy
}

// Detector runs the collection checks.
type Detector struct {
	log *slog.Logger
}

// NewDetector creates a detector.
func NewDetector(log *slog.Logger) *Detector {
	return &Detector{log: log.With(logger.Scope("duplicates"))}
}

type member struct {
	inst *instances.Instance
	set  map[int64]struct{}
	key  string
}

// FindDuplicates reports every pair of instances of c.Class that share a
// partition value and have equal, non-empty membership sets. The later
// instance (by id) is reported against the earlier one, once per pair.
func (d *Detector) FindDuplicates(ctx context.Context, store instances.Store, c Collection) ([]instances.Anomaly, error) {
	if c.Partition == "" || len(c.Members) == 0 {
		return nil, apperror.NewInvalidConfig("duplicate check needs a partition and at least one member attribute")
	}
	insts, err := store.FetchByClass(ctx, c.Class)
	if err != nil {
		return nil, err
	}
	for _, attr := range append([]string{c.Partition}, c.Members...) {
		if err := visibleBelow(store.Model(), c.Class, attr); err != nil {
			return nil, err
		}
		if err := store.LoadAttributeValues(ctx, insts, attr); err != nil {
			return nil, err
		}
	}

	var pairs [][2]*instances.Instance
	switch c.Strategy {
	case Hash:
		pairs = hashPairs(insts, c)
	case Pairwise, "":
		pairs = pairwisePairs(insts, c)
	default:
		return nil, apperror.NewInvalidConfig(fmt.Sprintf("unknown duplicate strategy %q", c.Strategy))
	}
	d.log.Debug("duplicate scan",
		slog.String("class", c.Class),
		slog.Int("instances", len(insts)),
		slog.Int("pairs", len(pairs)))

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0].ID != pairs[j][0].ID {
			return pairs[i][0].ID < pairs[j][0].ID
		}
		return pairs[i][1].ID < pairs[j][1].ID
	})
	label := strings.Join(c.Members, "+")
	out := make([]instances.Anomaly, len(pairs))
	for i, p := range pairs {
		out[i] = instances.Anomaly{
			Instance: p[0],
			Issue:    fmt.Sprintf("%s identical to %s [%d]", label, p[1].DisplayName, p[1].ID),
		}
	}
	return out, nil
}

func membership(inst *instances.Instance, attrs []string) member {
	m := member{inst: inst, set: make(map[int64]struct{})}
	for _, a := range attrs {
		for _, v := range inst.Values(a) {
			m.set[v] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(m.set))
	for id := range m.set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	m.key = strings.Join(parts, ",")
	return m
}

// partitions returns the distinct partition values of inst in order.
func partitions(inst *instances.Instance, attr string) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, v := range inst.Values(attr) {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sameSet(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// pairwisePairs returns (later, earlier) pairs by comparing each instance
// against the instances already seen in each of its buckets.
func pairwisePairs(insts []*instances.Instance, c Collection) [][2]*instances.Instance {
	buckets := make(map[int64][]member)
	reported := make(map[[2]int64]struct{})
	var out [][2]*instances.Instance
	for _, inst := range insts {
		m := membership(inst, c.Members)
		if len(m.set) == 0 {
			continue
		}
		for _, p := range partitions(inst, c.Partition) {
			for _, prev := range buckets[p] {
				if len(prev.set) != len(m.set) || !sameSet(prev.set, m.set) {
					continue
				}
				key := [2]int64{inst.ID, prev.inst.ID}
				if _, dup := reported[key]; dup {
					continue
				}
				reported[key] = struct{}{}
				out = append(out, [2]*instances.Instance{inst, prev.inst})
			}
			buckets[p] = append(buckets[p], m)
		}
	}
	return out
}

// hashPairs produces the same pairs as pairwisePairs by grouping on
// (partition value, member key).
func hashPairs(insts []*instances.Instance, c Collection) [][2]*instances.Instance {
	type groupKey struct {
		partition int64
		members   string
	}
	groups := make(map[groupKey][]*instances.Instance)
	reported := make(map[[2]int64]struct{})
	var out [][2]*instances.Instance
	for _, inst := range insts {
		m := membership(inst, c.Members)
		if len(m.set) == 0 {
			continue
		}
		for _, p := range partitions(inst, c.Partition) {
			k := groupKey{partition: p, members: m.key}
			for _, prev := range groups[k] {
				key := [2]int64{inst.ID, prev.ID}
				if _, dup := reported[key]; dup {
					continue
				}
				reported[key] = struct{}{}
				out = append(out, [2]*instances.Instance{inst, prev})
			}
			groups[k] = append(groups[k], inst)
		}
	}
	return out
}

// Repeat is a member occurring more than once in a membership list.
type Repeat struct {
	ID    int64
	Count int
}

// Repeats returns one entry per distinct value occurring more than once,
// in order of first occurrence.
func Repeats(values []int64) []Repeat {
	counts := make(map[int64]int, len(values))
	var order []int64
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	var out []Repeat
	for _, v := range order {
		if counts[v] > 1 {
			out = append(out, Repeat{ID: v, Count: counts[v]})
		}
	}
	return out
}

// RepeatedMembers reports instances of class whose concatenated membership
// lists hold a member more than once, one anomaly per repeated member.
func (d *Detector) RepeatedMembers(ctx context.Context, store instances.Store, class string, attrs []string) ([]instances.Anomaly, error) {
	insts, err := d.loadMembers(ctx, store, class, attrs)
	if err != nil {
		return nil, err
	}
	type hit struct {
		inst   *instances.Instance
		repeat Repeat
	}
	var hits []hit
	var memberIDs []int64
	for _, inst := range insts {
		var values []int64
		for _, a := range attrs {
			values = append(values, inst.Values(a)...)
		}
		for _, r := range Repeats(values) {
			hits = append(hits, hit{inst: inst, repeat: r})
			memberIDs = append(memberIDs, r.ID)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}
	names, err := displayNames(ctx, store, memberIDs)
	if err != nil {
		return nil, err
	}
	label := strings.Join(attrs, "/")
	out := make([]instances.Anomaly, len(hits))
	for i, h := range hits {
		out[i] = instances.Anomaly{
			Instance: h.inst,
			Issue:    fmt.Sprintf("%s occurs %d times in %s", names(h.repeat.ID), h.repeat.Count, label),
		}
	}
	return out, nil
}

// TooFewMembers reports instances of class with fewer than min distinct
// members across attrs.
func (d *Detector) TooFewMembers(ctx context.Context, store instances.Store, class string, attrs []string, min int) ([]instances.Anomaly, error) {
	insts, err := d.loadMembers(ctx, store, class, attrs)
	if err != nil {
		return nil, err
	}
	label := strings.Join(attrs, "/")
	var out []instances.Anomaly
	for _, inst := range insts {
		n := len(membership(inst, attrs).set)
		if n >= min {
			continue
		}
		out = append(out, instances.Anomaly{
			Instance: inst,
			Issue:    fmt.Sprintf("%d distinct %s, expected at least %d", n, label, min),
		})
	}
	return out, nil
}

func (d *Detector) loadMembers(ctx context.Context, store instances.Store, class string, attrs []string) ([]*instances.Instance, error) {
	if len(attrs) == 0 {
		return nil, apperror.NewInvalidConfig("membership check needs at least one member attribute")
	}
	for _, a := range attrs {
		if err := visibleBelow(store.Model(), class, a); err != nil {
			return nil, err
		}
	}
	insts, err := store.FetchByClass(ctx, class)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if err := store.LoadAttributeValues(ctx, insts, a); err != nil {
			return nil, err
		}
	}
	return insts, nil
}

// visibleBelow accepts attr when class or one of its subclasses has it.
func visibleBelow(model *schema.Model, class, attr string) error {
	subs, err := model.Subclasses(class)
	if err != nil {
		return err
	}
	for _, c := range subs {
		if _, err := model.Attribute(c, attr); err == nil {
			return nil
		}
	}
	return apperror.NewSchemaLookup(class, attr)
}

func displayNames(ctx context.Context, store instances.Store, ids []int64) (func(int64) string, error) {
	insts, err := store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := instances.ByID(insts)
	return func(id int64) string {
		if inst, ok := byID[id]; ok {
			return inst.DisplayName
		}
		return strconv.FormatInt(id, 10)
	}, nil
}
