package checks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reactome/release-qa-sub001/domain/containment"
	"github.com/reactome/release-qa-sub001/domain/cycles"
	"github.com/reactome/release-qa-sub001/domain/duplicates"
	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/pairs"
	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// InferralCycleCheck reports x with x.inferredTo = y and y.a = x.
type InferralCycleCheck struct {
	CheckName string
	Detector  *cycles.Detector
	Roots     []string
	Inferral  string
}

func (c *InferralCycleCheck) Name() string { return c.CheckName }

func (c *InferralCycleCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return c.Detector.Reciprocal(ctx, store, c.Roots, c.Inferral)
}

// CompanionCycleCheck reports E whose primary partner refers back to E.
type CompanionCycleCheck struct {
	CheckName  string
	Detector   *cycles.Detector
	Class      string
	Primary    string
	Companions []string
}

func (c *CompanionCycleCheck) Name() string { return c.CheckName }

func (c *CompanionCycleCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return c.Detector.Companions(ctx, store, c.Class, c.Primary, c.Companions)
}

// AttributeCollisionCheck reports sources reaching the same target through
// two different attributes. Pairs whose query fails are logged and skipped.
type AttributeCollisionCheck struct {
	CheckName string
	// Enumerator produces the candidate pairs at the start of every run.
	Enumerator *pairs.Enumerator
	// Pairs is used instead when Enumerator is nil.
	Pairs   []pairs.Pair
	Builder *relquery.Builder
	Log     *slog.Logger
}

func (c *AttributeCollisionCheck) Name() string { return c.CheckName }

func (c *AttributeCollisionCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	type hit struct {
		pair relquery.Pair
		with pairs.Pair
	}
	candidates := c.Pairs
	if c.Enumerator != nil {
		candidates = c.Enumerator.Enumerate()
		c.Log.Debug("attribute pairs enumerated",
			slog.String("check", c.CheckName),
			slog.Int("pairs", len(candidates)))
	}

	var hits []hit
	var ids []int64
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := c.Builder.SharedTarget(p.A, p.B)
		if err == nil {
			var found []relquery.Pair
			found, err = store.QueryPairs(ctx, q)
			for _, f := range found {
				hits = append(hits, hit{pair: f, with: p})
				ids = append(ids, f.SourceID, f.TargetID)
			}
		}
		if err != nil {
			QueryFailures.WithLabelValues(c.CheckName).Inc()
			c.Log.Warn("skipping attribute pair",
				slog.String("check", c.CheckName),
				slog.String("pair", p.String()),
				logger.Error(err))
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}
	insts, err := store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := instances.ByID(insts)

	out := make([]instances.Anomaly, 0, len(hits))
	for _, h := range hits {
		src, ok := byID[h.pair.SourceID]
		if !ok {
			continue
		}
		target := fmt.Sprint(h.pair.TargetID)
		if t, ok := byID[h.pair.TargetID]; ok {
			target = t.DisplayName
		}
		out = append(out, instances.Anomaly{
			Instance: src,
			Issue:    fmt.Sprintf("%s and %s both refer to %s", h.with.A.Key(), h.with.B.Key(), target),
		})
	}
	return out, nil
}

// DuplicateCollectionCheck reports collections with identical members in a
// shared partition.
type DuplicateCollectionCheck struct {
	CheckName  string
	Detector   *duplicates.Detector
	Collection duplicates.Collection
}

func (c *DuplicateCollectionCheck) Name() string { return c.CheckName }

func (c *DuplicateCollectionCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return c.Detector.FindDuplicates(ctx, store, c.Collection)
}

// RepeatedMembershipCheck reports members listed more than once.
type RepeatedMembershipCheck struct {
	CheckName string
	Detector  *duplicates.Detector
	Class     string
	Members   []string
}

func (c *RepeatedMembershipCheck) Name() string { return c.CheckName }

func (c *RepeatedMembershipCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return c.Detector.RepeatedMembers(ctx, store, c.Class, c.Members)
}

// TooFewMembersCheck reports collections below a member count.
type TooFewMembersCheck struct {
	CheckName string
	Detector  *duplicates.Detector
	Class     string
	Members   []string
	Min       int
}

func (c *TooFewMembersCheck) Name() string { return c.CheckName }

func (c *TooFewMembersCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return c.Detector.TooFewMembers(ctx, store, c.Class, c.Members, c.Min)
}

// ContainmentSpeciesCheck reports species mismatches and containment cycles.
type ContainmentSpeciesCheck struct {
	CheckName string
	Checker   *containment.Checker
	Class     string
}

func (c *ContainmentSpeciesCheck) Name() string { return c.CheckName }

func (c *ContainmentSpeciesCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return c.Checker.Check(ctx, store, c.Class)
}

// AttributePredicateCheck reports every instance whose attribute matches a
// predicate, e.g. a mandatory attribute that is null.
type AttributePredicateCheck struct {
	CheckName string
	Class     string
	Attribute string
	Op        relquery.Operator
	Value     any
	Issue     string
}

func (c *AttributePredicateCheck) Name() string { return c.CheckName }

func (c *AttributePredicateCheck) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	found, err := store.FetchByAttributePredicate(ctx, c.Class, c.Attribute, c.Op, c.Value)
	if err != nil {
		return nil, err
	}
	issue := c.Issue
	if issue == "" {
		issue = fmt.Sprintf("%s %s", c.Attribute, c.Op)
		if c.Op == relquery.Equals {
			issue = fmt.Sprintf("%s = %v", c.Attribute, c.Value)
		}
	}
	out := make([]instances.Anomaly, len(found))
	for i, inst := range found {
		out[i] = instances.Anomaly{Instance: inst, Issue: issue}
	}
	return out, nil
}
