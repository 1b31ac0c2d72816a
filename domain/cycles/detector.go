// Package cycles detects one- and two-hop cycles along designated relations.
package cycles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// Detector runs the bounded cycle checks.
type Detector struct {
	model   *schema.Model
	builder *relquery.Builder
	skip    map[string]struct{}
	log     *slog.Logger
}

// NewDetector creates a detector. Attributes named in skip never take part
// in the reciprocal check.
func NewDetector(model *schema.Model, skip []string, log *slog.Logger) *Detector {
	set := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		set[s] = struct{}{}
	}
	return &Detector{
		model:   model,
		builder: relquery.NewBuilder(model),
		skip:    set,
		log:     log.With(logger.Scope("cycles")),
	}
}

type reciprocalHit struct {
	source int64
	target int64
	attr   *schema.Attribute
}

// Reciprocal finds x with x.<inferral> = y and y.a = x, for every instance
// attribute a visible below each root whose value class isa that root.
// A failing attribute query is logged and skipped.
func (d *Detector) Reciprocal(ctx context.Context, store instances.Store, roots []string, inferral string) ([]instances.Anomaly, error) {
	var hits []reciprocalHit
	for _, root := range roots {
		forward, err := d.model.Attribute(root, inferral)
		if err != nil {
			return nil, err
		}
		candidates, err := d.backAttributes(root)
		if err != nil {
			return nil, err
		}
		for _, back := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			q, err := d.builder.Reciprocal(forward, back)
			if err != nil {
				d.log.Warn("skipping attribute", slog.String("attribute", back.Key()), logger.Error(err))
				continue
			}
			pairs, err := store.QueryPairs(ctx, q)
			if err != nil {
				d.log.Warn("skipping attribute", slog.String("attribute", back.Key()), logger.Error(err))
				continue
			}
			for _, p := range pairs {
				hits = append(hits, reciprocalHit{source: p.SourceID, target: p.TargetID, attr: back})
			}
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, 2*len(hits))
	for _, h := range hits {
		ids = append(ids, h.source, h.target)
	}
	insts, err := store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := instances.ByID(insts)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].source != hits[j].source {
			return hits[i].source < hits[j].source
		}
		if hits[i].attr.Key() != hits[j].attr.Key() {
			return hits[i].attr.Key() < hits[j].attr.Key()
		}
		return hits[i].target < hits[j].target
	})

	seen := make(map[reciprocalHit]struct{})
	var out []instances.Anomaly
	for _, h := range hits {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		x, y := byID[h.source], byID[h.target]
		if x == nil || y == nil {
			continue
		}
		out = append(out, instances.Anomaly{
			Instance: x,
			Issue:    fmt.Sprintf("%s refers to inferral source %s", h.attr.Name, y.DisplayName),
		})
	}
	return out, nil
}

// backAttributes lists instance attributes visible on root or its
// subclasses whose value class isa root, sorted by key.
func (d *Detector) backAttributes(root string) ([]*schema.Attribute, error) {
	classes, err := d.model.Subclasses(root)
	if err != nil {
		return nil, err
	}
	seen := make(map[*schema.Attribute]struct{})
	var out []*schema.Attribute
	for _, c := range classes {
		attrs, err := d.model.AttributesOf(c)
		if err != nil {
			return nil, err
		}
		for _, a := range attrs {
			if _, done := seen[a]; done {
				continue
			}
			seen[a] = struct{}{}
			if !a.IsInstance() {
				continue
			}
			if _, skipped := d.skip[a.Name]; skipped {
				continue
			}
			for _, vc := range a.ValueClasses {
				if d.model.Isa(vc.Name, root) {
					out = append(out, a)
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Companions finds instances E of class with E.<primary> = P where one of
// P's companion attributes refers back to E.
func (d *Detector) Companions(ctx context.Context, store instances.Store, class, primary string, companions []string) ([]instances.Anomaly, error) {
	primaryAttr, err := d.model.Attribute(class, primary)
	if err != nil {
		return nil, err
	}
	if !primaryAttr.IsInstance() {
		return nil, apperror.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s does not hold instance references", primaryAttr))
	}
	companionAttrs, err := d.resolveCompanions(primaryAttr, companions)
	if err != nil {
		return nil, err
	}

	subjects, err := store.FetchByAttributePredicate(ctx, class, primary, relquery.IsNotNull, nil)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, nil
	}
	if err := store.LoadAttributeValues(ctx, subjects, primary); err != nil {
		return nil, err
	}

	// referrers[companion index][subject id] = ids referring to the subject
	referrers := make([]map[int64]map[int64]struct{}, len(companionAttrs))
	for i, ca := range companionAttrs {
		referrers[i] = make(map[int64]map[int64]struct{})
		for _, a := range ca.attrs {
			rev, err := store.LoadReverseAttributeValues(ctx, subjects, a)
			if err != nil {
				d.log.Warn("skipping companion", slog.String("attribute", a.Key()), logger.Error(err))
				continue
			}
			for target, sources := range rev {
				set := referrers[i][target]
				if set == nil {
					set = make(map[int64]struct{})
					referrers[i][target] = set
				}
				for _, s := range sources {
					set[s] = struct{}{}
				}
			}
		}
	}

	type hit struct {
		subject   *instances.Instance
		partner   int64
		companion string
	}
	var hits []hit
	var partnerIDs []int64
	for _, e := range subjects {
		for _, p := range e.Values(primary) {
			for i, ca := range companionAttrs {
				if _, ok := referrers[i][e.ID][p]; ok {
					hits = append(hits, hit{subject: e, partner: p, companion: ca.name})
					partnerIDs = append(partnerIDs, p)
				}
			}
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}
	partners, err := store.FetchByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}
	byID := instances.ByID(partners)

	out := make([]instances.Anomaly, 0, len(hits))
	for _, h := range hits {
		name := fmt.Sprint(h.partner)
		if p, ok := byID[h.partner]; ok {
			name = p.DisplayName
		}
		out = append(out, instances.Anomaly{
			Instance: h.subject,
			Issue:    fmt.Sprintf("%s %s refers back via %s", primary, name, h.companion),
		})
	}
	return out, nil
}

type companion struct {
	name  string
	attrs []*schema.Attribute
}

// resolveCompanions maps each companion name to the attributes of that name
// declared on classes related to the primary attribute's value classes.
func (d *Detector) resolveCompanions(primary *schema.Attribute, names []string) ([]companion, error) {
	out := make([]companion, 0, len(names))
	for _, name := range names {
		c := companion{name: name}
		for _, a := range d.model.AttributesNamed(name) {
			if !a.IsInstance() {
				continue
			}
			for _, vc := range primary.ValueClasses {
				if d.model.Related(vc.Name, a.Origin.Name) {
					c.attrs = append(c.attrs, a)
					break
				}
			}
		}
		if len(c.attrs) == 0 {
			return nil, apperror.NewSchemaLookup(primary.ValueClasses[0].Name, name)
		}
		out = append(out, c)
	}
	return out, nil
}
