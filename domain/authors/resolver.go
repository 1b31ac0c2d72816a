// Package authors resolves the most recent curator of an instance from its
// audit trail.
package authors

import (
	"context"

	"github.com/reactome/release-qa-sub001/domain/instances"
)

// NoAuthor is returned when no qualifying edit exists.
const NoAuthor = "No author"

// Attribute names of the audit trail.
const (
	Modified = "modified"
	Created  = "created"
	Author   = "author"
)

// Resolver picks the most recent non-excluded author.
type Resolver struct {
	excluded map[int64]struct{}
	noAuthor string
}

// NewResolver creates a resolver ignoring the given person ids. An empty
// noAuthor selects NoAuthor.
func NewResolver(excluded []int64, noAuthor string) *Resolver {
	set := make(map[int64]struct{}, len(excluded))
	for _, id := range excluded {
		set[id] = struct{}{}
	}
	if noAuthor == "" {
		noAuthor = NoAuthor
	}
	return &Resolver{excluded: set, noAuthor: noAuthor}
}

// MostRecentAuthor resolves a single instance.
func (r *Resolver) MostRecentAuthor(ctx context.Context, store instances.Store, inst *instances.Instance) (string, error) {
	names, err := r.Resolve(ctx, store, []*instances.Instance{inst})
	if err != nil {
		return "", err
	}
	return names[inst.ID], nil
}

// Resolve maps each instance id to the display name of its most recent
// non-excluded author. Modification edits are walked newest first, then
// the creation edit.
func (r *Resolver) Resolve(ctx context.Context, store instances.Store, insts []*instances.Instance) (map[int64]string, error) {
	out := make(map[int64]string, len(insts))
	if len(insts) == 0 {
		return out, nil
	}
	subjects := make([]*instances.Instance, len(insts))
	for i, inst := range insts {
		subjects[i] = &instances.Instance{ID: inst.ID, DisplayName: inst.DisplayName, ClassName: inst.ClassName}
	}
	for _, attr := range []string{Modified, Created} {
		if err := store.LoadAttributeValues(ctx, subjects, attr); err != nil {
			return nil, err
		}
	}

	trails := make(map[int64][]int64, len(subjects))
	var editIDs []int64
	for _, s := range subjects {
		mods := s.Values(Modified)
		trail := make([]int64, 0, len(mods)+1)
		for i := len(mods) - 1; i >= 0; i-- {
			trail = append(trail, mods[i])
		}
		trail = append(trail, s.Values(Created)...)
		trails[s.ID] = trail
		editIDs = append(editIDs, trail...)
	}

	edits, err := store.FetchByIDs(ctx, editIDs)
	if err != nil {
		return nil, err
	}
	if err := store.LoadAttributeValues(ctx, edits, Author); err != nil {
		return nil, err
	}
	editByID := instances.ByID(edits)

	var personIDs []int64
	for _, e := range edits {
		personIDs = append(personIDs, e.Values(Author)...)
	}
	persons, err := store.FetchByIDs(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	personByID := instances.ByID(persons)

	for _, s := range subjects {
		out[s.ID] = r.noAuthor
	trail:
		for _, editID := range trails[s.ID] {
			edit, ok := editByID[editID]
			if !ok {
				continue
			}
			for _, pid := range edit.Values(Author) {
				if _, skip := r.excluded[pid]; skip {
					continue
				}
				if p, ok := personByID[pid]; ok {
					out[s.ID] = p.DisplayName
					break trail
				}
			}
		}
	}
	return out, nil
}
