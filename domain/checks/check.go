// Package checks orchestrates named structural checks over an instance
// store and turns their anomalies into uniform reports.
package checks

import (
	"context"

	"github.com/reactome/release-qa-sub001/domain/instances"
)

// Check is one named, read-only consistency check.
type Check interface {
	Name() string
	Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error)
}

// Func adapts a function to Check.
type Func struct {
	CheckName string
	Fn        func(ctx context.Context, store instances.Store) ([]instances.Anomaly, error)
}

func (f Func) Name() string { return f.CheckName }

func (f Func) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	return f.Fn(ctx, store)
}

// skipping drops anomalies on listed instance ids.
type skipping struct {
	Check
	ids map[int64]struct{}
}

// WithSkipList wraps c so anomalies on the given instances are dropped.
func WithSkipList(c Check, ids []int64) Check {
	if len(ids) == 0 {
		return c
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return skipping{Check: c, ids: set}
}

func (s skipping) Run(ctx context.Context, store instances.Store) ([]instances.Anomaly, error) {
	found, err := s.Check.Run(ctx, store)
	if err != nil {
		return nil, err
	}
	return Subtract(found, s.ids), nil
}

// Subtract returns the anomalies whose instance is not in ids. The input
// is not modified.
func Subtract(found []instances.Anomaly, ids map[int64]struct{}) []instances.Anomaly {
	out := make([]instances.Anomaly, 0, len(found))
	for _, a := range found {
		if _, skip := ids[a.Instance.ID]; skip {
			continue
		}
		out = append(out, a)
	}
	return out
}
