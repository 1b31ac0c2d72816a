package duplicates_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/domain/duplicates"
	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/internal/testutil"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type issue struct {
	ID    int64
	Issue string
}

func issues(as []instances.Anomaly) []issue {
	out := make([]issue, len(as))
	for i, a := range as {
		out[i] = issue{ID: a.Instance.ID, Issue: a.Issue}
	}
	return out
}

var definedSets = duplicates.Collection{Class: "DefinedSet", Partition: "compartment", Members: []string{"hasMember"}}

func entities(f *testutil.Fixture) {
	f.Add(10, "Compartment", "C1", nil)
	f.Add(11, "Compartment", "C2", nil)
	f.Add(12, "Compartment", "C3", nil)
	f.Add(1, "SimpleEntity", "E1", nil)
	f.Add(2, "SimpleEntity", "E2", nil)
	f.Add(3, "SimpleEntity", "E3", nil)
}

func TestFindDuplicates_SharedCompartment(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	entities(f)
	f.Add(100, "DefinedSet", "S1", testutil.Refs{"compartment": {10}, "hasMember": {1, 2}})
	f.Add(101, "DefinedSet", "S2", testutil.Refs{"compartment": {10}, "hasMember": {2, 1}})

	db := testutil.OpenSQLite(t, f.Store)
	for name, s := range map[string]instances.Store{
		"memory": f.Store,
		"sqlite": instances.NewRepository(db, f.Store.Model(), discard()),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := duplicates.NewDetector(discard()).FindDuplicates(context.Background(), s, definedSets)
			require.NoError(t, err)
			assert.Equal(t, []issue{{101, "hasMember identical to S1 [100]"}}, issues(got))
		})
	}
}

func TestFindDuplicates_DifferentCompartments(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	entities(f)
	f.Add(100, "DefinedSet", "S1", testutil.Refs{"compartment": {10}, "hasMember": {1, 2}})
	f.Add(101, "DefinedSet", "S2", testutil.Refs{"compartment": {11}, "hasMember": {1, 2}})

	got, err := duplicates.NewDetector(discard()).FindDuplicates(context.Background(), f.Store, definedSets)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindDuplicates_ReportedOncePerPair(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	entities(f)
	f.Add(100, "DefinedSet", "S1", testutil.Refs{"compartment": {10, 11}, "hasMember": {1, 2}})
	f.Add(101, "DefinedSet", "S2", testutil.Refs{"compartment": {11, 10}, "hasMember": {1, 2, 1}})
	f.Add(102, "DefinedSet", "S3", testutil.Refs{"compartment": {11}, "hasMember": {2, 1}})
	f.Add(103, "DefinedSet", "S4", testutil.Refs{"compartment": {10}, "hasMember": {1, 2, 3}})
	f.Add(104, "DefinedSet", "Empty1", testutil.Refs{"compartment": {12}})
	f.Add(105, "DefinedSet", "Empty2", testutil.Refs{"compartment": {12}})

	want := []issue{
		{101, "hasMember identical to S1 [100]"},
		{102, "hasMember identical to S1 [100]"},
		{102, "hasMember identical to S2 [101]"},
	}
	for _, strategy := range []duplicates.Strategy{duplicates.Pairwise, duplicates.Hash} {
		t.Run(string(strategy), func(t *testing.T) {
			c := definedSets
			c.Strategy = strategy
			got, err := duplicates.NewDetector(discard()).FindDuplicates(context.Background(), f.Store, c)
			require.NoError(t, err)
			assert.Equal(t, want, issues(got))
		})
	}
}

func TestFindDuplicates_UnionOfMemberAttributes(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	entities(f)
	f.Add(100, "CandidateSet", "CS", testutil.Refs{"compartment": {10}, "hasMember": {1}, "hasCandidate": {2}})
	f.Add(101, "DefinedSet", "DS", testutil.Refs{"compartment": {10}, "hasMember": {2, 1}})

	c := duplicates.Collection{Class: "EntitySet", Partition: "compartment", Members: []string{"hasMember", "hasCandidate"}}
	got, err := duplicates.NewDetector(discard()).FindDuplicates(context.Background(), f.Store, c)
	require.NoError(t, err)
	assert.Equal(t, []issue{{101, "hasMember+hasCandidate identical to CS [100]"}}, issues(got))
}

func TestFindDuplicates_Config(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	d := duplicates.NewDetector(discard())
	ctx := context.Background()

	_, err := d.FindDuplicates(ctx, f.Store, duplicates.Collection{Class: "DefinedSet", Members: []string{"hasMember"}})
	assert.True(t, errors.Is(err, apperror.ErrInvalidConfig))

	_, err = d.FindDuplicates(ctx, f.Store, duplicates.Collection{Class: "DefinedSet", Partition: "compartment", Members: []string{"nope"}})
	assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))

	c := definedSets
	c.Strategy = "bloom"
	_, err = d.FindDuplicates(ctx, f.Store, c)
	assert.True(t, errors.Is(err, apperror.ErrInvalidConfig))
}

func TestRepeats(t *testing.T) {
	const m1, m2, m3 = 1, 2, 3
	assert.Equal(t, []duplicates.Repeat{{ID: m1, Count: 3}}, duplicates.Repeats([]int64{m1, m2, m1, m3, m1}))
	assert.Equal(t, []duplicates.Repeat{{ID: m2, Count: 2}, {ID: m1, Count: 2}}, duplicates.Repeats([]int64{m2, m1, m2, m1}))
	assert.Empty(t, duplicates.Repeats([]int64{m1, m2, m3}))
	assert.Empty(t, duplicates.Repeats(nil))
}

func TestRepeatedMembers_OneLinePerRepeatedMember(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	entities(f)
	f.Add(4, "SimpleEntity", "M3", nil)
	f.Add(100, "Complex", "X", testutil.Refs{"hasComponent": {1, 2, 1, 4, 1}})
	f.Add(101, "Complex", "Y", testutil.Refs{"hasComponent": {1, 2}})

	db := testutil.OpenSQLite(t, f.Store)
	for name, s := range map[string]instances.Store{
		"memory": f.Store,
		"sqlite": instances.NewRepository(db, f.Store.Model(), discard()),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := duplicates.NewDetector(discard()).RepeatedMembers(context.Background(), s, "Complex", []string{"hasComponent"})
			require.NoError(t, err)
			assert.Equal(t, []issue{{100, "E1 occurs 3 times in hasComponent"}}, issues(got))
		})
	}
}

func TestTooFewMembers(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	entities(f)
	f.Add(100, "DefinedSet", "One", testutil.Refs{"hasMember": {1, 1}})
	f.Add(101, "DefinedSet", "Two", testutil.Refs{"hasMember": {1, 2}})
	f.Add(102, "CandidateSet", "Split", testutil.Refs{"hasMember": {1}, "hasCandidate": {2}})
	f.Add(103, "DefinedSet", "None", nil)

	got, err := duplicates.NewDetector(discard()).TooFewMembers(context.Background(), f.Store, "EntitySet", []string{"hasMember", "hasCandidate"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []issue{
		{100, "1 distinct hasMember/hasCandidate, expected at least 2"},
		{103, "0 distinct hasMember/hasCandidate, expected at least 2"},
	}, issues(got))
}
