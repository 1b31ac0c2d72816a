package checks_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/internal/testutil"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

func names(cs []checks.Check) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name()
	}
	return out
}

func TestDefaultSuite_Builds(t *testing.T) {
	suite := checks.DefaultSuite()
	built, err := suite.Build(testutil.Model(t), discard())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"InferredToCycles",
		"PrecedingEventCycles",
		"AttributeCollisions",
		"DuplicatedDefinedSets",
		"DuplicatedCandidateSets",
		"RepeatedSetMembers",
		"SingleMemberDefinedSets",
		"ContainedSpecies",
		"EntitiesWithoutCompartment",
	}, names(built))
}

func TestDefaultSuite_BuildsAgainstShippedSchema(t *testing.T) {
	model, err := schema.LoadYAML(filepath.Join("..", "..", "configs", "schema.yaml"))
	require.NoError(t, err)

	built, err := checks.DefaultSuite().Build(model, discard())
	require.NoError(t, err)
	assert.Len(t, built, 9)
}

func TestBuild_AttributeCollisionEnumeratesEachRun(t *testing.T) {
	built, err := checks.DefaultSuite().Build(testutil.Model(t), discard())
	require.NoError(t, err)

	var collision *checks.AttributeCollisionCheck
	for _, c := range built {
		if c.Name() == "AttributeCollisions" {
			collision, _ = c.(*checks.AttributeCollisionCheck)
		}
	}
	require.NotNil(t, collision)
	assert.NotNil(t, collision.Enumerator)
	assert.Nil(t, collision.Pairs)
}

func TestSuite_UnknownSchemaNameFailsOnlyThatCheck(t *testing.T) {
	suite, err := checks.ParseSuite([]byte(`
checks:
  - name: Misspelled
    type: attribute_predicate
    class: PhysicalEntity
    attribute: compartmnt
    operator: is_null
  - name: NoCompartment
    type: attribute_predicate
    class: PhysicalEntity
    attribute: compartment
    operator: is_null
`))
	require.NoError(t, err)

	f := testutil.NewFixture(t, nil)
	f.Add(1, "SimpleEntity", "P1", nil)

	built, err := suite.Build(f.Store.Model(), discard())
	require.NoError(t, err)
	run := checks.NewRunner(discard()).Run(context.Background(), f.Store, built)

	assert.Equal(t, []string{"Misspelled"}, run.Failed())
	res, ok := run.Result("NoCompartment")
	require.True(t, ok)
	assert.Equal(t, 1, res.Report.Len())
}

func TestParseSuite_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "empty", yaml: `checks: []`, want: "no checks"},
		{name: "malformed", yaml: `checks: [`, want: "parse suite yaml"},
		{name: "missing name", yaml: "checks:\n  - type: attribute_collision\n", want: "without name"},
		{
			name: "duplicate name",
			yaml: "checks:\n  - {name: A, type: attribute_collision}\n  - {name: A, type: attribute_collision}\n",
			want: "duplicate check name",
		},
		{name: "unknown type", yaml: "checks:\n  - {name: A, type: orphan_scan}\n", want: "unknown type"},
		{name: "inferral without roots", yaml: "checks:\n  - {name: A, type: inferral_cycle, inferral: inferredTo}\n", want: "roots is required"},
		{name: "duplicates without partition", yaml: "checks:\n  - {name: A, type: duplicate_collection, class: DefinedSet, members: [hasMember]}\n", want: "partition"},
		{
			name: "bad operator",
			yaml: "checks:\n  - {name: A, type: attribute_predicate, class: PhysicalEntity, attribute: compartment, operator: like}\n",
			want: "unknown operator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checks.ParseSuite([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const smallSuite = `
parallelism: 2
authors:
  excluded: [140537]
checks:
  - name: InferredToCycles
    type: inferral_cycle
    roots: [PhysicalEntity]
    inferral: inferredTo
  - name: SingleMember
    type: too_few_members
    class: DefinedSet
    members: [hasMember]
    disabled: true
  - name: NoCompartment
    type: attribute_predicate
    class: PhysicalEntity
    attribute: compartment
    operator: is_null
    skip: [2]
`

func TestParseSuite_DisabledEntriesAreNotBuilt(t *testing.T) {
	suite, err := checks.ParseSuite([]byte(smallSuite))
	require.NoError(t, err)
	assert.Equal(t, 2, suite.Parallelism)
	assert.Equal(t, []int64{140537}, suite.Authors.Excluded)

	built, err := suite.Build(testutil.Model(t), discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"InferredToCycles", "NoCompartment"}, names(built))
}

func TestSuite_Select(t *testing.T) {
	suite, err := checks.ParseSuite([]byte(smallSuite))
	require.NoError(t, err)

	all, err := suite.Select(nil)
	require.NoError(t, err)
	assert.Same(t, suite, all)

	picked, err := suite.Select([]string{"SingleMember", "InferredToCycles"})
	require.NoError(t, err)
	require.Len(t, picked.Checks, 2)
	assert.Equal(t, "SingleMember", picked.Checks[0].Name)
	assert.False(t, picked.Checks[0].Disabled)
	assert.True(t, suite.Checks[1].Disabled)

	_, err = suite.Select([]string{"Nope"})
	assert.ErrorIs(t, err, apperror.ErrCheckNotFound)
}

func TestLoadSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallSuite), 0o600))

	suite, err := checks.LoadSuite(path)
	require.NoError(t, err)
	assert.Len(t, suite.Checks, 3)

	_, err = checks.LoadSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSuite_SkipListApplies(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	f.Add(1, "SimpleEntity", "P1", nil)
	f.Add(2, "SimpleEntity", "P2", nil)

	suite, err := checks.ParseSuite([]byte(smallSuite))
	require.NoError(t, err)
	built, err := suite.Build(f.Store.Model(), discard())
	require.NoError(t, err)

	got, err := built[1].Run(context.Background(), f.Store)
	require.NoError(t, err)
	assert.Equal(t, []issue{{1, "compartment IS NULL"}}, issues(got))
}

// The reciprocal-inferral scenario end to end: P1.inferredTo = P2 and
// P2.relatedTo = P1 yields one row on P1, on every store.
func TestDefaultSuite_EndToEnd(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	f.Add(10, "Compartment", "cytosol", nil)
	f.Add(1, "SimpleEntity", "P1", testutil.Refs{"inferredTo": {2}, "compartment": {10}})
	f.Add(2, "SimpleEntity", "P2", testutil.Refs{"relatedTo": {1}, "compartment": {10}})

	db := testutil.OpenSQLite(t, f.Store)
	stores := map[string]instances.Store{
		"memory": f.Store,
		"sqlite": instances.NewRepository(db, f.Store.Model(), discard(), instances.WithSnapshotOptions(&sql.TxOptions{})),
	}

	suite := checks.DefaultSuite()
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			built, err := suite.Build(store.Model(), discard())
			require.NoError(t, err)

			run := checks.NewRunner(discard(), checks.WithAuthors(suite.Resolver())).Run(context.Background(), store, built)

			assert.Empty(t, run.Failed())
			res, ok := run.Result("InferredToCycles")
			require.True(t, ok)
			assert.Equal(t, [][]string{
				{"1", "P1", "SimpleEntity", "relatedTo refers to inferral source P2", "No author"},
			}, res.Report.Rows)
			assert.Equal(t, 1, run.Anomalies())
		})
	}
}
