package instances_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/internal/testutil"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

func fixture(t *testing.T) *testutil.Fixture {
	f := testutil.NewFixture(t, nil)
	f.Add(10, "Compartment", "cytosol", nil)
	f.Add(11, "Compartment", "nucleoplasm", nil)
	f.Add(1, "SimpleEntity", "P1", testutil.Refs{"inferredTo": {2}, "compartment": {10}})
	f.Add(2, "SimpleEntity", "P2", testutil.Refs{"relatedTo": {1}, "compartment": {11}})
	f.Add(3, "DefinedSet", "S1", testutil.Refs{"hasMember": {1, 2, 1}, "compartment": {10}})
	f.Add(4, "Complex", "X1", testutil.Refs{"hasComponent": {1}})
	f.Add(20, "Pathway", "PW", testutil.Refs{"hasEvent": {21}})
	f.Add(21, "ReactionlikeEvent", "R1", testutil.Refs{"precedingEvent": {20}})
	return f
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// forEachStore runs fn against the memory store and its SQLite mirror, and
// against PostgreSQL when TEST_DATABASE_URL is set.
func forEachStore(t *testing.T, fn func(t *testing.T, s instances.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, fixture(t).Store)
	})
	t.Run("sqlite", func(t *testing.T) {
		mem := fixture(t).Store
		db := testutil.OpenSQLite(t, mem)
		fn(t, instances.NewRepository(db, mem.Model(), discard(), instances.WithQueryRateLimit(10000, 10)))
	})
	t.Run("postgres", func(t *testing.T) {
		mem := fixture(t).Store
		db := testutil.OpenPostgres(t, mem)
		fn(t, instances.NewRepository(db, mem.Model(), discard()))
	})
}

func TestFetchByID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s instances.Store) {
		ctx := context.Background()
		inst, err := s.FetchByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "S1", inst.DisplayName)
		assert.Equal(t, "DefinedSet", inst.ClassName)
		assert.False(t, inst.Loaded("hasMember"))

		_, err = s.FetchByID(ctx, 999)
		assert.True(t, errors.Is(err, apperror.ErrInstanceNotFound))
	})
}

func TestFetchByClass_IncludesSubclasses(t *testing.T) {
	forEachStore(t, func(t *testing.T, s instances.Store) {
		insts, err := s.FetchByClass(context.Background(), "PhysicalEntity")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4}, instances.IDs(insts))

		_, err = s.FetchByClass(context.Background(), "Nope")
		assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))
	})
}

func TestFetchByAttributePredicate(t *testing.T) {
	tests := []struct {
		name  string
		class string
		attr  string
		op    relquery.Operator
		value any
		want  []int64
	}{
		{"single not null", "PhysicalEntity", "relatedTo", relquery.IsNotNull, nil, []int64{2}},
		{"single null", "PhysicalEntity", "relatedTo", relquery.IsNull, nil, []int64{1, 3, 4}},
		{"multiple equals", "PhysicalEntity", "compartment", relquery.Equals, int64(10), []int64{1, 3}},
		{"multiple null", "PhysicalEntity", "compartment", relquery.IsNull, nil, []int64{4}},
		{"subclass scope", "EntitySet", "hasMember", relquery.IsNotNull, nil, []int64{3}},
	}
	forEachStore(t, func(t *testing.T, s instances.Store) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				insts, err := s.FetchByAttributePredicate(context.Background(), tt.class, tt.attr, tt.op, tt.value)
				require.NoError(t, err)
				assert.Equal(t, tt.want, instances.IDs(insts))
			})
		}
	})
}

func TestLoadAttributeValues_KeepsOrderAndRepeats(t *testing.T) {
	forEachStore(t, func(t *testing.T, s instances.Store) {
		ctx := context.Background()
		insts, err := s.FetchByIDs(ctx, []int64{3, 4, 1})
		require.NoError(t, err)

		require.NoError(t, s.LoadAttributeValues(ctx, insts, "hasMember"))
		byID := instances.ByID(insts)
		assert.Equal(t, []int64{1, 2, 1}, byID[3].Values("hasMember"))
		assert.False(t, byID[4].Loaded("hasMember"))
		assert.False(t, byID[1].Loaded("hasMember"))

		require.NoError(t, s.LoadAttributeValues(ctx, insts, "compartment"))
		assert.Equal(t, []int64{10}, byID[1].Values("compartment"))
		assert.True(t, byID[4].Loaded("compartment"))
		assert.Empty(t, byID[4].Values("compartment"))
	})
}

func TestLoadReverseAttributeValues(t *testing.T) {
	forEachStore(t, func(t *testing.T, s instances.Store) {
		ctx := context.Background()
		attr, err := s.Model().Attribute("PhysicalEntity", "compartment")
		require.NoError(t, err)
		targets, err := s.FetchByIDs(ctx, []int64{10, 11})
		require.NoError(t, err)

		got, err := s.LoadReverseAttributeValues(ctx, targets, attr)
		require.NoError(t, err)
		assert.Equal(t, map[int64][]int64{10: {1, 3}, 11: {2}}, got)
	})
}

func TestQueryPairs_Reciprocal(t *testing.T) {
	forEachStore(t, func(t *testing.T, s instances.Store) {
		m := s.Model()
		fwd, err := m.Attribute("PhysicalEntity", "inferredTo")
		require.NoError(t, err)
		back, err := m.Attribute("PhysicalEntity", "relatedTo")
		require.NoError(t, err)

		q, err := relquery.NewBuilder(m).Reciprocal(fwd, back)
		require.NoError(t, err)
		pairs, err := s.QueryPairs(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, []relquery.Pair{{SourceID: 1, TargetID: 2}}, pairs)
	})
}

func TestQueryPairs_SharedTarget(t *testing.T) {
	forEachStore(t, func(t *testing.T, s instances.Store) {
		m := s.Model()
		members, err := m.Attribute("DefinedSet", "hasMember")
		require.NoError(t, err)
		inferred, err := m.Attribute("DefinedSet", "inferredTo")
		require.NoError(t, err)

		q, err := relquery.NewBuilder(m).SharedTarget(members, inferred)
		require.NoError(t, err)
		pairs, err := s.QueryPairs(context.Background(), q)
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})
}

func TestRepository_Snapshot(t *testing.T) {
	mem := fixture(t).Store
	db := testutil.OpenSQLite(t, mem)
	repo := instances.NewRepository(db, mem.Model(), discard(), instances.WithSnapshotOptions(&sql.TxOptions{}))

	snap, release, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	inst, err := snap.FetchByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "P1", inst.DisplayName)
	assert.NoError(t, release())
}

func TestRepository_QueryErrorCarriesQuery(t *testing.T) {
	mem := testutil.NewFixture(t, nil).Store
	db := testutil.OpenSQLite(t, mem)
	_, err := db.ExecContext(context.Background(), `DROP TABLE "PhysicalEntity_2_inferredTo"`)
	require.NoError(t, err)

	repo := instances.NewRepository(db, mem.Model(), discard())
	fwd, _ := mem.Model().Attribute("PhysicalEntity", "inferredTo")
	back, _ := mem.Model().Attribute("PhysicalEntity", "relatedTo")
	q, err := relquery.NewBuilder(mem.Model()).Reciprocal(fwd, back)
	require.NoError(t, err)

	_, err = repo.QueryPairs(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrQueryExecution))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details["query"], "PhysicalEntity_2_inferredTo")
}

func TestMemoryStore_AddValidates(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	s := f.Store

	err := s.Add(&instances.Instance{ID: 1, ClassName: "Nope"})
	assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))

	err = s.Add(&instances.Instance{ID: 1, ClassName: "SimpleEntity", Refs: map[string][]int64{"hasMember": {2}}})
	assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))

	err = s.Add(&instances.Instance{ID: 1, ClassName: "SimpleEntity", Refs: map[string][]int64{"relatedTo": {2, 3}}})
	assert.True(t, errors.Is(err, apperror.ErrInvalidConfig))

	require.NoError(t, s.Add(&instances.Instance{ID: 1, ClassName: "SimpleEntity"}))
	err = s.Add(&instances.Instance{ID: 1, ClassName: "SimpleEntity"})
	assert.True(t, errors.Is(err, apperror.ErrInvalidConfig))
}

func TestParseSnapshot(t *testing.T) {
	doc := `
instances:
  - {id: 1, class: SimpleEntity, name: P1, refs: {inferredTo: [2]}}
  - {id: 2, class: SimpleEntity, name: P2, refs: {relatedTo: [1]}}
  - {id: 5, class: InstanceEdit, name: "edit", values: {dateTime: ["2024-01-01"]}}
`
	s, err := instances.ParseSnapshot(testutil.Model(t), []byte(doc))
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int64{2}, all[0].Values("inferredTo"))
	assert.Equal(t, []any{"2024-01-01"}, all[2].ScalarValues("dateTime"))

	_, err = instances.ParseSnapshot(testutil.Model(t), []byte("instances: [{id: 1, class: Nope}]"))
	assert.Error(t, err)
}
