package checks_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/domain/authors"
	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/internal/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// reporting returns a check that flags instance id with issue.
func reporting(name string, id int64, issue string) checks.Check {
	return checks.Func{CheckName: name, Fn: func(ctx context.Context, s instances.Store) ([]instances.Anomaly, error) {
		inst, err := s.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return []instances.Anomaly{{Instance: inst, Issue: issue}}, nil
	}}
}

func failing(name string, err error) checks.Check {
	return checks.Func{CheckName: name, Fn: func(context.Context, instances.Store) ([]instances.Anomaly, error) {
		return nil, err
	}}
}

func panicking(name string) checks.Check {
	return checks.Func{CheckName: name, Fn: func(context.Context, instances.Store) ([]instances.Anomaly, error) {
		panic("nil attribute")
	}}
}

func simpleFixture(t *testing.T) *testutil.Fixture {
	f := testutil.NewFixture(t, nil)
	f.Add(1, "SimpleEntity", "P1", nil)
	f.Add(2, "SimpleEntity", "P2", nil)
	return f
}

func TestRunner_IsolatesFailures(t *testing.T) {
	f := simpleFixture(t)
	list := []checks.Check{
		reporting("First", 1, "first issue"),
		failing("Broken", errors.New("relation does not exist")),
		panicking("Panics"),
		reporting("Last", 2, "last issue"),
	}

	run := checks.NewRunner(discard()).Run(context.Background(), f.Store, list)

	require.Len(t, run.Results, 4)
	assert.Equal(t, []string{"First", "Broken", "Panics", "Last"},
		[]string{run.Results[0].Check, run.Results[1].Check, run.Results[2].Check, run.Results[3].Check})

	assert.Equal(t, checks.StatusOK, run.Results[0].Status)
	assert.Equal(t, checks.StatusFailed, run.Results[1].Status)
	assert.Contains(t, run.Results[1].Error, "relation does not exist")
	assert.Equal(t, checks.StatusFailed, run.Results[2].Status)
	assert.Contains(t, run.Results[2].Error, "panic")
	assert.Equal(t, checks.StatusOK, run.Results[3].Status)

	assert.True(t, run.Results[1].Report.Empty())
	assert.True(t, run.Results[2].Report.Empty())
	assert.Equal(t, checks.Header, run.Results[1].Report.Header)

	assert.Equal(t, [][]string{{"2", "P2", "SimpleEntity", "last issue", authors.NoAuthor}}, run.Results[3].Report.Rows)
	assert.Equal(t, 2, run.Anomalies())
	assert.Equal(t, []string{"Broken", "Panics"}, run.Failed())
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestRunner_ParallelKeepsOrder(t *testing.T) {
	f := simpleFixture(t)
	var list []checks.Check
	for i := 0; i < 12; i++ {
		id := int64(1 + i%2)
		list = append(list, reporting(fmt.Sprintf("C%02d", i), id, fmt.Sprintf("issue %d", i)))
	}

	run := checks.NewRunner(discard(), checks.WithParallelism(4)).Run(context.Background(), f.Store, list)

	require.Len(t, run.Results, 12)
	for i, res := range run.Results {
		assert.Equal(t, fmt.Sprintf("C%02d", i), res.Check)
		require.Equal(t, 1, res.Report.Len())
		assert.Equal(t, fmt.Sprintf("issue %d", i), res.Report.Rows[0][3])
	}
}

func TestRunner_MostRecentAuthor(t *testing.T) {
	f := testutil.NewFixture(t, nil)
	f.Add(100, "Person", "Smith, J", nil)
	f.Add(101, "Person", "Jones, K", nil)
	f.Add(200, "InstanceEdit", "created", testutil.Refs{"author": {100}})
	f.Add(201, "InstanceEdit", "modified", testutil.Refs{"author": {101}})
	f.Add(1, "SimpleEntity", "P1", testutil.Refs{"created": {200}, "modified": {201}})

	list := []checks.Check{reporting("Check", 1, "issue")}

	run := checks.NewRunner(discard()).Run(context.Background(), f.Store, list)
	assert.Equal(t, "Jones, K", run.Results[0].Report.Rows[0][4])

	excluding := checks.WithAuthors(authors.NewResolver([]int64{101}, ""))
	run = checks.NewRunner(discard(), excluding).Run(context.Background(), f.Store, list)
	assert.Equal(t, "Smith, J", run.Results[0].Report.Rows[0][4])
}

// snapshotStore wraps a MemoryStore as a Snapshotter.
type snapshotStore struct {
	*instances.MemoryStore
	err      error
	released int
}

func (s *snapshotStore) Snapshot(context.Context) (instances.Store, func() error, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.MemoryStore, func() error { s.released++; return nil }, nil
}

func TestRunner_SnapshotPerCheck(t *testing.T) {
	f := simpleFixture(t)
	store := &snapshotStore{MemoryStore: f.Store}
	list := []checks.Check{reporting("A", 1, "a"), failing("B", errors.New("boom")), reporting("C", 2, "c")}

	run := checks.NewRunner(discard()).Run(context.Background(), store, list)

	assert.Equal(t, 3, store.released)
	assert.Equal(t, []string{"B"}, run.Failed())
}

func TestRunner_SnapshotFailureFailsCheck(t *testing.T) {
	f := simpleFixture(t)
	store := &snapshotStore{MemoryStore: f.Store, err: errors.New("too many connections")}

	run := checks.NewRunner(discard()).Run(context.Background(), store, []checks.Check{reporting("A", 1, "a")})

	require.Len(t, run.Results, 1)
	assert.Equal(t, checks.StatusFailed, run.Results[0].Status)
	assert.Contains(t, run.Results[0].Error, "too many connections")
}

func TestRun_Result(t *testing.T) {
	f := simpleFixture(t)
	run := checks.NewRunner(discard()).Run(context.Background(), f.Store, []checks.Check{reporting("A", 1, "a")})

	res, ok := run.Result("A")
	require.True(t, ok)
	assert.Equal(t, 1, res.Report.Len())

	_, ok = run.Result("Missing")
	assert.False(t, ok)
}

func TestWithSkipList(t *testing.T) {
	f := simpleFixture(t)
	both := checks.Func{CheckName: "Both", Fn: func(ctx context.Context, s instances.Store) ([]instances.Anomaly, error) {
		insts, err := s.FetchByIDs(ctx, []int64{1, 2})
		if err != nil {
			return nil, err
		}
		return []instances.Anomaly{{Instance: insts[0], Issue: "x"}, {Instance: insts[1], Issue: "y"}}, nil
	}}

	_, unwrapped := checks.WithSkipList(both, nil).(checks.Func)
	assert.True(t, unwrapped)

	got, err := checks.WithSkipList(both, []int64{1}).Run(context.Background(), f.Store)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Instance.ID)
	assert.Equal(t, "Both", checks.WithSkipList(both, []int64{1}).Name())
}
