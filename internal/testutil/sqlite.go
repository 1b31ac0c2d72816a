package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/domain/schema"
)

// OpenSQLite creates an in-memory database laid out the way the
// knowledgebase stores instances and copies every instance of store into
// it. The database is closed when the test ends.
func OpenSQLite(t testing.TB, store *instances.MemoryStore) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and shared
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	Populate(t, db, store)
	return db
}

// Populate creates the tables of store's schema in db and copies every
// instance into them. Placeholders are formatted by bun, so any dialect
// works.
func Populate(t testing.TB, db *bun.DB, store *instances.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	model := store.Model()
	for _, ddl := range DDL(model) {
		_, err := db.ExecContext(ctx, ddl)
		require.NoError(t, err, ddl)
	}
	for _, inst := range store.All() {
		for _, stmt := range inserts(model, inst) {
			_, err := db.ExecContext(ctx, stmt.query, stmt.args...)
			require.NoError(t, err, stmt.query)
		}
	}
}

// DDL returns CREATE TABLE statements for every class table and join table
// of model.
func DDL(model *schema.Model) []string {
	var out []string
	hasObject := false
	for _, name := range model.ClassNames() {
		c, _ := model.Class(name)
		cols := []string{quote(relquery.IDColumn) + " BIGINT PRIMARY KEY"}
		if name == relquery.ObjectTable {
			hasObject = true
			cols = append(cols, quote(relquery.ClassColumn)+" TEXT NOT NULL", quote(relquery.DisplayColumn)+" TEXT")
		}
		for _, a := range c.Declared {
			if !a.IsMultiple() {
				cols = append(cols, quote(a.Name)+" "+sqlType(a))
				continue
			}
			st := relquery.Storage{Class: name, Attribute: a.Name, Multiple: true}
			out = append(out, fmt.Sprintf("CREATE TABLE %s (%s BIGINT NOT NULL, %s %s, %s INTEGER NOT NULL)",
				quote(st.Table()), quote(st.SourceColumn()), quote(st.ValueColumn()), sqlType(a), quote(st.RankColumn())))
		}
		out = append(out, fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(cols, ", ")))
	}
	if !hasObject {
		out = append(out, fmt.Sprintf("CREATE TABLE %s (%s BIGINT PRIMARY KEY, %s TEXT NOT NULL, %s TEXT)",
			quote(relquery.ObjectTable), quote(relquery.IDColumn), quote(relquery.ClassColumn), quote(relquery.DisplayColumn)))
	}
	return out
}

type statement struct {
	query string
	args  []any
}

func inserts(model *schema.Model, inst *instances.Instance) []statement {
	var out []statement
	if !model.HasClass(relquery.ObjectTable) {
		out = append(out, statement{
			query: fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
				quote(relquery.ObjectTable), quote(relquery.IDColumn), quote(relquery.ClassColumn), quote(relquery.DisplayColumn)),
			args: []any{inst.ID, inst.ClassName, inst.DisplayName},
		})
	}
	for _, name := range model.ClassNames() {
		if !model.Isa(inst.ClassName, name) {
			continue
		}
		c, _ := model.Class(name)
		cols := []string{quote(relquery.IDColumn)}
		args := []any{inst.ID}
		if name == relquery.ObjectTable {
			cols = append(cols, quote(relquery.ClassColumn), quote(relquery.DisplayColumn))
			args = append(args, inst.ClassName, inst.DisplayName)
		}
		for _, a := range c.Declared {
			values := valuesOf(inst, a)
			if a.IsMultiple() {
				st := relquery.Storage{Class: name, Attribute: a.Name, Multiple: true}
				for rank, v := range values {
					out = append(out, statement{
						query: fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
							quote(st.Table()), quote(st.SourceColumn()), quote(st.ValueColumn()), quote(st.RankColumn())),
						args: []any{inst.ID, v, rank},
					})
				}
				continue
			}
			cols = append(cols, quote(a.Name))
			if len(values) > 0 {
				args = append(args, values[0])
			} else {
				args = append(args, nil)
			}
		}
		out = append(out, statement{
			query: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				quote(name), strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")),
			args: args,
		})
	}
	return out
}

func valuesOf(inst *instances.Instance, a *schema.Attribute) []any {
	if a.IsInstance() {
		refs := inst.Values(a.Name)
		out := make([]any, len(refs))
		for n, r := range refs {
			out[n] = r
		}
		return out
	}
	return inst.ScalarValues(a.Name)
}

func sqlType(a *schema.Attribute) string {
	if a.IsInstance() {
		return "BIGINT"
	}
	return "TEXT"
}

func quote(s string) string {
	return `"` + s + `"`
}
