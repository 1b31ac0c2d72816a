package relquery

import (
	"strings"

	"github.com/uptrace/bun"
)

// Render returns the SQL text and its arguments. Identifiers are
// double-quoted, values use "?" placeholders and lists are passed as bun.In
// for the dialect to expand.
func (q *JoinQuery) Render() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT l.")
	sb.WriteString(quoteIdent(q.Left.SourceColumn()))
	sb.WriteString(" AS source_id, l.")
	sb.WriteString(quoteIdent(q.Left.ValueColumn()))
	sb.WriteString(" AS target_id FROM ")
	sb.WriteString(quoteIdent(q.Left.Table()))
	sb.WriteString(" AS l JOIN ")
	sb.WriteString(quoteIdent(q.Right.Table()))
	sb.WriteString(" AS r ON ")
	for i, eq := range q.On {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(q.column(eq.Left))
		sb.WriteString(" = ")
		sb.WriteString(q.column(eq.Right))
	}
	sb.WriteString(" WHERE l.")
	sb.WriteString(quoteIdent(q.Left.ValueColumn()))
	sb.WriteString(" IS NOT NULL ORDER BY source_id, target_id")
	return sb.String(), nil
}

func (q *JoinQuery) column(c Column) string {
	st, alias := q.Left, "l."
	if c.Side == Right {
		st, alias = q.Right, "r."
	}
	if c.Part == Source {
		return alias + quoteIdent(st.SourceColumn())
	}
	return alias + quoteIdent(st.ValueColumn())
}

// Render returns the SQL text selecting matching instance ids as "id".
func (q *PredicateQuery) Render() (string, []any) {
	var args []any

	var sb strings.Builder
	sb.WriteString("SELECT o.")
	sb.WriteString(quoteIdent(IDColumn))
	sb.WriteString(" AS id FROM ")
	sb.WriteString(quoteIdent(ObjectTable))
	sb.WriteString(" AS o")

	st := q.Storage
	if !st.Multiple {
		sb.WriteString(" LEFT JOIN ")
		sb.WriteString(quoteIdent(st.Table()))
		sb.WriteString(" AS t ON t.")
		sb.WriteString(quoteIdent(st.SourceColumn()))
		sb.WriteString(" = o.")
		sb.WriteString(quoteIdent(IDColumn))
	}

	sb.WriteString(" WHERE o.")
	sb.WriteString(quoteIdent(ClassColumn))
	sb.WriteString(" IN ")
	args = appendIn(&sb, args, q.Classes)
	sb.WriteString(" AND ")

	if st.Multiple {
		if q.Op == IsNull {
			sb.WriteString("NOT ")
		}
		sb.WriteString("EXISTS (SELECT 1 FROM ")
		sb.WriteString(quoteIdent(st.Table()))
		sb.WriteString(" AS j WHERE j.")
		sb.WriteString(quoteIdent(st.SourceColumn()))
		sb.WriteString(" = o.")
		sb.WriteString(quoteIdent(IDColumn))
		if q.Op == Equals {
			sb.WriteString(" AND j.")
			sb.WriteString(quoteIdent(st.ValueColumn()))
			sb.WriteString(" = ?")
			args = append(args, q.Value)
		}
		sb.WriteString(")")
	} else {
		sb.WriteString("t.")
		sb.WriteString(quoteIdent(st.ValueColumn()))
		sb.WriteString(" ")
		sb.WriteString(string(q.Op))
		if q.Op == Equals {
			sb.WriteString(" ?")
			args = append(args, q.Value)
		}
	}
	sb.WriteString(" ORDER BY id")
	return sb.String(), args
}

// ObjectsByID selects DatabaseObject rows (id, display_name, class_name).
func ObjectsByID(ids []int64) (string, []any) {
	list, args := in(ids)
	return objectSelect() + " WHERE " + quoteIdent(IDColumn) + " IN " + list + " ORDER BY id", args
}

// ObjectsByClass selects DatabaseObject rows of the given concrete classes.
func ObjectsByClass(classes []string) (string, []any) {
	list, args := in(classes)
	return objectSelect() + " WHERE " + quoteIdent(ClassColumn) + " IN " + list + " ORDER BY id", args
}

func objectSelect() string {
	return "SELECT " + quoteIdent(IDColumn) + " AS id, " +
		quoteIdent(DisplayColumn) + " AS display_name, " +
		quoteIdent(ClassColumn) + " AS class_name FROM " + quoteIdent(ObjectTable)
}

// Values selects (source_id, value) rows of st for the given owners, in
// rank order for join storage.
func Values(st Storage, sourceIDs []int64) (string, []any) {
	list, args := in(sourceIDs)
	q := "SELECT " + quoteIdent(st.SourceColumn()) + " AS source_id, " +
		quoteIdent(st.ValueColumn()) + " AS value FROM " + quoteIdent(st.Table()) +
		" WHERE " + quoteIdent(st.SourceColumn()) + " IN " + list +
		" AND " + quoteIdent(st.ValueColumn()) + " IS NOT NULL ORDER BY source_id"
	if st.Multiple {
		q += ", " + quoteIdent(st.RankColumn())
	}
	return q, args
}

// Referrers selects (source_id, value) rows of st whose value is one of
// targetIDs.
func Referrers(st Storage, targetIDs []int64) (string, []any) {
	list, args := in(targetIDs)
	q := "SELECT " + quoteIdent(st.SourceColumn()) + " AS source_id, " +
		quoteIdent(st.ValueColumn()) + " AS value FROM " + quoteIdent(st.Table()) +
		" WHERE " + quoteIdent(st.ValueColumn()) + " IN " + list +
		" ORDER BY value, source_id"
	return q, args
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// in renders a parenthesized list placeholder for values. bun expands it
// at format time; an empty list becomes NULL and matches nothing.
func in[T any](values []T) (string, []any) {
	return "(?)", []any{bun.In(values)}
}

func appendIn[T any](sb *strings.Builder, args []any, values []T) []any {
	list, more := in(values)
	sb.WriteString(list)
	return append(args, more...)
}
