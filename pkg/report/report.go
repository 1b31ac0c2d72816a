// Package report is the tabular sink that checks append rows to. It does not
// format for humans beyond a plain table, and never transmits anything.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Report is an ordered header row plus data rows.
type Report struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// New creates an empty report with the given header.
func New(name string, header ...string) *Report {
	return &Report{
		Name:   name,
		Header: append([]string(nil), header...),
		Rows:   [][]string{},
	}
}

// Append adds a data row. Rows narrower than the header are padded, wider
// rows are rejected.
func (r *Report) Append(cells ...string) error {
	if len(cells) > len(r.Header) {
		return fmt.Errorf("report %s: row has %d cells, header has %d", r.Name, len(cells), len(r.Header))
	}
	row := make([]string, len(r.Header))
	copy(row, cells)
	r.Rows = append(r.Rows, row)
	return nil
}

// Len returns the number of data rows.
func (r *Report) Len() int {
	return len(r.Rows)
}

// Empty reports whether no data rows were appended.
func (r *Report) Empty() bool {
	return len(r.Rows) == 0
}

// WriteTable renders the report as a text table.
func WriteTable(w io.Writer, r *Report) error {
	table := tablewriter.NewWriter(w)
	table.Header(toAny(r.Header)...)
	for _, row := range r.Rows {
		if err := table.Append(toAny(row)...); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return table.Render()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
