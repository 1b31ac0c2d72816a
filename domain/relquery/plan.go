// Package relquery translates schema attributes into typed query plans over
// the physical storage (origin-class column or join table) and renders them
// to SQL. Stores either execute the rendered text or evaluate the plan
// directly.
package relquery

import (
	"fmt"
)

// Physical naming of the instance tables.
const (
	ObjectTable   = "DatabaseObject"
	IDColumn      = "DB_ID"
	ClassColumn   = "_class"
	DisplayColumn = "_displayName"
)

// Storage locates an attribute's values: a column of the origin class table
// for single-valued attributes, a (DB_ID, value, rank) join table otherwise.
type Storage struct {
	Class     string
	Attribute string
	Multiple  bool
}

// Table returns the physical table name.
func (s Storage) Table() string {
	if s.Multiple {
		return s.Class + "_2_" + s.Attribute
	}
	return s.Class
}

// SourceColumn holds the owning instance id.
func (s Storage) SourceColumn() string {
	return IDColumn
}

// ValueColumn holds the attribute value.
func (s Storage) ValueColumn() string {
	return s.Attribute
}

// RankColumn orders join-table rows; empty for single-valued storage.
func (s Storage) RankColumn() string {
	if !s.Multiple {
		return ""
	}
	return s.Attribute + "_rank"
}

func (s Storage) String() string {
	return s.Class + "." + s.Attribute
}

// Operator is a single-attribute predicate.
type Operator string

const (
	IsNull    Operator = "IS NULL"
	IsNotNull Operator = "IS NOT NULL"
	Equals    Operator = "="
)

// ParseOperator accepts the operator spellings used in suite files.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "is_null", "IS NULL", "null":
		return IsNull, nil
	case "is_not_null", "IS NOT NULL", "not_null":
		return IsNotNull, nil
	case "equals", "=", "eq":
		return Equals, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Side selects one of the two storages in a join.
type Side int

const (
	Left Side = iota
	Right
)

// Part selects the source id or the value of a storage row.
type Part int

const (
	Source Part = iota
	Value
)

// Column is one operand of a join equality.
type Column struct {
	Side Side
	Part Part
}

// Equality is Left = Right over two columns.
type Equality struct {
	Left  Column
	Right Column
}

// Shape records which physical representations a join equates.
type Shape int

const (
	ColumnColumn Shape = iota
	ColumnJoinRow
	JoinRowJoinRow
)

func (s Shape) String() string {
	switch s {
	case ColumnColumn:
		return "column=column"
	case ColumnJoinRow:
		return "column=join-row"
	default:
		return "join-row=join-row"
	}
}

// ShapeOf derives the shape from the storages' cardinalities.
func ShapeOf(left, right Storage) Shape {
	switch {
	case !left.Multiple && !right.Multiple:
		return ColumnColumn
	case left.Multiple && right.Multiple:
		return JoinRowJoinRow
	default:
		return ColumnJoinRow
	}
}

// JoinQuery joins two attribute storages on a conjunction of equalities and
// yields distinct (left source, left value) pairs.
type JoinQuery struct {
	Left  Storage
	Right Storage
	On    []Equality
	Shape Shape
}

// PredicateQuery selects instances of Classes whose attribute satisfies Op.
type PredicateQuery struct {
	Classes []string
	Storage Storage
	Op      Operator
	Value   any
}

// Pair is one result row of a JoinQuery.
type Pair struct {
	SourceID int64 `bun:"source_id" json:"sourceId"`
	TargetID int64 `bun:"target_id" json:"targetId"`
}
