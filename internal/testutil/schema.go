// Package testutil provides a knowledgebase-shaped schema, in-memory
// instance fixtures and an SQLite mirror of them for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/schema"
)

// SchemaYAML is a trimmed knowledgebase schema covering entities, events,
// collections and audit records.
const SchemaYAML = `
classes:
  - name: DatabaseObject
    attributes:
      - {name: created, values: [InstanceEdit]}
      - {name: modified, cardinality: multiple, values: [InstanceEdit]}
  - name: InstanceEdit
    superclasses: [DatabaseObject]
    attributes:
      - {name: author, cardinality: multiple, values: [Person]}
      - {name: dateTime}
  - name: Person
    superclasses: [DatabaseObject]
  - name: Species
    superclasses: [DatabaseObject]
  - name: Compartment
    superclasses: [DatabaseObject]
  - name: PhysicalEntity
    superclasses: [DatabaseObject]
    attributes:
      - {name: compartment, cardinality: multiple, values: [Compartment]}
      - {name: inferredTo, cardinality: multiple, values: [PhysicalEntity]}
      - {name: inferredFrom, cardinality: multiple, values: [PhysicalEntity]}
      - {name: relatedTo, values: [PhysicalEntity]}
  - name: GenomeEncodedEntity
    superclasses: [PhysicalEntity]
    attributes:
      - {name: species, values: [Species]}
  - name: SimpleEntity
    superclasses: [PhysicalEntity]
  - name: Complex
    superclasses: [PhysicalEntity]
    attributes:
      - {name: hasComponent, cardinality: multiple, values: [PhysicalEntity]}
      - {name: species, cardinality: multiple, values: [Species]}
  - name: EntitySet
    superclasses: [PhysicalEntity]
    attributes:
      - {name: hasMember, cardinality: multiple, values: [PhysicalEntity]}
      - {name: species, cardinality: multiple, values: [Species]}
  - name: DefinedSet
    superclasses: [EntitySet]
  - name: CandidateSet
    superclasses: [EntitySet]
    attributes:
      - {name: hasCandidate, cardinality: multiple, values: [PhysicalEntity]}
  - name: Polymer
    superclasses: [PhysicalEntity]
    attributes:
      - {name: repeatedUnit, cardinality: multiple, values: [PhysicalEntity]}
      - {name: species, cardinality: multiple, values: [Species]}
  - name: Event
    superclasses: [DatabaseObject]
    attributes:
      - {name: precedingEvent, cardinality: multiple, values: [Event]}
      - {name: inferredTo, cardinality: multiple, values: [Event]}
      - {name: inferredFrom, cardinality: multiple, values: [Event]}
      - {name: orthologousEvent, cardinality: multiple, values: [Event]}
      - {name: species, cardinality: multiple, values: [Species]}
  - name: Pathway
    superclasses: [Event]
    attributes:
      - {name: hasEvent, cardinality: multiple, values: [Event]}
  - name: ReactionlikeEvent
    superclasses: [Event]
    attributes:
      - {name: input, cardinality: multiple, values: [PhysicalEntity]}
      - {name: output, cardinality: multiple, values: [PhysicalEntity]}
`

// Model parses SchemaYAML.
func Model(t testing.TB) *schema.Model {
	t.Helper()
	m, err := schema.ParseYAML([]byte(SchemaYAML))
	require.NoError(t, err)
	return m
}

// Refs lists instance references per attribute.
type Refs = map[string][]int64

// Fixture accumulates instances into a MemoryStore.
type Fixture struct {
	t     testing.TB
	Store *instances.MemoryStore
}

// NewFixture creates a fixture over model, or over SchemaYAML when model is
// nil.
func NewFixture(t testing.TB, model *schema.Model) *Fixture {
	t.Helper()
	if model == nil {
		model = Model(t)
	}
	return &Fixture{t: t, Store: instances.NewMemoryStore(model)}
}

// Add stores an instance and returns its id.
func (f *Fixture) Add(id int64, class, name string, refs Refs) int64 {
	f.t.Helper()
	require.NoError(f.t, f.Store.Add(&instances.Instance{ID: id, ClassName: class, DisplayName: name, Refs: refs}))
	return id
}

// AddScalars stores an instance with plain attribute values.
func (f *Fixture) AddScalars(id int64, class, name string, refs Refs, values map[string][]any) int64 {
	f.t.Helper()
	require.NoError(f.t, f.Store.Add(&instances.Instance{ID: id, ClassName: class, DisplayName: name, Refs: refs, Scalars: values}))
	return id
}
