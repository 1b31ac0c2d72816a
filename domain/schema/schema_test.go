package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

const testSchema = `
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
  - name: Compartment
    superclasses: [DatabaseObject]
  - name: PhysicalEntity
    superclasses: [DatabaseObject]
    attributes:
      - {name: compartment, cardinality: multiple, values: [Compartment]}
      - {name: inferredTo, cardinality: multiple, values: [PhysicalEntity]}
  - name: Complex
    superclasses: [PhysicalEntity]
    attributes:
      - {name: hasComponent, cardinality: multiple, values: [PhysicalEntity]}
  - name: EntitySet
    superclasses: [PhysicalEntity]
    attributes:
      - {name: hasMember, cardinality: multiple, values: [PhysicalEntity]}
  - name: DefinedSet
    superclasses: [EntitySet]
  - name: Tagged
    attributes:
      - {name: tag}
  - name: TaggedSet
    superclasses: [DefinedSet, Tagged]
`

func mustModel(t *testing.T) *Model {
	t.Helper()
	m, err := ParseYAML([]byte(testSchema))
	require.NoError(t, err)
	return m
}

func TestIsa(t *testing.T) {
	m := mustModel(t)

	tests := []struct {
		class, other string
		want         bool
	}{
		{"Complex", "Complex", true},
		{"Complex", "PhysicalEntity", true},
		{"DefinedSet", "DatabaseObject", true},
		{"TaggedSet", "Tagged", true},
		{"TaggedSet", "EntitySet", true},
		{"PhysicalEntity", "Complex", false},
		{"Complex", "EntitySet", false},
		{"Nope", "DatabaseObject", false},
		{"Complex", "Nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.class+"_isa_"+tt.other, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Isa(tt.class, tt.other))
		})
	}
}

func TestAttributesOf_IncludesInheritedSorted(t *testing.T) {
	m := mustModel(t)

	attrs, err := m.AttributesOf("DefinedSet")
	require.NoError(t, err)

	var names []string
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"compartment", "created", "hasMember", "inferredTo", "modified"}, names)
}

func TestAttributesOf_MultipleInheritance(t *testing.T) {
	m := mustModel(t)

	tag, err := m.Attribute("TaggedSet", "tag")
	require.NoError(t, err)
	assert.Equal(t, "Tagged", m.OriginClassOf(tag).Name)
	assert.Equal(t, KindScalar, tag.Kind)

	member, err := m.Attribute("TaggedSet", "hasMember")
	require.NoError(t, err)
	assert.Equal(t, "EntitySet", member.Origin.Name)
}

func TestAttribute_SharedAcrossSubclasses(t *testing.T) {
	m := mustModel(t)

	a, err := m.Attribute("Complex", "inferredTo")
	require.NoError(t, err)
	b, err := m.Attribute("DefinedSet", "inferredTo")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "PhysicalEntity.inferredTo", a.Key())
	assert.True(t, m.IsMultiple(a))
	assert.Equal(t, []string{"PhysicalEntity"}, classNames(m.AllowedValueClasses(a)))
}

func TestDefaults(t *testing.T) {
	m := mustModel(t)

	created, err := m.Attribute("Person", "created")
	require.NoError(t, err)
	assert.Equal(t, Single, created.Cardinality)
	assert.Equal(t, KindInstance, created.Kind)
	assert.False(t, created.IsMultiple())
}

func TestLookupErrors(t *testing.T) {
	m := mustModel(t)

	_, err := m.AttributesOf("Pathway")
	assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))

	_, err = m.Attribute("Complex", "hasMember")
	assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))

	_, err = m.Subclasses("Pathway")
	assert.True(t, errors.Is(err, apperror.ErrSchemaLookup))
}

func TestSubclasses(t *testing.T) {
	m := mustModel(t)

	subs, err := m.Subclasses("EntitySet")
	require.NoError(t, err)
	assert.Equal(t, []string{"DefinedSet", "EntitySet", "TaggedSet"}, subs)
}

func TestAttributesNamed(t *testing.T) {
	m, err := NewModel([]ClassDescriptor{
		{Name: "Event", Attributes: []AttributeDescriptor{{Name: "inferredTo", Cardinality: Multiple, ValueClasses: []string{"Event"}}}},
		{Name: "Entity", Attributes: []AttributeDescriptor{{Name: "inferredTo", Cardinality: Multiple, ValueClasses: []string{"Entity"}}}},
	})
	require.NoError(t, err)

	attrs := m.AttributesNamed("inferredTo")
	require.Len(t, attrs, 2)
	assert.Equal(t, "Entity", attrs[0].Origin.Name)
	assert.Equal(t, "Event", attrs[1].Origin.Name)
}

func TestAcceptsValue(t *testing.T) {
	m := mustModel(t)
	a, err := m.Attribute("Complex", "hasComponent")
	require.NoError(t, err)

	assert.True(t, m.AcceptsValue(a, "DefinedSet"))
	assert.False(t, m.AcceptsValue(a, "Compartment"))
}

func TestNewModel_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		descs []ClassDescriptor
		code  *apperror.Error
	}{
		{
			name: "superclass cycle",
			descs: []ClassDescriptor{
				{Name: "A", Superclasses: []string{"B"}},
				{Name: "B", Superclasses: []string{"A"}},
			},
			code: apperror.ErrInvalidConfig,
		},
		{
			name:  "unknown superclass",
			descs: []ClassDescriptor{{Name: "A", Superclasses: []string{"Missing"}}},
			code:  apperror.ErrSchemaLookup,
		},
		{
			name: "unknown value class",
			descs: []ClassDescriptor{
				{Name: "A", Attributes: []AttributeDescriptor{{Name: "x", ValueClasses: []string{"Missing"}}}},
			},
			code: apperror.ErrSchemaLookup,
		},
		{
			name: "conflicting inherited names",
			descs: []ClassDescriptor{
				{Name: "A", Attributes: []AttributeDescriptor{{Name: "x"}}},
				{Name: "B", Attributes: []AttributeDescriptor{{Name: "x"}}},
				{Name: "C", Superclasses: []string{"A", "B"}},
			},
			code: apperror.ErrInvalidConfig,
		},
		{
			name: "instance attribute without targets",
			descs: []ClassDescriptor{
				{Name: "A", Attributes: []AttributeDescriptor{{Name: "x", Kind: KindInstance}}},
			},
			code: apperror.ErrInvalidConfig,
		},
		{
			name:  "duplicate class",
			descs: []ClassDescriptor{{Name: "A"}, {Name: "A"}},
			code:  apperror.ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.descs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o600))

	m, err := LoadYAML(path)
	require.NoError(t, err)
	assert.True(t, m.HasClass("Complex"))

	_, err = ParseYAML([]byte("classes: []"))
	assert.True(t, errors.Is(err, apperror.ErrInvalidConfig))
}

func TestDescriptors_GroupsRows(t *testing.T) {
	descs := Descriptors(
		[]ClassRow{{Name: "DatabaseObject"}, {Name: "Event", Superclasses: []string{"DatabaseObject"}}},
		[]AttributeRow{
			{ClassName: "Event", Name: "precedingEvent", Kind: "instance", Cardinality: "multiple", ValueClasses: []string{"Event"}},
			{ClassName: "Event", Name: "name", Kind: "scalar", Cardinality: "multiple"},
		},
	)

	require.Len(t, descs, 2)
	assert.Empty(t, descs[0].Attributes)
	require.Len(t, descs[1].Attributes, 2)
	assert.Equal(t, []string{"Event"}, descs[1].Attributes[0].ValueClasses)

	m, err := NewModel(descs)
	require.NoError(t, err)
	assert.True(t, m.Isa("Event", "DatabaseObject"))
}

func classNames(cs []*Class) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
