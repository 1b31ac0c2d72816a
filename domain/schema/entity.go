package schema

// Cardinality of an attribute. Multiple-valued attributes live in join
// tables, single-valued ones in a column of the origin class table.
type Cardinality string

const (
	Single   Cardinality = "single"
	Multiple Cardinality = "multiple"
)

// Kind distinguishes instance references from plain values.
type Kind string

const (
	KindInstance Kind = "instance"
	KindScalar   Kind = "scalar"
)

// ClassDescriptor is the serialized form of a schema class, as read from a
// YAML file or the schema tables.
type ClassDescriptor struct {
	Name         string                `yaml:"name" json:"name"`
	Superclasses []string              `yaml:"superclasses,omitempty" json:"superclasses,omitempty"`
	Attributes   []AttributeDescriptor `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// AttributeDescriptor is the serialized form of an attribute declaration.
// Kind defaults to instance when ValueClasses is set, scalar otherwise;
// Cardinality defaults to single.
type AttributeDescriptor struct {
	Name         string      `yaml:"name" json:"name"`
	Kind         Kind        `yaml:"kind,omitempty" json:"kind,omitempty"`
	Cardinality  Cardinality `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	ValueClasses []string    `yaml:"values,omitempty" json:"values,omitempty"`
}

// Class is a resolved schema class.
type Class struct {
	Name         string
	Superclasses []*Class
	Declared     []*Attribute

	ancestors  map[string]struct{}
	attributes []*Attribute
	byName     map[string]*Attribute
}

// Attribute is a resolved attribute. Identity is (Origin, Name): the same
// *Attribute is shared by every class that inherits it.
type Attribute struct {
	Name         string
	Origin       *Class
	Cardinality  Cardinality
	Kind         Kind
	ValueClasses []*Class
}

// IsMultiple reports whether the attribute uses join storage.
func (a *Attribute) IsMultiple() bool {
	return a.Cardinality == Multiple
}

// IsInstance reports whether values are references to other instances.
func (a *Attribute) IsInstance() bool {
	return a.Kind == KindInstance
}

// Key is "Origin.name", unique across the schema.
func (a *Attribute) Key() string {
	return a.Origin.Name + "." + a.Name
}

func (a *Attribute) String() string {
	return a.Key()
}
