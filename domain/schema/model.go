// Package schema holds the statically loaded class/attribute metamodel of the
// knowledgebase: inheritance as adjacency sets with a precomputed isa closure,
// attribute origins, cardinalities and allowed value classes.
package schema

import (
	"fmt"
	"sort"

	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

// Model is immutable once built and safe for concurrent use.
type Model struct {
	classes    map[string]*Class
	names      []string
	byAttrName map[string][]*Attribute
	subclasses map[string][]string
}

// NewModel resolves descriptors into a Model. Unknown superclasses or value
// classes, superclass cycles, and one class inheriting two different
// attributes of the same name are rejected.
func NewModel(descs []ClassDescriptor) (*Model, error) {
	m := &Model{
		classes:    make(map[string]*Class, len(descs)),
		byAttrName: make(map[string][]*Attribute),
		subclasses: make(map[string][]string, len(descs)),
	}

	for _, d := range descs {
		if d.Name == "" {
			return nil, apperror.NewInvalidConfig("schema class without a name")
		}
		if _, dup := m.classes[d.Name]; dup {
			return nil, apperror.NewInvalidConfig(fmt.Sprintf("schema class '%s' declared twice", d.Name))
		}
		m.classes[d.Name] = &Class{Name: d.Name}
		m.names = append(m.names, d.Name)
	}
	sort.Strings(m.names)

	for _, d := range descs {
		c := m.classes[d.Name]
		for _, sup := range d.Superclasses {
			sc, ok := m.classes[sup]
			if !ok {
				return nil, apperror.NewSchemaLookup(sup, "")
			}
			c.Superclasses = append(c.Superclasses, sc)
		}
		seen := make(map[string]struct{}, len(d.Attributes))
		for _, ad := range d.Attributes {
			if _, dup := seen[ad.Name]; dup {
				return nil, apperror.NewInvalidConfig(fmt.Sprintf("attribute '%s' declared twice on '%s'", ad.Name, d.Name))
			}
			seen[ad.Name] = struct{}{}
			a, err := m.resolveAttribute(c, ad)
			if err != nil {
				return nil, err
			}
			c.Declared = append(c.Declared, a)
			m.byAttrName[a.Name] = append(m.byAttrName[a.Name], a)
		}
	}

	if err := m.computeClosure(); err != nil {
		return nil, err
	}
	if err := m.computeAttributes(); err != nil {
		return nil, err
	}

	for _, attrs := range m.byAttrName {
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].Origin.Name < attrs[j].Origin.Name })
	}
	for _, name := range m.names {
		for _, sub := range m.names {
			if m.Isa(sub, name) {
				m.subclasses[name] = append(m.subclasses[name], sub)
			}
		}
	}
	return m, nil
}

func (m *Model) resolveAttribute(origin *Class, d AttributeDescriptor) (*Attribute, error) {
	if d.Name == "" {
		return nil, apperror.NewInvalidConfig(fmt.Sprintf("unnamed attribute on '%s'", origin.Name))
	}
	a := &Attribute{
		Name:        d.Name,
		Origin:      origin,
		Cardinality: d.Cardinality,
		Kind:        d.Kind,
	}
	if a.Cardinality == "" {
		a.Cardinality = Single
	}
	if a.Cardinality != Single && a.Cardinality != Multiple {
		return nil, apperror.NewInvalidConfig(fmt.Sprintf("attribute '%s.%s' has cardinality '%s'", origin.Name, d.Name, d.Cardinality))
	}
	if a.Kind == "" {
		if len(d.ValueClasses) > 0 {
			a.Kind = KindInstance
		} else {
			a.Kind = KindScalar
		}
	}
	for _, vc := range d.ValueClasses {
		c, ok := m.classes[vc]
		if !ok {
			return nil, apperror.NewSchemaLookup(vc, "")
		}
		a.ValueClasses = append(a.ValueClasses, c)
	}
	if a.Kind == KindInstance && len(a.ValueClasses) == 0 {
		return nil, apperror.NewInvalidConfig(fmt.Sprintf("instance attribute '%s.%s' has no allowed value classes", origin.Name, d.Name))
	}
	return a, nil
}

// computeClosure fills ancestors (reflexive) by DFS, rejecting cycles.
func (m *Model) computeClosure() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(m.classes))

	var visit func(c *Class) error
	visit = func(c *Class) error {
		switch state[c.Name] {
		case done:
			return nil
		case visiting:
			return apperror.NewInvalidConfig(fmt.Sprintf("superclass cycle through '%s'", c.Name))
		}
		state[c.Name] = visiting
		c.ancestors = map[string]struct{}{c.Name: {}}
		for _, sup := range c.Superclasses {
			if err := visit(sup); err != nil {
				return err
			}
			for a := range sup.ancestors {
				c.ancestors[a] = struct{}{}
			}
		}
		state[c.Name] = done
		return nil
	}

	for _, name := range m.names {
		if err := visit(m.classes[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) computeAttributes() error {
	for _, name := range m.names {
		c := m.classes[name]
		c.byName = make(map[string]*Attribute)
		for anc := range c.ancestors {
			for _, a := range m.classes[anc].Declared {
				if prev, ok := c.byName[a.Name]; ok && prev != a {
					return apperror.NewInvalidConfig(fmt.Sprintf(
						"class '%s' inherits attribute '%s' from both '%s' and '%s'",
						c.Name, a.Name, prev.Origin.Name, a.Origin.Name))
				}
				c.byName[a.Name] = a
			}
		}
		c.attributes = make([]*Attribute, 0, len(c.byName))
		for _, a := range c.byName {
			c.attributes = append(c.attributes, a)
		}
		sort.Slice(c.attributes, func(i, j int) bool { return c.attributes[i].Name < c.attributes[j].Name })
	}
	return nil
}

// Class returns the named class.
func (m *Model) Class(name string) (*Class, error) {
	c, ok := m.classes[name]
	if !ok {
		return nil, apperror.NewSchemaLookup(name, "")
	}
	return c, nil
}

// HasClass reports whether the class exists.
func (m *Model) HasClass(name string) bool {
	_, ok := m.classes[name]
	return ok
}

// ClassNames returns all class names in lexicographic order.
func (m *Model) ClassNames() []string {
	return append([]string(nil), m.names...)
}

// Isa reports whether class is other or a (transitive) subclass of it.
// Unknown names are never related.
func (m *Model) Isa(class, other string) bool {
	c, ok := m.classes[class]
	if !ok {
		return false
	}
	_, ok = c.ancestors[other]
	return ok
}

// Related reports whether either class isa the other.
func (m *Model) Related(a, b string) bool {
	return m.Isa(a, b) || m.Isa(b, a)
}

// AttributesOf returns declared and inherited attributes sorted by name.
func (m *Model) AttributesOf(class string) ([]*Attribute, error) {
	c, err := m.Class(class)
	if err != nil {
		return nil, err
	}
	return append([]*Attribute(nil), c.attributes...), nil
}

// Attribute returns the attribute visible on class under name.
func (m *Model) Attribute(class, name string) (*Attribute, error) {
	c, err := m.Class(class)
	if err != nil {
		return nil, err
	}
	a, ok := c.byName[name]
	if !ok {
		return nil, apperror.NewSchemaLookup(class, name)
	}
	return a, nil
}

// AttributesNamed returns every attribute declared under name, ordered by
// origin class.
func (m *Model) AttributesNamed(name string) []*Attribute {
	return append([]*Attribute(nil), m.byAttrName[name]...)
}

// OriginClassOf returns the class that declares a.
func (m *Model) OriginClassOf(a *Attribute) *Class {
	return a.Origin
}

// IsMultiple reports whether a is multiple-valued.
func (m *Model) IsMultiple(a *Attribute) bool {
	return a.IsMultiple()
}

// AllowedValueClasses returns the classes legal targets of a must belong to.
func (m *Model) AllowedValueClasses(a *Attribute) []*Class {
	return append([]*Class(nil), a.ValueClasses...)
}

// Subclasses returns class and all its descendants, sorted.
func (m *Model) Subclasses(class string) ([]string, error) {
	if _, err := m.Class(class); err != nil {
		return nil, err
	}
	return append([]string(nil), m.subclasses[class]...), nil
}

// AcceptsValue reports whether an instance of valueClass is a legal target
// for a.
func (m *Model) AcceptsValue(a *Attribute, valueClass string) bool {
	for _, vc := range a.ValueClasses {
		if m.Isa(valueClass, vc.Name) {
			return true
		}
	}
	return false
}
