package relquery

import (
	"fmt"

	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

// Builder turns attributes into query plans using the schema's origin and
// cardinality metadata.
type Builder struct {
	model *schema.Model
}

// NewBuilder creates a builder over model.
func NewBuilder(model *schema.Model) *Builder {
	return &Builder{model: model}
}

// Model returns the metamodel the builder resolves names against.
func (b *Builder) Model() *schema.Model {
	return b.model
}

// StorageOf locates a's physical storage.
func (b *Builder) StorageOf(a *schema.Attribute) (Storage, error) {
	if a == nil || a.Origin == nil {
		return Storage{}, unsupported("attribute without origin class")
	}
	return Storage{
		Class:     a.Origin.Name,
		Attribute: a.Name,
		Multiple:  a.IsMultiple(),
	}, nil
}

// Predicate builds "instances of class whose attr <op> [value]".
func (b *Builder) Predicate(class, attr string, op Operator, value any) (*PredicateQuery, error) {
	a, err := b.model.Attribute(class, attr)
	if err != nil {
		return nil, err
	}
	classes, err := b.model.Subclasses(class)
	if err != nil {
		return nil, err
	}
	st, err := b.StorageOf(a)
	if err != nil {
		return nil, err
	}
	switch op {
	case IsNull, IsNotNull:
	case Equals:
		if value == nil {
			return nil, unsupported(fmt.Sprintf("%s = NULL, use IS NULL", a))
		}
	default:
		return nil, unsupported(fmt.Sprintf("operator %q on %s", op, a))
	}
	return &PredicateQuery{
		Classes: classes,
		Storage: st,
		Op:      op,
		Value:   value,
	}, nil
}

// SharedTarget builds the join for "a and b reference the same target from
// the same source". The origins must be isa-related so that both storages
// can hold rows for one instance.
func (b *Builder) SharedTarget(a, other *schema.Attribute) (*JoinQuery, error) {
	left, right, err := b.instancePair(a, other)
	if err != nil {
		return nil, err
	}
	if a == other {
		return nil, unsupported(fmt.Sprintf("%s paired with itself", a))
	}
	if !b.model.Related(a.Origin.Name, other.Origin.Name) {
		return nil, unsupported(fmt.Sprintf("%s and %s share no source class", a, other))
	}
	return &JoinQuery{
		Left:  left,
		Right: right,
		On: []Equality{
			{Left: Column{Left, Source}, Right: Column{Right, Source}},
			{Left: Column{Left, Value}, Right: Column{Right, Value}},
		},
		Shape: ShapeOf(left, right),
	}, nil
}

// Reciprocal builds the two-edge cycle join: x.forward = y and y.back = x.
// Results are (x, y).
func (b *Builder) Reciprocal(forward, back *schema.Attribute) (*JoinQuery, error) {
	left, right, err := b.instancePair(forward, back)
	if err != nil {
		return nil, err
	}
	return &JoinQuery{
		Left:  left,
		Right: right,
		On: []Equality{
			{Left: Column{Left, Value}, Right: Column{Right, Source}},
			{Left: Column{Left, Source}, Right: Column{Right, Value}},
		},
		Shape: ShapeOf(left, right),
	}, nil
}

func (b *Builder) instancePair(a, other *schema.Attribute) (Storage, Storage, error) {
	for _, attr := range []*schema.Attribute{a, other} {
		if attr == nil {
			return Storage{}, Storage{}, unsupported("nil attribute")
		}
		if !attr.IsInstance() {
			return Storage{}, Storage{}, unsupported(fmt.Sprintf("%s is not instance-valued", attr))
		}
	}
	left, err := b.StorageOf(a)
	if err != nil {
		return Storage{}, Storage{}, err
	}
	right, err := b.StorageOf(other)
	if err != nil {
		return Storage{}, Storage{}, err
	}
	return left, right, nil
}

func unsupported(msg string) *apperror.Error {
	return apperror.ErrQueryExecution.WithMessage("unsupported attribute shape: " + msg)
}
