package schema

import (
	"context"
	"log/slog"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// ClassRow mirrors the schema_class table.
type ClassRow struct {
	bun.BaseModel `bun:"table:schema_class,alias:sc"`

	Name         string         `bun:"name,pk"`
	Superclasses pq.StringArray `bun:"superclasses,type:text[],notnull,default:'{}'"`
	Position     int            `bun:"position,notnull,default:0"`
}

// AttributeRow mirrors the schema_attribute table.
type AttributeRow struct {
	bun.BaseModel `bun:"table:schema_attribute,alias:sa"`

	ClassName    string         `bun:"class_name,pk"`
	Name         string         `bun:"name,pk"`
	Kind         string         `bun:"kind,notnull"`
	Cardinality  string         `bun:"cardinality,notnull"`
	ValueClasses pq.StringArray `bun:"value_classes,type:text[],notnull,default:'{}'"`
	Position     int            `bun:"position,notnull,default:0"`
}

// Repository loads the metamodel stored alongside the instance tables.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new schema repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("schema.repo")),
	}
}

// Load reads every class and attribute row and builds a Model.
func (r *Repository) Load(ctx context.Context) (*Model, error) {
	var classes []ClassRow
	if err := r.db.NewSelect().
		Model(&classes).
		Order("position ASC", "name ASC").
		Scan(ctx); err != nil {
		return nil, apperror.ErrQueryExecution.WithMessage("load schema classes").WithInternal(err)
	}

	var attrs []AttributeRow
	if err := r.db.NewSelect().
		Model(&attrs).
		Order("class_name ASC", "position ASC", "name ASC").
		Scan(ctx); err != nil {
		return nil, apperror.ErrQueryExecution.WithMessage("load schema attributes").WithInternal(err)
	}

	model, err := NewModel(Descriptors(classes, attrs))
	if err != nil {
		return nil, err
	}

	r.log.Info("schema loaded",
		slog.Int("classes", len(classes)),
		slog.Int("attributes", len(attrs)),
	)
	return model, nil
}

// Descriptors groups table rows into class descriptors, keeping row order.
func Descriptors(classes []ClassRow, attrs []AttributeRow) []ClassDescriptor {
	byClass := make(map[string][]AttributeDescriptor, len(classes))
	for _, a := range attrs {
		byClass[a.ClassName] = append(byClass[a.ClassName], AttributeDescriptor{
			Name:         a.Name,
			Kind:         Kind(a.Kind),
			Cardinality:  Cardinality(a.Cardinality),
			ValueClasses: []string(a.ValueClasses),
		})
	}

	descs := make([]ClassDescriptor, 0, len(classes))
	for _, c := range classes {
		descs = append(descs, ClassDescriptor{
			Name:         c.Name,
			Superclasses: []string(c.Superclasses),
			Attributes:   byClass[c.Name],
		})
	}
	return descs
}
