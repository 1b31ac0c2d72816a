package schema_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/internal/testutil"
)

func TestRepository_Load_Postgres(t *testing.T) {
	db := testutil.OpenPostgres(t, instances.NewMemoryStore(testutil.Model(t)))
	ctx := context.Background()

	_, err := db.NewCreateTable().Model((*schema.ClassRow)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*schema.AttributeRow)(nil)).Exec(ctx)
	require.NoError(t, err)

	classes := []schema.ClassRow{
		{Name: "DatabaseObject", Position: 0},
		{Name: "Event", Superclasses: []string{"DatabaseObject"}, Position: 1},
		{Name: "Pathway", Superclasses: []string{"Event"}, Position: 2},
	}
	attrs := []schema.AttributeRow{
		{ClassName: "Event", Name: "precedingEvent", Kind: "instance", Cardinality: "multiple", ValueClasses: []string{"Event"}},
		{ClassName: "Pathway", Name: "hasEvent", Kind: "instance", Cardinality: "multiple", ValueClasses: []string{"Event"}},
	}
	_, err = db.NewInsert().Model(&classes).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&attrs).Exec(ctx)
	require.NoError(t, err)

	model, err := schema.NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil))).Load(ctx)
	require.NoError(t, err)

	assert.True(t, model.Isa("Pathway", "DatabaseObject"))
	a, err := model.Attribute("Pathway", "precedingEvent")
	require.NoError(t, err)
	assert.True(t, model.IsMultiple(a))
	assert.Equal(t, "Event", model.OriginClassOf(a).Name)
}
