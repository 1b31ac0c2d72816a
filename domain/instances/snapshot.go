package instances

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

type snapshotDocument struct {
	Instances []*Instance `yaml:"instances"`
}

// ParseSnapshot builds a MemoryStore from a YAML document with a top-level
// "instances" list.
func ParseSnapshot(model *schema.Model, data []byte) (*MemoryStore, error) {
	var doc snapshotDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperror.ErrInvalidConfig.WithMessage("parse instance snapshot").WithInternal(err)
	}
	store := NewMemoryStore(model)
	for _, inst := range doc.Instances {
		if err := store.Add(inst); err != nil {
			return nil, fmt.Errorf("instance %d: %w", inst.ID, err)
		}
	}
	return store, nil
}

// LoadSnapshot reads a YAML instance snapshot from path.
func LoadSnapshot(model *schema.Model, path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instance snapshot: %w", err)
	}
	return ParseSnapshot(model, data)
}
