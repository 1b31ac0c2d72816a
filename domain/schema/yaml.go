package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

type document struct {
	Classes []ClassDescriptor `yaml:"classes"`
}

// ParseYAML builds a Model from a YAML document with a top-level "classes"
// list.
func ParseYAML(data []byte) (*Model, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperror.ErrInvalidConfig.WithMessage("parse schema yaml").WithInternal(err)
	}
	if len(doc.Classes) == 0 {
		return nil, apperror.NewInvalidConfig("schema yaml declares no classes")
	}
	return NewModel(doc.Classes)
}

// LoadYAML reads and parses a schema file.
func LoadYAML(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return ParseYAML(data)
}
