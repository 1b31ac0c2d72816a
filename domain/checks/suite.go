package checks

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reactome/release-qa-sub001/domain/authors"
	"github.com/reactome/release-qa-sub001/domain/containment"
	"github.com/reactome/release-qa-sub001/domain/cycles"
	"github.com/reactome/release-qa-sub001/domain/duplicates"
	"github.com/reactome/release-qa-sub001/domain/pairs"
	"github.com/reactome/release-qa-sub001/domain/relquery"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

//go:embed default_suite.yaml
var defaultSuite []byte

// Check types understood by Build.
const (
	TypeInferralCycle       = "inferral_cycle"
	TypeCompanionCycle      = "companion_cycle"
	TypeAttributeCollision  = "attribute_collision"
	TypeDuplicateCollection = "duplicate_collection"
	TypeRepeatedMembership  = "repeated_membership"
	TypeTooFewMembers       = "too_few_members"
	TypeContainmentSpecies  = "containment_species"
	TypeAttributePredicate  = "attribute_predicate"
)

// Suite is the configured list of checks.
type Suite struct {
	Parallelism int           `yaml:"parallelism" json:"parallelism"`
	Authors     AuthorsConfig `yaml:"authors" json:"authors"`
	Checks      []Entry       `yaml:"checks" json:"checks"`
}

// AuthorsConfig configures MostRecentAuthor resolution.
type AuthorsConfig struct {
	Excluded []int64 `yaml:"excluded" json:"excluded,omitempty"`
	NoAuthor string  `yaml:"noAuthor" json:"noAuthor,omitempty"`
}

// Entry configures one check. Which fields apply depends on Type.
type Entry struct {
	Name           string   `yaml:"name" json:"name"`
	Type           string   `yaml:"type" json:"type"`
	Disabled       bool     `yaml:"disabled" json:"disabled,omitempty"`
	Skip           []int64  `yaml:"skip" json:"skip,omitempty"`
	SkipAttributes []string `yaml:"skipAttributes" json:"skipAttributes,omitempty"`

	Class       string   `yaml:"class" json:"class,omitempty"`
	Roots       []string `yaml:"roots" json:"roots,omitempty"`
	Inferral    string   `yaml:"inferral" json:"inferral,omitempty"`
	Primary     string   `yaml:"primary" json:"primary,omitempty"`
	Companions  []string `yaml:"companions" json:"companions,omitempty"`
	Partition   string   `yaml:"partition" json:"partition,omitempty"`
	Members     []string `yaml:"members" json:"members,omitempty"`
	Strategy    string   `yaml:"strategy" json:"strategy,omitempty"`
	Min         int      `yaml:"min" json:"min,omitempty"`
	Root        string   `yaml:"root" json:"root,omitempty"`
	Species     string   `yaml:"species" json:"species,omitempty"`
	Containment []string `yaml:"containment" json:"containment,omitempty"`
	Attribute   string   `yaml:"attribute" json:"attribute,omitempty"`
	Operator    string   `yaml:"operator" json:"operator,omitempty"`
	Value       any      `yaml:"value" json:"value,omitempty"`
	Issue       string   `yaml:"issue" json:"issue,omitempty"`
}

// ParseSuite decodes and validates a suite document.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, apperror.ErrInvalidConfig.WithMessage("parse suite yaml").WithInternal(err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSuite reads a suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}
	return ParseSuite(data)
}

// DefaultSuite returns the built-in suite.
func DefaultSuite() *Suite {
	s, err := ParseSuite(defaultSuite)
	if err != nil {
		panic(fmt.Sprintf("default suite: %v", err))
	}
	return s
}

// Validate checks names and per-type required fields.
func (s *Suite) Validate() error {
	if len(s.Checks) == 0 {
		return apperror.NewInvalidConfig("suite has no checks")
	}
	seen := make(map[string]struct{}, len(s.Checks))
	for _, e := range s.Checks {
		if e.Name == "" {
			return apperror.NewInvalidConfig("check without name")
		}
		if _, dup := seen[e.Name]; dup {
			return apperror.NewInvalidConfig(fmt.Sprintf("duplicate check name %q", e.Name))
		}
		seen[e.Name] = struct{}{}
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e Entry) validate() error {
	missing := func(field string) error {
		return apperror.NewInvalidConfig(fmt.Sprintf("check %q (%s): %s is required", e.Name, e.Type, field))
	}
	switch e.Type {
	case TypeInferralCycle:
		if len(e.Roots) == 0 {
			return missing("roots")
		}
		if e.Inferral == "" {
			return missing("inferral")
		}
	case TypeCompanionCycle:
		if e.Class == "" || e.Primary == "" {
			return missing("class and primary")
		}
		if len(e.Companions) == 0 {
			return missing("companions")
		}
	case TypeAttributeCollision:
	case TypeDuplicateCollection:
		if e.Class == "" || e.Partition == "" || len(e.Members) == 0 {
			return missing("class, partition and members")
		}
	case TypeRepeatedMembership, TypeTooFewMembers:
		if e.Class == "" || len(e.Members) == 0 {
			return missing("class and members")
		}
	case TypeContainmentSpecies:
		if e.Class == "" || e.Species == "" {
			return missing("class and species")
		}
	case TypeAttributePredicate:
		if e.Class == "" || e.Attribute == "" || e.Operator == "" {
			return missing("class, attribute and operator")
		}
		if _, err := relquery.ParseOperator(e.Operator); err != nil {
			return apperror.NewInvalidConfig(fmt.Sprintf("check %q: %v", e.Name, err))
		}
	default:
		return apperror.NewInvalidConfig(fmt.Sprintf("check %q: unknown type %q", e.Name, e.Type))
	}
	return nil
}

// Select returns a copy of the suite restricted to the named checks. An
// empty list selects all.
func (s *Suite) Select(names []string) (*Suite, error) {
	if len(names) == 0 {
		return s, nil
	}
	byName := make(map[string]Entry, len(s.Checks))
	for _, e := range s.Checks {
		byName[e.Name] = e
	}
	out := *s
	out.Checks = nil
	for _, n := range names {
		e, ok := byName[n]
		if !ok {
			return nil, apperror.ErrCheckNotFound.WithMessage(fmt.Sprintf("check %q not in suite", n))
		}
		e.Disabled = false
		out.Checks = append(out.Checks, e)
	}
	return &out, nil
}

// Resolver builds the author resolver configured by the suite.
func (s *Suite) Resolver() *authors.Resolver {
	return authors.NewResolver(s.Authors.Excluded, s.Authors.NoAuthor)
}

// Build turns the enabled entries into checks bound to model. Schema names
// are resolved when a check runs, so a bad name fails only that check.
func (s *Suite) Build(model *schema.Model, log *slog.Logger) ([]Check, error) {
	builder := relquery.NewBuilder(model)
	dups := duplicates.NewDetector(log)
	var out []Check
	for _, e := range s.Checks {
		if e.Disabled {
			continue
		}
		var c Check
		switch e.Type {
		case TypeInferralCycle:
			c = &InferralCycleCheck{
				CheckName: e.Name,
				Detector:  cycles.NewDetector(model, e.SkipAttributes, log),
				Roots:     e.Roots,
				Inferral:  e.Inferral,
			}
		case TypeCompanionCycle:
			c = &CompanionCycleCheck{
				CheckName:  e.Name,
				Detector:   cycles.NewDetector(model, e.SkipAttributes, log),
				Class:      e.Class,
				Primary:    e.Primary,
				Companions: e.Companions,
			}
		case TypeAttributeCollision:
			skip := e.SkipAttributes
			if skip == nil {
				skip = pairs.DefaultSkip
			}
			c = &AttributeCollisionCheck{
				CheckName:  e.Name,
				Enumerator: pairs.NewEnumerator(model, skip),
				Builder:    builder,
				Log:        log,
			}
		case TypeDuplicateCollection:
			c = &DuplicateCollectionCheck{
				CheckName: e.Name,
				Detector:  dups,
				Collection: duplicates.Collection{
					Class:     e.Class,
					Partition: e.Partition,
					Members:   e.Members,
					Strategy:  duplicates.Strategy(e.Strategy),
				},
			}
		case TypeRepeatedMembership:
			c = &RepeatedMembershipCheck{CheckName: e.Name, Detector: dups, Class: e.Class, Members: e.Members}
		case TypeTooFewMembers:
			floor := e.Min
			if floor <= 0 {
				floor = 2
			}
			c = &TooFewMembersCheck{CheckName: e.Name, Detector: dups, Class: e.Class, Members: e.Members, Min: floor}
		case TypeContainmentSpecies:
			root := e.Root
			if root == "" {
				root = e.Class
			}
			c = &ContainmentSpeciesCheck{
				CheckName: e.Name,
				Checker:   containment.NewChecker(root, e.Containment, e.Species, log),
				Class:     e.Class,
			}
		case TypeAttributePredicate:
			op, err := relquery.ParseOperator(e.Operator)
			if err != nil {
				return nil, apperror.NewInvalidConfig(err.Error())
			}
			c = &AttributePredicateCheck{
				CheckName: e.Name,
				Class:     e.Class,
				Attribute: e.Attribute,
				Op:        op,
				Value:     e.Value,
				Issue:     e.Issue,
			}
		default:
			return nil, apperror.NewInvalidConfig(fmt.Sprintf("check %q: unknown type %q", e.Name, e.Type))
		}
		out = append(out, WithSkipList(c, e.Skip))
	}
	return out, nil
}
