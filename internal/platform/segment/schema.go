package segment

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema maps segment tags to record kinds. Rules are tried in order and
// the first match wins.
type Schema struct {
	Dialect string `yaml:"dialect"`
	Rules   []Rule `yaml:"rules"`
}

// Rule extracts one record kind from segments with a given tag, optionally
// narrowed by a qualifier field (e.g. NM1 role "IL" vs "85").
type Rule struct {
	Tag       string      `yaml:"tag"`
	Qualifier *Qualifier  `yaml:"qualifier,omitempty"`
	Record    string      `yaml:"record"`
	Fields    []FieldSpec `yaml:"fields"`
}

// Qualifier narrows a rule to segments whose field Index equals Value. With
// Anywhere set, Index is ignored and the rule applies when Value appears
// anywhere in the segment text (e.g. DTP carrying "472").
type Qualifier struct {
	Index    int    `yaml:"index"`
	Value    string `yaml:"value"`
	Anywhere bool   `yaml:"anywhere,omitempty"`
}

// FieldSpec names one value pulled from a segment. Index counts the tag as 0.
type FieldSpec struct {
	Name      string     `yaml:"name"`
	Index     int        `yaml:"index"`
	Component *Component `yaml:"component,omitempty"`
	Replace   *Replace   `yaml:"replace,omitempty"`
	Optional  bool       `yaml:"optional,omitempty"`
}

// Component selects a sub-value of a field, e.g. "ABK:R69" split on ":".
type Component struct {
	Separator string `yaml:"separator"`
	Index     int    `yaml:"index"`
}

type Replace struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// LoadSchema parses and checks a YAML schema document.
func LoadSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) validate() error {
	if _, ok := LookupDialect(s.Dialect); !ok {
		return fmt.Errorf("schema: unknown dialect %q", s.Dialect)
	}
	if len(s.Rules) == 0 {
		return errors.New("schema: no rules")
	}
	for i, r := range s.Rules {
		if r.Tag == "" || r.Record == "" {
			return fmt.Errorf("schema: rule %d needs tag and record", i)
		}
		if q := r.Qualifier; q != nil {
			if q.Anywhere && q.Value == "" {
				return fmt.Errorf("schema: rule %s qualifier needs a value", r.Tag)
			}
			if !q.Anywhere && q.Index < 1 {
				return fmt.Errorf("schema: rule %s qualifier index must be >= 1", r.Tag)
			}
		}
		for _, f := range r.Fields {
			if f.Name == "" || f.Index < 1 {
				return fmt.Errorf("schema: rule %s has a field without name or with index < 1", r.Tag)
			}
			if f.Component != nil && (f.Component.Separator == "" || f.Component.Index < 0) {
				return fmt.Errorf("schema: rule %s field %s has an invalid component", r.Tag, f.Name)
			}
		}
	}
	return nil
}

// Values holds the named fields pulled from one segment.
type Values map[string]string

// Record is a typed value built from a segment.
type Record interface {
	Kind() string
}

// Builder turns extracted values into a typed record.
type Builder func(Values) Record

// Extractor applies a Schema to segments.
type Extractor struct {
	dialect  Dialect
	rules    []Rule
	builders map[string]Builder
}

// NewExtractor binds every record kind in s to a builder.
func NewExtractor(s *Schema, builders map[string]Builder) (*Extractor, error) {
	d, ok := LookupDialect(s.Dialect)
	if !ok {
		return nil, fmt.Errorf("schema: unknown dialect %q", s.Dialect)
	}
	for _, r := range s.Rules {
		if _, ok := builders[r.Record]; !ok {
			return nil, fmt.Errorf("schema: no builder for record %q", r.Record)
		}
	}
	return &Extractor{dialect: d, rules: s.Rules, builders: builders}, nil
}

// Dialect returns the dialect the schema was written for.
func (x *Extractor) Dialect() Dialect { return x.dialect }

// Extract produces the record for seg, or nil when no rule applies. A
// required field beyond the segment's length yields a *FieldIndexError.
func (x *Extractor) Extract(seg Segment) (Record, error) {
	if seg.Len() == 0 {
		return nil, ErrEmptySegment
	}
	rule, ok := x.match(seg)
	if !ok {
		return nil, nil
	}

	vals := make(Values, len(rule.Fields))
	for _, f := range rule.Fields {
		v, err := fieldValue(seg, f)
		if err != nil {
			return nil, err
		}
		vals[f.Name] = v
	}
	return x.builders[rule.Record](vals), nil
}

func (x *Extractor) match(seg Segment) (Rule, bool) {
	for _, r := range x.rules {
		if r.Tag != seg.Tag() {
			continue
		}
		if q := r.Qualifier; q != nil && !x.qualifies(seg, q) {
			continue
		}
		return r, true
	}
	return Rule{}, false
}

func (x *Extractor) qualifies(seg Segment, q *Qualifier) bool {
	if q.Anywhere {
		raw := seg.Raw
		if raw == "" {
			raw = strings.Join(seg.Fields, x.dialect.Separator)
		}
		return strings.Contains(raw, q.Value)
	}
	return q.Index < seg.Len() && seg.Fields[q.Index] == q.Value
}

func fieldValue(seg Segment, f FieldSpec) (string, error) {
	if f.Index >= seg.Len() {
		if f.Optional {
			return "", nil
		}
		return "", &FieldIndexError{Tag: seg.Tag(), Field: f.Name, Index: f.Index, Component: -1, Have: seg.Len()}
	}
	v := seg.Fields[f.Index]

	if c := f.Component; c != nil {
		parts := strings.Split(v, c.Separator)
		if c.Index >= len(parts) {
			if f.Optional {
				return "", nil
			}
			return "", &FieldIndexError{Tag: seg.Tag(), Field: f.Name, Index: f.Index, Component: c.Index, Have: len(parts)}
		}
		v = parts[c.Index]
	}
	if r := f.Replace; r != nil {
		v = strings.ReplaceAll(v, r.Old, r.New)
	}
	return v, nil
}

// Extraction pairs a segment with the record built from it, if any.
type Extraction struct {
	Position int
	Segment  Segment
	Record   Record
}

// ExtractAll runs Extract over every segment. Field index failures become
// MalformedSegment diagnostics and the remaining segments are still processed.
func (x *Extractor) ExtractAll(segs []Segment) ([]Extraction, []Diagnostic) {
	out := make([]Extraction, 0, len(segs))
	var diags []Diagnostic
	for i, seg := range segs {
		rec, err := x.Extract(seg)
		if err != nil {
			diags = append(diags, Diagnostic{
				Kind:     MalformedSegment,
				Position: i,
				Tag:      seg.Tag(),
				Message:  err.Error(),
			})
		}
		out = append(out, Extraction{Position: i, Segment: seg, Record: rec})
	}
	return out, diags
}
