// Package selector picks fields out of decoded feed lines with JSONPath expressions.
package selector

import (
	"errors"
	"fmt"

	"github.com/theory/jsonpath"

	"github.com/jacoelho/feedjson/internal/value"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidPath  = errors.New("invalid JSONPath")
)

// Field names a JSONPath expression, such as {Name: "user", Path: "$.user.screen_name"}.
type Field struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// All keeps every match instead of the first one.
	All bool `yaml:"all"`
}

type compiled struct {
	Field
	path *jsonpath.Path
}

// Result is the selection of one field.
type Result struct {
	Name string
	// Value is the first match, or every match as []any when the field selects all.
	Value any
	Found bool
}

// Selector applies a fixed list of fields to each line.
type Selector struct {
	fields []compiled
}

// New compiles fields. Names must be unique and non-empty.
func New(fields []Field) (*Selector, error) {
	s := &Selector{fields: make([]compiled, 0, len(fields))}
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field name is empty", ErrInvalidInput)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidInput, f.Name)
		}
		seen[f.Name] = true

		path, err := compile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		s.fields = append(s.fields, compiled{Field: f, path: path})
	}
	return s, nil
}

func compile(expr string) (*jsonpath.Path, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: JSONPath expression is empty", ErrInvalidInput)
	}
	path, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidPath, expr, err)
	}
	return path, nil
}

// Len returns the number of fields.
func (s *Selector) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Apply evaluates every field against v in declaration order.
func (s *Selector) Apply(v *value.Value) []Result {
	if s.Len() == 0 {
		return nil
	}

	data := v.Interface()
	results := make([]Result, 0, len(s.fields))
	for _, f := range s.fields {
		nodes := f.path.Select(data)
		r := Result{Name: f.Name, Found: len(nodes) > 0}
		switch {
		case f.All:
			r.Value = []any(nodes)
		case r.Found:
			r.Value = nodes[0]
		}
		results = append(results, r)
	}
	return results
}
