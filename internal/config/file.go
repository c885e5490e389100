package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"

	"github.com/jacoelho/feedjson/internal/compress"
	"github.com/jacoelho/feedjson/internal/event"
	"github.com/jacoelho/feedjson/internal/output"
	"github.com/jacoelho/feedjson/internal/pipeline"
	"github.com/jacoelho/feedjson/internal/selector"
)

// fileConfig is the layout of a --config file:
//
//	sources:
//	  - https://stream.example.com/1.1/statuses/sample.json
//	engine: fast
//	intern: shared
//	kinds: [status, delete]
//	fields:
//	  text: $.text
//	  user: $.user.screen_name
//	output:
//	  format: json
//	  file: records.jsonl.zst
//	  compression: zstd
//	feed:
//	  reconnects: -1
//	  backoff: 1s
//	  headers:
//	    Authorization: Bearer token
type fileConfig struct {
	Sources      []string `yaml:"sources"`
	Debug        bool     `yaml:"debug"`
	FailOnErrors bool     `yaml:"fail_on_errors"`
	Engine       string   `yaml:"engine"`
	Intern       string   `yaml:"intern"`
	Verify       bool     `yaml:"verify"`
	Workers      int      `yaml:"workers"`
	Dedupe       int      `yaml:"dedupe"`
	MaxKeys      int      `yaml:"max_keys"`
	Kinds        Kinds    `yaml:"kinds"`
	Fields       Fields   `yaml:"fields"`
	Summary      string   `yaml:"summary"`

	Output struct {
		Format      string `yaml:"format"`
		File        string `yaml:"file"`
		Compression string `yaml:"compression"`
	} `yaml:"output"`

	Feed struct {
		Compression    string   `yaml:"compression"`
		MaxLineSize    int      `yaml:"max_line_size"`
		Insecure       bool     `yaml:"insecure"`
		CACertFile     string   `yaml:"cacert"`
		ConnectTimeout Duration `yaml:"connect_timeout"`
		Reconnects     *int     `yaml:"reconnects"`
		ReconnectRate  *float64 `yaml:"reconnect_rate"`
		Backoff        Duration `yaml:"backoff"`
		Headers        Headers  `yaml:"headers"`
	} `yaml:"feed"`
}

// loadFile applies the values set in a YAML pipeline file to c.
func loadFile(filename string, c *Config) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	defer f.Close()

	var fc fileConfig
	if err := yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(&fc); err != nil {
		return fmt.Errorf("%w %s: %v", ErrInvalidConfigFile, filename, err)
	}

	return fc.apply(c)
}

func (fc *fileConfig) apply(c *Config) error {
	var err error

	if len(fc.Sources) > 0 {
		c.Sources = fc.Sources
	}
	c.Debug = c.Debug || fc.Debug
	c.FailOnErrors = c.FailOnErrors || fc.FailOnErrors
	c.Verify = c.Verify || fc.Verify

	if fc.Engine != "" {
		if c.Engine, err = pipeline.ParseEngine(fc.Engine); err != nil {
			return err
		}
	}
	if fc.Intern != "" {
		if c.Intern, err = pipeline.ParseInternMode(fc.Intern); err != nil {
			return err
		}
	}
	if fc.Workers != 0 {
		c.Workers = fc.Workers
	}
	if fc.Dedupe != 0 {
		c.Dedupe = fc.Dedupe
	}
	if fc.MaxKeys != 0 {
		c.MaxKeys = fc.MaxKeys
	}
	if len(fc.Kinds) > 0 {
		c.Kinds = fc.Kinds
	}
	if len(fc.Fields) > 0 {
		c.Fields = fc.Fields
	}
	if fc.Summary != "" {
		c.Summary = fc.Summary
	}

	if fc.Output.Format != "" {
		if c.Format, err = output.ParseFormat(fc.Output.Format); err != nil {
			return err
		}
	}
	if fc.Output.File != "" {
		c.OutputFile = fc.Output.File
	}
	if fc.Output.Compression != "" {
		if c.OutputCompression, err = compress.ParseType(fc.Output.Compression); err != nil {
			return err
		}
	}

	if fc.Feed.Compression != "" {
		if c.Compression, err = compress.ParseType(fc.Feed.Compression); err != nil {
			return err
		}
	}
	if fc.Feed.MaxLineSize != 0 {
		c.MaxLineSize = fc.Feed.MaxLineSize
	}
	c.Insecure = c.Insecure || fc.Feed.Insecure
	if fc.Feed.CACertFile != "" {
		c.CACertFile = fc.Feed.CACertFile
	}
	if fc.Feed.ConnectTimeout != 0 {
		c.ConnectTimeout = time.Duration(fc.Feed.ConnectTimeout)
	}
	if fc.Feed.Reconnects != nil {
		c.Reconnects = *fc.Feed.Reconnects
	}
	if fc.Feed.ReconnectRate != nil {
		c.ReconnectRate = *fc.Feed.ReconnectRate
	}
	if fc.Feed.Backoff != 0 {
		c.Backoff = time.Duration(fc.Feed.Backoff)
	}
	for _, h := range fc.Feed.Headers {
		c.Headers.Add(h.Name, h.Value)
	}

	return nil
}

// Fields is the list of selected fields. UnmarshalYAML supports both mapping and
// sequence forms:
//
//	fields:
//	  text: $.text
//
// or:
//
//	fields:
//	  - name: hashtags
//	    path: $.entities.hashtags[*].text
//	    all: true
type Fields []selector.Field

func (fields *Fields) UnmarshalYAML(node ast.Node) error {
	if pairs, ok := mappingValues(node); ok {
		out := make(Fields, 0, len(pairs))
		for _, pair := range pairs {
			keyNode, ok := pair.Key.(*ast.StringNode)
			if !ok {
				return fmt.Errorf("%w: field name must be string", ErrInvalidConfigFile)
			}
			pathNode, ok := pair.Value.(*ast.StringNode)
			if !ok {
				return fmt.Errorf("%w: path of field %q must be string", ErrInvalidConfigFile, keyNode.Value)
			}
			out = append(out, selector.Field{Name: keyNode.Value, Path: pathNode.Value})
		}
		*fields = out
		return nil
	}

	switch n := node.(type) {
	case *ast.SequenceNode:
		out := make(Fields, 0, len(n.Values))
		for index, item := range n.Values {
			pairs, ok := mappingValues(item)
			if !ok {
				return fmt.Errorf("%w: field at index %d must be mapping", ErrInvalidConfigFile, index)
			}

			var field selector.Field
			for _, pair := range pairs {
				keyNode, ok := pair.Key.(*ast.StringNode)
				if !ok {
					return fmt.Errorf("%w: field at index %d has a non-string key", ErrInvalidConfigFile, index)
				}

				switch keyNode.Value {
				case "name", "path":
					valueNode, ok := pair.Value.(*ast.StringNode)
					if !ok {
						return fmt.Errorf("%w: field at index %d: %s must be string", ErrInvalidConfigFile, index, keyNode.Value)
					}
					if keyNode.Value == "name" {
						field.Name = valueNode.Value
					} else {
						field.Path = valueNode.Value
					}
				case "all":
					boolNode, ok := pair.Value.(*ast.BoolNode)
					if !ok {
						return fmt.Errorf("%w: field at index %d: all must be boolean", ErrInvalidConfigFile, index)
					}
					field.All = boolNode.Value
				default:
					return fmt.Errorf("%w: field at index %d has unknown key %q", ErrInvalidConfigFile, index, keyNode.Value)
				}
			}

			if field.Name == "" {
				return fmt.Errorf("%w: field at index %d missing name", ErrInvalidConfigFile, index)
			}
			out = append(out, field)
		}
		*fields = out
		return nil
	default:
		return fmt.Errorf("%w: fields must be mapping or sequence", ErrInvalidConfigFile)
	}
}

// Kinds is a list of event kinds, written as a sequence or a comma separated string.
type Kinds []event.Kind

func (kinds Kinds) String() string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

func (kinds *Kinds) UnmarshalYAML(node ast.Node) error {
	var names []string
	switch n := node.(type) {
	case *ast.StringNode:
		names = strings.Split(n.Value, ",")
	case *ast.SequenceNode:
		for index, item := range n.Values {
			s, ok := item.(*ast.StringNode)
			if !ok {
				return fmt.Errorf("%w: kind at index %d must be string", ErrInvalidConfigFile, index)
			}
			names = append(names, s.Value)
		}
	default:
		return fmt.Errorf("%w: kinds must be string or sequence", ErrInvalidConfigFile)
	}

	out := make(Kinds, 0, len(names))
	for _, name := range names {
		k, err := event.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		out = append(out, k)
	}
	*kinds = out
	return nil
}

// Duration accepts "1m30s" style strings, or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node ast.Node) error {
	switch n := node.(type) {
	case *ast.StringNode:
		parsed, err := time.ParseDuration(n.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
		}
		*d = Duration(parsed)
		return nil
	case *ast.IntegerNode:
		switch seconds := n.Value.(type) {
		case int64:
			*d = Duration(time.Duration(seconds) * time.Second)
		case uint64:
			*d = Duration(time.Duration(seconds) * time.Second)
		default:
			return fmt.Errorf("%w: invalid duration %v", ErrInvalidConfigFile, n.Value)
		}
		return nil
	case *ast.FloatNode:
		*d = Duration(time.Duration(n.Value * float64(time.Second)))
		return nil
	default:
		return fmt.Errorf("%w: duration must be string or number", ErrInvalidConfigFile)
	}
}

// Header is one HTTP header of a streaming request.
type Header struct {
	Name  string
	Value string
}

// Headers preserves the order headers are listed in. Values may repeat a name.
type Headers []Header

func (headers *Headers) UnmarshalYAML(node ast.Node) error {
	pairs, ok := mappingValues(node)
	if !ok {
		return fmt.Errorf("%w: headers must be mapping", ErrInvalidConfigFile)
	}

	out := make(Headers, 0, len(pairs))
	for _, pair := range pairs {
		keyNode, ok := pair.Key.(*ast.StringNode)
		if !ok {
			return fmt.Errorf("%w: header name must be string", ErrInvalidConfigFile)
		}

		switch value := pair.Value.(type) {
		case *ast.SequenceNode:
			for _, item := range value.Values {
				s, err := scalarString(item)
				if err != nil {
					return fmt.Errorf("%w: header %q: %v", ErrInvalidConfigFile, keyNode.Value, err)
				}
				out = append(out, Header{Name: keyNode.Value, Value: s})
			}
		default:
			s, err := scalarString(value)
			if err != nil {
				return fmt.Errorf("%w: header %q: %v", ErrInvalidConfigFile, keyNode.Value, err)
			}
			out = append(out, Header{Name: keyNode.Value, Value: s})
		}
	}
	*headers = out
	return nil
}

// mappingValues returns the pairs of a mapping. A mapping with a single pair may
// come back from the parser as a bare MappingValueNode.
func mappingValues(node ast.Node) ([]*ast.MappingValueNode, bool) {
	switch n := node.(type) {
	case *ast.MappingNode:
		return n.Values, true
	case *ast.MappingValueNode:
		return []*ast.MappingValueNode{n}, true
	default:
		return nil, false
	}
}

func scalarString(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.NullNode:
		return "", nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IntegerNode:
		switch v := n.Value.(type) {
		case int64:
			return strconv.FormatInt(v, 10), nil
		case uint64:
			return strconv.FormatUint(v, 10), nil
		}
		return "", fmt.Errorf("unexpected integer node value type: %T", n.Value)
	case *ast.FloatNode:
		return strconv.FormatFloat(n.Value, 'f', -1, 64), nil
	case *ast.BoolNode:
		return strconv.FormatBool(n.Value), nil
	default:
		return "", fmt.Errorf("value must be scalar, got %T", node)
	}
}
