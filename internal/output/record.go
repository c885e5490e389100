package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-yaml"

	"github.com/jacoelho/feedjson/internal/compress"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Format is the encoding of emitted records.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
	// FormatNone discards records; only the summary is written.
	FormatNone Format = "none"
)

func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatCBOR, FormatNone:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Field is a named value selected from a line.
type Field struct {
	Name  string
	Value any
}

// Record is what the pipeline emits for every accepted line.
type Record struct {
	ID        string   `json:"id" yaml:"id" cbor:"id"`
	Source    string   `json:"source" yaml:"source" cbor:"source"`
	Line      int64    `json:"line" yaml:"line" cbor:"line"`
	Kind      string   `json:"kind" yaml:"kind" cbor:"kind"`
	Event     string   `json:"event,omitempty" yaml:"event,omitempty" cbor:"event,omitempty"`
	Status    string   `json:"status_id,omitempty" yaml:"status_id,omitempty" cbor:"status_id,omitempty"`
	User      string   `json:"user_id,omitempty" yaml:"user_id,omitempty" cbor:"user_id,omitempty"`
	Text      string   `json:"text,omitempty" yaml:"text,omitempty" cbor:"text,omitempty"`
	Track     int64    `json:"track,omitempty" yaml:"track,omitempty" cbor:"track,omitempty"`
	Countries []string `json:"countries,omitempty" yaml:"countries,omitempty" cbor:"countries,omitempty"`
	Friends   []string `json:"friends,omitempty" yaml:"friends,omitempty" cbor:"friends,omitempty"`
	Fields    []Field  `json:"-" yaml:"-" cbor:"-"`
}

// encoded is the shape of a record in the structured formats, with fields as a map.
type encoded struct {
	ID        string         `json:"id" yaml:"id" cbor:"id"`
	Source    string         `json:"source" yaml:"source" cbor:"source"`
	Line      int64          `json:"line" yaml:"line" cbor:"line"`
	Kind      string         `json:"kind" yaml:"kind" cbor:"kind"`
	Event     string         `json:"event,omitempty" yaml:"event,omitempty" cbor:"event,omitempty"`
	Status    string         `json:"status_id,omitempty" yaml:"status_id,omitempty" cbor:"status_id,omitempty"`
	User      string         `json:"user_id,omitempty" yaml:"user_id,omitempty" cbor:"user_id,omitempty"`
	Text      string         `json:"text,omitempty" yaml:"text,omitempty" cbor:"text,omitempty"`
	Track     int64          `json:"track,omitempty" yaml:"track,omitempty" cbor:"track,omitempty"`
	Countries []string       `json:"countries,omitempty" yaml:"countries,omitempty" cbor:"countries,omitempty"`
	Friends   []string       `json:"friends,omitempty" yaml:"friends,omitempty" cbor:"friends,omitempty"`
	Fields    map[string]any `json:"fields,omitempty" yaml:"fields,omitempty" cbor:"fields,omitempty"`
}

func (r Record) encoded() encoded {
	e := encoded{
		ID:        r.ID,
		Source:    r.Source,
		Line:      r.Line,
		Kind:      r.Kind,
		Event:     r.Event,
		Status:    r.Status,
		User:      r.User,
		Text:      r.Text,
		Track:     r.Track,
		Countries: r.Countries,
		Friends:   r.Friends,
	}
	if len(r.Fields) > 0 {
		e.Fields = make(map[string]any, len(r.Fields))
		for _, f := range r.Fields {
			e.Fields[f.Name] = finite(f.Value)
		}
	}
	return e
}

// finite replaces infinite and NaN floats, which JSON cannot carry, with their
// text form: "+Inf", "-Inf" or "NaN". A number such as 1e400 decodes to +Inf.
func finite(v any) any {
	switch v := v.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = finite(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = finite(item)
		}
		return out
	default:
		return v
	}
}


var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("output: CBOR encoder initialization failed: " + err.Error())
	}
}

// Writer encodes records to an underlying writer. It is safe for concurrent use;
// every record reaches the destination in a single Write.
type Writer struct {
	mu     sync.Mutex
	format Format
	dst    io.Writer
	closer io.Closer
	buf    bytes.Buffer
	count  int64
}

// NewWriter encodes records in format to w, compressed with compression.
// Close flushes the compressor but does not close w.
func NewWriter(w io.Writer, format Format, compression compress.Type) (*Writer, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if compression == compress.Auto || compression == "" {
		compression = compress.None
	}

	zw, err := compress.NewWriter(w, compression)
	if err != nil {
		return nil, err
	}

	return &Writer{
		format: format,
		dst:    zw,
		closer: zw,
	}, nil
}

// Write encodes one record.
func (w *Writer) Write(r Record) error {
	if w.format == FormatNone {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	if err := w.encode(r); err != nil {
		return fmt.Errorf("encode record %s:%d: %w", r.Source, r.Line, err)
	}
	if _, err := w.dst.Write(w.buf.Bytes()); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *Writer) encode(r Record) error {
	switch w.format {
	case FormatJSON:
		return json.NewEncoder(&w.buf).Encode(r.encoded())
	case FormatYAML:
		payload, err := yaml.Marshal(r.encoded())
		if err != nil {
			return err
		}
		w.buf.WriteString("---\n")
		w.buf.Write(payload)
		return nil
	case FormatCBOR:
		payload, err := cborMode.Marshal(r.encoded())
		if err != nil {
			return err
		}
		w.buf.Write(payload)
		return nil
	default:
		writeText(&w.buf, r)
		return nil
	}
}

// writeText renders "source:line kind [event] id=.. user=.. name=value ...". A
// friend list shows only its length.
func writeText(buf *bytes.Buffer, r Record) {
	buf.WriteString(r.Source)
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatInt(r.Line, 10))
	buf.WriteByte(' ')
	buf.WriteString(r.Kind)
	if r.Event != "" {
		buf.WriteByte(' ')
		buf.WriteString(r.Event)
	}
	if r.Status != "" {
		buf.WriteString(" id=")
		buf.WriteString(r.Status)
	}
	if r.User != "" {
		buf.WriteString(" user=")
		buf.WriteString(r.User)
	}
	if r.Text != "" {
		buf.WriteString(" text=")
		buf.WriteString(strconv.Quote(r.Text))
	}
	if r.Track != 0 {
		buf.WriteString(" track=")
		buf.WriteString(strconv.FormatInt(r.Track, 10))
	}
	if len(r.Countries) > 0 {
		buf.WriteString(" countries=")
		buf.WriteString(strings.Join(r.Countries, ","))
	}
	if len(r.Friends) > 0 {
		buf.WriteString(" friends=")
		buf.WriteString(strconv.Itoa(len(r.Friends)))
	}
	for _, f := range r.Fields {
		buf.WriteByte(' ')
		buf.WriteString(f.Name)
		buf.WriteByte('=')
		writeTextValue(buf, f.Value)
	}
	buf.WriteByte('\n')
}

func writeTextValue(buf *bytes.Buffer, v any) {
	switch v := finite(v).(type) {
	case nil:
		buf.WriteString("null")
	case string:
		buf.WriteString(strconv.Quote(v))
	case []any, map[string]any:
		payload, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(buf, "%v", v)
			return
		}
		buf.Write(payload)
	default:
		fmt.Fprintf(buf, "%v", v)
	}
}

// Count returns the number of records written.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closer.Close()
}
