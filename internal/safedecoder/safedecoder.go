// Package safedecoder is a plain rendition of the feed decoder.
//
// It accepts and rejects the same inputs as package decoder and builds equal trees,
// but it copies its input into a buffer it owns, tracks position as an index with
// an explicit end, does not intern keys and keeps nested containers on an explicit
// stack instead of recursing. It serves as the oracle the fast decoder is checked
// against, and as the engine of choice when input nesting is not trusted.
package safedecoder

import (
	"errors"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/jacoelho/feedjson/internal/jsonerr"
	"github.com/jacoelho/feedjson/internal/jsonnum"
	"github.com/jacoelho/feedjson/internal/stack"
	"github.com/jacoelho/feedjson/internal/value"
)

const (
	readChunk     = 1024
	maxEmptyReads = 100
)

// frame is a container still being filled.
type frame struct {
	array  bool
	items  []*value.Value
	fields map[string]*value.Value
	key    string
}

// Decoder parses one document per call. It is not safe for concurrent use.
type Decoder struct {
	data    []byte
	end     int
	pos     int
	r       io.Reader
	eof     bool
	empty   int
	readErr error

	text []byte
	high rune
	num  jsonnum.Accumulator

	frames *stack.Stack[frame]
}

// New returns a Decoder.
func New() *Decoder {
	return &Decoder{frames: stack.NewWithCapacity[frame](16)}
}

// ParseString parses a copy of s.
func (d *Decoder) ParseString(s string) (*value.Value, error) {
	d.reset([]byte(s), nil)
	return d.parse()
}

// ParseBytes parses a copy of b.
func (d *Decoder) ParseBytes(b []byte) (*value.Value, error) {
	d.reset(slices.Clone(b), nil)
	return d.parse()
}

// ParseReader reads r into an owned buffer while parsing one document from it.
func (d *Decoder) ParseReader(r io.Reader) (*value.Value, error) {
	d.reset(make([]byte, readChunk), r)
	d.end = 0
	return d.parse()
}

// ParseString parses s with a new Decoder.
func ParseString(s string) (*value.Value, error) { return New().ParseString(s) }

// ParseBytes parses b with a new Decoder.
func ParseBytes(b []byte) (*value.Value, error) { return New().ParseBytes(b) }

// ParseReader parses one document from r with a new Decoder.
func ParseReader(r io.Reader) (*value.Value, error) { return New().ParseReader(r) }

func (d *Decoder) reset(data []byte, r io.Reader) {
	d.data = data
	d.end = len(data)
	d.pos = 0
	d.r = r
	d.eof = false
	d.empty = 0
	d.readErr = nil
	d.frames.Reset()
}

func (d *Decoder) parse() (*value.Value, error) {
	defer func() {
		d.data = nil
		d.r = nil
		d.frames.Reset()
	}()

	v, err := d.parseValue()
	if err != nil {
		return nil, err
	}

	if d.skipSpace() {
		return nil, d.fail("unexpected content after the end of the value")
	}
	if d.readErr != nil {
		return nil, d.fail("input read failed")
	}
	return v, nil
}

// parseValue reads one complete value. Opening a container pushes a frame; every
// finished value is attached to the frame on top, which may in turn complete it.
func (d *Decoder) parseValue() (*value.Value, error) {
	for {
		v, err := d.openValue()
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}

		for {
			top := d.frames.PeekRef()
			if top == nil {
				return v, nil
			}

			done, err := d.attach(top, v)
			if err != nil {
				return nil, err
			}
			if !done {
				break
			}

			closed, _ := d.frames.Pop()
			if closed.array {
				v = value.Array(closed.items)
			} else {
				v = value.Object(closed.fields)
			}
		}
	}
}

// openValue reads a scalar or an empty container and returns it, or pushes a frame
// for a non-empty container and returns nil.
func (d *Decoder) openValue() (*value.Value, error) {
	if !d.skipSpace() {
		return nil, d.fail("unexpected end of input, value expected")
	}

	c := d.data[d.pos]
	if (c == '[' || c == '{') && d.frames.Size() == jsonerr.MaxDepth {
		return nil, d.fail(jsonerr.TooDeep)
	}

	switch c {
	case '[':
		d.pos++
		if !d.skipSpace() {
			return nil, d.fail("array is not closed")
		}
		if d.data[d.pos] == ']' {
			d.pos++
			return value.EmptyArray, nil
		}
		d.frames.Push(frame{array: true})
		return nil, nil

	case '{':
		d.pos++
		if !d.skipSpace() {
			return nil, d.fail("object is not closed")
		}
		if d.data[d.pos] == '}' {
			d.pos++
			return value.EmptyObject, nil
		}
		fields := make(map[string]*value.Value)
		key, err := d.objectKey(fields)
		if err != nil {
			return nil, err
		}
		d.frames.Push(frame{fields: fields, key: key})
		return nil, nil

	case '"':
		d.pos++
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return value.String(s), nil

	case 't', 'T':
		return d.readLiteral("true", value.True)
	case 'f', 'F':
		return d.readLiteral("false", value.False)
	case 'n', 'N':
		return d.readLiteral("null", value.Null)

	case '-', '+', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return d.readNumber()

	default:
		return nil, d.failf("invalid token found: %q", c)
	}
}

// attach adds v to the container on top and consumes the separator after it. It
// reports true when the container was closed.
func (d *Decoder) attach(top *frame, v *value.Value) (bool, error) {
	if top.array {
		top.items = append(top.items, v)
		if !d.skipSpace() {
			return false, d.fail("array is not closed")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
			return false, nil
		case ']':
			d.pos++
			return true, nil
		default:
			return false, d.fail("',' or ']' expected in array")
		}
	}

	top.fields[top.key] = v
	if !d.skipSpace() {
		return false, d.fail("object is not closed")
	}
	switch d.data[d.pos] {
	case ',':
		d.pos++
		if !d.skipSpace() {
			return false, d.fail("object is not closed")
		}
		key, err := d.objectKey(top.fields)
		if err != nil {
			return false, err
		}
		top.key = key
		return false, nil
	case '}':
		d.pos++
		return true, nil
	default:
		return false, d.fail("',' or '}' expected in object")
	}
}

// objectKey reads a key and the colon after it. The current byte is not whitespace.
func (d *Decoder) objectKey(fields map[string]*value.Value) (string, error) {
	if d.data[d.pos] != '"' {
		return "", d.fail("'\"' expected for object key")
	}
	d.pos++

	key, err := d.readString()
	if err != nil {
		return "", err
	}
	if _, dup := fields[key]; dup {
		return "", d.failf("duplicated key detected: %q", key)
	}

	if !d.skipSpace() {
		return "", d.fail("object is not closed")
	}
	if d.data[d.pos] != ':' {
		return "", d.fail("':' expected after object key")
	}
	d.pos++
	return key, nil
}

// more reports whether data[pos] is readable, reading from the stream into the
// owned buffer when needed.
func (d *Decoder) more() bool {
	for d.pos >= d.end {
		if d.r == nil || d.eof {
			return false
		}

		if d.end == len(d.data) {
			grown := make([]byte, max(2*len(d.data), readChunk))
			copy(grown, d.data[:d.end])
			d.data = grown
		}

		n, err := d.r.Read(d.data[d.end:])
		d.end += n
		switch {
		case err != nil:
			d.eof = true
			if !errors.Is(err, io.EOF) {
				d.readErr = err
			}
		case n == 0:
			d.empty++
			if d.empty >= maxEmptyReads {
				d.eof = true
				d.readErr = io.ErrNoProgress
			}
		}
	}
	return true
}

func (d *Decoder) skipSpace() bool {
	for d.more() {
		switch d.data[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return true
		}
	}
	return false
}

func (d *Decoder) fail(msg string) error {
	err := jsonerr.New(msg, d.data[:d.end], d.pos, 0)
	if d.readErr != nil {
		err.Wrap(d.readErr)
	}
	return err
}

func (d *Decoder) failf(format string, args ...any) error {
	err := jsonerr.Newf(d.data[:d.end], d.pos, 0, format, args...)
	if d.readErr != nil {
		err.Wrap(d.readErr)
	}
	return err
}

func (d *Decoder) readLiteral(word string, v *value.Value) (*value.Value, error) {
	for i := 0; i < len(word); i++ {
		if !d.more() {
			return nil, d.failf("unexpected end of input in %q", word)
		}
		if d.data[d.pos]|0x20 != word[i] {
			return nil, d.failf("invalid literal, %q expected", word)
		}
		d.pos++
	}
	return v, nil
}

func (d *Decoder) digit() (byte, bool) {
	if !d.more() {
		return 0, false
	}
	c := d.data[d.pos]
	return c, c >= '0' && c <= '9'
}

func (d *Decoder) readNumber() (*value.Value, error) {
	d.num.Reset()
	if c := d.data[d.pos]; c == '-' || c == '+' {
		if c == '-' {
			d.num.SetNegative()
		}
		d.pos++
	}

	c, ok := d.digit()
	if !ok {
		return nil, d.fail("number is required after the sign")
	}
	for ; ok; c, ok = d.digit() {
		d.num.IntDigit(c)
		d.pos++
	}

	if d.more() && d.data[d.pos] == '.' {
		d.pos++
		if c, ok = d.digit(); !ok {
			return nil, d.fail("number is required after the decimal point")
		}
		for ; ok; c, ok = d.digit() {
			d.num.FracDigit(c)
			d.pos++
		}
	}

	if d.more() && (d.data[d.pos] == 'e' || d.data[d.pos] == 'E') {
		d.pos++
		negative := false
		if d.more() && (d.data[d.pos] == '+' || d.data[d.pos] == '-') {
			negative = d.data[d.pos] == '-'
			d.pos++
		}
		d.num.StartExponent(negative)

		if c, ok = d.digit(); !ok {
			return nil, d.fail("number is required in the exponent")
		}
		for ; ok; c, ok = d.digit() {
			d.num.ExpDigit(c)
			d.pos++
		}
	}

	return d.num.Value(), nil
}

// readString reads a string whose opening quote was consumed.
func (d *Decoder) readString() (string, error) {
	d.text = d.text[:0]
	d.high = 0

	for {
		if !d.more() {
			return "", d.fail("string is not closed")
		}

		c := d.data[d.pos]
		d.pos++
		switch c {
		case '"':
			d.flushHigh()
			return string(d.text), nil
		case '\\':
			if err := d.readEscape(); err != nil {
				return "", err
			}
		default:
			d.appendBytes(c)
		}
	}
}

func (d *Decoder) readEscape() error {
	if !d.more() {
		return d.fail("string is not closed")
	}

	switch c := d.data[d.pos]; c {
	case '"', '\\', '/':
		d.appendBytes(c)
	case 'b':
		d.appendBytes('\b')
	case 'f':
		d.appendBytes('\f')
	case 'n':
		d.appendBytes('\n')
	case 'r':
		d.appendBytes('\r')
	case 't':
		d.appendBytes('\t')
	case 'u':
		d.pos++
		return d.readUnicode()
	default:
		// unknown escape: keep the backslash, reread c as text
		d.appendBytes('\\')
		return nil
	}
	d.pos++
	return nil
}

func (d *Decoder) readUnicode() error {
	var unit rune
	start := d.pos
	for i := 0; i < 4; i++ {
		if !d.more() {
			return d.fail("string is not closed")
		}
		h := hex(d.data[d.pos])
		if h < 0 {
			d.appendBytes('\\', 'u')
			d.appendBytes(d.data[start:d.pos]...)
			return nil
		}
		unit = unit<<4 | h
		d.pos++
	}
	d.appendUnit(unit)
	return nil
}

func hex(c byte) rune {
	switch {
	case '0' <= c && c <= '9':
		return rune(c - '0')
	case 'a' <= c && c <= 'f':
		return rune(c - 'a' + 10)
	case 'A' <= c && c <= 'F':
		return rune(c - 'A' + 10)
	}
	return -1
}

func (d *Decoder) flushHigh() {
	if d.high != 0 {
		d.high = 0
		d.text = utf8.AppendRune(d.text, utf8.RuneError)
	}
}

func (d *Decoder) appendBytes(b ...byte) {
	d.flushHigh()
	d.text = append(d.text, b...)
}

// appendUnit adds one UTF-16 code unit, pairing surrogates.
func (d *Decoder) appendUnit(u rune) {
	isHigh := 0xD800 <= u && u < 0xDC00
	isLow := 0xDC00 <= u && u < 0xE000

	if d.high != 0 && isLow {
		r := 0x10000 + (d.high-0xD800)<<10 + (u - 0xDC00)
		d.high = 0
		d.text = utf8.AppendRune(d.text, r)
		return
	}
	d.flushHigh()

	switch {
	case isHigh:
		d.high = u
	case isLow:
		d.text = utf8.AppendRune(d.text, utf8.RuneError)
	default:
		d.text = utf8.AppendRune(d.text, u)
	}
}
