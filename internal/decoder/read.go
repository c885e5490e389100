package decoder

import (
	"github.com/jacoelho/feedjson/internal/jsonerr"
	"github.com/jacoelho/feedjson/internal/value"
)

func (d *Decoder) readValue() (*value.Value, error) {
	if !d.skipSpace() {
		return nil, d.fail("unexpected end of input, value expected")
	}

	switch c := d.buf[d.pos]; c {
	case '[', '{':
		if d.depth == jsonerr.MaxDepth {
			return nil, d.fail(jsonerr.TooDeep)
		}
		d.depth++
		var v *value.Value
		var err error
		if c == '[' {
			v, err = d.readArray()
		} else {
			v, err = d.readObject()
		}
		d.depth--
		return v, err
	case '"':
		d.pos++
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return value.String(s), nil
	case 't', 'T':
		return d.readTrue()
	case 'f', 'F':
		return d.readFalse()
	case 'n', 'N':
		return d.readNull()
	case '-', '+', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return d.readNumber()
	default:
		return nil, d.failf("invalid token found: %q", c)
	}
}

func (d *Decoder) readArray() (*value.Value, error) {
	d.pos++
	if !d.skipSpace() {
		return nil, d.fail("array is not closed")
	}
	if d.buf[d.pos] == ']' {
		d.pos++
		return value.EmptyArray, nil
	}

	var items []*value.Value
	for {
		v, err := d.readValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		if !d.skipSpace() {
			return nil, d.fail("array is not closed")
		}
		switch d.buf[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			return value.Array(items), nil
		default:
			return nil, d.fail("',' or ']' expected in array")
		}
	}
}

func (d *Decoder) readObject() (*value.Value, error) {
	d.pos++
	if !d.skipSpace() {
		return nil, d.fail("object is not closed")
	}
	if d.buf[d.pos] == '}' {
		d.pos++
		return value.EmptyObject, nil
	}

	fields := make(map[string]*value.Value)
	for {
		if d.buf[d.pos] != '"' {
			return nil, d.fail("'\"' expected for object key")
		}
		d.pos++

		key, err := d.readKey()
		if err != nil {
			return nil, err
		}
		if _, dup := fields[key]; dup {
			return nil, d.failf("duplicated key detected: %q", key)
		}

		if !d.skipSpace() {
			return nil, d.fail("object is not closed")
		}
		if d.buf[d.pos] != ':' {
			return nil, d.fail("':' expected after object key")
		}
		d.pos++

		v, err := d.readValue()
		if err != nil {
			return nil, err
		}
		fields[key] = v

		if !d.skipSpace() {
			return nil, d.fail("object is not closed")
		}
		switch d.buf[d.pos] {
		case ',':
			d.pos++
			if !d.skipSpace() {
				return nil, d.fail("object is not closed")
			}
		case '}':
			d.pos++
			return value.Object(fields), nil
		default:
			return nil, d.fail("',' or '}' expected in object")
		}
	}
}

// readString reads a string whose opening quote was consumed.
func (d *Decoder) readString() (string, error) {
	d.text.reset()
	return d.readStringBody()
}

// readStringBody appends to the text buffer up to and including the closing quote.
func (d *Decoder) readStringBody() (string, error) {
	for {
		if !d.more() {
			return "", d.fail("string is not closed")
		}

		buf := d.buf
		start := d.pos
		i := start
		for i < len(buf) && buf[i] != '"' && buf[i] != '\\' {
			i++
		}
		if i > start {
			d.text.write(buf[start:i])
		}
		d.pos = i
		if i == len(buf) {
			continue
		}

		d.pos++
		if buf[i] == '"' {
			return d.text.String(), nil
		}
		if err := d.readEscape(); err != nil {
			return "", err
		}
	}
}

// readEscape decodes the escape after a consumed backslash. An unknown escape
// leaves the backslash in the text and the following byte unread.
func (d *Decoder) readEscape() error {
	if !d.more() {
		return d.fail("string is not closed")
	}

	c := d.buf[d.pos]
	if c == 'u' {
		d.pos++
		return d.readUnicodeEscape()
	}
	if r, ok := simpleEscape(c); ok {
		d.pos++
		d.text.writeByte(r)
		return nil
	}
	d.text.writeByte('\\')
	return nil
}

// readUnicodeEscape reads the four hex digits of \uXXXX. When a non-hex byte shows
// up first, the escape is kept as literal text.
func (d *Decoder) readUnicodeEscape() error {
	var (
		digits [4]byte
		unit   rune
	)
	for i := range digits {
		if !d.more() {
			return d.fail("string is not closed")
		}
		c := d.buf[d.pos]
		h, ok := hexValue(c)
		if !ok {
			d.text.writeString(`\u`)
			d.text.write(digits[:i])
			return nil
		}
		digits[i] = c
		unit = unit<<4 | h
		d.pos++
	}
	d.text.writeUnit(unit)
	return nil
}

func simpleEscape(c byte) (byte, bool) {
	switch c {
	case '"', '\\', '/':
		return c, true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	}
	return 0, false
}

func hexValue(c byte) (rune, bool) {
	switch {
	case c >= '0' && c <= '9':
		return rune(c - '0'), true
	case c >= 'a' && c <= 'f':
		return rune(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return rune(c-'A') + 10, true
	}
	return 0, false
}

func (d *Decoder) digit() (byte, bool) {
	if !d.more() {
		return 0, false
	}
	c := d.buf[d.pos]
	return c, c >= '0' && c <= '9'
}

func (d *Decoder) readNumber() (*value.Value, error) {
	d.num.Reset()

	switch d.buf[d.pos] {
	case '-':
		d.num.SetNegative()
		d.pos++
	case '+':
		d.pos++
	}

	c, ok := d.digit()
	if !ok {
		return nil, d.fail("number is required after the sign")
	}
	for ok {
		d.num.IntDigit(c)
		d.pos++
		c, ok = d.digit()
	}

	if d.more() && d.buf[d.pos] == '.' {
		d.pos++
		c, ok = d.digit()
		if !ok {
			return nil, d.fail("number is required after the decimal point")
		}
		for ok {
			d.num.FracDigit(c)
			d.pos++
			c, ok = d.digit()
		}
	}

	if d.more() && (d.buf[d.pos] == 'e' || d.buf[d.pos] == 'E') {
		d.pos++
		negative := false
		if d.more() && (d.buf[d.pos] == '-' || d.buf[d.pos] == '+') {
			negative = d.buf[d.pos] == '-'
			d.pos++
		}
		d.num.StartExponent(negative)

		c, ok = d.digit()
		if !ok {
			return nil, d.fail("number is required in the exponent")
		}
		for ok {
			d.num.ExpDigit(c)
			d.pos++
			c, ok = d.digit()
		}
	}

	return d.num.Value(), nil
}

func (d *Decoder) readTrue() (*value.Value, error) {
	return d.readLiteral("true", value.True)
}

func (d *Decoder) readFalse() (*value.Value, error) {
	return d.readLiteral("false", value.False)
}

func (d *Decoder) readNull() (*value.Value, error) {
	return d.readLiteral("null", value.Null)
}

// readLiteral matches word ignoring ASCII case.
func (d *Decoder) readLiteral(word string, v *value.Value) (*value.Value, error) {
	for i := 0; i < len(word); i++ {
		if !d.more() {
			return nil, d.failf("unexpected end of input in %q", word)
		}
		if d.buf[d.pos]|0x20 != word[i] {
			return nil, d.failf("invalid literal, %q expected", word)
		}
		d.pos++
	}
	return v, nil
}
