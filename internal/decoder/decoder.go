// Package decoder is the feed's JSON decoder.
//
// A Decoder walks a byte window handed out by a Source, asking for the next window
// whenever a token crosses the end of the current one. Object keys are recognised
// through a keytrie.Digger while they are scanned, so keys repeated across events
// come back as the canonical string stored the first time.
//
// Two deviations from RFC 8259 are accepted because real feeds contain them: numbers
// may carry a leading '+', and true/false/null match case-insensitively. Unknown
// backslash escapes are kept as a literal backslash.
package decoder

import (
	"errors"
	"io"

	"github.com/jacoelho/feedjson/internal/jsonerr"
	"github.com/jacoelho/feedjson/internal/jsonnum"
	"github.com/jacoelho/feedjson/internal/keytrie"
	"github.com/jacoelho/feedjson/internal/value"
)

// Stats counts how object keys were resolved.
type Stats struct {
	// Hits are keys returned straight from the trie.
	Hits uint64
	// Prefixes are keys that matched a stored key only partially.
	Prefixes uint64
	// Misses are keys that left the trie and were read as plain strings.
	Misses uint64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithKeyCache interns keys in t instead of a private trie. Use a trie from
// keytrie.NewShared when decoders on several goroutines share it.
func WithKeyCache(t *keytrie.Trie) Option {
	return func(d *Decoder) {
		d.digger = t.NewDigger()
	}
}

// WithoutInterning reads every key as a plain string.
func WithoutInterning() Option {
	return func(d *Decoder) {
		d.digger = nil
	}
}

// WithBufferSize sets the window size used by ParseReader.
func WithBufferSize(size int) Option {
	return func(d *Decoder) {
		d.bufferSize = size
	}
}

// Decoder parses one document per call. It is not safe for concurrent use; the
// trie it interns into may be shared when created with keytrie.NewShared.
type Decoder struct {
	src  Source
	buf  []byte
	pos  int
	base int64
	eof  bool
	// depth counts the containers being read.
	depth int
	// readErr is the first non-EOF error returned by the source.
	readErr error

	digger *keytrie.Digger
	text   textBuffer
	num    jsonnum.Accumulator
	stats  Stats

	bufferSize int
	stream     *StreamSource
}

// New returns a Decoder that interns keys in a private trie unless configured
// otherwise.
func New(opts ...Option) *Decoder {
	d := &Decoder{digger: keytrie.New().NewDigger()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns the key resolution counters accumulated since construction.
func (d *Decoder) Stats() Stats { return d.stats }

// Digger returns the key digger, or nil when interning is disabled.
func (d *Decoder) Digger() *keytrie.Digger { return d.digger }

// ParseString parses a complete document held in s.
func (d *Decoder) ParseString(s string) (*value.Value, error) {
	return d.Parse(NewStringSource(s))
}

// ParseBytes parses a complete document held in b. b is not retained.
func (d *Decoder) ParseBytes(b []byte) (*value.Value, error) {
	return d.Parse(NewBytesSource(b))
}

// ParseReader parses exactly one document from r, which must contain nothing but
// whitespace after it.
func (d *Decoder) ParseReader(r io.Reader) (*value.Value, error) {
	if d.stream == nil {
		d.stream = NewStreamSource(r, d.bufferSize)
	} else {
		d.stream.Reset(r)
	}
	defer d.stream.Reset(nil)
	return d.Parse(d.stream)
}

// Parse reads one value from src and rejects anything but whitespace after it.
func (d *Decoder) Parse(src Source) (*value.Value, error) {
	d.src = src
	d.buf = nil
	d.pos = 0
	d.base = 0
	d.eof = false
	d.depth = 0
	d.readErr = nil
	defer func() {
		d.src = nil
		d.buf = nil
	}()

	v, err := d.readValue()
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

// more makes sure buf[pos] is readable, refilling from the source when the window
// is exhausted. It returns false at the end of input.
func (d *Decoder) more() bool {
	for d.pos >= len(d.buf) {
		if d.eof {
			return false
		}

		window, err := d.src.ReadMore()
		if len(window) > 0 {
			d.base += int64(len(d.buf))
			d.buf = window
			d.pos = 0
		}
		if err != nil {
			d.eof = true
			if !errors.Is(err, io.EOF) {
				d.readErr = err
			}
		}
	}
	return true
}

// skipSpace advances past JSON whitespace and reports whether a byte follows.
func (d *Decoder) skipSpace() bool {
	for d.more() {
		switch d.buf[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return true
		}
	}
	return false
}

func (d *Decoder) fail(msg string) error {
	err := jsonerr.New(msg, d.buf, d.pos, d.base)
	if d.readErr != nil {
		err.Wrap(d.readErr)
	}
	return err
}

func (d *Decoder) failf(format string, args ...any) error {
	err := jsonerr.Newf(d.buf, d.pos, d.base, format, args...)
	if d.readErr != nil {
		err.Wrap(d.readErr)
	}
	return err
}
