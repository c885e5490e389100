// Package jsonerr describes fatal JSON syntax errors with enough context to find
// the offending byte in a feed line.
package jsonerr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is matched by every *SyntaxError through errors.Is.
var ErrSyntax = errors.New("json syntax error")

// MaxDepth is the deepest container nesting the decoders accept. Opening one
// more container fails with TooDeep at its bracket.
const MaxDepth = 10000

// TooDeep is the message of a nesting limit failure.
const TooDeep = "nesting too deep"

const (
	contextBefore = 5
	contextAfter  = 15
)

// SyntaxError is a fatal decoding failure.
type SyntaxError struct {
	// Msg describes what was expected.
	Msg string
	// Source is the input text, or the buffered window for streamed input.
	Source string
	// Index locates the failure inside Source.
	Index int
	// Offset is the absolute byte offset of the failure in the whole input.
	Offset int64
	// Err is the underlying failure, such as a read error, if any.
	Err error
}

// New builds a SyntaxError for a failure at index in source, which starts at
// absolute offset base.
func New(msg string, source []byte, index int, base int64) *SyntaxError {
	return &SyntaxError{
		Msg:    msg,
		Source: string(source),
		Index:  index,
		Offset: base + int64(index),
	}
}

// Newf is New with a formatted message.
func Newf(source []byte, index int, base int64, format string, args ...any) *SyntaxError {
	return New(fmt.Sprintf(format, args...), source, index, base)
}

// Wrap attaches an underlying error.
func (e *SyntaxError) Wrap(err error) *SyntaxError {
	e.Err = err
	return e
}

func (e *SyntaxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "json: %s at offset %d", e.Msg, e.Offset)

	if snippet, caret := e.Context(); snippet != "" {
		b.WriteString("\n")
		b.WriteString(snippet)
		b.WriteString("\n")
		b.WriteString(strings.Repeat(" ", caret))
		b.WriteString("^")
	}

	if e.Err != nil {
		fmt.Fprintf(&b, "\ncaused by: %v", e.Err)
	}
	return b.String()
}

// Context returns the text around the failure, up to five bytes before and fifteen
// after, and the caret column inside it. Control characters are shown as spaces so
// the caret stays aligned.
func (e *SyntaxError) Context() (string, int) {
	if e.Source == "" {
		return "", 0
	}

	index := min(max(e.Index, 0), len(e.Source))
	start := max(index-contextBefore, 0)
	end := min(index+contextAfter+1, len(e.Source))

	snippet := []byte(e.Source[start:end])
	for i, c := range snippet {
		if c < ' ' {
			snippet[i] = ' '
		}
	}
	return string(snippet), index - start
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSyntax) hold for every SyntaxError.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}
