package decoder

import (
	"io"
	"unsafe"
)

// DefaultBufferSize is the window size of a StreamSource.
const DefaultBufferSize = 1024

// Source hands the decoder consecutive windows of input. The decoder never keeps a
// reference into a window after asking for the next one, so a source may reuse its
// buffer.
type Source interface {
	// ReadMore returns the next non-empty window. It returns io.EOF once the input
	// is permanently exhausted; a window returned together with an error is still
	// consumed.
	ReadMore() ([]byte, error)
}

// StringSource serves a complete in-memory document as a single window.
type StringSource struct {
	data []byte
	done bool
}

// NewStringSource views s without copying it. The decoder only reads the window.
func NewStringSource(s string) *StringSource {
	return &StringSource{data: unsafe.Slice(unsafe.StringData(s), len(s))}
}

// NewBytesSource serves b as a single window.
func NewBytesSource(b []byte) *StringSource {
	return &StringSource{data: b}
}

func (s *StringSource) ReadMore() ([]byte, error) {
	if s.done || len(s.data) == 0 {
		s.done = true
		return nil, io.EOF
	}
	s.done = true
	return s.data, nil
}

// StreamSource pulls windows from a reader into one fixed buffer that is reused for
// every refill.
type StreamSource struct {
	r   io.Reader
	buf []byte
}

// NewStreamSource reads r through a buffer of size bytes, DefaultBufferSize when
// size is not positive.
func NewStreamSource(r io.Reader, size int) *StreamSource {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &StreamSource{r: r, buf: make([]byte, size)}
}

// Reset points the source at another reader, keeping its buffer.
func (s *StreamSource) Reset(r io.Reader) {
	s.r = r
}

// ReadMore blocks until at least one byte is read, the reader is drained, or it fails.
func (s *StreamSource) ReadMore() ([]byte, error) {
	for range maxEmptyReads {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			return s.buf[:n], err
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, io.ErrNoProgress
}

// maxEmptyReads matches bufio's tolerance for readers returning 0, nil.
const maxEmptyReads = 100
