// Package compress wraps feed readers and output writers with a decompressor or
// compressor chosen by name or by file extension.
package compress

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var ErrUnknownType = errors.New("unknown compression")

type Type string

const (
	None Type = "none"
	Gzip Type = "gzip"
	Zstd Type = "zstd"
	LZ4  Type = "lz4"
	S2   Type = "s2"
	// Auto selects the type from the file extension.
	Auto Type = "auto"
)

var extensions = map[string]Type{
	".gz":   Gzip,
	".gzip": Gzip,
	".zst":  Zstd,
	".zstd": Zstd,
	".lz4":  LZ4,
	".s2":   S2,
	".sz":   S2,
}

// ParseType validates a compression name. The empty name means Auto.
func ParseType(name string) (Type, error) {
	switch t := Type(strings.ToLower(name)); t {
	case "":
		return Auto, nil
	case None, Gzip, Zstd, LZ4, S2, Auto:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

// Detect picks the compression of a file or URL path by its extension.
func Detect(name string) Type {
	if i := strings.IndexAny(name, "?#"); i >= 0 && strings.Contains(name, "://") {
		name = name[:i]
	}
	if t, ok := extensions[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	return None
}

// Resolve turns Auto into the type detected from name.
func (t Type) Resolve(name string) Type {
	if t == Auto || t == "" {
		return Detect(name)
	}
	return t
}

var zstdDecoders = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return dec
	},
}

type zstdReader struct {
	*zstd.Decoder
}

// Close returns the decoder to the pool.
func (z zstdReader) Close() error {
	if z.Decoder == nil {
		return nil
	}
	_ = z.Decoder.Reset(nil)
	zstdDecoders.Put(z.Decoder)
	return nil
}

// NewReader decompresses r. Closing the result does not close r.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case Zstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			zstdDecoders.Put(dec)
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zstdReader{dec}, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
}

// NewWriter compresses into w. Close flushes the compressor but does not close w.
func NewWriter(w io.Writer, t Type) (io.WriteCloser, error) {
	switch t {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
