// Package feed turns a source name into a stream of newline-delimited lines.
//
// A source is a file path, "-" for stdin, or an http(s) URL. URLs are held open as
// long-lived streams and reopened when the server drops them.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jacoelho/feedjson/internal/compress"
	"github.com/jacoelho/feedjson/internal/ratelimit"
)

const (
	// DefaultMaxLineSize bounds a single message.
	DefaultMaxLineSize = 4 << 20
	// DefaultBackoff is the first wait before reopening a dropped stream.
	DefaultBackoff = 250 * time.Millisecond
	// maxBackoff caps the exponential growth of the reconnect wait.
	maxBackoff = 5 * time.Minute

	initialLineBuffer = 64 << 10
)

var (
	ErrLineTooLong     = errors.New("line exceeds maximum size")
	ErrBadStatus       = errors.New("unexpected HTTP status")
	ErrStreamClosed    = errors.New("stream closed by server")
	ErrReconnectBudget = errors.New("reconnect budget exhausted")
)

// Line is one non-blank line of a source. Data is only valid until the callback
// it was passed to returns.
type Line struct {
	Source string
	Number int64
	Data   []byte
}

// Config controls how sources are opened.
type Config struct {
	Compression compress.Type
	MaxLineSize int

	// Client, Limiter, Reconnects and Backoff only apply to http(s) sources.
	Client  *http.Client
	Limiter *ratelimit.Limiter
	// Reconnects is how many times a dropped stream is reopened. Negative means
	// without limit.
	Reconnects int
	Backoff    time.Duration
	Header     http.Header

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultMaxLineSize
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Limiter == nil {
		c.Limiter = ratelimit.New(0, 1)
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// IsURL reports whether source is read over HTTP.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Read calls fn for every line of source until the source ends, ctx is done, or
// fn returns an error.
func Read(ctx context.Context, source string, cfg Config, fn func(Line) error) error {
	cfg = cfg.withDefaults()
	if IsURL(source) {
		return readHTTP(ctx, source, cfg, fn)
	}
	return readFile(ctx, source, cfg, fn)
}

func readFile(ctx context.Context, source string, cfg Config, fn func(Line) error) error {
	var r io.Reader
	if source == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", source, err)
		}
		defer f.Close()
		r = f
	}

	zr, err := compress.NewReader(r, cfg.Compression.Resolve(source))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}
	defer zr.Close()

	var number int64
	return scan(ctx, zr, source, cfg.MaxLineSize, &number, fn)
}

// scan splits r into lines. \r\n endings are accepted and blank keep-alive lines
// are skipped; number continues from its current value across calls.
func scan(ctx context.Context, r io.Reader, source string, maxLine int, number *int64, fn func(Line) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, min(initialLineBuffer, maxLine)), maxLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		*number++
		if err := fn(Line{Source: source, Number: *number, Data: data}); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: %s after line %d (limit %d bytes)", ErrLineTooLong, source, *number, maxLine)
		}
		return err
	}
	return nil
}
