package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jacoelho/feedjson/internal/compress"
	"github.com/jacoelho/feedjson/internal/random"
	"github.com/jacoelho/feedjson/internal/sanitizer"
)

// errFatal marks responses that a reconnect will not fix.
type errFatal struct{ err error }

func (e errFatal) Error() string { return e.err.Error() }
func (e errFatal) Unwrap() error { return e.err }

func readHTTP(ctx context.Context, source string, cfg Config, fn func(Line) error) error {
	var (
		number     int64
		reconnects int
		failures   int
	)

	for {
		if err := cfg.Limiter.Wait(ctx); err != nil {
			return err
		}

		before := number
		err := stream(ctx, source, cfg, &number, fn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var fatal errFatal
		if errors.As(err, &fatal) {
			return fatal.err
		}
		if err != nil && !isTransport(err) {
			// the callback failed or a line was too long
			return err
		}
		if err == nil {
			err = ErrStreamClosed
		}

		if number > before {
			failures = 0
		}
		failures++

		if cfg.Reconnects >= 0 && reconnects >= cfg.Reconnects {
			return fmt.Errorf("%w after %d reconnects: %w", ErrReconnectBudget, reconnects, err)
		}
		reconnects++

		wait := random.Jitter(backoff(cfg.Backoff, failures))
		cfg.Logger.Warn("feed stream dropped, reconnecting",
			"source", source,
			"error", err,
			"reconnect", reconnects,
			"wait", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// transportError wraps failures that a reconnect may recover from.
type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var t transportError
	return errors.As(err, &t)
}

// backoff doubles base for every consecutive failure, capped at maxBackoff.
func backoff(base time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func stream(ctx context.Context, source string, cfg Config, number *int64, fn func(Line) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return errFatal{fmt.Errorf("failed to create request for %s: %w", source, err)}
	}
	for name, values := range cfg.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if cfg.Compression == compress.Auto || cfg.Compression == "" {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	var secrets []string
	debug := cfg.Logger.Enabled(ctx, slog.LevelDebug)
	if debug {
		secrets = sanitizer.Secrets(req.Header)
		if dump, err := sanitizer.DumpRequest(req, secrets); err == nil {
			cfg.Logger.Debug("opening stream", "source", source, "request", string(dump))
		}
	}

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return transportError{err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
	}()

	if debug {
		if dump, err := sanitizer.DumpResponse(resp, secrets); err == nil {
			cfg.Logger.Debug("stream response", "source", source, "response", string(dump))
		}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %s from %s", ErrBadStatus, resp.Status, source)
		if retryable(resp.StatusCode) {
			return transportError{err}
		}
		return errFatal{err}
	}

	typ := cfg.Compression.Resolve(source)
	if cfg.Compression == compress.Auto || cfg.Compression == "" {
		switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
		case "gzip":
			typ = compress.Gzip
		case "zstd":
			typ = compress.Zstd
		}
	}

	zr, err := compress.NewReader(resp.Body, typ)
	if err != nil {
		return transportError{err}
	}
	defer zr.Close()

	wrapped := func(line Line) error {
		if err := fn(line); err != nil {
			return callbackError{err}
		}
		return nil
	}

	if err := scan(ctx, zr, source, cfg.MaxLineSize, number, wrapped); err != nil {
		if errors.Is(err, ErrLineTooLong) || ctx.Err() != nil {
			return err
		}
		var callback callbackError
		if errors.As(err, &callback) {
			return callback.err
		}
		return transportError{err}
	}
	return nil
}

// callbackError carries an error returned by the line callback through scan, so
// it is not mistaken for a dropped connection.
type callbackError struct{ err error }

func (e callbackError) Error() string { return e.err.Error() }
func (e callbackError) Unwrap() error { return e.err }

// retryable reports statuses worth reconnecting after: server errors and rate
// limiting (420 is the legacy streaming "enhance your calm").
func retryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == 420
}
