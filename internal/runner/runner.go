package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jacoelho/feedjson/internal/compress"
	"github.com/jacoelho/feedjson/internal/config"
	"github.com/jacoelho/feedjson/internal/exit"
	"github.com/jacoelho/feedjson/internal/output"
	"github.com/jacoelho/feedjson/internal/pipeline"
	"github.com/jacoelho/feedjson/internal/results"
)

// Runner wires a parsed configuration into a pipeline run.
type Runner struct {
	config    *config.Config
	output    io.Writer
	errOutput io.Writer
}

// New creates a new Runner with the provided configuration.
// If creation fails, returns nil runner and exit result.
func New(cfg *config.Config) (*Runner, *exit.Result) {
	if cfg.Summary != "none" {
		if _, err := output.ParseSummaryFormat(cfg.Summary); err != nil {
			return nil, exit.Errorf("Error creating runner: %v\n", err)
		}
	}

	return &Runner{
		config:    cfg,
		output:    os.Stdout,
		errOutput: os.Stderr,
	}, nil
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

func (r *Runner) errorWriter() io.Writer {
	if r.errOutput == nil {
		return io.Discard
	}
	return r.errOutput
}

func (r *Runner) logf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errorWriter(), format, args...)
}

func (r *Runner) logger() *slog.Logger {
	level := slog.LevelInfo
	if r.config.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(r.errorWriter(), &slog.HandlerOptions{Level: level}))
}

// Run decodes every source and returns the process exit code.
func (r *Runner) Run(ctx context.Context) int {
	logger := r.logger()

	summary, err := r.runOnce(ctx, logger)
	if err != nil {
		r.logf("Error: %v\n", err)
		return exit.CodeError
	}

	if ctx.Err() != nil {
		logger.Info("interrupted", "lines", summary.Lines)
	}

	if r.config.Summary != "none" {
		format, _ := output.ParseSummaryFormat(r.config.Summary)
		if err := output.FormatSummary(format, r.errorWriter(), summary); err != nil {
			r.logf("Error formatting summary: %v\n", err)
		}
	}

	if r.config.FailOnErrors && summary.Failed() {
		res := exit.DataErrors("Error: %d source(s) failed, %d line(s) failed to decode, %d mismatch(es)\n",
			summary.FailedSources, summary.ParseFailures, summary.Mismatches)
		res.Output = r.errorWriter()
		res.Print()
		return res.ExitCode
	}
	return exit.CodeOK
}

func (r *Runner) runOnce(ctx context.Context, logger *slog.Logger) (*results.Summary, error) {
	dst, closeDst, err := r.openOutput()
	if err != nil {
		return nil, err
	}
	defer closeDst()

	compression := r.config.OutputCompression
	if compression == compress.Auto {
		compression = compress.Detect(r.config.OutputFile)
	}

	writer, err := output.NewWriter(dst, r.config.Format, compression)
	if err != nil {
		return nil, err
	}

	feedConfig, err := r.config.FeedConfig(logger)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		Sources: r.config.Sources,
		Feed:    feedConfig,
		Engine:  r.config.Engine,
		Intern:  r.config.Intern,
		Verify:  r.config.Verify,
		Workers: r.config.Workers,
		Dedupe:  r.config.Dedupe,
		MaxKeys: r.config.MaxKeys,
		Kinds:   r.config.Kinds,
		Fields:  r.config.Fields,
		Output:  writer,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	summary, runErr := p.Run(ctx)
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to flush records: %w", err)
	}
	return summary, runErr
}

func (r *Runner) openOutput() (io.Writer, func(), error) {
	if r.config.OutputFile == "" || r.config.OutputFile == "-" {
		w := r.output
		if w == nil {
			w = io.Discard
		}
		return w, func() {}, nil
	}

	f, err := os.Create(r.config.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
