package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jacoelho/feedjson/internal/compress"
	"github.com/jacoelho/feedjson/internal/event"
	"github.com/jacoelho/feedjson/internal/exit"
	"github.com/jacoelho/feedjson/internal/feed"
	"github.com/jacoelho/feedjson/internal/httpclient"
	"github.com/jacoelho/feedjson/internal/output"
	"github.com/jacoelho/feedjson/internal/pipeline"
	"github.com/jacoelho/feedjson/internal/ratelimit"
	"github.com/jacoelho/feedjson/internal/selector"
)

const (
	// DefaultConnectTimeout bounds connecting to a streaming endpoint.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultReconnects is how often a dropped stream is reopened.
	DefaultReconnects = 5
	// DefaultReconnectRate limits reconnect attempts per second.
	DefaultReconnectRate = 0.2
)

var (
	ErrNoArguments         = errors.New("no arguments provided")
	ErrNoSources           = errors.New("no sources specified")
	ErrInvalidHeaderFormat = errors.New("header must be in format Name: value")
	ErrEmptyHeaderName     = errors.New("header name cannot be empty")
	ErrInvalidFieldFormat  = errors.New("field must be in format name=path")
	ErrEmptyFieldName      = errors.New("field name cannot be empty")
	ErrInvalidConfigFile   = errors.New("invalid config file")
	ErrInvalidSummary      = errors.New("summary must be text, json or none")
	ErrNegativeValue       = errors.New("value cannot be negative")
)

// Config represents the complete configuration for the feedjson tool.
type Config struct {
	Sources      []string
	Debug        bool
	FailOnErrors bool

	// Decoding
	Engine  pipeline.Engine
	Intern  pipeline.InternMode
	Verify  bool
	Workers int
	Dedupe  int
	MaxKeys int
	Kinds   Kinds
	Fields  Fields

	// Output
	Format            output.Format
	OutputFile        string
	OutputCompression compress.Type
	Summary           string

	// Feed reading
	Compression    compress.Type
	MaxLineSize    int
	Insecure       bool
	CACertFile     string
	ConnectTimeout time.Duration
	Reconnects     int
	ReconnectRate  float64 // attempts per second (0 = unlimited)
	Backoff        time.Duration
	Headers        http.Header
}

// Default returns the configuration used when neither a file nor a flag sets a value.
func Default() *Config {
	return &Config{
		Engine:            pipeline.EngineFast,
		Intern:            pipeline.InternWorker,
		Format:            output.FormatText,
		OutputCompression: compress.Auto,
		Summary:           "text",
		Compression:       compress.Auto,
		MaxLineSize:       feed.DefaultMaxLineSize,
		ConnectTimeout:    DefaultConnectTimeout,
		Reconnects:        DefaultReconnects,
		ReconnectRate:     DefaultReconnectRate,
		Backoff:           feed.DefaultBackoff,
		Headers:           make(http.Header),
	}
}

// TLSConfig returns a TLS configuration based on the config settings.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.Insecure,
	}

	if c.CACertFile != "" {
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}

		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", c.CACertFile, err)
		}

		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CACertFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// HTTPClient creates a streaming HTTP client configured with the settings from this Config.
func (c *Config) HTTPClient() (*http.Client, error) {
	tlsConfig, err := c.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
	}

	return httpclient.New(tlsConfig, c.ConnectTimeout), nil
}

// FeedConfig returns the settings used to open sources.
func (c *Config) FeedConfig(logger *slog.Logger) (feed.Config, error) {
	client, err := c.HTTPClient()
	if err != nil {
		return feed.Config{}, err
	}

	return feed.Config{
		Compression: c.Compression,
		MaxLineSize: c.MaxLineSize,
		Client:      client,
		Limiter:     ratelimit.New(c.ReconnectRate, 1),
		Reconnects:  c.Reconnects,
		Backoff:     c.Backoff,
		Header:      c.Headers,
		Logger:      logger,
	}, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	for _, source := range c.Sources {
		if source == "-" || feed.IsURL(source) {
			continue
		}
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("source %s not found: %w", source, err)
		}
	}

	if _, err := pipeline.ParseEngine(string(c.Engine)); err != nil {
		return err
	}
	if _, err := pipeline.ParseInternMode(string(c.Intern)); err != nil {
		return err
	}
	if _, err := output.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if _, err := compress.ParseType(string(c.Compression)); err != nil {
		return err
	}
	if _, err := compress.ParseType(string(c.OutputCompression)); err != nil {
		return err
	}

	switch c.Summary {
	case "text", "json", "none":
	default:
		return fmt.Errorf("%w, got: %s", ErrInvalidSummary, c.Summary)
	}

	for name, v := range map[string]int{
		"workers":       c.Workers,
		"dedupe":        c.Dedupe,
		"max-keys":      c.MaxKeys,
		"max-line-size": c.MaxLineSize,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s %d", ErrNegativeValue, name, v)
		}
	}
	if c.ReconnectRate < 0 {
		return fmt.Errorf("%w: reconnect-rate %v", ErrNegativeValue, c.ReconnectRate)
	}

	if c.CACertFile != "" {
		if _, err := os.Stat(c.CACertFile); err != nil {
			return fmt.Errorf("CA certificate file %s not found: %w", c.CACertFile, err)
		}
	}

	return nil
}

// headersFlag implements flag.Value for parsing multiple -header flags.
type headersFlag http.Header

// String returns a string representation of the headers flag for flag.Value interface.
func (h headersFlag) String() string {
	var pairs []string
	for k, values := range h {
		for _, v := range values {
			pairs = append(pairs, k+": "+v)
		}
	}
	return strings.Join(pairs, ",")
}

// Set parses and stores a header in "Name: value" format for flag.Value interface.
func (h headersFlag) Set(value string) error {
	name, v, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("%w, got: %s", ErrInvalidHeaderFormat, value)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyHeaderName
	}

	http.Header(h).Add(name, strings.TrimSpace(v))
	return nil
}

// fieldsFlag implements flag.Value for parsing multiple -field flags.
type fieldsFlag struct {
	fields *Fields
}

func (f fieldsFlag) String() string {
	if f.fields == nil {
		return ""
	}
	var pairs []string
	for _, field := range *f.fields {
		pairs = append(pairs, field.Name+"="+field.Path)
	}
	return strings.Join(pairs, ",")
}

// Set parses and stores a field in name=path format for flag.Value interface.
func (f fieldsFlag) Set(value string) error {
	name, path, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("%w, got: %s", ErrInvalidFieldFormat, value)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyFieldName
	}

	*f.fields = append(*f.fields, selector.Field{Name: name, Path: strings.TrimSpace(path)})
	return nil
}

// kindsFlag implements flag.Value for parsing multiple -kind flags. A value may
// also list several kinds separated by commas.
type kindsFlag struct {
	kinds *Kinds
}

func (k kindsFlag) String() string {
	if k.kinds == nil {
		return ""
	}
	return k.kinds.String()
}

func (k kindsFlag) Set(value string) error {
	for name := range strings.SplitSeq(value, ",") {
		kind, err := event.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		*k.kinds = append(*k.kinds, kind)
	}
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// Suppress the default usage output since we handle it ourselves
	fs.Usage = func() {}
	// Suppress error output since we handle it ourselves
	fs.SetOutput(io.Discard)

	defaults := Default()

	var (
		configFile        = fs.String("config", "", "Path to YAML pipeline file")
		debug             = fs.Bool("debug", false, "Enable debug logging")
		failOnErrors      = fs.Bool("fail-on-errors", false, "Exit with code 2 when lines fail to decode or decoders disagree")
		engine            = fs.String("engine", string(defaults.Engine), "Decoder engine: fast or safe")
		intern            = fs.String("intern", string(defaults.Intern), "Key interning: worker, shared or off")
		verify            = fs.Bool("verify", false, "Decode every line with both engines and count disagreements")
		workers           = fs.Int("workers", 0, "Decoding workers (0 for one per CPU)")
		dedupe            = fs.Int("dedupe", 0, "Drop lines repeated within the last N lines (0 disables)")
		maxKeys           = fs.Int("max-keys", 0, "Clear a key cache once it holds more than N keys (0 for the default)")
		format            = fs.String("format", string(defaults.Format), "Record format: text, json, yaml, cbor or none")
		outputFile        = fs.String("output", "", "Write records to FILE instead of stdout")
		outputCompression = fs.String("output-compression", string(defaults.OutputCompression), "Record compression: auto, none, gzip, zstd, lz4 or s2")
		summary           = fs.String("summary", defaults.Summary, "Summary format: text, json or none")
		compression       = fs.String("compression", string(defaults.Compression), "Source compression: auto, none, gzip, zstd, lz4 or s2")
		maxLineSize       = fs.Int("max-line-size", defaults.MaxLineSize, "Maximum line size in bytes")
		insecure          = fs.Bool("insecure", false, "Skip TLS certificate verification")
		caCertFile        = fs.String("cacert", "", "Path to CA certificate file for TLS verification")
		connectTimeout    = fs.Duration("connect-timeout", defaults.ConnectTimeout, "Timeout to connect to a stream")
		reconnects        = fs.Int("reconnects", defaults.Reconnects, "Times a dropped stream is reopened (negative for unlimited)")
		reconnectRate     = fs.Float64("reconnect-rate", defaults.ReconnectRate, "Reconnect attempts per second (0 for unlimited)")
		backoff           = fs.Duration("backoff", defaults.Backoff, "First wait before reopening a dropped stream")
		headers           = make(headersFlag)
		fields            Fields
		kinds             Kinds
	)

	fs.Var(headers, "header", "HTTP header in format 'Name: value' (can be used multiple times)")
	fs.Var(fieldsFlag{&fields}, "field", "Selected field in format name=path (can be used multiple times)")
	fs.Var(kindsFlag{&kinds}, "kind", "Only emit records of this kind (can be used multiple times)")

	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	config := defaults
	if *configFile != "" {
		if err := loadFile(*configFile, config); err != nil {
			return nil, exit.Errorf("Error: failed to load config file: %v\n\n%s", err, Usage())
		}
	}

	// Command-line flags take precedence over the config file
	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		if parseErr != nil {
			return
		}
		switch f.Name {
		case "debug":
			config.Debug = *debug
		case "fail-on-errors":
			config.FailOnErrors = *failOnErrors
		case "engine":
			config.Engine, parseErr = pipeline.ParseEngine(*engine)
		case "intern":
			config.Intern, parseErr = pipeline.ParseInternMode(*intern)
		case "verify":
			config.Verify = *verify
		case "workers":
			config.Workers = *workers
		case "dedupe":
			config.Dedupe = *dedupe
		case "max-keys":
			config.MaxKeys = *maxKeys
		case "format":
			config.Format, parseErr = output.ParseFormat(*format)
		case "output":
			config.OutputFile = *outputFile
		case "output-compression":
			config.OutputCompression, parseErr = compress.ParseType(*outputCompression)
		case "summary":
			config.Summary = *summary
		case "compression":
			config.Compression, parseErr = compress.ParseType(*compression)
		case "max-line-size":
			config.MaxLineSize = *maxLineSize
		case "insecure":
			config.Insecure = *insecure
		case "cacert":
			config.CACertFile = *caCertFile
		case "connect-timeout":
			config.ConnectTimeout = *connectTimeout
		case "reconnects":
			config.Reconnects = *reconnects
		case "reconnect-rate":
			config.ReconnectRate = *reconnectRate
		case "backoff":
			config.Backoff = *backoff
		case "header":
			for name, values := range headers {
				config.Headers[name] = values
			}
		case "field":
			config.Fields = fields
		case "kind":
			config.Kinds = kinds
		}
	})
	if parseErr != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", parseErr, Usage())
	}

	// Positional arguments replace the sources listed in the config file
	if sources := fs.Args(); len(sources) > 0 {
		config.Sources = sources
	}
	if len(config.Sources) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoSources, Usage())
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `feedjson - decode newline-delimited JSON feeds

Usage: feedjson [options] <source> [source...]

A source is a file path, - for stdin, or an http(s) URL to a streaming endpoint.

Options:
  --config FILE                YAML pipeline file; flags override its values
  --debug                      Enable debug logging
  --fail-on-errors             Exit with code 2 when lines fail to decode or decoders disagree
  --engine NAME                Decoder engine: fast or safe (default: fast)
  --intern MODE                Key interning: worker, shared or off (default: worker)
  --verify                     Decode every line with both engines and count disagreements
  --workers N                  Decoding workers (default: one per CPU)
  --dedupe N                   Drop lines repeated within the last N lines (default: disabled)
  --max-keys N                 Clear a key cache past N interned keys (default: 16384)
  --kind NAME                  Only emit records of this kind (can be used multiple times)
  --field NAME=PATH            Select a JSONPath into each record (can be used multiple times)
  --format NAME                Record format: text, json, yaml, cbor or none (default: text)
  --output FILE                Write records to FILE instead of stdout
  --output-compression NAME    Record compression: auto, none, gzip, zstd, lz4 or s2 (default: auto)
  --summary NAME               Summary format on stderr: text, json or none (default: text)
  --compression NAME           Source compression: auto, none, gzip, zstd, lz4 or s2 (default: auto)
  --max-line-size BYTES        Maximum line size (default: 4194304)
  --insecure                   Skip TLS certificate verification
  --cacert FILE                Path to CA certificate file for TLS verification
  --connect-timeout DURATION   Timeout to connect to a stream (default: 30s)
  --reconnects N               Times a dropped stream is reopened (default: 5, negative for unlimited)
  --reconnect-rate N           Reconnect attempts per second (default: 0.2, 0 for unlimited)
  --backoff DURATION           First wait before reopening a dropped stream (default: 250ms)
  --header 'NAME: VALUE'       HTTP header sent to streaming endpoints (can be used multiple times)
  -h, --help                   Show this help message

Examples:
  feedjson sample.jsonl.gz                               # Summarize a compressed capture
  feedjson --kind delete --format json sample.jsonl      # Emit deletions as JSON lines
  feedjson --field text='$.text' --kind status -         # Select status text from stdin
  feedjson --verify --fail-on-errors sample.jsonl        # Cross-check both decoders
  feedjson --config pipeline.yaml https://stream.example.com/1.1/statuses/sample.json`
}
