// Package pipeline reads feed sources, decodes every line on a worker pool, and
// emits a record per classified event.
//
// Records are written in completion order. With a single worker they follow the
// line order of each source.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/jacoelho/feedjson/internal/clock"
	"github.com/jacoelho/feedjson/internal/dedupe"
	"github.com/jacoelho/feedjson/internal/event"
	"github.com/jacoelho/feedjson/internal/feed"
	"github.com/jacoelho/feedjson/internal/keytrie"
	"github.com/jacoelho/feedjson/internal/output"
	"github.com/jacoelho/feedjson/internal/results"
	"github.com/jacoelho/feedjson/internal/selector"
)

// DefaultMaxKeys bounds a key cache before it is cleared.
const DefaultMaxKeys = 1 << 14

var (
	ErrNoSources         = errors.New("no sources")
	ErrNoOutput          = errors.New("no output writer")
	ErrUnknownEngine     = errors.New("unknown decoder engine")
	ErrUnknownInternMode = errors.New("unknown interning mode")
)

// Engine selects the decoder lines go through.
type Engine string

const (
	// EngineFast is the streaming decoder with key interning.
	EngineFast Engine = "fast"
	// EngineSafe is the iterative decoder that copies its input.
	EngineSafe Engine = "safe"
)

func ParseEngine(name string) (Engine, error) {
	switch e := Engine(strings.ToLower(name)); e {
	case "":
		return EngineFast, nil
	case EngineFast, EngineSafe:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// InternMode selects how the fast decoder caches object keys.
type InternMode string

const (
	// InternWorker gives every pooled decoder its own key cache.
	InternWorker InternMode = "worker"
	// InternShared makes every decoder share one synchronized key cache.
	InternShared InternMode = "shared"
	// InternOff builds a fresh string for every key.
	InternOff InternMode = "off"
)

func ParseInternMode(name string) (InternMode, error) {
	switch m := InternMode(strings.ToLower(name)); m {
	case "":
		return InternWorker, nil
	case InternWorker, InternShared, InternOff:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInternMode, name)
	}
}

type Config struct {
	Sources []string
	Feed    feed.Config

	Engine Engine
	Intern InternMode
	// MaxKeys is the size a key cache may reach before it is cleared.
	MaxKeys int
	// Verify decodes every line with both engines and counts disagreements.
	Verify bool

	// Workers is the size of the decoding pool, GOMAXPROCS when not positive.
	Workers int
	// Dedupe is the number of recent lines checked for duplicates, 0 disables it.
	Dedupe int

	// Kinds limits emitted records to these kinds; empty emits every kind.
	Kinds  []event.Kind
	Fields []selector.Field

	Output *output.Writer
	Logger *slog.Logger
	// NewID generates record ids.
	NewID func() string
}

type Pipeline struct {
	cfg      Config
	logger   *slog.Logger
	selector *selector.Selector
	window   *dedupe.Window
	shared   *keytrie.Trie
	// workers is the free list of decoder sets; at most cfg.Workers are built.
	workers  chan *worker
	wanted   []bool

	triesMu sync.Mutex
	tries   []*keytrie.Trie

	events        []atomic.Int64
	records       atomic.Int64
	parseFailures atomic.Int64
	duplicates    atomic.Int64
	mismatches    atomic.Int64
	panics        atomic.Int64
	keyHits       atomic.Uint64
	keyPrefixes   atomic.Uint64
	keyMisses     atomic.Uint64
	keyAdds       atomic.Uint64
	keyClears     atomic.Uint64

	writeErrOnce sync.Once
	writeErr     error
}

func New(cfg Config) (*Pipeline, error) {
	if len(cfg.Sources) == 0 {
		return nil, ErrNoSources
	}
	if cfg.Output == nil {
		return nil, ErrNoOutput
	}

	var err error
	if cfg.Engine, err = ParseEngine(string(cfg.Engine)); err != nil {
		return nil, err
	}
	if cfg.Intern, err = ParseInternMode(string(cfg.Intern)); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	if cfg.Feed.Logger == nil {
		cfg.Feed.Logger = cfg.Logger
	}

	sel, err := selector.New(cfg.Fields)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   cfg.Logger,
		selector: sel,
		events:   make([]atomic.Int64, len(event.Kinds())),
		wanted:   make([]bool, len(event.Kinds())),
	}

	if cfg.Dedupe > 0 {
		p.window = dedupe.New(cfg.Dedupe)
	}
	if cfg.Intern == InternShared {
		p.shared = keytrie.NewShared()
		p.track(p.shared)
	}

	for _, k := range cfg.Kinds {
		p.wanted[k] = true
	}
	if len(cfg.Kinds) == 0 {
		for i := range p.wanted {
			p.wanted[i] = true
		}
	}

	p.workers = make(chan *worker, cfg.Workers)
	return p, nil
}

func (p *Pipeline) track(t *keytrie.Trie) {
	p.triesMu.Lock()
	defer p.triesMu.Unlock()
	p.tries = append(p.tries, t)
}

func (p *Pipeline) borrow() *worker {
	select {
	case w := <-p.workers:
		return w
	default:
		return p.newWorker()
	}
}

func (p *Pipeline) release(w *worker) {
	select {
	case p.workers <- w:
	default:
	}
}

// keyStats reads the decoder counters and the state of every key trie.
func (p *Pipeline) keyStats() results.KeyStats {
	stats := results.KeyStats{
		Hits:        p.keyHits.Load(),
		Prefixes:    p.keyPrefixes.Load(),
		Misses:      p.keyMisses.Load(),
		AddRequests: p.keyAdds.Load(),
		Clears:      p.keyClears.Load(),
	}

	p.triesMu.Lock()
	defer p.triesMu.Unlock()
	for _, t := range p.tries {
		stats.AddRequests += t.AddRequests()
		stats.Nodes += uint64(t.Nodes())
	}
	return stats
}

// Run reads every source concurrently until they end or ctx is done. Failing
// sources are reported in the summary; the error is only set when records could
// not be written or the pool could not start.
func (p *Pipeline) Run(ctx context.Context) (*results.Summary, error) {
	start := clock.Now()

	pool, err := ants.NewPool(p.cfg.Workers, ants.WithPanicHandler(func(r any) {
		p.panics.Add(1)
		p.logger.Error("line processing panicked", "panic", r)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	summary := results.NewSummary(len(p.cfg.Sources))
	var (
		mu      sync.Mutex
		readers sync.WaitGroup
		tasks   sync.WaitGroup
	)

	for _, source := range p.cfg.Sources {
		readers.Add(1)
		go func() {
			defer readers.Done()

			begin := clock.Now()
			lines, err := p.read(ctx, source, pool, &tasks)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				err = nil
			}
			if err != nil {
				p.logger.Error("feed source failed", "source", source, "error", err)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Add(results.NewSourceResultBuilder(source).
				WithLines(lines).
				WithDuration(clock.Since(begin)).
				WithError(err))
		}()
	}

	readers.Wait()
	tasks.Wait()

	summary.Records = p.records.Load()
	summary.ParseFailures = p.parseFailures.Load() + p.panics.Load()
	summary.Duplicates = p.duplicates.Load()
	summary.Mismatches = p.mismatches.Load()
	summary.Keys = p.keyStats()
	for _, k := range event.Kinds() {
		summary.CountEvents(k.String(), p.events[k].Load())
	}
	summary.SetTotalDuration(clock.Since(start))

	return summary, p.writeErr
}

func (p *Pipeline) read(ctx context.Context, source string, pool *ants.Pool, tasks *sync.WaitGroup) (int64, error) {
	p.logger.Debug("reading feed", "source", source)

	var lines int64
	err := feed.Read(ctx, source, p.cfg.Feed, func(line feed.Line) error {
		lines++
		if p.window != nil && p.window.Seen(line.Data) {
			p.duplicates.Add(1)
			return nil
		}

		data := bytes.Clone(line.Data)
		number := line.Number

		tasks.Add(1)
		if err := pool.Submit(func() {
			defer tasks.Done()
			p.process(source, number, data)
		}); err != nil {
			tasks.Done()
			return fmt.Errorf("failed to submit line %d: %w", number, err)
		}
		return nil
	})
	return lines, err
}

func (p *Pipeline) process(source string, number int64, data []byte) {
	w := p.borrow()
	defer p.release(w)

	v, err := w.decode(p, data)
	if err != nil {
		p.parseFailures.Add(1)
		p.logger.Warn("failed to decode line", "source", source, "line", number, "error", err)
		return
	}

	e := event.Classify(v)
	p.events[e.Kind].Add(1)
	if e.Kind == event.KindUnknown {
		p.logger.Debug("unclassified line", "source", source, "line", number, "keys", v.Keys())
	}
	if !p.wanted[e.Kind] {
		return
	}

	record := output.Record{
		ID:     p.cfg.NewID(),
		Source: source,
		Line:   number,
		Kind:   e.Kind.String(),
		Event:  e.Name,
		Status: e.ID(),
		User:   e.UserID(),

		Text:      e.Text(),
		Track:     e.Track(),
		Countries: e.Countries(),
		Friends:   e.Friends(),
	}
	for _, r := range p.selector.Apply(v) {
		if r.Found {
			record.Fields = append(record.Fields, output.Field{Name: r.Name, Value: r.Value})
		}
	}

	if err := p.cfg.Output.Write(record); err != nil {
		p.writeErrOnce.Do(func() { p.writeErr = err })
		p.logger.Error("failed to write record", "source", source, "line", number, "error", err)
		return
	}
	p.records.Add(1)

	if e.Kind == event.KindDisconnect || e.Kind == event.KindWarning {
		p.logger.Warn("feed control message", "source", source, "kind", e.Kind, "code", e.Code(), "reason", e.Reason())
	}
}
