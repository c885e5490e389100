package results

import (
	"maps"
	"slices"
	"time"
)

type SourceResult struct {
	Source   string
	Lines    int64
	Duration time.Duration
	Error    error
}

type SourceResultBuilder struct {
	source   string
	lines    int64
	duration time.Duration
	err      error
}

func NewSourceResultBuilder(source string) *SourceResultBuilder {
	return &SourceResultBuilder{
		source: source,
	}
}

func (b *SourceResultBuilder) WithLines(lines int64) *SourceResultBuilder {
	b.lines = lines
	return b
}

func (b *SourceResultBuilder) WithDuration(duration time.Duration) *SourceResultBuilder {
	b.duration = duration
	return b
}

func (b *SourceResultBuilder) WithError(err error) *SourceResultBuilder {
	b.err = err
	return b
}

func (b *SourceResultBuilder) Build() SourceResult {
	return SourceResult{
		Source:   b.source,
		Lines:    b.lines,
		Duration: b.duration,
		Error:    b.err,
	}
}

// KeyStats counts how object keys were resolved against the key cache, and how
// the cache itself grew.
type KeyStats struct {
	Hits     uint64
	Prefixes uint64
	Misses   uint64

	// AddRequests is the number of Add calls made to the key tries.
	AddRequests uint64
	// Nodes is the number of trie nodes held at the end of the run.
	Nodes uint64
	// Clears counts how often a trie was emptied for exceeding its key limit.
	Clears uint64
}

func (k KeyStats) Total() uint64 {
	return k.Hits + k.Prefixes + k.Misses
}

// HitRate is the percentage of keys served from the cache without building a new string.
func (k KeyStats) HitRate() float64 {
	if k.Total() == 0 {
		return 0
	}
	return float64(k.Hits) / float64(k.Total()) * 100
}

type Summary struct {
	SourceResults    []SourceResult
	ReadSources      int
	SucceededSources int
	FailedSources    int

	Lines         int64
	Records       int64
	ParseFailures int64
	Duplicates    int64
	Mismatches    int64
	Events        map[string]int64
	Keys          KeyStats

	TotalDuration time.Duration
}

func NewSummary(expectedSources int) *Summary {
	return &Summary{
		SourceResults: make([]SourceResult, 0, expectedSources),
		Events:        make(map[string]int64),
	}
}

func (s *Summary) Add(builder *SourceResultBuilder) {
	result := builder.Build()

	s.SourceResults = append(s.SourceResults, result)
	s.ReadSources++
	s.Lines += result.Lines

	if result.Error != nil {
		s.FailedSources++
	} else {
		s.SucceededSources++
	}
}

// CountEvents adds n events of the named kind.
func (s *Summary) CountEvents(kind string, n int64) {
	if n == 0 {
		return
	}
	s.Events[kind] += n
}

// EventKinds returns the kinds seen, sorted by name.
func (s *Summary) EventKinds() []string {
	return slices.Sorted(maps.Keys(s.Events))
}

func (s *Summary) SetTotalDuration(duration time.Duration) {
	s.TotalDuration = duration
}

func (s *Summary) LinesPerSecond() float64 {
	if s.TotalDuration == 0 {
		return 0
	}
	return float64(s.Lines) / s.TotalDuration.Seconds()
}

func (s *Summary) FailurePercentage() float64 {
	if s.Lines == 0 {
		return 0
	}
	return (float64(s.ParseFailures) / float64(s.Lines)) * 100
}

// Failed reports whether any source failed or any line did not decode cleanly.
func (s *Summary) Failed() bool {
	return s.FailedSources > 0 || s.ParseFailures > 0 || s.Mismatches > 0
}
