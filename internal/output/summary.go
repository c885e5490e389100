package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jacoelho/feedjson/internal/results"
)

// SummaryFormat represents the output format of the run summary.
type SummaryFormat int

const (
	SummaryText SummaryFormat = iota
	SummaryJSON
)

// ParseSummaryFormat resolves "text" or "json".
func ParseSummaryFormat(name string) (SummaryFormat, error) {
	switch name {
	case "", "text":
		return SummaryText, nil
	case "json":
		return SummaryJSON, nil
	default:
		return SummaryText, fmt.Errorf("%w: summary format %q", ErrUnknownFormat, name)
	}
}

// FormatSummary writes s in the given format.
func FormatSummary(format SummaryFormat, w io.Writer, s *results.Summary) error {
	switch format {
	case SummaryJSON:
		return formatSummaryJSON(w, s)
	case SummaryText:
		fallthrough
	default:
		return formatSummaryText(w, s)
	}
}

const separator = "--------------------------------------------------------------------------------"

func formatSummaryText(w io.Writer, s *results.Summary) error {
	for _, result := range s.SourceResults {
		status := "Success"
		if result.Error != nil {
			status = fmt.Sprintf("Failed: %v", result.Error)
		}
		_, err := fmt.Fprintf(w, "%s: %s (%d line(s) in %d ms)\n",
			result.Source, status, result.Lines, result.Duration.Milliseconds())
		if err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, separator); err != nil {
		return err
	}

	for _, kind := range s.EventKinds() {
		if _, err := fmt.Fprintf(w, "%-19s%d\n", kind+":", s.Events[kind]); err != nil {
			return err
		}
	}
	if len(s.Events) > 0 {
		if _, err := fmt.Fprintln(w, separator); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "Sources:           %d (%d failed)\n", s.ReadSources, s.FailedSources); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Lines:             %d (%.2f/s)\n", s.Lines, s.LinesPerSecond()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Records:           %d\n", s.Records); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Parse failures:    %d (%.1f%%)\n", s.ParseFailures, s.FailurePercentage()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Duplicates:        %d\n", s.Duplicates); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Mismatches:        %d\n", s.Mismatches); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Interned keys:     %d hits, %d prefixes, %d misses (%.1f%% hit rate)\n",
		s.Keys.Hits, s.Keys.Prefixes, s.Keys.Misses, s.Keys.HitRate()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Key cache:         %d add requests, %d nodes, %d clears\n",
		s.Keys.AddRequests, s.Keys.Nodes, s.Keys.Clears); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Duration:          %d ms\n", s.TotalDuration.Milliseconds()); err != nil {
		return err
	}

	return nil
}

type jsonSourceResult struct {
	Source               string `json:"source"`
	Lines                int64  `json:"lines"`
	DurationMilliseconds int64  `json:"duration_ms"`
	Success              bool   `json:"success"`
	Error                string `json:"error,omitempty"`
}

type jsonKeyStats struct {
	Hits        uint64  `json:"hits"`
	Prefixes    uint64  `json:"prefixes"`
	Misses      uint64  `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	AddRequests uint64  `json:"add_requests"`
	Nodes       uint64  `json:"nodes"`
	Clears      uint64  `json:"clears"`
}

type jsonSummary struct {
	SourceResults        []jsonSourceResult `json:"source_results"`
	ReadSources          int                `json:"read_sources"`
	FailedSources        int                `json:"failed_sources"`
	Lines                int64              `json:"lines"`
	Records              int64              `json:"records"`
	ParseFailures        int64              `json:"parse_failures"`
	Duplicates           int64              `json:"duplicates"`
	Mismatches           int64              `json:"mismatches"`
	Events               map[string]int64   `json:"events"`
	Keys                 jsonKeyStats       `json:"keys"`
	DurationMilliseconds int64              `json:"duration_ms"`
	LinesPerSecond       float64            `json:"lines_per_second"`
	FailurePercentage    float64            `json:"failure_percentage"`
}

func toJSONSummary(s *results.Summary) jsonSummary {
	sourceResults := make([]jsonSourceResult, 0, len(s.SourceResults))
	for _, result := range s.SourceResults {
		item := jsonSourceResult{
			Source:               result.Source,
			Lines:                result.Lines,
			DurationMilliseconds: result.Duration.Milliseconds(),
			Success:              result.Error == nil,
		}
		if result.Error != nil {
			item.Error = result.Error.Error()
		}
		sourceResults = append(sourceResults, item)
	}

	return jsonSummary{
		SourceResults: sourceResults,
		ReadSources:   s.ReadSources,
		FailedSources: s.FailedSources,
		Lines:         s.Lines,
		Records:       s.Records,
		ParseFailures: s.ParseFailures,
		Duplicates:    s.Duplicates,
		Mismatches:    s.Mismatches,
		Events:        s.Events,
		Keys: jsonKeyStats{
			Hits:        s.Keys.Hits,
			Prefixes:    s.Keys.Prefixes,
			Misses:      s.Keys.Misses,
			HitRate:     s.Keys.HitRate(),
			AddRequests: s.Keys.AddRequests,
			Nodes:       s.Keys.Nodes,
			Clears:      s.Keys.Clears,
		},
		DurationMilliseconds: s.TotalDuration.Milliseconds(),
		LinesPerSecond:       s.LinesPerSecond(),
		FailurePercentage:    s.FailurePercentage(),
	}
}

func formatSummaryJSON(w io.Writer, s *results.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toJSONSummary(s))
}
