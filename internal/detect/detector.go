// Package detect infers the structural type of a log from a bounded sample
// of its first lines.
package detect

import (
	"regexp"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
)

// SampleLines is the maximum number of leading lines scored.
const SampleLines = 101

// signatures is declared in tie-break priority order: when two types reach
// the same score the earlier one wins.
var signatures = []struct {
	typ      model.LogType
	patterns []*regexp.Regexp
}{
	{model.LogTransactional, []*regexp.Regexp{
		regexp.MustCompile(`server id \d+.*end_log_pos`),
		regexp.MustCompile(`GTID.*last_committed`),
		regexp.MustCompile(`Table_map:.*mapped to number`),
		regexp.MustCompile(`(Delete_rows|Update_rows|Write_rows|Query).*table id`),
	}},
	{model.LogStructuredApp, []*regexp.Regexp{
		regexp.MustCompile(`(ERROR|WARN|INFO|DEBUG)\s+[\w.]+\s+-`),
		regexp.MustCompile(`(?m)^\s+at\s+[\w.$]+\([\w.]+:\d+\)`),
		regexp.MustCompile(`Exception|Error|Throwable`),
	}},
	{model.LogAccess, []*regexp.Regexp{
		regexp.MustCompile(`\d+\.\d+\.\d+\.\d+\s+-\s+-\s+\[`),
		regexp.MustCompile(`"(GET|POST|PUT|DELETE|HEAD|OPTIONS)\s+`),
	}},
	{model.LogTrace, []*regexp.Regexp{
		regexp.MustCompile(`(?i)trace[_-]?id`),
		regexp.MustCompile(`(?i)span[_-]?id`),
		regexp.MustCompile(`(?i)parent[_-]?id`),
	}},
	{model.LogAlert, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(CRITICAL|ALERT|EMERGENCY)`),
		regexp.MustCompile(`(?i)告警|报警|alarm`),
	}},
}

// Score is the signature score of one candidate type.
type Score struct {
	Type  model.LogType
	Score int
}

// Scores returns the score of every candidate in priority order. Only the
// first SampleLines lines are considered.
func Scores(sample []string) []Score {
	if len(sample) > SampleLines {
		sample = sample[:SampleLines]
	}
	text := strings.Join(sample, "\n")

	out := make([]Score, 0, len(signatures))
	for _, sig := range signatures {
		var n int
		for _, p := range sig.patterns {
			n += len(p.FindAllStringIndex(text, -1))
		}
		out = append(out, Score{Type: sig.typ, Score: n})
	}
	return out
}

// Detect picks the highest-scoring type. Ties go to the earlier type in
// priority order; an empty or all-zero sample yields LogGeneric.
func Detect(sample []string) model.LogType {
	best := Score{Type: model.LogGeneric}
	for _, s := range Scores(sample) {
		if s.Score > best.Score {
			best = s
		}
	}
	return best.Type
}
