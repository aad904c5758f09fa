// Package extract pulls typed entities out of single log lines using a fixed,
// ordered pattern table.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/dlclark/regexp2"
)

// DefaultPatternTimeout bounds a single match of a user-supplied pattern.
const DefaultPatternTimeout = 100 * time.Millisecond

// builtinPatterns is iterated in declaration order. When a pattern has
// capture groups the non-empty groups joined by "." form the value,
// otherwise the whole match does.
var builtinPatterns = []struct {
	typ     model.EntityType
	pattern *regexp.Regexp
}{
	{model.EntityIP, regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)},
	{model.EntityIPPort, regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+)\b`)},
	{model.EntityMAC, regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`)},
	{model.EntityEmail, regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)},
	{model.EntityURL, regexp.MustCompile(`https?://[^\s<>"']+`)},
	{model.EntityUUID, regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)},
	{model.EntityTraceID, regexp.MustCompile(`(?i)\b(?:trace[_-]?id|traceid|x-trace-id)[=:\s]*([a-zA-Z0-9_-]{16,64})\b`)},
	{model.EntitySpanID, regexp.MustCompile(`(?i)\b(?:span[_-]?id|spanid)[=:\s]*([a-zA-Z0-9_-]{8,32})\b`)},
	{model.EntityRequestID, regexp.MustCompile(`(?i)\b(?:request[_-]?id|req[_-]?id)[=:\s]*([a-zA-Z0-9_-]{8,64})\b`)},
	{model.EntityUserID, regexp.MustCompile(`(?i)\b(?:user[_-]?id|uid|userid)[=:\s]*([a-zA-Z0-9_-]+)\b`)},
	{model.EntityThreadID, regexp.MustCompile(`(?i)\bthread[_-]?id[=:\s]*(\d+)\b`)},
	{model.EntitySessionID, regexp.MustCompile(`(?i)\b(?:session[_-]?id|sid)[=:\s]*([a-zA-Z0-9_-]+)\b`)},
	{model.EntityAccessKey, regexp.MustCompile(`(?i)\b(?:ak|access[_-]?key)[=:\s]*([a-zA-Z0-9]{16,64})\b`)},
	{model.EntityBucket, regexp.MustCompile(`(?i)\bbucket[=:\s]*([a-zA-Z0-9_.-]+)\b`)},
	{model.EntityDatabase, regexp.MustCompile("`([a-zA-Z_][a-zA-Z0-9_]*)`\\.`([a-zA-Z_][a-zA-Z0-9_]*)`")},
	{model.EntityDurationMS, regexp.MustCompile(`(?i)\b(?:duration|cost|elapsed|time)[=:\s]*(\d+(?:\.\d+)?)\s*(?:ms\b|毫秒)`)},
	{model.EntityDurationS, regexp.MustCompile(`(?i)\b(?:duration|cost|elapsed|time)[=:\s]*(\d+(?:\.\d+)?)\s*(?:s\b|秒)`)},
	{model.EntityErrorCode, regexp.MustCompile(`(?i)\b(?:error[_-]?code|errno|code)[=:\s]*([A-Z0-9_-]+)\b`)},
	{model.EntityHTTPStatus, regexp.MustCompile(`(?i)\b(?:status|http[_-]?code)[=:\s]*([1-5]\d{2})\b`)},
}

// Loopback, broadcast and no-route addresses carry no identity.
var noiseIPs = map[string]bool{
	"0.0.0.0":         true,
	"127.0.0.1":       true,
	"255.255.255.255": true,
}

type customPattern struct {
	typ model.EntityType
	re  *regexp2.Regexp
}

// Extractor is safe for concurrent use once all custom patterns are added.
type Extractor struct {
	custom   []customPattern
	timeout  time.Duration
	timeouts atomic.Int64
}

// New returns an Extractor with the built-in pattern table.
func New() *Extractor {
	return &Extractor{timeout: DefaultPatternTimeout}
}

// SetPatternTimeout changes the per-match timeout of custom patterns added afterwards.
func (e *Extractor) SetPatternTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// AddPattern registers a user-supplied pattern evaluated after the built-in
// table. Patterns use .NET syntax (lookarounds, backreferences) and are
// bounded by the pattern timeout.
func (e *Extractor) AddPattern(name, pattern string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("custom pattern has no name")
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", name, err)
	}
	re.MatchTimeout = e.timeout
	e.custom = append(e.custom, customPattern{typ: model.EntityType(name), re: re})
	return nil
}

// Clone returns an Extractor sharing e's patterns with its own timeout
// counter.
func (e *Extractor) Clone() *Extractor {
	return &Extractor{custom: e.custom, timeout: e.timeout}
}

// Timeouts returns how many custom pattern evaluations were abandoned.
func (e *Extractor) Timeouts() int64 {
	return e.timeouts.Load()
}

// Extract returns every entity found in line, in pattern-table order.
func (e *Extractor) Extract(line string, lineNumber int) []model.Entity {
	var out []model.Entity
	var ctx string

	for _, p := range builtinPatterns {
		for _, loc := range p.pattern.FindAllStringSubmatchIndex(line, -1) {
			value := matchValue(line, loc)
			if !keep(p.typ, value) {
				continue
			}
			if ctx == "" {
				ctx = model.Truncate(line, model.ContextRunes)
			}
			out = append(out, model.Entity{Type: p.typ, Value: value, LineNumber: lineNumber, Context: ctx})
		}
	}

	for _, p := range e.custom {
		m, err := p.re.FindStringMatch(line)
		for m != nil && err == nil {
			value := m.String()
			if groups := m.Groups(); len(groups) > 1 && groups[1].Length > 0 {
				value = groups[1].String()
			}
			if value != "" {
				if ctx == "" {
					ctx = model.Truncate(line, model.ContextRunes)
				}
				out = append(out, model.Entity{Type: p.typ, Value: value, LineNumber: lineNumber, Context: ctx})
			}
			m, err = p.re.FindNextMatch(m)
		}
		if err != nil {
			e.timeouts.Add(1)
		}
	}

	return out
}

// matchValue joins the non-empty capture groups of a match, falling back to
// the whole match for patterns without groups.
func matchValue(line string, loc []int) string {
	if len(loc) == 2 {
		return line[loc[0]:loc[1]]
	}
	var parts []string
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 {
			parts = append(parts, line[loc[i]:loc[i+1]])
		}
	}
	if len(parts) == 0 {
		return line[loc[0]:loc[1]]
	}
	return strings.Join(parts, ".")
}

// keep applies value-level filters. Numeric filters fail open: a value that
// does not parse is kept.
func keep(typ model.EntityType, value string) bool {
	switch typ {
	case model.EntityIP:
		return !noiseIPs[value]
	case model.EntityDurationMS, model.EntityDurationS:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return true
		}
		return f != 0
	}
	return true
}
