package scanner

import (
	"regexp"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
)

// Tried in order; the first match is the line's timestamp.
var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d{3})?)`),
	regexp.MustCompile(`(\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2})`),
	regexp.MustCompile(`#(\d{6} \d{2}:\d{2}:\d{2})`),
}

// keywords builds a case-insensitive pattern matching any of words as a
// whole word. Word boundaries are Unicode-aware so CJK keywords embedded in
// longer words do not match.
func keywords(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(words, "|") + `)(?:[^\p{L}\p{N}_]|$)`)
}

// alertLevels is checked in order and the first match wins.
var alertLevels = []struct {
	severity model.Severity
	pattern  *regexp.Regexp
}{
	{model.SeverityCritical, keywords("CRITICAL", "FATAL", "EMERGENCY", "P0", "严重", "致命")},
	{model.SeverityHigh, keywords("ERROR", "ALERT", "P1", "高", "错误")},
	{model.SeverityMedium, keywords("WARN", "WARNING", "P2", "中", "警告")},
	{model.SeverityLow, keywords("INFO", "NOTICE", "P3", "低", "提示")},
}

// sensitiveOps categories are not exclusive; a line counts toward each one
// it matches.
var sensitiveOps = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"data_delete", keywords("DELETE", "DROP", "TRUNCATE", "REMOVE")},
	{"data_modify", keywords("UPDATE", "ALTER", "MODIFY", "REPLACE")},
	{"permission", keywords("GRANT", "REVOKE", "chmod", "chown", "赋权", "权限")},
	{"auth", keywords("LOGIN", "LOGOUT", "AUTH", "认证", "登录", "登出")},
	{"config_change", keywords("SET", "CONFIG", "配置变更")},
}

// genericScanner keeps no cross-line state beyond running totals.
type genericScanner struct {
	base
}

func newGenericScanner(b base) *genericScanner {
	return &genericScanner{base: b}
}

func (s *genericScanner) FeedLine(n int, line string) {
	s.begin()

	var ts string
	for _, p := range timestampPatterns {
		if m := p.FindStringSubmatch(line); m != nil {
			ts = m[1]
			s.state.TimeRange.Observe(ts)
			break
		}
	}

	entities := s.ex.Extract(line, n)
	s.addEntities(entities)

	for _, lvl := range alertLevels {
		m := lvl.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		incr(&s.state.AlertLevels, lvl.severity)
		if lvl.severity != model.SeverityLow {
			s.addAlert(model.Alert{
				LineNumber:      n,
				Timestamp:       ts,
				Severity:        lvl.severity,
				Source:          strings.ToUpper(m[1]),
				Message:         model.Truncate(strings.TrimSpace(line), model.ContextRunes),
				RelatedEntities: entities,
			})
		}
		break
	}

	for _, op := range sensitiveOps {
		if op.pattern.MatchString(line) {
			incr(&s.state.SensitiveOps, op.name)
		}
	}
}

func (s *genericScanner) Finalize() Result {
	return s.result(nil)
}
