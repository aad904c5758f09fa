package scanner

import (
	"regexp"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
)

var (
	// timestamp LEVEL logger - message
	appHeader = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{3})?)\s+(FATAL|ERROR|WARN|WARNING|INFO|DEBUG|TRACE)\s+([\w.$]+)\s+-\s+(.+)$`)

	appStackFrame    = regexp.MustCompile(`^\s+(?:at\s+|\.\.\.\s+\d+\s+more)`)
	appExceptionLine = regexp.MustCompile(`^([a-zA-Z_$][\w.$]*(?:Exception|Error|Throwable))(?::\s*(.*))?$`)
)

const causedByPrefix = "Caused by:"

type appMode int

const (
	modeNormal appMode = iota
	modeInException
)

// appLogScanner is a two-state machine over "timestamp LEVEL logger -
// message" logs. A WARN or worse header opens an exception record that
// absorbs following stack-trace lines; anything else closes it.
type appLogScanner struct {
	base
	mode   appMode
	open   *model.Alert
	level  string
	window contextWindow
}

func newAppLogScanner(b base) *appLogScanner {
	return &appLogScanner{base: b, window: contextWindow{size: b.opts.ContextWindow}}
}

func (s *appLogScanner) FeedLine(n int, line string) {
	s.begin()
	entities := s.ex.Extract(line, n)
	s.addEntities(entities)

	if m := appHeader.FindStringSubmatch(line); m != nil {
		ts, level, logger, msg := m[1], m[2], m[3], m[4]
		s.state.TimeRange.Observe(ts)
		s.finalize()

		if isAlertLevel(level) {
			s.open = &model.Alert{
				LineNumber:      n,
				Timestamp:       ts,
				Severity:        model.SeverityFromLevel(level),
				Source:          logger,
				Message:         msg,
				Context:         s.window.snapshot(),
				RelatedEntities: entities,
			}
			s.level = level
			s.mode = modeInException
			s.window.reset()
			return
		}
		s.window.push(line)
		return
	}

	if s.mode == modeInException {
		if isContinuation(line) {
			s.open.StackTrace = append(s.open.StackTrace, line)
			return
		}
		s.finalize()
	}
	s.window.push(line)
}

func (s *appLogScanner) Finalize() Result {
	s.finalize()
	return s.result(nil)
}

// finalize emits the open exception, if any, and returns to NORMAL.
func (s *appLogScanner) finalize() {
	if s.open == nil {
		return
	}
	if len(s.open.StackTrace) > 0 {
		incr(&s.state.Exceptions, exceptionClass(s.open.StackTrace, s.level))
	}
	s.addAlert(*s.open)
	s.open = nil
	s.level = ""
	s.mode = modeNormal
}

func isAlertLevel(level string) bool {
	switch level {
	case "FATAL", "ERROR", "WARN", "WARNING":
		return true
	}
	return false
}

func isContinuation(line string) bool {
	return appStackFrame.MatchString(line) ||
		strings.HasPrefix(line, causedByPrefix) ||
		appExceptionLine.MatchString(line)
}

// exceptionClass returns the first exception class named in a stack trace,
// falling back to the log level.
func exceptionClass(stack []string, level string) string {
	for _, l := range stack {
		l = strings.TrimSpace(strings.TrimPrefix(l, causedByPrefix))
		if m := appExceptionLine.FindStringSubmatch(l); m != nil {
			return m[1]
		}
	}
	return level
}

// contextWindow keeps the most recent lines, oldest first.
type contextWindow struct {
	size  int
	lines []string
}

func (w *contextWindow) push(line string) {
	if w.size <= 0 {
		return
	}
	if len(w.lines) == w.size {
		copy(w.lines, w.lines[1:])
		w.lines = w.lines[:w.size-1]
	}
	w.lines = append(w.lines, model.Truncate(line, model.ContextRunes))
}

func (w *contextWindow) snapshot() []string {
	if len(w.lines) == 0 {
		return nil
	}
	return append([]string(nil), w.lines...)
}

func (w *contextWindow) reset() {
	w.lines = w.lines[:0]
}
