package scanner

import (
	"fmt"
	"testing"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppLogErrorWithStackTrace(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{},
		"2025-01-01 09:59:58 INFO com.foo.App - starting",
		"plain line a",
		"2025-01-01 10:00:00 ERROR com.foo.Bar - NPE",
		"\tat com.foo.Bar.run(Bar.java:10)",
		"\tat com.foo.Main.main(Main.java:5)",
		"2025-01-01 10:00:01 INFO com.foo.Bar - recovered",
	)

	require.Len(t, res.Alerts, 1)
	a := res.Alerts[0]
	assert.Equal(t, model.SeverityHigh, a.Severity)
	assert.Equal(t, 3, a.LineNumber)
	assert.Equal(t, "2025-01-01 10:00:00", a.Timestamp)
	assert.Equal(t, "com.foo.Bar", a.Source)
	assert.Equal(t, "NPE", a.Message)
	assert.Equal(t, []string{
		"\tat com.foo.Bar.run(Bar.java:10)",
		"\tat com.foo.Main.main(Main.java:5)",
	}, a.StackTrace)
	assert.Equal(t, []string{
		"2025-01-01 09:59:58 INFO com.foo.App - starting",
		"plain line a",
	}, a.Context)

	assert.Equal(t, map[string]int{"ERROR": 1}, res.State.Exceptions)
	assert.Equal(t, "2025-01-01 09:59:58", res.State.TimeRange.Start)
	assert.Equal(t, "2025-01-01 10:00:01", res.State.TimeRange.End)
}

func TestAppLogContextWindowIsBounded(t *testing.T) {
	var lines []string
	for i := 1; i <= 8; i++ {
		lines = append(lines, fmt.Sprintf("noise %d", i))
	}
	lines = append(lines, "2025-01-01 10:00:00 WARN com.foo.Pool - exhausted")

	res := scan(t, model.LogStructuredApp, Options{}, lines...)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, model.SeverityMedium, res.Alerts[0].Severity)
	assert.Equal(t, []string{"noise 4", "noise 5", "noise 6", "noise 7", "noise 8"}, res.Alerts[0].Context)
	assert.Empty(t, res.Alerts[0].StackTrace)
	assert.Empty(t, res.State.Exceptions)
}

func TestAppLogCustomContextWindow(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{ContextWindow: 2},
		"one",
		"two",
		"three",
		"2025-01-01 10:00:00 FATAL com.foo.Boot - dead",
	)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, model.SeverityCritical, res.Alerts[0].Severity)
	assert.Equal(t, []string{"two", "three"}, res.Alerts[0].Context)
}

func TestAppLogCausedByChain(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{},
		"2025-01-01 10:00:00,123 ERROR com.foo.Repo - write failed",
		"java.lang.IllegalStateException: bad state",
		"\tat com.foo.Repo.save(Repo.java:1)",
		"Caused by: java.io.IOException: disk full",
		"\t... 3 more",
		"after",
	)

	require.Len(t, res.Alerts, 1)
	assert.Len(t, res.Alerts[0].StackTrace, 4)
	assert.Equal(t, "2025-01-01 10:00:00,123", res.Alerts[0].Timestamp)
	assert.Equal(t, map[string]int{"java.lang.IllegalStateException": 1}, res.State.Exceptions)
}

func TestAppLogFinalizesAtEndOfStream(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{},
		"2025-01-01 10:00:00 ERROR com.foo.Bar - boom",
		"\tat com.foo.Bar.run(Bar.java:10)",
	)

	require.Len(t, res.Alerts, 1)
	assert.Len(t, res.Alerts[0].StackTrace, 1)
}

func TestAppLogBackToBackHeaders(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{},
		"before",
		"2025-01-01 10:00:00 ERROR com.foo.A - first",
		"2025-01-01 10:00:01 WARNING com.foo.B - second",
	)

	require.Len(t, res.Alerts, 2)
	assert.Equal(t, []string{"before"}, res.Alerts[0].Context)
	assert.Empty(t, res.Alerts[1].Context)
	assert.Equal(t, model.SeverityMedium, res.Alerts[1].Severity)
}

func TestAppLogIgnoresLowLevels(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{},
		"2025-01-01 10:00:00 INFO com.foo.A - ok",
		"2025-01-01 10:00:01 DEBUG com.foo.A - detail",
		"2025-01-01 10:00:02 TRACE com.foo.A - more",
	)

	assert.Empty(t, res.Alerts)
}

func TestAppLogAlertCap(t *testing.T) {
	res := scan(t, model.LogStructuredApp, Options{MaxAlerts: 1},
		"2025-01-01 10:00:00 ERROR com.foo.A - one",
		"2025-01-01 10:00:01 ERROR com.foo.A - two",
		"2025-01-01 10:00:02 ERROR com.foo.A - three",
	)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "one", res.Alerts[0].Message)
	assert.Equal(t, 2, res.State.AlertsDropped)
}

func TestContextWindowTruncatesLines(t *testing.T) {
	w := contextWindow{size: 2}
	long := make([]rune, model.ContextRunes+50)
	for i := range long {
		long[i] = 'x'
	}
	w.push(string(long))
	w.push("b")
	w.push("c")

	got := w.snapshot()
	assert.Equal(t, []string{"b", "c"}, got)

	w.reset()
	assert.Nil(t, w.snapshot())
	w.push(string(long))
	assert.Len(t, []rune(w.snapshot()[0]), model.ContextRunes)
}
