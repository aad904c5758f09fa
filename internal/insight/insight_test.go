package insight

import (
	"fmt"
	"strings"
	"testing"

	"github.com/atikulmunna/sleuth/internal/correlate"
	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/atikulmunna/sleuth/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deletes(n int) scanner.Result {
	res := scanner.Result{Type: model.LogTransactional}
	res.State.TimeRange = model.TimeRange{Start: "250101 10:00:00", End: "250101 11:00:00"}
	for i := 0; i < n; i++ {
		res.Operations = append(res.Operations, model.Operation{
			LineNumber: i + 1,
			Timestamp:  "250101 10:00:00",
			Kind:       model.OpDelete,
			Target:     fmt.Sprintf("shop.t%d", i%7),
			Events:     1,
			Rows:       1,
			RelatedEntities: []model.Entity{
				{Type: model.EntityThreadID, Value: fmt.Sprintf("%d", i%7+1)},
			},
		})
	}
	res.Entities = []model.Entity{
		{Type: model.EntityServerID, Value: "1", LineNumber: 1},
		{Type: model.EntityServerID, Value: "2", LineNumber: 2},
	}
	return res
}

func generate(res scanner.Result) []model.Insight {
	return New(DefaultThresholds()).Generate(correlate.Correlate(res, correlate.Options{}), res.Type)
}

func byTitle(ins []model.Insight, title string) []model.Insight {
	var out []model.Insight
	for _, i := range ins {
		if i.Title == title {
			out = append(out, i)
		}
	}
	return out
}

func TestBulkDeleteBoundary(t *testing.T) {
	assert.Empty(t, byTitle(generate(deletes(100)), "Bulk delete detected"))

	got := byTitle(generate(deletes(101)), "Bulk delete detected")
	require.Len(t, got, 1)
	in := got[0]
	assert.Equal(t, model.CategorySecurity, in.Category)
	assert.Equal(t, model.SeverityHigh, in.Severity)
	assert.Equal(t, "Detected 101 deleted rows in 101 DELETE operations", in.Description)
	assert.Equal(t, []string{
		"Time range: 250101 10:00:00 ~ 250101 11:00:00",
		"Tables: shop.t0(15), shop.t1(15), shop.t2(15), shop.t3(14), shop.t4(14)",
		"Server ID: 1, 2",
		"Thread ID: 1, 2, 3, 4, 5...",
	}, in.Evidence)
	assert.NotEmpty(t, in.Recommendation)
}

func TestBulkDeleteSingleStatement(t *testing.T) {
	res := scanner.Result{Type: model.LogTransactional}
	res.Operations = []model.Operation{{
		LineNumber:      2,
		Timestamp:       "250101 10:00:01",
		Kind:            model.OpDelete,
		Target:          "shop.orders",
		Events:          5001,
		Rows:            5000,
		RelatedEntities: []model.Entity{{Type: model.EntityThreadID, Value: "42"}},
	}}

	got := byTitle(generate(res), "Bulk delete detected")
	require.Len(t, got, 1)
	assert.Equal(t, "Detected 5000 deleted rows in 1 DELETE operations", got[0].Description)
	assert.Contains(t, got[0].Evidence, "Tables: shop.orders(5000)")
	assert.Contains(t, got[0].Evidence, "Thread ID: 42")
}

func TestBulkDeleteIgnoresHeaderOnlyOperations(t *testing.T) {
	res := scanner.Result{Type: model.LogTransactional}
	for i := 0; i < 150; i++ {
		res.Operations = append(res.Operations, model.Operation{
			Kind:   model.OpDelete,
			Target: fmt.Sprintf("shop.t%d", i%2),
			Events: 1,
		})
	}

	assert.Empty(t, byTitle(generate(res), "Bulk delete detected"))
}

func TestBulkDeleteOnlyForTransactionalLogs(t *testing.T) {
	res := deletes(150)
	res.Type = model.LogGeneric

	assert.Empty(t, byTitle(generate(res), "Bulk delete detected"))
}

func TestSingleOriginServer(t *testing.T) {
	res := scanner.Result{
		Type: model.LogTransactional,
		Entities: []model.Entity{
			{Type: model.EntityServerID, Value: "7", LineNumber: 1},
			{Type: model.EntityServerID, Value: "7", LineNumber: 5},
		},
	}

	got := byTitle(generate(res), "Single origin server")
	require.Len(t, got, 1)
	assert.Equal(t, model.CategoryAudit, got[0].Category)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
	assert.Equal(t, "Server ID: 7", got[0].Evidence[0])

	assert.Empty(t, byTitle(generate(deletes(1)), "Single origin server"), "two distinct servers")
	res.Type = model.LogGeneric
	assert.Empty(t, byTitle(generate(res), "Single origin server"))
}

func TestCriticalAlerts(t *testing.T) {
	long := strings.Repeat("x", 150)
	res := scanner.Result{Type: model.LogGeneric}
	for i := 1; i <= 7; i++ {
		res.Alerts = append(res.Alerts, model.Alert{LineNumber: i, Severity: model.SeverityCritical, Message: long})
	}
	res.Alerts = append(res.Alerts, model.Alert{LineNumber: 9, Severity: model.SeverityHigh, Message: "high"})

	got := byTitle(generate(res), "Critical alerts detected")
	require.Len(t, got, 1)
	assert.Equal(t, model.CategoryError, got[0].Category)
	assert.Equal(t, model.SeverityCritical, got[0].Severity)
	assert.Equal(t, "Detected 7 critical alerts", got[0].Description)
	require.Len(t, got[0].Evidence, 5)
	assert.Equal(t, "L1: "+strings.Repeat("x", 100), got[0].Evidence[0])
}

func TestNoCriticalAlerts(t *testing.T) {
	res := scanner.Result{Alerts: []model.Alert{{LineNumber: 1, Severity: model.SeverityHigh}}}

	assert.Empty(t, generate(res))
}

func TestHotIPs(t *testing.T) {
	res := scanner.Result{Type: model.LogAccess}
	add := func(ip string, n int) {
		for i := 0; i < n; i++ {
			res.Entities = append(res.Entities, model.Entity{
				Type:       model.EntityIP,
				Value:      ip,
				LineNumber: len(res.Entities) + 1,
				Context:    fmt.Sprintf("GET /%d from %s", i, ip),
			})
		}
	}
	add("10.0.0.1", 101)
	add("10.0.0.2", 100)
	add("10.0.0.3", 300)
	add("10.0.0.4", 102)
	add("10.0.0.5", 200)

	got := byTitle(generate(res), "High-frequency IP activity")
	require.Len(t, got, 3, "only the top three candidates are considered")
	assert.Equal(t, "IP 10.0.0.3 appears 300 times", got[0].Description)
	assert.Equal(t, "IP 10.0.0.5 appears 200 times", got[1].Description)
	assert.Equal(t, "IP 10.0.0.4 appears 102 times", got[2].Description)
	assert.Equal(t, []string{
		"GET /0 from 10.0.0.3",
		"GET /1 from 10.0.0.3",
		"GET /2 from 10.0.0.3",
	}, got[0].Evidence)
}

func TestHotIPBoundary(t *testing.T) {
	res := scanner.Result{}
	for i := 0; i < 100; i++ {
		res.Entities = append(res.Entities, model.Entity{Type: model.EntityIP, Value: "10.0.0.1", LineNumber: i + 1})
	}

	assert.Empty(t, generate(res))
}

func TestRuleOrder(t *testing.T) {
	res := deletes(101)
	res.Entities = append(res.Entities[:0], model.Entity{Type: model.EntityServerID, Value: "1", LineNumber: 1})
	res.Alerts = []model.Alert{{LineNumber: 3, Severity: model.SeverityCritical, Message: "down"}}
	for i := 0; i < 101; i++ {
		res.Entities = append(res.Entities, model.Entity{Type: model.EntityIP, Value: "10.9.9.9", LineNumber: i + 1})
	}

	var titles []string
	for _, in := range generate(res) {
		titles = append(titles, in.Title)
	}
	assert.Equal(t, []string{
		"Bulk delete detected",
		"Single origin server",
		"Critical alerts detected",
		"High-frequency IP activity",
	}, titles)
	assert.Equal(t, []string{"bulk_delete", "single_origin", "critical_alerts", "hot_ip"}, RuleNames())
}

func TestCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.BulkDelete = 2
	res := deletes(3)

	got := New(th).Generate(correlate.Correlate(res, correlate.Options{}), res.Type)
	require.NotEmpty(t, got)
	assert.Equal(t, "Bulk delete detected", got[0].Title)
}
