// Package insight turns correlated scan facts into rule-based findings.
package insight

import (
	"fmt"
	"strings"

	"github.com/atikulmunna/sleuth/internal/correlate"
	"github.com/atikulmunna/sleuth/internal/model"
)

// Thresholds configure the rules. Every boundary is strict: a rule fires
// only when the observed value is greater than its threshold. BulkDelete
// is compared against deleted row images, so one statement that removes
// many rows counts once per row.
type Thresholds struct {
	BulkDelete      int `mapstructure:"bulk_delete" validate:"gte=0"`
	HotIP           int `mapstructure:"hot_ip" validate:"gte=0"`
	HotIPCandidates int `mapstructure:"hot_ip_candidates" validate:"gte=1"`
	EvidenceItems   int `mapstructure:"evidence_items" validate:"gte=1"`
	ContextEvidence int `mapstructure:"context_evidence" validate:"gte=1"`
	EvidenceRunes   int `mapstructure:"evidence_runes" validate:"gte=1"`
}

// DefaultThresholds returns the stock rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BulkDelete:      100,
		HotIP:           100,
		HotIPCandidates: 3,
		EvidenceItems:   5,
		ContextEvidence: 3,
		EvidenceRunes:   100,
	}
}

type rule struct {
	name  string
	apply func(g *Generator, c *correlate.Correlated, typ model.LogType) []model.Insight
}

// rules run in declaration order and do not depend on each other.
var rules = []rule{
	{"bulk_delete", (*Generator).bulkDelete},
	{"single_origin", (*Generator).singleOrigin},
	{"critical_alerts", (*Generator).criticalAlerts},
	{"hot_ip", (*Generator).hotIPs},
}

// Generator evaluates the rule set. It is stateless across calls.
type Generator struct {
	t Thresholds
}

// New returns a Generator using t.
func New(t Thresholds) *Generator {
	return &Generator{t: t}
}

// Generate evaluates every rule against c. typ is the detected log type;
// transactional-only rules are skipped for other types.
func (g *Generator) Generate(c *correlate.Correlated, typ model.LogType) []model.Insight {
	out := []model.Insight{}
	for _, r := range rules {
		out = append(out, r.apply(g, c, typ)...)
	}
	return out
}

// RuleNames lists the rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

func (g *Generator) bulkDelete(c *correlate.Correlated, typ model.LogType) []model.Insight {
	if typ != model.LogTransactional {
		return nil
	}
	del := c.ByKind[model.OpDelete]
	if del.Rows <= g.t.BulkDelete {
		return nil
	}

	var tables []string
	for _, vc := range c.TopRowTargets(model.OpDelete, g.t.EvidenceItems) {
		tables = append(tables, fmt.Sprintf("%s(%d)", vc.Value, vc.Count))
	}
	threads := del.ActorIDs
	more := ""
	if len(threads) > g.t.EvidenceItems {
		threads = threads[:g.t.EvidenceItems]
		more = "..."
	}

	return []model.Insight{{
		Category:    model.CategorySecurity,
		Severity:    model.SeverityHigh,
		Title:       "Bulk delete detected",
		Description: fmt.Sprintf("Detected %d deleted rows in %d DELETE operations", del.Rows, del.Count),
		Evidence: []string{
			fmt.Sprintf("Time range: %s ~ %s", c.TimeRange.Start, c.TimeRange.End),
			"Tables: " + strings.Join(tables, ", "),
			"Server ID: " + strings.Join(c.Distinct(model.EntityServerID), ", "),
			"Thread ID: " + strings.Join(threads, ", ") + more,
		},
		Recommendation: "Confirm the origin: 1. map thread_id to the application connection " +
			"2. check application logs for the same time window 3. confirm whether this is expected business activity",
	}}
}

func (g *Generator) singleOrigin(c *correlate.Correlated, typ model.LogType) []model.Insight {
	if typ != model.LogTransactional {
		return nil
	}
	servers := c.Distinct(model.EntityServerID)
	if len(servers) != 1 {
		return nil
	}

	return []model.Insight{{
		Category:    model.CategoryAudit,
		Severity:    model.SeverityMedium,
		Title:       "Single origin server",
		Description: fmt.Sprintf("All operations come from the same database instance server_id=%s", servers[0]),
		Evidence: []string{
			"Server ID: " + servers[0],
			"The server id identifies the database instance, not the client IP",
			"The binlog does not record client IPs; check the general log or an audit log",
		},
		Recommendation: "To identify the client IP check: 1. the MySQL general_log 2. audit plugin logs " +
			"3. application connection logs",
	}}
}

func (g *Generator) criticalAlerts(c *correlate.Correlated, _ model.LogType) []model.Insight {
	var count int
	var evidence []string
	for _, a := range c.Alerts {
		if a.Severity != model.SeverityCritical {
			continue
		}
		count++
		if len(evidence) < g.t.EvidenceItems {
			evidence = append(evidence, fmt.Sprintf("L%d: %s", a.LineNumber, model.Truncate(a.Message, g.t.EvidenceRunes)))
		}
	}
	if count == 0 {
		return nil
	}

	return []model.Insight{{
		Category:       model.CategoryError,
		Severity:       model.SeverityCritical,
		Title:          "Critical alerts detected",
		Description:    fmt.Sprintf("Detected %d critical alerts", count),
		Evidence:       evidence,
		Recommendation: "Check the affected services immediately",
	}}
}

func (g *Generator) hotIPs(c *correlate.Correlated, _ model.LogType) []model.Insight {
	occ := c.Occurrences(model.EntityIP)
	if len(occ) == 0 {
		return nil
	}
	vs := make([]string, len(occ))
	for i, e := range occ {
		vs[i] = e.Value
	}

	var out []model.Insight
	for _, vc := range correlate.Rank(vs, g.t.HotIPCandidates) {
		if vc.Count <= g.t.HotIP {
			continue
		}
		var evidence []string
		for _, e := range occ {
			if e.Value != vc.Value {
				continue
			}
			evidence = append(evidence, model.Truncate(e.Context, g.t.EvidenceRunes))
			if len(evidence) == g.t.ContextEvidence {
				break
			}
		}
		out = append(out, model.Insight{
			Category:       model.CategoryAnomaly,
			Severity:       model.SeverityMedium,
			Title:          "High-frequency IP activity",
			Description:    fmt.Sprintf("IP %s appears %d times", vc.Value, vc.Count),
			Evidence:       evidence,
			Recommendation: "Confirm whether the activity of this IP is expected",
		})
	}
	return out
}
