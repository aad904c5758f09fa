package output

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/dustin/go-humanize"
)

const (
	topValueRunes = 30
	topTables     = 10
)

// MarkdownRenderer writes a human-readable summary report.
type MarkdownRenderer struct {
	w io.Writer
}

// NewMarkdownRenderer returns a Renderer that writes Markdown to w.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	return &MarkdownRenderer{w: w}
}

func (r *MarkdownRenderer) Render(res *model.AnalysisResult) error {
	b := bufio.NewWriter(r.w)

	fmt.Fprintf(b, "# Log analysis report\n\n")

	fmt.Fprintf(b, "## Overview\n\n")
	fmt.Fprintf(b, "| Item | Value |\n|------|-------|\n")
	for _, row := range overviewRows(res) {
		fmt.Fprintf(b, "| %s | %s |\n", row[0], escape(row[1]))
	}
	fmt.Fprintln(b)

	if rows := entityRows(res); len(rows) > 0 {
		fmt.Fprintf(b, "## Entities\n\n")
		fmt.Fprintf(b, "| Type | Distinct | Total | Top value |\n|------|----------|-------|-----------|\n")
		for _, row := range rows {
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", row[0], row[1], row[2], escape(row[3]))
		}
		fmt.Fprintln(b)
	}

	if rows := operationRows(res); len(rows) > 0 {
		fmt.Fprintf(b, "## Operations\n\n")
		fmt.Fprintf(b, "| Kind | Operations | Rows | Marker lines |\n|------|------------|------|--------------|\n")
		for _, row := range rows {
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", row[0], row[1], row[2], row[3])
		}
		fmt.Fprintln(b)

		fmt.Fprintf(b, "## Tables\n\n")
		fmt.Fprintf(b, "| Table | Operations |\n|-------|------------|\n")
		for _, vc := range tableCounts(res, topTables) {
			fmt.Fprintf(b, "| %s | %s |\n", vc.Value, humanize.Comma(int64(vc.Count)))
		}
		fmt.Fprintln(b)
	}

	if rows := alertRows(res); len(rows) > 0 {
		fmt.Fprintf(b, "## Alerts\n\n")
		fmt.Fprintf(b, "| Severity | Count |\n|----------|-------|\n")
		for _, row := range rows {
			fmt.Fprintf(b, "| %s | %s |\n", row[0], row[1])
		}
		fmt.Fprintln(b)
	}

	if len(res.Insights) > 0 {
		fmt.Fprintf(b, "## Insights\n\n")
		for i, in := range res.Insights {
			fmt.Fprintf(b, "### %d. [%s] %s\n\n", i+1, strings.ToUpper(string(in.Severity)), in.Title)
			fmt.Fprintf(b, "%s\n\n", in.Description)
			if len(in.Evidence) > 0 {
				fmt.Fprintf(b, "**Evidence:**\n")
				for _, e := range in.Evidence {
					fmt.Fprintf(b, "- %s\n", e)
				}
				fmt.Fprintln(b)
			}
			if in.Recommendation != "" {
				fmt.Fprintf(b, "**Recommendation:** %s\n\n", in.Recommendation)
			}
			fmt.Fprintf(b, "---\n\n")
		}
	}

	return b.Flush()
}

// The row builders below are shared with the terminal table renderer.

func overviewRows(res *model.AnalysisResult) [][]string {
	tr := "-"
	if !res.TimeRange.Empty() {
		tr = res.TimeRange.Start + " ~ " + res.TimeRange.End
	}
	return [][]string{
		{"File", filepath.Base(res.FilePath)},
		{"Size", humanize.Bytes(uint64(res.SizeBytes))},
		{"Type", string(res.DetectedType)},
		{"Total lines", humanize.Comma(int64(res.TotalLines))},
		{"Time range", tr},
	}
}

func entityRows(res *model.AnalysisResult) [][]string {
	types := make([]model.EntityType, 0, len(res.Entities))
	for typ := range res.Entities {
		types = append(types, typ)
	}
	slices.Sort(types)

	rows := make([][]string, 0, len(types))
	for _, typ := range types {
		s := res.Entities[typ]
		top := "-"
		if len(s.TopValues) > 0 {
			top = fmt.Sprintf("%s(%d)", model.Truncate(s.TopValues[0].Value, topValueRunes), s.TopValues[0].Count)
		}
		rows = append(rows, []string{
			string(typ),
			humanize.Comma(int64(s.DistinctCount)),
			humanize.Comma(int64(s.TotalCount)),
			top,
		})
	}
	return rows
}

func operationRows(res *model.AnalysisResult) [][]string {
	kinds := make([]model.OpKind, 0, len(res.OperationsByKind))
	for k := range res.OperationsByKind {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b model.OpKind) int {
		if c := cmp.Compare(res.OperationsByKind[b].Count, res.OperationsByKind[a].Count); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		s := res.OperationsByKind[k]
		rows = append(rows, []string{
			string(k),
			humanize.Comma(int64(s.Count)),
			humanize.Comma(int64(s.Rows)),
			humanize.Comma(int64(s.Events)),
		})
	}
	return rows
}

// tableCounts merges per-kind target counts and returns the n busiest
// tables, ties broken by name.
func tableCounts(res *model.AnalysisResult, n int) []model.ValueCount {
	merged := make(map[string]int)
	for _, s := range res.OperationsByKind {
		for t, c := range s.Targets {
			merged[t] += c
		}
	}
	out := make([]model.ValueCount, 0, len(merged))
	for t, c := range merged {
		out = append(out, model.ValueCount{Value: t, Count: c})
	}
	slices.SortFunc(out, func(a, b model.ValueCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func alertRows(res *model.AnalysisResult) [][]string {
	counts := make(map[model.Severity]int)
	for _, a := range res.Alerts {
		counts[a.Severity]++
	}
	var rows [][]string
	for _, sev := range model.Severities {
		if counts[sev] > 0 {
			rows = append(rows, []string{string(sev), humanize.Comma(int64(counts[sev]))})
		}
	}
	return rows
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
