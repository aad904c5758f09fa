package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ---------------------------------------------------------------------------
// Table Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // cyan
	styleSection = lipgloss.NewStyle().Bold(true).MarginTop(1)
	styleHeader  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleBorder  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleFaint   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)

	styleLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))            // gray
	styleMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleCritical = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
)

// TableRenderer prints results to the terminal as bordered tables.
type TableRenderer struct {
	w io.Writer
}

// NewTableRenderer returns a Renderer that writes styled tables to w.
func NewTableRenderer(w io.Writer) *TableRenderer {
	return &TableRenderer{w: w}
}

func (r *TableRenderer) Render(res *model.AnalysisResult) error {
	var b strings.Builder

	b.WriteString(styleTitle.Render("sleuth · "+res.FilePath) + "\n")
	b.WriteString(newTable([]string{"Item", "Value"}, overviewRows(res)) + "\n")

	if rows := entityRows(res); len(rows) > 0 {
		b.WriteString(styleSection.Render("Entities") + "\n")
		b.WriteString(newTable([]string{"Type", "Distinct", "Total", "Top value"}, rows) + "\n")
	}

	if rows := operationRows(res); len(rows) > 0 {
		b.WriteString(styleSection.Render("Operations") + "\n")
		b.WriteString(newTable([]string{"Kind", "Operations", "Rows", "Marker lines"}, rows) + "\n")
	}

	if rows := alertRows(res); len(rows) > 0 {
		b.WriteString(styleSection.Render("Alerts") + "\n")
		b.WriteString(newTable([]string{"Severity", "Count"}, rows) + "\n")
	}

	if len(res.Insights) > 0 {
		b.WriteString(styleSection.Render("Insights") + "\n")
		for i, in := range res.Insights {
			fmt.Fprintf(&b, "%d. %s %s\n", i+1, styleSeverityTag(in.Severity), in.Title)
			fmt.Fprintf(&b, "   %s\n", in.Description)
			for _, e := range in.Evidence {
				fmt.Fprintf(&b, "   %s %s\n", styleFaint.Render("•"), e)
			}
		}
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}

func newTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styleBorder).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func styleSeverityTag(s model.Severity) string {
	tag := fmt.Sprintf("[%s]", strings.ToUpper(string(s)))
	switch s {
	case model.SeverityCritical:
		return styleCritical.Render(tag)
	case model.SeverityHigh:
		return styleHigh.Render(tag)
	case model.SeverityMedium:
		return styleMedium.Render(tag)
	default:
		return styleLow.Render(tag)
	}
}
