package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lorecast/lorecast/pkg/analysis"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).MarginTop(1)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	itemStyle    = lipgloss.NewStyle().PaddingLeft(2)
)

// renderDashboard renders the populated facets of the aggregate; absent
// facets are skipped so the primary dashboard and the final full view
// share one renderer.
func renderDashboard(res analysis.Result) string {
	var sb strings.Builder

	if s := res.Summary; s != nil {
		sb.WriteString(titleStyle.Render(s.Title))
		sb.WriteString(dimStyle.Render(" by " + s.Author))
		sb.WriteByte('\n')
		sb.WriteString(sectionStyle.Render("Summary"))
		sb.WriteByte('\n')
		sb.WriteString(itemStyle.Render(s.OverallSummary))
		sb.WriteByte('\n')
		for i, ch := range s.Chapters {
			sb.WriteString(itemStyle.Render(fmt.Sprintf("%d. %s — %s", i+1, ch.Title, ch.Summary)))
			sb.WriteByte('\n')
		}
	}

	if len(res.Quotes) > 0 {
		sb.WriteString(sectionStyle.Render("Quotes"))
		sb.WriteByte('\n')
		for _, q := range res.Quotes {
			sb.WriteString(itemStyle.Render("“" + q.Text + "”"))
			sb.WriteByte('\n')
			sb.WriteString(itemStyle.Render(dimStyle.Render(q.Translation + " · " + q.Reason)))
			sb.WriteByte('\n')
		}
	}

	if len(res.Vocab) > 0 {
		sb.WriteString(sectionStyle.Render("Vocabulary"))
		sb.WriteByte('\n')
		for _, w := range res.Vocab {
			sb.WriteString(itemStyle.Render(w.Word + ": " + w.Definition))
			sb.WriteByte('\n')
			sb.WriteString(itemStyle.Render(dimStyle.Render("e.g. " + w.Example)))
			sb.WriteByte('\n')
		}
	}

	if len(res.Quiz) > 0 {
		sb.WriteString(sectionStyle.Render("Quiz"))
		sb.WriteByte('\n')
		for i, q := range res.Quiz {
			sb.WriteString(itemStyle.Render(fmt.Sprintf("%d. %s", i+1, q.Question)))
			sb.WriteByte('\n')
			for j, opt := range q.Options {
				marker := "  "
				if j == q.AnswerIndex {
					marker = "✓ "
				}
				sb.WriteString(itemStyle.Render("  " + marker + opt))
				sb.WriteByte('\n')
			}
			sb.WriteString(itemStyle.Render(dimStyle.Render(q.Explanation)))
			sb.WriteByte('\n')
		}
	}

	if len(res.ActionPlan) > 0 {
		sb.WriteString(sectionStyle.Render("Action Plan"))
		sb.WriteByte('\n')
		for _, item := range res.ActionPlan {
			sb.WriteString(itemStyle.Render("• " + item.Title + ": " + item.Description))
			sb.WriteByte('\n')
		}
	}

	if r := res.Review; r != nil {
		sb.WriteString(sectionStyle.Render("Review (" + r.Style + ")"))
		sb.WriteByte('\n')
		sb.WriteString(itemStyle.Render(r.Body))
		sb.WriteByte('\n')
	}

	if p := res.Podcast; p != nil {
		sb.WriteString(sectionStyle.Render("Podcast: " + p.Title))
		sb.WriteByte('\n')
		for _, line := range p.Script {
			sb.WriteString(itemStyle.Render(line.Speaker + ": " + line.Text))
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}
