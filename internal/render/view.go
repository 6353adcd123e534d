package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"prairie_track/internal/aggregate"
)

const reloadHint = "Run `tracker reload` to fetch the latest assessments."

var headers = []string{"Course", "Assessment", "Due", "Remaining", "Score"}

// View renders the aggregated listing as a table.
func View(view *aggregate.View) string {
	var b strings.Builder

	if aux := auxText(view); aux != "" {
		b.WriteString(dimStyle.Render(aux))
		b.WriteString("\n")
	}

	if len(view.Entries) == 0 {
		b.WriteString(titleStyle.Render("No open assessments cached."))
		b.WriteString("\n")
	} else {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%d open assessment(s)", len(view.Entries))))
		b.WriteString("\n")
		b.WriteString(entryTable(view.Entries).String())
		b.WriteString("\n")
	}

	var notes []string
	if view.Dropped > 0 {
		notes = append(notes, fmt.Sprintf("%d row(s) hidden: unreadable due date", view.Dropped))
	}
	if len(view.Skipped) > 0 {
		notes = append(notes, fmt.Sprintf("unreadable cache entries: %s", strings.Join(view.Skipped, ", ")))
	}
	for _, n := range notes {
		b.WriteString(dimStyle.Render(n))
		b.WriteString("\n")
	}

	if view.ShowReload {
		b.WriteString(hintStyle.Render(reloadHint))
		b.WriteString("\n")
	}

	return b.String()
}

func entryTable(entries []aggregate.Entry) *table.Table {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.SourceLabel,
			assessmentLabel(e),
			e.DueRaw,
			remainingLabel(e),
			scoreLabel(e),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCellStyle
			case col == 0:
				return courseCellStyle
			case col == 3 && row < len(entries) && entries[row].Remaining.PastDue():
				return pastDueCellStyle
			default:
				return cellStyle
			}
		})
}

func assessmentLabel(e aggregate.Entry) string {
	if e.Badge == "" {
		return e.Title
	}
	return e.Badge + " " + e.Title
}

func remainingLabel(e aggregate.Entry) string {
	if e.Remaining.PastDue() {
		return "past due"
	}
	return e.Remaining.String()
}

func scoreLabel(e aggregate.Entry) string {
	if e.ScoreRaw == nil || *e.ScoreRaw == "" {
		return "-"
	}
	return *e.ScoreRaw
}

// auxText flattens the cached portal fragment to one line of text.
func auxText(view *aggregate.View) string {
	if view.Aux == nil || strings.TrimSpace(view.Aux.HTML) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(view.Aux.HTML))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// ErrorPanel is shown in place of the listing when it could not be built.
func ErrorPanel(err error) string {
	body := errorTitleStyle.Render("There was an error loading your assessments") + "\n" +
		err.Error() + "\n" +
		dimStyle.Render(reloadHint)
	return errorPanelStyle.Render(body) + "\n"
}
