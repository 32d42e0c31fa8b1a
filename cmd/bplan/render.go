package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/config"
	"github.com/vanderheijden86/beadplan/pkg/model"
)

const maxTitleWidth = 48

type styles struct {
	Header   lipgloss.Style
	Critical lipgloss.Style
	Muted    lipgloss.Style
	Label    lipgloss.Style
	Status   map[model.Status]lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		Header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#BD93F9")),
		Critical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C")),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("#6272A4")),
		Label:    r.NewStyle().Foreground(lipgloss.Color("#8BE9FD")),
		Status: map[model.Status]lipgloss.Style{
			model.StatusOpen:       r.NewStyle().Foreground(lipgloss.Color("#50FA7B")),
			model.StatusInProgress: r.NewStyle().Foreground(lipgloss.Color("#8BE9FD")),
			model.StatusBlocked:    r.NewStyle().Foreground(lipgloss.Color("#FF5555")),
			model.StatusDone:       r.NewStyle().Foreground(lipgloss.Color("#6272A4")),
			model.StatusCancelled:  r.NewStyle().Foreground(lipgloss.Color("#44475A")),
		},
	}
}

// colorEnabled resolves the color mode for w. Auto means color only on a
// terminal and only when NO_COLOR is unset.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// truncate shortens s to maxWidth cells, adding an ellipsis when cut.
func truncate(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

func formatEffort(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderText(g *analysis.Graph, res *analysis.Result, st styles) string {
	var sb strings.Builder

	idWidth := 2
	for _, id := range g.IDs() {
		if w := runewidth.StringWidth(id); w > idWidth {
			idWidth = w
		}
	}

	issueLine := func(prefix, id string) {
		n, _ := g.Node(id)
		status := st.Status[n.Status].Render(string(n.Status))
		fmt.Fprintf(&sb, "%s%s  %s  %s  %s\n", prefix,
			runewidth.FillRight(id, idWidth),
			st.Label.Render(string(n.Priority)),
			truncate(n.Title, maxTitleWidth),
			status)
	}

	cp := res.CriticalPath
	fmt.Fprintf(&sb, "%s %s\n", st.Header.Render("Critical path"),
		st.Muted.Render(fmt.Sprintf("(%d issues, effort %s)", cp.Len(), formatEffort(cp.TotalDuration))))
	if cp.Len() == 0 {
		sb.WriteString("  (none)\n")
	}
	for i, id := range cp.Path {
		issueLine(fmt.Sprintf("  %2d. ", i+1), id)
	}
	if cp.Bottleneck != "" {
		n, _ := g.Node(cp.Bottleneck)
		fmt.Fprintf(&sb, "  %s %s (effort %s)\n", st.Critical.Render("Bottleneck:"), cp.Bottleneck, formatEffort(n.Effort))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "%s %s\n", st.Header.Render("Parallel groups"),
		st.Muted.Render(fmt.Sprintf("(%d)", len(res.Groups))))
	if len(res.Groups) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, grp := range res.Groups {
		ids := make([]string, len(grp.IssueIDs))
		for i, id := range grp.IssueIDs {
			if cp.Contains(id) {
				ids[i] = st.Critical.Render(id)
			} else {
				ids[i] = id
			}
		}
		fmt.Fprintf(&sb, "  Group %d: %s\n", grp.Index, strings.Join(ids, ", "))
	}
	sb.WriteString("\n")

	s := res.Stats
	sb.WriteString(st.Header.Render("Statistics") + "\n")
	fmt.Fprintf(&sb, "  Issues %d, dependencies %d, max depth %d\n", s.TotalNodes, s.TotalEdges, s.MaxDepth)
	fmt.Fprintf(&sb, "  Roots %d, leaves %d, isolated %d\n", s.RootIssues, s.LeafIssues, s.IsolatedIssues)
	fmt.Fprintf(&sb, "  Max fan-in %d, max fan-out %d, parallelism width %d\n", s.MaxFanIn, s.MaxFanOut, s.ParallelismWidth)
	fmt.Fprintf(&sb, "  Effort %s total, %s weighted\n", formatEffort(s.TotalEffort), formatEffort(s.WeightedEffort))

	var parts []string
	for _, p := range model.AllPriorities() {
		parts = append(parts, fmt.Sprintf("%s %d", p, s.ByPriority[p]))
	}
	fmt.Fprintf(&sb, "  By priority: %s\n", strings.Join(parts, ", "))
	parts = parts[:0]
	for _, status := range model.AllStatuses() {
		parts = append(parts, fmt.Sprintf("%s %d", status, s.ByStatus[status]))
	}
	fmt.Fprintf(&sb, "  By status: %s\n", strings.Join(parts, ", "))

	if len(res.Schedule) > 0 {
		sb.WriteString("\n" + st.Header.Render("Schedule") + "\n")
		fmt.Fprintf(&sb, "  %s  %8s %8s %8s %8s %8s\n",
			runewidth.FillRight("ID", idWidth), "ES", "EF", "LS", "LF", "slack")
		for _, id := range res.Order {
			e := res.Schedule[id]
			line := fmt.Sprintf("  %s  %8.2f %8.2f %8.2f %8.2f %8.2f",
				runewidth.FillRight(id, idWidth), e.EarliestStart, e.EarliestFinish, e.LatestStart, e.LatestFinish, e.Slack)
			if e.Slack == 0 {
				line = st.Critical.Render(line)
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}
