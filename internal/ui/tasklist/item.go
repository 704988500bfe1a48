package tasklist

import (
	"fmt"
	"html"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// ItemDelegate implements list.ItemDelegate for rendering list items.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a task as a title line and a dimmer description line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	t := ti.Task

	prefix := "○"
	if t.Status == model.StatusCompleted {
		prefix = "✓"
	}

	badge := theme.StatusStyle(t.Status).Render(t.Status.Label())
	// Stored text is HTML-escaped; show it as the user typed it.
	title := html.UnescapeString(t.Title)
	if t.Status == model.StatusCompleted {
		title = theme.DimmedStyle.Render(title)
	}

	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(t.CreatedAt, d.clock()))

	line := fmt.Sprintf("%s %s %s  %s", prefix, badge, title, age)

	desc := html.UnescapeString(t.Description)
	if desc == "" {
		desc = "—"
	}
	maxWidth := m.Width() - 6
	if maxWidth > 0 && lipgloss.Width(desc) > maxWidth {
		desc = truncate(desc, maxWidth)
	}
	descLine := theme.HelpStyle.Render("    " + desc)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line+"\n"+descLine)
}

func (d ItemDelegate) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 1 || len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}
