package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/cowork/internal/model"
)

const sidebarWidth = 28

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderHelp(), m.renderStatusBar())
	}

	sidebar := m.renderSidebar()
	taskList := m.renderTaskList()
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, taskList)

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, m.renderStatusBar())
}

func (m Model) renderSidebar() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Cowork") + "\n")
	s.WriteString(HelpStyle.Render(m.now().Format("Mon 02 Jan 15:04:05")) + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", sidebarWidth-4)) + "\n\n")

	if len(m.projects) == 0 {
		s.WriteString(HelpStyle.Render("No projects yet.\ncowork project new"))
	}

	for i, p := range m.projects {
		cursor := "  "
		style := ItemStyle
		if i == m.projCursor {
			cursor = "❯ "
			if m.pane == PaneSidebar {
				style = ItemSelectedStyle
			}
		}

		due := ""
		if p.DaysLeft != nil {
			due = formatDaysLeft(*p.DaysLeft)
		}
		name := truncate(p.Name, sidebarWidth-14)
		line := fmt.Sprintf("%s%s %-*s %s", cursor, ProjectDot(p.Color), sidebarWidth-14, name, FormatPriority(p.Priority))
		s.WriteString(style.Render(line))
		if due != "" {
			s.WriteString(" " + HelpStyle.Render(due))
		}
		s.WriteString("\n")
	}

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s.String())
}

func (m Model) renderTaskList() string {
	width := m.width - sidebarWidth - 2
	proj := m.currentProject()
	if proj == nil {
		return TaskListStyle.Width(width).Height(m.height - 2).Render("No project selected")
	}

	var s strings.Builder
	header := proj.Name
	if proj.Deadline != "" {
		header += "  " + HelpStyle.Render("due "+proj.Deadline)
	}
	if m.mineOnly {
		header += "  " + HelpStyle.Render("(mine)")
	}
	s.WriteString(TitleStyle.Render(header) + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", max(width-4, 1))) + "\n\n")

	if len(m.tasks) == 0 {
		s.WriteString(HelpStyle.Render("  No tasks."))
	}

	nameWidth := max(width-34, 10)
	for i, t := range m.tasks {
		cursor := "  "
		style := ItemStyle
		if i == m.taskCursor && m.pane == PaneTaskList {
			cursor = "❯ "
			style = ItemSelectedStyle
		}

		flag := " "
		if t.Attention != "" {
			flag = AttentionStyle.Render("!")
		}

		pct := t.Progress()
		line := fmt.Sprintf("%s%s %-*s %s %3d%%", cursor, flag, nameWidth, truncate(t.Name, nameWidth), progressBar(pct, 10), pct)
		if pct == 100 {
			line = DoneStyle.Render(line)
		}
		s.WriteString(style.Render(line))
		if len(t.Assignee) > 0 {
			s.WriteString(" " + HelpStyle.Render(truncate(strings.Join(t.Assignee, ", "), 18)))
		}
		s.WriteString("\n")
	}

	if t := m.currentTask(); t != nil && m.pane == PaneTaskList {
		s.WriteString("\n" + DetailStyle.Width(max(width-4, 10)).Render(renderTaskDetail(*t)))
	}

	return TaskListStyle.Width(width).Height(m.height - 2).Render(s.String())
}

func renderTaskDetail(t model.Task) string {
	var s strings.Builder
	s.WriteString(lipgloss.NewStyle().Bold(true).Render(t.Name) + "\n")
	if t.Goal != "" {
		s.WriteString("Goal: " + t.Goal + "\n")
	}
	if t.Attention != "" {
		s.WriteString(AttentionStyle.Render("Attention: "+t.Attention) + "\n")
	}
	if t.Description != "" {
		s.WriteString(t.Description + "\n")
	}
	if len(t.Assignee) > 0 {
		s.WriteString("Assigned: " + strings.Join(t.Assignee, ", ") + "\n")
	}
	for _, item := range t.Checklist {
		if item.Done {
			s.WriteString(DoneStyle.Render("[x] "+item.Text) + "\n")
		} else {
			s.WriteString("[ ] " + item.Text + "\n")
		}
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m Model) renderStatusBar() string {
	help := "j/k:move  h/l:pane  m:mine  r:sync  ?:help  q:quit"
	if m.message != "" {
		help = m.message
	}

	var status string
	switch {
	case m.syncer == nil && !m.online:
		status = lipgloss.NewStyle().Foreground(Offline).Render("● offline")
	case !m.online:
		status = lipgloss.NewStyle().Foreground(SyncError).Render("● offline: " + truncate(errorText(m.lastErr), 40))
	default:
		status = lipgloss.NewStyle().Foreground(SyncOK).Render("● online " + formatAgo(m.now().Sub(m.lastSync)))
	}

	avail := m.width - lipgloss.Width(help) - lipgloss.Width(status) - 4
	if avail > 0 {
		help += strings.Repeat(" ", avail) + status
	} else {
		help += "  " + status
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderHelp() string {
	var rows []string
	for _, b := range []struct{ k, desc string }{
		{keys.Up.Help().Key + " " + keys.Down.Help().Key, "move"},
		{keys.Left.Help().Key + " " + keys.Right.Help().Key, "switch pane"},
		{keys.Top.Help().Key + " " + keys.Bottom.Help().Key, "top / bottom"},
		{keys.Mine.Help().Key, keys.Mine.Help().Desc},
		{keys.Refresh.Help().Key, keys.Refresh.Help().Desc},
		{keys.Help.Help().Key, "toggle help"},
		{keys.Quit.Help().Key, keys.Quit.Help().Desc},
	} {
		rows = append(rows, fmt.Sprintf("%-10s %s", b.k, b.desc))
	}

	content := TitleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		strings.Join(rows, "\n") + "\n\n" +
		HelpStyle.Render("Edit with: cowork task edit <id>") + "\n" +
		HelpStyle.Render("Press any key to close")
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, ModalStyle.Render(content))
}

func formatDaysLeft(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%dd late", -days)
	case days == 0:
		return "today"
	default:
		return fmt.Sprintf("%dd", days)
	}
}

func formatAgo(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	return d.Truncate(time.Minute).String() + " ago"
}

func errorText(err error) string {
	if err == nil {
		return "not connected"
	}
	return err.Error()
}
