package tui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Deadline priority colors, 5 is the closest deadline
	PriorityUrgent = lipgloss.Color("#FF6B6B")
	PriorityHigh   = lipgloss.Color("#FFB347")
	PriorityMedium = lipgloss.Color("#FFE66D")
	PriorityLow    = lipgloss.Color("#4ECDC4")

	// Status colors
	Completed = lipgloss.Color("#95E1A3")
	SyncOK    = lipgloss.Color("#95E1A3")
	SyncError = lipgloss.Color("#FF6B6B")
	Offline   = lipgloss.Color("#6C757D")

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	Text      = lipgloss.Color("#FFFFFF")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
	Attention = lipgloss.Color("#FF6B6B")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border).
			Padding(1, 1)

	TaskListStyle = lipgloss.NewStyle().
			Padding(1, 2)

	ItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	DetailStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border).
			Padding(0, 1)

	AttentionStyle = lipgloss.NewStyle().Foreground(Attention).Bold(true)
	DoneStyle      = lipgloss.NewStyle().Foreground(TextMuted).Strikethrough(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)
)

// GetPriorityStyle returns the style for a deadline priority
func GetPriorityStyle(priority int) lipgloss.Style {
	switch priority {
	case 5:
		return lipgloss.NewStyle().Foreground(PriorityUrgent).Bold(true)
	case 4:
		return lipgloss.NewStyle().Foreground(PriorityHigh).Bold(true)
	case 3:
		return lipgloss.NewStyle().Foreground(PriorityMedium)
	default:
		return lipgloss.NewStyle().Foreground(PriorityLow)
	}
}

// FormatPriority returns a formatted priority badge
func FormatPriority(priority int) string {
	return GetPriorityStyle(priority).Render("P" + strconv.Itoa(priority))
}

// ProjectDot renders a bullet in the project's own color
func ProjectDot(color string) string {
	if color == "" {
		return "●"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}
