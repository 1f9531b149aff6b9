package tui

import "strings"

// truncate shortens a string to max runes with an ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

// progressBar draws pct (0-100) in width cells
func progressBar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
