package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeAssignees joins assignees for the remote table ("Ann, Bob")
func EncodeAssignees(names []string) string {
	return strings.Join(names, ", ")
}

// DecodeAssignees splits a stored assignee cell, dropping empty entries.
// Names containing a comma do not round-trip.
func DecodeAssignees(cell string) []string {
	out := []string{}
	for _, part := range strings.Split(cell, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// EncodeChecklist renders the checklist as a JSON array ("[]" when empty)
func EncodeChecklist(items []ChecklistItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("failed to encode checklist: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// DecodeChecklist parses a stored checklist cell. An empty cell is an empty checklist.
func DecodeChecklist(cell string) ([]ChecklistItem, error) {
	items := []ChecklistItem{}
	if strings.TrimSpace(cell) == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(cell), &items); err != nil {
		return []ChecklistItem{}, fmt.Errorf("failed to decode checklist: %w", err)
	}
	if items == nil {
		items = []ChecklistItem{}
	}
	return items, nil
}
