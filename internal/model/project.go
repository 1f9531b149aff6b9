package model

// DefaultColor is used when a project is created without a color
const DefaultColor = "#222222"

// Project groups tasks on the board
type Project struct {
	ID         string `json:"project_id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Deadline   string `json:"deadline"`    // Free-form, usually YYYY-MM-DD
	LastUpdate string `json:"last_update"` // Timestamp, see Clock
}

// NewProject creates a project with defaults applied
func NewProject(id, name, color, deadline, now string) Project {
	if color == "" {
		color = DefaultColor
	}
	return Project{
		ID:         id,
		Name:       name,
		Color:      color,
		Deadline:   deadline,
		LastUpdate: now,
	}
}
