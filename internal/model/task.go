package model

// MaxAssignees is the largest number of people a task can be assigned to
const MaxAssignees = 4

// DefaultTaskName is used when a task is created without a name
const DefaultTaskName = "New task"

// ChecklistItem is a single sub-item of a task
type ChecklistItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task belongs to exactly one project for its lifetime
type Task struct {
	ID          string          `json:"task_id"`
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Goal        string          `json:"goal"`
	Description string          `json:"description"`
	Attention   string          `json:"attention"`
	Assignee    []string        `json:"assignee"`
	Checklist   []ChecklistItem `json:"checklist"`
	LastUpdate  string          `json:"last_update"`
}

// NewTask creates a task with an empty checklist and no assignees
func NewTask(id, projectID, name, now string) Task {
	if name == "" {
		name = DefaultTaskName
	}
	return Task{
		ID:         id,
		ProjectID:  projectID,
		Name:       name,
		Assignee:   []string{},
		Checklist:  []ChecklistItem{},
		LastUpdate: now,
	}
}

// Clone returns a deep copy so callers can edit it without touching shared state
func (t Task) Clone() Task {
	c := t
	if t.Assignee != nil {
		c.Assignee = make([]string, len(t.Assignee))
		copy(c.Assignee, t.Assignee)
	}
	if t.Checklist != nil {
		c.Checklist = make([]ChecklistItem, len(t.Checklist))
		copy(c.Checklist, t.Checklist)
	}
	return c
}

// Progress returns the percentage of checklist items done (0-100)
func (t Task) Progress() int {
	if len(t.Checklist) == 0 {
		return 0
	}
	done := 0
	for _, item := range t.Checklist {
		if item.Done {
			done++
		}
	}
	return done * 100 / len(t.Checklist)
}

// IsAssignedTo returns true if user is one of the task's assignees
func (t Task) IsAssignedTo(user string) bool {
	for _, a := range t.Assignee {
		if a == user {
			return true
		}
	}
	return false
}
