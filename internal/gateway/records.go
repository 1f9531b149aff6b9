package gateway

import (
	"context"
	"fmt"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/table"
)

// FetchProjects returns every project row with missing fields defaulted to ""
func (g *Gateway) FetchProjects(ctx context.Context) ([]model.Project, error) {
	g.mu.Lock()
	projects, _, err := g.sheets()
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	rows, err := projects.Rows(ctx)
	g.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch projects: %w", err)
	}

	out := make([]model.Project, 0, len(rows))
	for _, rec := range table.Records(ProjectColumns, rows) {
		if isBlank(rec) {
			continue
		}
		out = append(out, projectFromRecord(rec))
	}
	logger.Debug("Fetched projects", logger.F("count", len(out)))
	return out, nil
}

// FetchTasks returns every task row with missing fields defaulted, the
// assignee cell split into names and the checklist decoded
func (g *Gateway) FetchTasks(ctx context.Context) ([]model.Task, error) {
	g.mu.Lock()
	_, tasks, err := g.sheets()
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	rows, err := tasks.Rows(ctx)
	g.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	out := make([]model.Task, 0, len(rows))
	for _, rec := range table.Records(TaskColumns, rows) {
		if isBlank(rec) {
			continue
		}
		out = append(out, taskFromRecord(rec))
	}
	logger.Debug("Fetched tasks", logger.F("count", len(out)))
	return out, nil
}

// UpsertProject overwrites the project's row, or appends one if no row has its ID
func (g *Gateway) UpsertProject(ctx context.Context, p model.Project) error {
	if p.LastUpdate == "" {
		p.LastUpdate = g.clock.Now()
	}
	row := projectRow(p)

	g.mu.Lock()
	defer g.mu.Unlock()

	projects, _, err := g.sheets()
	if err != nil {
		return err
	}
	if err := upsertRow(ctx, projects, p.ID, row); err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", p.ID, err)
	}
	logger.Debug("Upserted project", logger.F("id", p.ID), logger.F("name", p.Name))
	return nil
}

// UpsertTask overwrites the task's row, or appends one if no row has its ID
func (g *Gateway) UpsertTask(ctx context.Context, t model.Task) error {
	if t.LastUpdate == "" {
		t.LastUpdate = g.clock.Now()
	}
	row, err := taskRow(t)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	_, tasks, err := g.sheets()
	if err != nil {
		return err
	}
	if err := upsertRow(ctx, tasks, t.ID, row); err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}
	logger.Debug("Upserted task", logger.F("id", t.ID), logger.F("project", t.ProjectID))
	return nil
}

// DeleteProject removes the project's row. Its tasks are left alone; the
// caller deletes them separately. Unknown IDs are not an error.
func (g *Gateway) DeleteProject(ctx context.Context, projectID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	projects, _, err := g.sheets()
	if err != nil {
		return err
	}
	if err := deleteRow(ctx, projects, projectID); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}
	logger.Debug("Deleted project row", logger.F("id", projectID))
	return nil
}

// DeleteTask removes the task's row. Unknown IDs are not an error.
func (g *Gateway) DeleteTask(ctx context.Context, taskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, tasks, err := g.sheets()
	if err != nil {
		return err
	}
	if err := deleteRow(ctx, tasks, taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	logger.Debug("Deleted task row", logger.F("id", taskID))
	return nil
}

// upsertRow scans every row for the key in the first column
func upsertRow(ctx context.Context, sheet table.Sheet, id string, row []string) error {
	rows, err := sheet.Rows(ctx)
	if err != nil {
		return err
	}
	if i := table.FindRow(rows, 0, id); i >= 0 {
		return sheet.UpdateRow(ctx, i, row)
	}
	return sheet.AppendRow(ctx, row)
}

func deleteRow(ctx context.Context, sheet table.Sheet, id string) error {
	rows, err := sheet.Rows(ctx)
	if err != nil {
		return err
	}
	i := table.FindRow(rows, 0, id)
	if i < 0 {
		return nil
	}
	return sheet.DeleteRow(ctx, i)
}

func projectFromRecord(r table.Record) model.Project {
	return model.Project{
		ID:         r["project_id"],
		Name:       r["name"],
		Color:      r["color"],
		Deadline:   r["deadline"],
		LastUpdate: model.CanonicalTimestamp(r["last_update"]),
	}
}

func projectRow(p model.Project) []string {
	return []string{p.ID, p.Name, p.Color, p.Deadline, p.LastUpdate}
}

func taskFromRecord(r table.Record) model.Task {
	checklist, err := model.DecodeChecklist(r["checklist_json"])
	if err != nil {
		logger.Warn("Ignoring unreadable checklist", logger.F("task", r["task_id"]), logger.F("error", err))
	}

	return model.Task{
		ID:          r["task_id"],
		ProjectID:   r["project_id"],
		Name:        r["name"],
		Goal:        r["goal"],
		Description: r["description"],
		Attention:   r["attention"],
		Assignee:    model.DecodeAssignees(r["assignee"]),
		Checklist:   checklist,
		LastUpdate:  model.CanonicalTimestamp(r["last_update"]),
	}
}

func taskRow(t model.Task) ([]string, error) {
	checklist, err := model.EncodeChecklist(t.Checklist)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return []string{
		t.ID,
		t.ProjectID,
		t.Name,
		t.Goal,
		t.Description,
		t.Attention,
		model.EncodeAssignees(t.Assignee),
		checklist,
		t.LastUpdate,
	}, nil
}
