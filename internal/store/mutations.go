package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/google/uuid"
)

// NewProject creates a project locally and pushes it. The returned project is
// kept locally even when the push fails.
func (s *Store) NewProject(ctx context.Context, name, color, deadline string) (model.Project, error) {
	p := model.NewProject(uuid.NewString(), name, color, deadline, s.clock.Now())

	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()

	logger.Info("Created project", logger.F("id", p.ID), logger.F("name", p.Name))
	if err := s.remote.UpsertProject(ctx, p); err != nil {
		return p, fmt.Errorf("failed to push project: %w", err)
	}
	return p, nil
}

// SaveProject stamps an edited project and pushes the whole record
func (s *Store) SaveProject(ctx context.Context, p model.Project) (model.Project, error) {
	s.mu.Lock()
	if _, ok := s.projects[p.ID]; !ok {
		s.mu.Unlock()
		return p, fmt.Errorf("%w: %s", ErrProjectNotFound, p.ID)
	}
	p.LastUpdate = s.clock.Now()
	s.projects[p.ID] = p
	s.mu.Unlock()

	logger.Debug("Saved project", logger.F("id", p.ID))
	if err := s.remote.UpsertProject(ctx, p); err != nil {
		return p, fmt.Errorf("failed to push project: %w", err)
	}
	return p, nil
}

// NewTask creates an empty task. projectID is not checked against the known
// projects; the index entry is created on demand.
func (s *Store) NewTask(ctx context.Context, projectID, name string) (model.Task, error) {
	t := model.NewTask(uuid.NewString(), projectID, name, s.clock.Now())

	s.mu.Lock()
	s.tasks[t.ID] = t.Clone()
	s.indexTask(t.ProjectID, t.ID)
	s.mu.Unlock()

	logger.Info("Created task", logger.F("id", t.ID), logger.F("project", projectID))
	if err := s.remote.UpsertTask(ctx, t); err != nil {
		return t, fmt.Errorf("failed to push task: %w", err)
	}
	return t, nil
}

// SaveTask stamps an edited task and pushes the whole record. The task must
// already exist and stay in its project.
func (s *Store) SaveTask(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	current, ok := s.tasks[t.ID]
	if !ok {
		s.mu.Unlock()
		return t, fmt.Errorf("%w: %s", ErrTaskNotFound, t.ID)
	}
	if current.ProjectID != t.ProjectID {
		s.mu.Unlock()
		return t, fmt.Errorf("%w: %s", ErrProjectChanged, t.ID)
	}
	t = t.Clone()
	t.LastUpdate = s.clock.Now()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	logger.Debug("Saved task", logger.F("id", t.ID))
	if err := s.remote.UpsertTask(ctx, t); err != nil {
		return t.Clone(), fmt.Errorf("failed to push task: %w", err)
	}
	return t.Clone(), nil
}

// DeleteProject removes the project and its tasks locally, then deletes their
// rows remotely. Every remote delete is attempted; failures are joined.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	var taskIDs []string
	for id := range s.byProject[projectID] {
		taskIDs = append(taskIDs, id)
		delete(s.tasks, id)
	}
	delete(s.byProject, projectID)
	delete(s.projects, projectID)
	s.mu.Unlock()

	logger.Info("Deleted project", logger.F("id", projectID), logger.F("tasks", len(taskIDs)))

	var errs []error
	if err := s.remote.DeleteProject(ctx, projectID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete project %s: %w", projectID, err))
	}
	for _, id := range taskIDs {
		if err := s.remote.DeleteTask(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete task %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// DeleteTask removes a task locally and remotely. Unknown IDs are a no-op.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.tasks, taskID)
	s.unindexTask(t.ProjectID, taskID)
	s.mu.Unlock()

	logger.Info("Deleted task", logger.F("id", taskID))
	if err := s.remote.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}
