// Package store holds the local copy of every project and task. Mutations are
// applied in memory first and then pushed to the remote synchronously; a
// failed push is returned to the caller and not rolled back.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/google/uuid"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrProjectChanged  = errors.New("task cannot move to another project")
)

// Remote is the subset of the gateway the store needs
type Remote interface {
	FetchProjects(ctx context.Context) ([]model.Project, error)
	FetchTasks(ctx context.Context) ([]model.Task, error)
	UpsertProject(ctx context.Context, p model.Project) error
	UpsertTask(ctx context.Context, t model.Task) error
	DeleteProject(ctx context.Context, projectID string) error
	DeleteTask(ctx context.Context, taskID string) error
}

// MergeResult counts the records a merge replaced or added. Reloaded is set
// when local state was replaced by a full load instead of a merge.
type MergeResult struct {
	ProjectsUpdated int
	TasksUpdated    int
	Reloaded        bool
}

// Changed returns true if the merge touched anything
func (r MergeResult) Changed() bool {
	return r.Reloaded || r.ProjectsUpdated > 0 || r.TasksUpdated > 0
}

// Store is safe for concurrent use. The lock covers projects, tasks and the
// project index together and is never held during a remote call.
type Store struct {
	remote Remote
	clock  *model.Clock

	mu        sync.RWMutex
	projects  map[string]model.Project
	tasks     map[string]model.Task
	byProject map[string]map[string]struct{}
}

// New creates an empty store. Call LoadAll to populate it.
func New(remote Remote, clock *model.Clock) *Store {
	if clock == nil {
		clock = model.NewClock(nil)
	}
	return &Store{
		remote:    remote,
		clock:     clock,
		projects:  make(map[string]model.Project),
		tasks:     make(map[string]model.Task),
		byProject: make(map[string]map[string]struct{}),
	}
}

// LoadAll replaces local state with a fresh remote snapshot. Both collections
// are fetched before anything local changes, so a failed fetch leaves the
// store as it was.
func (s *Store) LoadAll(ctx context.Context) error {
	projects, tasks, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = make(map[string]model.Project, len(projects))
	for _, p := range projects {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.projects[p.ID] = p
	}
	s.tasks = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		s.tasks[t.ID] = t
	}
	s.rebuildIndex()

	logger.Info("Loaded board", logger.F("projects", len(s.projects)), logger.F("tasks", len(s.tasks)))
	return nil
}

// MergeRemote pulls a remote snapshot and keeps the newer side of every
// record. A remote record wins when it is unknown locally or its last_update
// is strictly greater. Local records missing remotely are kept.
func (s *Store) MergeRemote(ctx context.Context) (MergeResult, error) {
	projects, tasks, err := s.fetch(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	for _, p := range projects {
		if p.ID == "" {
			continue
		}
		local, ok := s.projects[p.ID]
		if !ok || model.Newer(p.LastUpdate, local.LastUpdate) {
			s.projects[p.ID] = p
			res.ProjectsUpdated++
		}
	}
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		local, ok := s.tasks[t.ID]
		if !ok || model.Newer(t.LastUpdate, local.LastUpdate) {
			s.tasks[t.ID] = t
			res.TasksUpdated++
		}
	}
	s.rebuildIndex()

	if res.Changed() {
		logger.Debug("Merged remote changes",
			logger.F("projects", res.ProjectsUpdated),
			logger.F("tasks", res.TasksUpdated))
	}
	return res, nil
}

func (s *Store) fetch(ctx context.Context) ([]model.Project, []model.Task, error) {
	projects, err := s.remote.FetchProjects(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch projects: %w", err)
	}
	tasks, err := s.remote.FetchTasks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return projects, tasks, nil
}

// rebuildIndex derives the project index from the task set; callers hold s.mu
func (s *Store) rebuildIndex() {
	s.byProject = make(map[string]map[string]struct{}, len(s.projects))
	for id, t := range s.tasks {
		s.indexTask(t.ProjectID, id)
	}
}

func (s *Store) indexTask(projectID, taskID string) {
	ids, ok := s.byProject[projectID]
	if !ok {
		ids = make(map[string]struct{})
		s.byProject[projectID] = ids
	}
	ids[taskID] = struct{}{}
}

func (s *Store) unindexTask(projectID, taskID string) {
	ids := s.byProject[projectID]
	delete(ids, taskID)
	if len(ids) == 0 {
		delete(s.byProject, projectID)
	}
}
