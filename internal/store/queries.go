package store

import (
	"sort"

	"github.com/existflow/cowork/internal/model"
)

// Projects returns a copy of every project ordered by name, then ID
func (s *Store) Projects() []model.Project {
	s.mu.RLock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Project returns a single project
func (s *Store) Project(id string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

// TasksForProject returns copies of the project's tasks, newest first. An
// unknown project has no tasks.
func (s *Store) TasksForProject(projectID string) []model.Task {
	s.mu.RLock()
	ids := s.byProject[projectID]
	out := make([]model.Task, 0, len(ids))
	for id := range ids {
		out = append(out, s.tasks[id].Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

// Task returns a copy of a single task
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// Tasks returns copies of every task, newest first
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

func sortNewestFirst(tasks []model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].LastUpdate != tasks[j].LastUpdate {
			return tasks[i].LastUpdate > tasks[j].LastUpdate
		}
		return tasks[i].ID < tasks[j].ID
	})
}
