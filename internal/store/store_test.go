package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/existflow/cowork/internal/config"
	"github.com/existflow/cowork/internal/gateway"
	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/table"
	"github.com/matryer/is"
)

// fakeRemote keeps rows in maps and records every delete call
type fakeRemote struct {
	mu       sync.Mutex
	projects map[string]model.Project
	tasks    map[string]model.Task
	deleted  []string
	fetchErr error
	pushErr  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{projects: map[string]model.Project{}, tasks: map[string]model.Task{}}
}

func (f *fakeRemote) FetchProjects(ctx context.Context) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []model.Project
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRemote) FetchTasks(ctx context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []model.Task
	for _, t := range f.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (f *fakeRemote) UpsertProject(ctx context.Context, p model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRemote) UpsertTask(ctx context.Context, t model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.tasks[t.ID] = t.Clone()
	return nil
}

func (f *fakeRemote) DeleteProject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, "project:"+id)
	if f.pushErr != nil {
		return f.pushErr
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeRemote) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, "task:"+id)
	if f.pushErr != nil {
		return f.pushErr
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRemote) setTask(t model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
}

func (f *fakeRemote) setProject(p model.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
}

func testClock() *model.Clock {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.NewClock(func() time.Time { return at })
}

// checkIndex verifies the project index is exactly the partition of tasks by project
func checkIndex(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := map[string]map[string]struct{}{}
	for id, task := range s.tasks {
		if want[task.ProjectID] == nil {
			want[task.ProjectID] = map[string]struct{}{}
		}
		want[task.ProjectID][id] = struct{}{}
	}
	if len(want) != len(s.byProject) {
		t.Fatalf("index has %d projects, tasks span %d", len(s.byProject), len(want))
	}
	for pid, ids := range want {
		got := s.byProject[pid]
		if len(got) != len(ids) {
			t.Fatalf("project %s: index has %d tasks, want %d", pid, len(got), len(ids))
		}
		for id := range ids {
			if _, ok := got[id]; !ok {
				t.Fatalf("project %s: task %s missing from index", pid, id)
			}
		}
	}
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestLoadAll(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	remote.setProject(model.Project{ID: "p1", Name: "One"})
	remote.setProject(model.Project{ID: "", Name: "No id"})
	remote.setTask(model.Task{ID: "t1", ProjectID: "p1"})
	remote.setTask(model.Task{ID: "t2", ProjectID: "gone"})

	s := New(remote, testClock())
	is.NoErr(s.LoadAll(ctx))

	projects := s.Projects()
	is.Equal(len(projects), 2)
	for _, p := range projects {
		is.True(p.ID != "") // missing ids are generated
	}
	is.Equal(taskIDs(s.TasksForProject("p1")), []string{"t1"})
	is.Equal(taskIDs(s.TasksForProject("gone")), []string{"t2"})
	checkIndex(t, s)
}

func TestLoadAll_FetchFailureKeepsState(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	remote.setProject(model.Project{ID: "p1", Name: "One"})

	s := New(remote, testClock())
	is.NoErr(s.LoadAll(ctx))

	remote.fetchErr = errors.New("network down")
	err := s.LoadAll(ctx)
	is.True(errors.Is(err, remote.fetchErr))
	is.Equal(len(s.Projects()), 1)
}

func TestNewProjectAndTask(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	p, err := s.NewProject(ctx, "Launch", "", "2026-02-01")
	is.NoErr(err)
	is.True(p.ID != "")
	is.Equal(p.Color, model.DefaultColor)
	is.Equal(p.LastUpdate, "2026-01-01T00:00:00.000000Z")

	task, err := s.NewTask(ctx, p.ID, "")
	is.NoErr(err)
	is.Equal(task.Name, model.DefaultTaskName)
	is.Equal(task.Assignee, []string{})
	is.Equal(task.Checklist, []model.ChecklistItem{})
	is.True(task.LastUpdate > p.LastUpdate)

	is.Equal(remote.projects[p.ID], p)
	is.Equal(remote.tasks[task.ID].ProjectID, p.ID)
	is.Equal(taskIDs(s.TasksForProject(p.ID)), []string{task.ID})
	checkIndex(t, s)
}

func TestNewProject_PushFailureKeepsLocal(t *testing.T) {
	is := is.New(t)
	remote := newFakeRemote()
	remote.pushErr = errors.New("quota exceeded")
	s := New(remote, testClock())

	p, err := s.NewProject(context.Background(), "Offline", "#fff", "")
	is.True(errors.Is(err, remote.pushErr))

	got, ok := s.Project(p.ID)
	is.True(ok)
	is.Equal(got.Name, "Offline")
}

func TestSaveTask(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	task, err := s.NewTask(ctx, "p1", "Write")
	is.NoErr(err)

	task.Goal = "done by friday"
	task.Assignee = append(task.Assignee, "Moe")
	task.Checklist = append(task.Checklist, model.ChecklistItem{Text: "outline"})

	// edits are invisible until saved
	stored, _ := s.Task(task.ID)
	is.Equal(stored.Goal, "")

	saved, err := s.SaveTask(ctx, task)
	is.NoErr(err)
	is.True(saved.LastUpdate > task.LastUpdate)

	stored, _ = s.Task(task.ID)
	is.Equal(stored.Goal, "done by friday")
	is.Equal(stored.Assignee, []string{"Moe"})
	is.Equal(remote.tasks[task.ID].LastUpdate, saved.LastUpdate)

	// returned copies do not alias the store
	saved.Assignee[0] = "Ricky"
	stored, _ = s.Task(task.ID)
	is.Equal(stored.Assignee, []string{"Moe"})
}

func TestSaveTask_Errors(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newFakeRemote(), testClock())

	_, err := s.SaveTask(ctx, model.Task{ID: "nope"})
	is.True(errors.Is(err, ErrTaskNotFound))

	task, err := s.NewTask(ctx, "p1", "Move me")
	is.NoErr(err)
	task.ProjectID = "p2"
	_, err = s.SaveTask(ctx, task)
	is.True(errors.Is(err, ErrProjectChanged))
}

func TestSaveProject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	p, err := s.NewProject(ctx, "Old", "", "")
	is.NoErr(err)
	p.Name = "New"
	saved, err := s.SaveProject(ctx, p)
	is.NoErr(err)
	is.True(saved.LastUpdate > p.LastUpdate)
	is.Equal(remote.projects[p.ID].Name, "New")

	_, err = s.SaveProject(ctx, model.Project{ID: "missing"})
	is.True(errors.Is(err, ErrProjectNotFound))
}

func TestDeleteProject_Cascades(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	p, _ := s.NewProject(ctx, "P", "", "")
	t1, _ := s.NewTask(ctx, p.ID, "T1")
	t2, _ := s.NewTask(ctx, p.ID, "T2")
	other, _ := s.NewTask(ctx, "other", "keep")

	is.NoErr(s.DeleteProject(ctx, p.ID))

	is.Equal(len(s.TasksForProject(p.ID)), 0)
	_, ok := s.Task(t1.ID)
	is.True(!ok)
	_, ok = s.Task(t2.ID)
	is.True(!ok)
	_, ok = s.Task(other.ID)
	is.True(ok)
	_, ok = s.Project(p.ID)
	is.True(!ok)

	is.Equal(len(remote.deleted), 3) // one project and two tasks
	is.Equal(remote.deleted[0], "project:"+p.ID)
	is.Equal(len(remote.tasks), 1)
	checkIndex(t, s)
}

func TestDeleteProject_RemoteFailureStillRemovesLocally(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	p, _ := s.NewProject(ctx, "P", "", "")
	_, _ = s.NewTask(ctx, p.ID, "T1")

	remote.pushErr = errors.New("timeout")
	err := s.DeleteProject(ctx, p.ID)
	is.True(errors.Is(err, remote.pushErr))
	is.Equal(len(remote.deleted), 2) // every delete is still attempted
	is.Equal(len(s.Projects()), 0)
	is.Equal(len(s.Tasks()), 0)
}

func TestDeleteTask(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	task, _ := s.NewTask(ctx, "p1", "T")
	is.NoErr(s.DeleteTask(ctx, task.ID))
	is.Equal(len(s.TasksForProject("p1")), 0)
	is.Equal(len(remote.tasks), 0)

	is.NoErr(s.DeleteTask(ctx, "unknown"))
	is.Equal(len(remote.deleted), 1) // unknown ids never reach the remote
	checkIndex(t, s)
}

func TestMergeRemote_LastWriteWins(t *testing.T) {
	tests := []struct {
		name   string
		local  string
		remote string
		want   string
	}{
		{"remote newer", "2024-01-01T00:00:00.000000Z", "2024-01-02T00:00:00.000000Z", "remote"},
		{"local newer", "2024-01-03T00:00:00.000000Z", "2024-01-02T00:00:00.000000Z", "local"},
		{"tie keeps local", "2024-01-02T00:00:00.000000Z", "2024-01-02T00:00:00.000000Z", "local"},
		{"empty local loses", "", "2024-01-02T00:00:00.000000Z", "remote"},
		{"empty remote loses", "2024-01-02T00:00:00.000000Z", "", "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			ctx := context.Background()
			remote := newFakeRemote()
			remote.setProject(model.Project{ID: "p1", Name: "local", LastUpdate: tt.local})
			remote.setTask(model.Task{ID: "t1", ProjectID: "p1", Name: "local", LastUpdate: tt.local})

			s := New(remote, testClock())
			is.NoErr(s.LoadAll(ctx))

			remote.setProject(model.Project{ID: "p1", Name: "remote", LastUpdate: tt.remote})
			remote.setTask(model.Task{ID: "t1", ProjectID: "p1", Name: "remote", LastUpdate: tt.remote})

			_, err := s.MergeRemote(ctx)
			is.NoErr(err)

			p, _ := s.Project("p1")
			is.Equal(p.Name, tt.want)
			task, _ := s.Task("t1")
			is.Equal(task.Name, tt.want)
		})
	}
}

func TestMergeRemote_IsAdditive(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	p, _ := s.NewProject(ctx, "Local only", "", "")
	task, _ := s.NewTask(ctx, p.ID, "Local task")

	// another client deleted both rows
	remote.projects = map[string]model.Project{}
	remote.tasks = map[string]model.Task{}
	remote.setTask(model.Task{ID: "", ProjectID: p.ID, Name: "no id"})

	res, err := s.MergeRemote(ctx)
	is.NoErr(err)
	is.True(!res.Changed())

	_, ok := s.Project(p.ID)
	is.True(ok)
	is.Equal(taskIDs(s.TasksForProject(p.ID)), []string{task.ID})
}

func TestMergeRemote_Scenario(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	remote.setProject(model.Project{ID: "P1", Name: "Board", LastUpdate: "2024-01-01T00:00:00Z"})

	s := New(remote, testClock())
	is.NoErr(s.LoadAll(ctx))

	remote.setProject(model.Project{ID: "P1", Name: "Board", LastUpdate: "2024-01-02T00:00:00Z"})
	remote.setTask(model.Task{ID: "T1", ProjectID: "P1", Name: "First"})

	res, err := s.MergeRemote(ctx)
	is.NoErr(err)
	is.Equal(res, MergeResult{ProjectsUpdated: 1, TasksUpdated: 1})

	projects := s.Projects()
	is.Equal(len(projects), 1)
	is.Equal(projects[0].LastUpdate, "2024-01-02T00:00:00Z")
	is.Equal(taskIDs(s.TasksForProject("P1")), []string{"T1"})
	checkIndex(t, s)
}

func TestMergeRemote_ScenarioOverGateway(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	creds := filepath.Join(t.TempDir(), "creds.json")
	is.NoErr(os.WriteFile(creds, []byte("{}"), 0600))
	cfg := &config.Config{Backend: config.BackendSheets, CredentialsFile: creds, SheetID: "board"}
	wb := table.NewMemory()
	open := func(ctx context.Context, cfg *config.Config) (table.Workbook, error) { return wb, nil }
	clock := model.NewClock(nil)

	gw := gateway.New(cfg, open, clock)
	is.NoErr(gw.Connect(ctx))
	is.NoErr(gw.UpsertProject(ctx, model.Project{ID: "P1", Name: "Board", LastUpdate: "2024-01-01T00:00:00Z"}))

	s := New(gw, clock)
	is.NoErr(s.LoadAll(ctx))
	is.Equal(s.Projects()[0].LastUpdate, "2024-01-01T00:00:00.000000Z")

	// another client writes through the same workbook
	is.NoErr(gw.UpsertProject(ctx, model.Project{ID: "P1", Name: "Board", LastUpdate: "2024-01-02T00:00:00Z"}))
	is.NoErr(gw.UpsertTask(ctx, model.Task{ID: "T1", ProjectID: "P1", Name: "First"}))

	res, err := s.MergeRemote(ctx)
	is.NoErr(err)
	is.Equal(res, MergeResult{ProjectsUpdated: 1, TasksUpdated: 1})

	projects := s.Projects()
	is.Equal(len(projects), 1)
	is.Equal(projects[0].LastUpdate, "2024-01-02T00:00:00.000000Z")
	is.Equal(taskIDs(s.TasksForProject("P1")), []string{"T1"})
	checkIndex(t, s)

	// nothing newer on the second pass
	res, err = s.MergeRemote(ctx)
	is.NoErr(err)
	is.True(!res.Changed())
}

func TestMergeRemote_MovedTaskReindexed(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	remote.setTask(model.Task{ID: "t1", ProjectID: "a", LastUpdate: "2024-01-01T00:00:00.000000Z"})

	s := New(remote, testClock())
	is.NoErr(s.LoadAll(ctx))

	remote.setTask(model.Task{ID: "t1", ProjectID: "b", LastUpdate: "2024-01-02T00:00:00.000000Z"})
	_, err := s.MergeRemote(ctx)
	is.NoErr(err)

	is.Equal(len(s.TasksForProject("a")), 0)
	is.Equal(taskIDs(s.TasksForProject("b")), []string{"t1"})
	checkIndex(t, s)
}

func TestNewTask_UnknownProject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, testClock())

	task, err := s.NewTask(ctx, "missing", "Orphan")
	is.NoErr(err)
	is.Equal(taskIDs(s.TasksForProject("missing")), []string{task.ID})

	_, err = s.MergeRemote(ctx)
	is.NoErr(err)
	is.NoErr(s.LoadAll(ctx))
	is.Equal(taskIDs(s.TasksForProject("missing")), []string{task.ID})
	checkIndex(t, s)
}

func TestTasksForProject_NewestFirst(t *testing.T) {
	is := is.New(t)
	remote := newFakeRemote()
	remote.setTask(model.Task{ID: "old", ProjectID: "p", LastUpdate: "2024-01-01T00:00:00.000000Z"})
	remote.setTask(model.Task{ID: "new", ProjectID: "p", LastUpdate: "2024-03-01T00:00:00.000000Z"})
	remote.setTask(model.Task{ID: "mid", ProjectID: "p", LastUpdate: "2024-02-01T00:00:00.000000Z"})

	s := New(remote, testClock())
	is.NoErr(s.LoadAll(context.Background()))

	var got []string
	for _, task := range s.TasksForProject("p") {
		got = append(got, task.ID)
	}
	is.Equal(got, []string{"new", "mid", "old"})
}

// TestConcurrentMergeAndMutate runs local edits against background merges;
// run with -race.
func TestConcurrentMergeAndMutate(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := New(remote, nil)
	p, err := s.NewProject(ctx, "Busy", "", "")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := s.MergeRemote(ctx); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			task, err := s.NewTask(ctx, p.ID, "")
			if err != nil {
				t.Error(err)
				return
			}
			if i%2 == 0 {
				_ = s.DeleteTask(ctx, task.ID)
			}
			_ = s.TasksForProject(p.ID)
		}
	}()
	wg.Wait()

	checkIndex(t, s)
	// a merge racing a delete may bring a task back, never lose one
	if got := len(s.TasksForProject(p.ID)); got < 25 {
		t.Fatalf("got %d tasks, want at least 25", got)
	}
}

func TestStoreOverGateway(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	creds := filepath.Join(t.TempDir(), "creds.json")
	is.NoErr(os.WriteFile(creds, []byte("{}"), 0600))
	cfg := &config.Config{Backend: config.BackendSheets, CredentialsFile: creds, SheetID: "board"}

	wb := table.NewMemory()
	open := func(ctx context.Context, cfg *config.Config) (table.Workbook, error) { return wb, nil }
	clock := model.NewClock(nil)

	gw := gateway.New(cfg, open, clock)
	is.NoErr(gw.Connect(ctx))

	a := New(gw, clock)
	is.NoErr(a.LoadAll(ctx))
	p, err := a.NewProject(ctx, "Shared", "", "")
	is.NoErr(err)
	task, err := a.NewTask(ctx, p.ID, "Pair")
	is.NoErr(err)
	task.Assignee = []string{"Ricky", "Drez"}
	task.Checklist = []model.ChecklistItem{{Text: "a", Done: true}, {Text: "b"}}
	_, err = a.SaveTask(ctx, task)
	is.NoErr(err)

	// a second client sharing the workbook sees the same board
	b := New(gw, clock)
	is.NoErr(b.LoadAll(ctx))
	got := b.TasksForProject(p.ID)
	is.Equal(len(got), 1)
	is.Equal(got[0].Assignee, []string{"Ricky", "Drez"})
	is.Equal(got[0].Checklist, task.Checklist)

	is.NoErr(b.DeleteProject(ctx, p.ID))
	is.NoErr(a.LoadAll(ctx))
	is.Equal(len(a.Projects()), 0)
	is.Equal(len(a.Tasks()), 0)
}
