package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/existflow/cowork/internal/config"
	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/store"
	"github.com/existflow/cowork/internal/table"
	"github.com/matryer/is"
)

var roster = model.Roster{"Ricky", "Zimba", "Drez", "Moe", "Unzugewiesen"}

func strPtr(s string) *string { return &s }

func sampleTask() model.Task {
	t := model.NewTask("t1", "p1", "Book venue", "2026-03-01T12:00:00.000000Z")
	t.Checklist = []model.ChecklistItem{{Text: "Quotes"}, {Text: "Deposit", Done: true}, {Text: "Sign"}}
	return t
}

func TestTaskEdit_Apply(t *testing.T) {
	tests := []struct {
		name        string
		edit        taskEdit
		currentUser string
		check       func(is *is.I, got model.Task)
		wantErr     error
	}{
		{
			name: "text fields",
			edit: taskEdit{name: strPtr(" Book hall "), goal: strPtr("Ship"), attention: strPtr("")},
			check: func(is *is.I, got model.Task) {
				is.Equal(got.Name, "Book hall")
				is.Equal(got.Goal, "Ship")
				is.Equal(got.Attention, "")
			},
		},
		{
			name:        "current user assigned when nobody is",
			edit:        taskEdit{goal: strPtr("Ship")},
			currentUser: "Moe",
			check: func(is *is.I, got model.Task) {
				is.Equal(got.Assignee, []string{"Moe"})
			},
		},
		{
			name:        "user off the roster is not auto assigned",
			edit:        taskEdit{goal: strPtr("Ship")},
			currentUser: "Stranger",
			check: func(is *is.I, got model.Task) {
				is.Equal(len(got.Assignee), 0)
				is.True(got.Assignee != nil)
			},
		},
		{
			name:        "explicit assignees win",
			edit:        taskEdit{assignees: []string{"Ricky", " Drez "}, setAssignee: true},
			currentUser: "Moe",
			check: func(is *is.I, got model.Task) {
				is.Equal(got.Assignee, []string{"Ricky", "Drez"})
			},
		},
		{
			name:    "unknown assignee",
			edit:    taskEdit{assignees: []string{"Nobody"}, setAssignee: true},
			wantErr: model.ErrUnknownUser,
		},
		{
			name:    "too many assignees",
			edit:    taskEdit{assignees: []string{"Ricky", "Zimba", "Drez", "Moe", "Ricky"}, setAssignee: true},
			wantErr: model.ErrTooManyAssignees,
		},
		{
			name: "checklist positions refer to the original list",
			edit: taskEdit{check: []int{1}, uncheck: []int{2}, remove: []int{3, 2}, addItems: []string{"Invite", " "}},
			check: func(is *is.I, got model.Task) {
				want := []model.ChecklistItem{{Text: "Quotes", Done: true}, {Text: "Invite"}}
				is.Equal(got.Checklist, want)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, err := tt.edit.apply(sampleTask(), roster, tt.currentUser)
			if tt.wantErr != nil {
				is.True(errors.Is(err, tt.wantErr))
				return
			}
			is.NoErr(err)
			tt.check(is, got)
		})
	}
}

func TestTaskEdit_Errors(t *testing.T) {
	is := is.New(t)
	for _, e := range []taskEdit{
		{name: strPtr("  ")},
		{check: []int{4}},
		{uncheck: []int{0}},
		{remove: []int{-1}},
	} {
		_, err := e.apply(sampleTask(), roster, "")
		is.True(err != nil)
	}
}

func TestTaskEdit_DoesNotTouchInput(t *testing.T) {
	is := is.New(t)
	in := sampleTask()
	_, err := taskEdit{check: []int{1}, remove: []int{2}}.apply(in, roster, "")
	is.NoErr(err)
	is.Equal(in.Checklist, sampleTask().Checklist)
}

func TestTaskEdit_Empty(t *testing.T) {
	is := is.New(t)
	is.True(taskEdit{}.empty())
	is.True(!taskEdit{goal: strPtr("")}.empty())
	is.True(!taskEdit{setAssignee: true}.empty())
}

func TestNormalizeDeadline(t *testing.T) {
	is := is.New(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got, err := normalizeDeadline(" 2026-04-01 ", now)
	is.NoErr(err)
	is.Equal(got, "2026-04-01")

	got, err = normalizeDeadline("", now)
	is.NoErr(err)
	is.Equal(got, "")

	got, err = normalizeDeadline("tomorrow", now)
	is.NoErr(err)
	is.Equal(got, "2026-03-11")

	_, err = normalizeDeadline("xyzzy", now)
	is.True(err != nil)
}

func TestClip(t *testing.T) {
	is := is.New(t)
	is.Equal(clip("short", 10), "short")
	is.Equal(clip("Überweisung", 5), "Über…")
}

// useMemory points the commands at wb and writes a config that reaches it
func useMemory(t *testing.T, wb *table.Memory) *config.Config {
	t.Helper()
	dir := t.TempDir()
	creds := filepath.Join(dir, "service_account.json")
	if err := os.WriteFile(creds, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.CredentialsFile = creds
	cfg.SheetID = "board"
	cfg.CurrentUser = "Moe"
	cfg.LogFile = filepath.Join(dir, "cowork.log")

	path := filepath.Join(dir, "config.yaml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COWORK_CONFIG", path)

	prev := openWorkbook
	openWorkbook = func(ctx context.Context, cfg *config.Config) (table.Workbook, error) {
		return wb, nil
	}
	t.Cleanup(func() { openWorkbook = prev })
	return cfg
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("cowork %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func loadBoard(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	s := newSession(cfg)
	if err := s.connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s.store
}

func TestCommands(t *testing.T) {
	is := is.New(t)
	wb := table.NewMemory()
	cfg := useMemory(t, wb)

	out := run(t, "project", "new", "Launch", "--deadline", "2026-12-01")
	is.True(strings.Contains(out, "Created project: Launch"))

	out = run(t, "task", "new", "launch", "Book venue", "--assign", "Ricky", "--item", "Quotes", "--item", "Sign")
	is.True(strings.Contains(out, "Added task to Launch: Book venue"))

	board := loadBoard(t, cfg)
	projects := board.Projects()
	is.Equal(len(projects), 1)
	is.Equal(projects[0].Deadline, "2026-12-01")
	tasks := board.TasksForProject(projects[0].ID)
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Assignee, []string{"Ricky"})
	is.Equal(len(tasks[0].Checklist), 2)

	out = run(t, "task", "list")
	is.True(strings.Contains(out, "Book venue"))
	is.True(strings.Contains(out, "Ricky"))
	is.True(strings.Contains(out, "1 tasks"))

	out = run(t, "task", "edit", shortID(tasks[0].ID), "--check", "1")
	is.True(strings.Contains(out, "50% done"))

	out = run(t, "project", "list")
	is.True(strings.Contains(out, "Launch"))
	is.True(strings.Contains(out, "2026-12-01"))

	out = run(t, "project", "delete", "Launch")
	is.True(strings.Contains(out, "Deleted project: Launch (1 tasks)"))

	board = loadBoard(t, cfg)
	is.Equal(len(board.Projects()), 0)
	is.Equal(len(board.Tasks()), 0)
}

func TestResolve(t *testing.T) {
	is := is.New(t)
	cfg := useMemory(t, table.NewMemory())
	board := loadBoard(t, cfg)
	ctx := context.Background()

	a, err := board.NewProject(ctx, "Alpha", "", "")
	is.NoErr(err)
	_, err = board.NewProject(ctx, "Beta", "", "")
	is.NoErr(err)

	got, err := resolveProject(board, "alpha")
	is.NoErr(err)
	is.Equal(got.ID, a.ID)

	got, err = resolveProject(board, a.ID[:6])
	is.NoErr(err)
	is.Equal(got.ID, a.ID)

	_, err = resolveProject(board, "Gamma")
	is.True(errors.Is(err, store.ErrProjectNotFound))

	task, err := board.NewTask(ctx, a.ID, "Write")
	is.NoErr(err)
	gotTask, err := resolveTask(board, task.ID[:6])
	is.NoErr(err)
	is.Equal(gotTask.ID, task.ID)

	_, err = resolveTask(board, "")
	is.True(errors.Is(err, store.ErrTaskNotFound))
}

func TestSession_SwitchingWorkbookReloads(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	books := map[string]*table.Memory{"old": table.NewMemory(), "new": table.NewMemory()}
	cfg := useMemory(t, nil)
	openWorkbook = func(ctx context.Context, cfg *config.Config) (table.Workbook, error) {
		return books[cfg.SheetID], nil
	}

	cfg.SheetID = "old"
	s := newSession(cfg)
	is.NoErr(s.connect(ctx))
	_, err := s.store.NewProject(ctx, "From old sheet", "", "")
	is.NoErr(err)

	moved := *cfg
	moved.SheetID = "new"
	triggered := false
	s.reconfigure(&moved, func() { triggered = true })
	is.True(triggered)

	res, err := s.MergeRemote(ctx)
	is.NoErr(err)
	is.True(res.Reloaded)
	is.True(res.Changed())
	is.Equal(len(s.store.Projects()), 0)

	// the new sheet is merged normally from now on
	res, err = s.MergeRemote(ctx)
	is.NoErr(err)
	is.True(!res.Reloaded)

	// the old sheet still holds its own project
	old := newSession(cfg)
	is.NoErr(old.connect(ctx))
	is.Equal(len(old.store.Projects()), 1)
}

func TestSession_SameWorkbookKeepsMerging(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	cfg := useMemory(t, table.NewMemory())

	s := newSession(cfg)
	is.NoErr(s.connect(ctx))
	_, err := s.store.NewProject(ctx, "Kept", "", "")
	is.NoErr(err)

	same := *cfg
	same.PollSeconds = 30
	s.reconfigure(&same, func() { t.Fatal("no reload expected") })

	res, err := s.MergeRemote(ctx)
	is.NoErr(err)
	is.True(!res.Reloaded)
	is.Equal(len(s.store.Projects()), 1)
}

func TestSession_OfflineStartLoadsOnFirstMerge(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	wb := table.NewMemory()
	cfg := useMemory(t, wb)

	seed := newSession(cfg)
	is.NoErr(seed.connect(ctx))
	_, err := seed.store.NewProject(ctx, "Seeded", "", "")
	is.NoErr(err)

	s := newSession(cfg)
	res, err := s.MergeRemote(ctx)
	is.NoErr(err)
	is.True(res.Reloaded)
	is.Equal(res.ProjectsUpdated, 1)
}

func TestPrintMerge(t *testing.T) {
	is := is.New(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	var out bytes.Buffer

	printMerge(&out, at, store.MergeResult{})
	printMerge(&out, at, store.MergeResult{TasksUpdated: 2})
	printMerge(&out, at, store.MergeResult{Reloaded: true})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	is.Equal(lines, []string{
		"09:00:00  ✓ Already up to date",
		"09:00:00  ✓ Merged 0 projects, 2 tasks",
		"09:00:00  ✓ Reloaded 0 projects, 0 tasks",
	})
}
