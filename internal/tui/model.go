package tui

import (
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/sync"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneSidebar Pane = iota
	PaneTaskList
)

// Board is the read side of the store
type Board interface {
	Projects() []model.Project
	TasksForProject(projectID string) []model.Task
}

// Syncer delivers background merge results and accepts manual sync requests
type Syncer interface {
	Events() <-chan sync.Event
	Trigger()
}

// Options configures the board
type Options struct {
	Board       Board
	Syncer      Syncer // nil when running offline
	CurrentUser string
	Online      bool // result of the initial connect
	Now         func() time.Time
}

// Model is the main TUI model. It only reads the board; the synchronizer
// mutates the store and tells us to re-read through Events.
type Model struct {
	board       Board
	syncer      Syncer
	currentUser string
	now         func() time.Time

	projects []model.RankedProject
	tasks    []model.Task

	// UI state
	width      int
	height     int
	pane       Pane
	projCursor int
	taskCursor int
	mineOnly   bool
	showHelp   bool

	// Sync status
	online   bool
	lastSync time.Time
	lastErr  error
	message  string
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	logger.Info("Initializing TUI model")

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := Model{
		board:       opts.Board,
		syncer:      opts.Syncer,
		currentUser: opts.CurrentUser,
		now:         now,
		online:      opts.Online,
		pane:        PaneSidebar,
	}
	if m.online {
		m.lastSync = now()
	}

	m.loadData()
	logger.Debug("TUI model initialized",
		logger.F("projects", len(m.projects)),
		logger.F("tasks", len(m.tasks)))
	return m
}

// loadData re-reads the board, keeping the cursor on the same project when it
// still exists
func (m *Model) loadData() {
	selected := ""
	if p := m.currentProject(); p != nil {
		selected = p.ID
	}

	m.projects = model.RankByDeadline(m.board.Projects(), m.now())
	m.projCursor = 0
	for i, p := range m.projects {
		if p.ID == selected {
			m.projCursor = i
			break
		}
	}

	m.tasks = nil
	if p := m.currentProject(); p != nil {
		for _, t := range m.board.TasksForProject(p.ID) {
			if m.mineOnly && !t.IsAssignedTo(m.currentUser) {
				continue
			}
			m.tasks = append(m.tasks, t)
		}
	}
	if m.taskCursor >= len(m.tasks) {
		m.taskCursor = max(len(m.tasks)-1, 0)
	}
}

func (m *Model) currentProject() *model.RankedProject {
	if m.projCursor < len(m.projects) {
		return &m.projects[m.projCursor]
	}
	return nil
}

func (m *Model) currentTask() *model.Task {
	if m.taskCursor < len(m.tasks) {
		return &m.tasks[m.taskCursor]
	}
	return nil
}
