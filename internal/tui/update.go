package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/sync"
)

// tickMsg is sent every second for the clock and "synced ago" label
type tickMsg time.Time

// syncEventMsg carries one background merge result
type syncEventMsg sync.Event

// Init starts the clock and the sync listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForSync())
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSync blocks on the synchronizer's event channel off the UI loop
func (m Model) waitForSync() tea.Cmd {
	if m.syncer == nil {
		return nil
	}
	events := m.syncer.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return syncEventMsg(ev)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case syncEventMsg:
		m.applySyncEvent(sync.Event(msg))
		return m, m.waitForSync()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m *Model) applySyncEvent(ev sync.Event) {
	if ev.Err != nil {
		m.online = false
		m.lastErr = ev.Err
		logger.Debug("TUI received failed sync", logger.F("error", ev.Err))
		return
	}

	m.online = true
	m.lastErr = nil
	m.lastSync = ev.At
	switch {
	case ev.Result.Reloaded:
		m.loadData()
		m.message = fmt.Sprintf("Reloaded: %d projects, %d tasks",
			ev.Result.ProjectsUpdated, ev.Result.TasksUpdated)
	case ev.Result.Changed():
		m.loadData()
		m.message = fmt.Sprintf("Synced: %d projects, %d tasks updated",
			ev.Result.ProjectsUpdated, ev.Result.TasksUpdated)
	}
}

// handleKeys handles key presses
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneSidebar {
			m.pane = PaneTaskList
		} else {
			m.pane = PaneSidebar
		}

	case key.Matches(msg, keys.Left):
		m.pane = PaneSidebar

	case key.Matches(msg, keys.Right):
		m.pane = PaneTaskList

	case key.Matches(msg, keys.Up):
		m.move(-1)

	case key.Matches(msg, keys.Down):
		m.move(1)

	case key.Matches(msg, keys.Top):
		m.move(-len(m.projects) - len(m.tasks))

	case key.Matches(msg, keys.Bottom):
		m.move(len(m.projects) + len(m.tasks))

	case key.Matches(msg, keys.Mine):
		m.toggleMine()

	case key.Matches(msg, keys.Refresh):
		m.handleRefresh()

	case key.Matches(msg, keys.Help):
		m.showHelp = true

	case key.Matches(msg, keys.Escape):
		m.message = ""
	}

	return m, nil
}

// move shifts the cursor of the focused pane by delta, clamped
func (m *Model) move(delta int) {
	if m.pane == PaneSidebar {
		next := clamp(m.projCursor+delta, len(m.projects))
		if next != m.projCursor {
			m.projCursor = next
			m.taskCursor = 0
			m.loadData()
		}
		return
	}
	m.taskCursor = clamp(m.taskCursor+delta, len(m.tasks))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m *Model) toggleMine() {
	if m.currentUser == "" {
		m.message = "Set current_user to filter your tasks"
		return
	}
	m.mineOnly = !m.mineOnly
	m.taskCursor = 0
	m.loadData()
	if m.mineOnly {
		m.message = "Showing tasks for " + m.currentUser
	} else {
		m.message = "Showing all tasks"
	}
}

func (m *Model) handleRefresh() {
	if m.syncer == nil {
		m.message = "Offline, sync unavailable"
		return
	}
	m.syncer.Trigger()
	m.message = "Syncing..."
}
