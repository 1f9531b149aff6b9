package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/cowork/internal/logger"
)

// Run shows the board until the user quits
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run board: %w", err)
	}
	logger.Info("Board closed")
	return nil
}
