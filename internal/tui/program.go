package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loqalabs/whispnote/internal/app"
)

// Run shows the terminal UI until the user quits or ctx is cancelled.
func Run(ctx context.Context, controller *app.Controller, opts Options) error {
	p := tea.NewProgram(New(controller, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
