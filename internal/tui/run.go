package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
)

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, sim Simulator, opts ...Option) error {
	if sim == nil {
		return errors.New("simulator is required")
	}

	m := NewModel(sim, opts...)
	defer m.Close()

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if m.config.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	if _, err := tea.NewProgram(m, progOpts...).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "dashboard failed")
	}
	return nil
}
