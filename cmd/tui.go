package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/desertthunder/anitrack/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}

	logFile := r.config.Log.File
	if logFile == "" {
		logFile = "./tmp/anitrack-tui.log"
	}

	// Logs go to a file while the TUI owns the terminal
	restore, err := shared.RedirectLogger(r.logger, logFile)
	if err != nil {
		return fmt.Errorf("failed to redirect logs: %w", err)
	}
	defer restore()

	cred, _ := r.store.Credential()
	model := ui.NewModel(ctx, ui.Deps{
		Controller: r.controller,
		Searcher:   r.searcher,
		Catalog:    r.catalog,
		Username:   cred.Username,
		OpenURL:    r.openURL,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if model.Expired() {
		return shared.ErrSessionExpired
	}
	return nil
}
