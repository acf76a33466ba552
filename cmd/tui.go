package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
	"github.com/desertthunder/sp2yt/internal/ui"
)

const tuiLogPath = "./tmp/sp2yt-tui.log"

// redirectLogs points the runner's logger at a file for the duration of a TUI session and
// returns a func restoring the previous logger.
func (r *Runner) redirectLogs() (func(), error) {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())

	prev := r.logger
	r.SetLogger(fileLogger)
	return func() { r.SetLogger(prev) }, nil
}

// runTUI runs fn under the progress monitor and returns its final snapshot. Quitting before
// the conversion finishes cancels it.
func (r *Runner) runTUI(ctx context.Context, title string, fn ui.RunFunc) (models.Snapshot, error) {
	model := ui.NewModel(ctx, title, fn)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return models.Snapshot{}, fmt.Errorf("error running TUI: %w", err)
	}

	snap := model.Snapshot()
	if snap.ID == "" {
		return snap, fmt.Errorf("conversion cancelled: %w", context.Canceled)
	}
	return snap, nil
}
