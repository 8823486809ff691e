package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/desertthunder/glance/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the interactive terminal UI against a running server.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	// the alt screen owns stdout while the program runs
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	stream, err := ui.DialStream(ctx, r.baseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer stream.Close()
	r.logger.Info("Watching card state", "server", r.baseURL)

	if _, err := tea.NewProgram(ui.NewModel(ctx, r.api, stream), tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("watch session ended: %w", err)
	}
	r.logger.Info("Watch session closed")
	return nil
}
