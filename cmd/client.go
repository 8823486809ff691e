package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/urfave/cli/v3"
)

// State prints the server's current cards.
func (r *Runner) State(ctx context.Context, cmd *cli.Command) error {
	view, err := r.api.State(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	_, err = r.output.Write(formatter.StateText(*view))
	return err
}

// Dump prints the server's debug dump.
func (r *Runner) Dump(ctx context.Context, cmd *cli.Command) error {
	dump, err := r.api.Dump(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s", dump)
}

// Reload asks the server to reload the current user's cards.
func (r *Runner) Reload(ctx context.Context, cmd *cli.Command) error {
	if err := r.api.Reload(ctx); err != nil {
		return err
	}
	return r.writePlain("reloaded\n")
}

// UserSwitch switches the server's foreground user.
func (r *Runner) UserSwitch(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("%w: user switch takes exactly one <id>", shared.ErrMissingArgument)
	}
	id, err := strconv.Atoi(cmd.Args().First())
	if err != nil || id < 0 {
		return fmt.Errorf("%w: user id must be a non-negative integer, got %q", shared.ErrInvalidArgument, cmd.Args().First())
	}

	if err := r.api.SwitchUser(ctx, id); err != nil {
		return err
	}
	return r.writePlain("switched to user %d\n", id)
}

// Privacy turns privacy mode on or off.
func (r *Runner) Privacy(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("%w: privacy takes on or off", shared.ErrMissingArgument)
	}

	var enabled bool
	switch arg := strings.ToLower(cmd.Args().First()); arg {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("%w: privacy takes on or off, got %q", shared.ErrInvalidArgument, arg)
	}

	if err := r.api.SetPrivacy(ctx, enabled); err != nil {
		return err
	}
	if enabled {
		return r.writePlain("privacy mode on\n")
	}
	return r.writePlain("privacy mode off\n")
}

// ProducerChanged reports producer availability to the server.
func (r *Runner) ProducerChanged(ctx context.Context, cmd *cli.Command) error {
	if err := r.api.ProducerChanged(ctx); err != nil {
		return err
	}
	return r.writePlain("producer change sent\n")
}

// TimeChanged reports a wall-clock change to the server.
func (r *Runner) TimeChanged(ctx context.Context, cmd *cli.Command) error {
	if err := r.api.TimeChanged(ctx); err != nil {
		return err
	}
	return r.writePlain("time change sent\n")
}
