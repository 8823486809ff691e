// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/models"
	"github.com/urfave/cli/v3"
)

// serveCommand runs the card controller with its transports and HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the card state manager and its HTTP API",
		Action: r.Serve,
	}
}

// pushCommand builds a single card and delivers it as an Update.
func pushCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Publish a card update to a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Card title",
			},
			&cli.StringFlag{
				Name:  "subtitle",
				Usage: "Card subtitle",
			},
			&cli.IntFlag{
				Name:  "priority",
				Usage: "Wire priority (2 = primary, 1 = secondary)",
				Value: models.PriorityPrimary,
			},
			&cli.Int64Flag{
				Name:  "id",
				Usage: "Card id",
			},
			&cli.IntFlag{
				Name:  "card-type",
				Usage: "Card type",
			},
			&cli.DurationFlag{
				Name:  "expires-in",
				Usage: "Time until the card expires (0 never expires)",
			},
			&cli.BoolFlag{
				Name:  "discard",
				Usage: "Clear the slot instead of showing a card",
			},
			&cli.DurationFlag{
				Name:  "event-in",
				Usage: "Time until the event starts",
			},
			&cli.DurationFlag{
				Name:  "event-duration",
				Usage: "Event length",
			},
			&cli.StringFlag{
				Name:  "action-type",
				Usage: "Tap action kind (none, broadcast, activity)",
				Value: "none",
			},
			&cli.StringFlag{
				Name:  "action-target",
				Usage: "Tap action target",
			},
			&cli.IntFlag{
				Name:  "user",
				Usage: "Sending user id (-1 leaves it unset)",
				Value: gateway.NoUser,
			},
			&cli.BoolFlag{
				Name:  "forwarded",
				Usage: "Mark the update as already forwarded",
			},
			&cli.StringFlag{
				Name:  "via",
				Usage: "Transport (http or nats)",
				Value: "http",
			},
		},
		Action: r.Push,
	}
}

// stateCommand prints the current card state.
func stateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Show the current cards",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.State,
	}
}

// dumpCommand prints the controller's debug dump.
func dumpCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "dump",
		Usage:  "Print the server's debug dump",
		Action: r.Dump,
	}
}

// reloadCommand reloads the current user's cards from the store.
func reloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "reload",
		Usage:  "Reload persisted cards for the current user",
		Action: r.Reload,
	}
}

// userCommand handles user switching.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "User operations",
		Commands: []*cli.Command{
			{
				Name:      "switch",
				Usage:     "Switch the foreground user",
				ArgsUsage: "<id>",
				Action:    r.UserSwitch,
			},
		},
	}
}

// privacyCommand toggles privacy mode.
func privacyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "privacy",
		Usage:     "Turn privacy mode on or off",
		ArgsUsage: "on|off",
		Action:    r.Privacy,
	}
}

// producerCommand signals producer availability changes.
func producerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "producer",
		Usage: "Producer signals",
		Commands: []*cli.Command{
			{
				Name:   "changed",
				Usage:  "Report that the producer became available",
				Action: r.ProducerChanged,
			},
		},
	}
}

// timeCommand signals wall-clock changes.
func timeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "time",
		Usage: "Clock signals",
		Commands: []*cli.Command{
			{
				Name:   "changed",
				Usage:  "Report that the wall clock or time zone changed",
				Action: r.TimeChanged,
			},
		},
	}
}

// watchCommand returns the top-level TUI command for watching a server.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch interactive TUI streaming card state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File that receives log output while the TUI runs",
				Value: "./tmp/glance-watch.log",
			},
		},
		Action: r.Watch,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing and run database migrations",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "List migrations and whether they are applied",
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// storeCommand inspects persisted cards.
func storeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Persisted card operations",
		Commands: []*cli.Command{
			{
				Name:  "inspect",
				Usage: "Decode and print the persisted slots for a user",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "User id",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.StoreInspect,
			},
		},
	}
}
