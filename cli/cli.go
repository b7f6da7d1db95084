package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "lazyqa"

// Exit codes: per-case failures and setup failures are distinguishable
// so wrapping scripts can tell a partial run from no run at all.
const (
	exitSomeFailed  = 1
	exitSetupFailed = 2
)

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run QA comparisons between binary builds with version-tracked output folders",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the binary against a single QA dataset",
		ArgsUsage: "DATASET_PATH",
		Action:    app.runSingle,
		Flags:     runFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "batch",
		Usage:     "Run the binary against several QA datasets under one shared build identity",
		ArgsUsage: "DATASET_PATH...",
		Action:    app.runBatch,
		Flags:     runFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List archived test cases under the output root",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output root to list",
				Value:   ".",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	return app
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "binary",
			Aliases:  []string{"x"},
			Usage:    "Path to the processing binary. Must live inside its source repo",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output root; a new sub-directory is created per test case",
			Value:   ".",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the config.ini (default: config.ini next to the dataset, then ./config.ini)",
		},
		&cli.StringFlag{
			Name:    "description",
			Aliases: []string{"d"},
			Usage:   "Optional description appended to the output folder name",
		},
		&cli.StringFlag{
			Name:  "tool",
			Usage: "Binary wrapper to use: pipeline or ortho",
			Value: "pipeline",
		},
		&cli.BoolFlag{
			Name:  "no-rebuild",
			Usage: "Never re-compile, use the binary as is",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Skip the staleness check entirely",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Kill the binary after this long per dataset (0 disables)",
		},
		&cli.StringFlag{
			Name:  "rebuild-cmd",
			Usage: "Command to re-compile the binary, e.g. 'cmake --build ../build -t test_pipeline'",
		},
		&cli.BoolFlag{
			Name:  "live-output",
			Usage: "Print the binary's output while it runs",
		},
		&cli.BoolFlag{
			Name:  "debug-tiles",
			Usage: "Generate debug tiles (ortho tool only)",
		},
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
