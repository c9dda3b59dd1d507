package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dih-project/wishonia/internal"
	pkgconfig "github.com/dih-project/wishonia/pkg/config"
)

var version = "dev"

// loadApp reads the configuration named by --config, applies --root and
// builds the application.
func loadApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadWithDefaults(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Project.Root = root
	}
	return internal.New(internal.WithConfig(cfg), internal.WithVersion(version))
}

// withApp adapts a command body that needs the application.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

var formatFlag = &cli.StringFlag{
	Name:  "format",
	Usage: "Output format: text or json",
	Value: "text",
}

func main() {
	cmd := &cli.Command{
		Name:    "wishonia",
		Usage:   "Incremental multi-check review pipeline for a Quarto book",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (defaults are used when it does not exist)",
				DefaultText: "wishonia.yaml",
				Value:       "wishonia.yaml",
				Sources:     cli.EnvVars("WISHONIA_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Book root directory (overrides project.root)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a check, or all checks, over content whose body changed since it last ran",
				ArgsUsage: "<check|all>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "Glob of files to consider (e.g. 'chapters/**/*.qmd')"},
					&cli.BoolFlag{Name: "full", Usage: "Ignore recorded hashes and process every file"},
					&cli.StringFlag{Name: "file", Usage: "Process a single file"},
					formatFlag,
				},
				Action: withApp(runCmd),
			},
			{
				Name:      "status",
				Usage:     "Show how many files each check would process next",
				ArgsUsage: "[check|all]",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "List stale files"}, formatFlag},
				Action:    withApp(statusCmd),
			},
			{
				Name:   "checks",
				Usage:  "List registered checks in execution order",
				Action: withApp(checksCmd),
			},
			{
				Name:  "todos",
				Usage: "Inspect and triage review todos",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List todos",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "status"},
							&cli.StringFlag{Name: "type"},
							&cli.StringFlag{Name: "priority"},
							&cli.StringFlag{Name: "file"},
							formatFlag,
						},
						Action: withApp(todosListCmd),
					},
					{
						Name:  "export",
						Usage: "Rewrite the JSON, YAML and Markdown renderings, or print one with --format",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "format", Usage: "Print json, yaml or markdown to stdout instead"},
						},
						Action: withApp(todosExportCmd),
					},
					{
						Name:      "set",
						Usage:     "Move a todo to a new status",
						ArgsUsage: "<id> <status>",
						Action:    withApp(todosSetCmd),
					},
					{
						Name:      "reopen",
						Usage:     "Return a fixed, rejected or reviewed todo to pending",
						ArgsUsage: "<id>",
						Action:    withApp(todosReopenCmd),
					},
				},
			},
			{
				Name:  "migrate-hashes",
				Usage: "Move last*Hash fields from frontmatter into the configured hash store",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "strip", Usage: "Remove the fields from the files afterwards"},
				},
				Action: withApp(migrateCmd),
			},
			{
				Name:   "index",
				Usage:  "Bring the full-text content index up to date",
				Action: withApp(indexCmd),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the book's own passages",
				ArgsUsage: "<question>",
				Action:    withApp(askCmd),
			},
			{
				Name:      "watch",
				Usage:     "Re-run checks on files as they change",
				ArgsUsage: "[check...]",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					return app.Watch(ctx, cmd.Args().Slice())
				}),
			},
			{
				Name:      "serve",
				Usage:     "Serve the todo API and live events; optionally re-run checks on change",
				ArgsUsage: "[check...]",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					return app.Serve(ctx, cmd.Args().Slice())
				}),
			},
			{
				Name:  "mcp",
				Usage: "Serve todos and content search over MCP stdio",
				Action: withApp(func(ctx context.Context, _ *cli.Command, app *internal.App) error {
					return app.ServeMCP(ctx)
				}),
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
