package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/engine"
	"github.com/confsync/confsync/internal/events"
	"github.com/confsync/confsync/internal/progress"
	"github.com/confsync/confsync/internal/ui"
	"github.com/confsync/confsync/internal/ui/tui"
)

// buildEngine constructs an engine wired to the settings file chosen by the
// global --config flag.
func buildEngine(cmd *cli.Command) *engine.Engine {
	return engine.New(engine.Config{
		Resolver: config.NewResolver(cmd.String("config")),
	})
}

// engineOptions translates shared command flags into engine options.
func engineOptions(cmd *cli.Command) (engine.Options, error) {
	scope := engine.ScopeSelection(cmd.String("scope"))
	if !scope.IsValid() {
		return engine.Options{}, fmt.Errorf("invalid scope %q: must be all, user or project", cmd.String("scope"))
	}
	return engine.Options{
		Tools:       cmd.StringSlice("tools"),
		Scope:       scope,
		DryRun:      cmd.Bool("dry-run"),
		Force:       cmd.Bool("force"),
		Branch:      cmd.String("branch"),
		Tag:         cmd.String("tag"),
		Commit:      cmd.String("commit"),
		ProjectPath: cmd.String("project-path"),
	}, nil
}

// selectionFlags are shared by every operation that acts on mapped files.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "tools",
			Aliases: []string{"t"},
			Usage:   "Restrict to these tool identifiers",
		},
		&cli.StringFlag{
			Name:  "scope",
			Value: "all",
			Usage: "Deployment scope: all, user or project",
		},
		&cli.StringFlag{
			Name:  "project-path",
			Usage: "Project root for project-scope files (default: working directory)",
		},
		&cli.StringFlag{
			Name:  "branch",
			Usage: "Pull this branch instead of the configured one",
		},
		&cli.StringFlag{
			Name:  "tag",
			Usage: "Pin the pull to this tag",
		},
		&cli.StringFlag{
			Name:  "commit",
			Usage: "Pin the pull to this commit",
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull the configuration repository and deploy files to installed tools",
		Flags: append(selectionFlags(),
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Preview changes without modifying files",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite existing destination files regardless of policy",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Pick tools and scope interactively",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := buildEngine(cmd)
			opts, err := engineOptions(cmd)
			if err != nil {
				return err
			}

			if cmd.Bool("interactive") {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("--interactive requires a terminal")
				}
				picked, err := tui.RunToolPicker(eng.DetectTools())
				if err != nil {
					return err
				}
				if picked.Action != tui.ToolPickerActionConfirm {
					fmt.Println("Sync cancelled")
					return nil
				}
				opts.Tools = picked.Tools
				opts.Scope = picked.Scope
			}

			subscribeProgress(eng.Bus())

			report, err := eng.Sync(ctx, opts)
			if err != nil {
				return err
			}
			renderReport(os.Stdout, report)
			if !report.Success {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Show the planned file operations without writing anything",
		Flags: append(selectionFlags(),
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Plan as if --force were given",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := buildEngine(cmd)
			opts, err := engineOptions(cmd)
			if err != nil {
				return err
			}
			previews, err := eng.Preview(ctx, opts)
			if err != nil {
				return err
			}
			renderPreviews(os.Stdout, previews)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show repository, detection and last-sync status",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "project-path",
				Usage: "Project root (default: working directory)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := buildEngine(cmd)
			report, err := eng.Status(ctx, engine.Options{
				ProjectPath: cmd.String("project-path"),
			})
			if err != nil {
				return err
			}
			renderStatus(os.Stdout, report)
			return nil
		},
	}
}

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:  "detect",
		Usage: "Probe which supported tools are installed",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := buildEngine(cmd)
			renderDetections(os.Stdout, eng.DetectTools())
			return nil
		},
	}
}

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Compare mirror content against deployed destinations",
		Flags: selectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := buildEngine(cmd)
			opts, err := engineOptions(cmd)
			if err != nil {
				return err
			}
			changes, err := eng.Diff(ctx, opts)
			if err != nil {
				return err
			}
			renderDiff(os.Stdout, changes)
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check mirror files against each tool's validation rules",
		Flags: selectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng := buildEngine(cmd)
			opts, err := engineOptions(cmd)
			if err != nil {
				return err
			}
			validations, err := eng.Validate(ctx, opts)
			if err != nil {
				return err
			}
			if !renderValidations(os.Stdout, validations) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or update confsync settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the resolved settings",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					resolver := config.NewResolver(cmd.String("config"))
					resolved, err := resolver.Resolve("")
					if err != nil {
						return err
					}
					fmt.Printf("%s %s\n\n", ui.Header("Settings:"), ui.Dim(resolver.SettingsPath()))
					out, err := yaml.Marshal(resolved.Settings)
					if err != nil {
						return err
					}
					fmt.Print(string(out))
					return nil
				},
			},
			{
				Name:  "set-repo",
				Usage: "Update the source repository settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Repository URL",
					},
					&cli.StringFlag{
						Name:  "branch",
						Usage: "Repository branch",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					patch := &config.Patch{Repository: &config.RepositoryPatch{}}
					changed := false
					if cmd.IsSet("url") {
						url := cmd.String("url")
						patch.Repository.URL = &url
						changed = true
					}
					if cmd.IsSet("branch") {
						branch := cmd.String("branch")
						patch.Repository.Branch = &branch
						changed = true
					}
					if !changed {
						return fmt.Errorf("nothing to update: pass --url and/or --branch")
					}

					resolver := config.NewResolver(cmd.String("config"))
					if err := resolver.UpdateSettings(patch); err != nil {
						return err
					}
					fmt.Println(ui.StatusSuccess("settings updated"))
					return nil
				},
			},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("confsync %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return nil
		},
	}
}

// subscribeProgress renders live progress from the engine's event stream:
// a per-tool progress bar on interactive terminals, plain lines otherwise.
func subscribeProgress(bus *events.Bus) {
	var bar *progress.Bar

	bus.Subscribe(events.SyncStart, func(ev events.Event) {
		if n, ok := ev.Data["tools"].(int); ok {
			bar = progress.New(n, "Syncing", os.Stderr)
		}
	})
	bus.Subscribe(events.GitPullStart, func(ev events.Event) {
		fmt.Printf("Pulling %v...\n", ev.Data["url"])
	})
	bus.Subscribe(events.GitOffline, func(ev events.Event) {
		fmt.Println(ui.StatusWarning("repository unreachable, syncing from cached mirror"))
	})
	bus.Subscribe(events.ToolDeployStart, func(ev events.Event) {
		if bar != nil {
			bar.Describe(fmt.Sprintf("Syncing %v", ev.Data["tool"]))
			return
		}
		fmt.Printf("%s %v\n", ui.Info("Syncing"), ev.Data["tool"])
	})
	advance := func(events.Event) {
		if bar != nil {
			bar.Step()
		}
	}
	bus.Subscribe(events.ToolDeployComplete, advance)
	bus.Subscribe(events.ToolDeploySkip, advance)
	bus.Subscribe(events.SyncComplete, func(ev events.Event) {
		if bar != nil {
			bar.Finish()
		}
	})
	bus.Subscribe(events.ConflictDetected, func(ev events.Event) {
		fmt.Println(ui.StatusWarning(fmt.Sprintf("kept existing %v", ev.Data["path"])))
	})
}
