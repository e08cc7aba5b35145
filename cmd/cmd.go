// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/anitrack/internal/formatter"
	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

// setupCommand handles local setup for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Database file (default: database.path from config)",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the default config file to the --config path",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "email",
			Aliases: []string{"e"},
			Usage:   "Account email",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Account password (prompted when omitted)",
		},
	}
}

// authCommand handles account and session operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your account and session",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Display name",
					},
				}, credentialFlags()...),
				Action: r.AuthRegister,
			},
			{
				Name:   "login",
				Usage:  "Sign in and store the session",
				Flags:  credentialFlags(),
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "End the session and clear cached searches",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the stored session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Check the session against the backend",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the session token",
				Action: r.AuthRefresh,
			},
		},
	}
}

// listCommand handles the tracked anime list
func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "View and edit your anime list",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show your list",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Only show entries with this status (watching, completed, plan_to_watch, dropped)",
					},
				}, jsonFlags()...),
				Action: r.ListShow,
			},
			{
				Name:  "add",
				Usage: "Add a title by catalog id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mal_id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Initial status",
						Value:   "completed",
					},
				},
				Action: r.ListAdd,
			},
			{
				Name:  "status",
				Usage: "Change the status of an entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "status"},
				},
				Action: r.ListStatus,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Remove an entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip confirmation",
					},
				},
				Action: r.ListDelete,
			},
			{
				Name:  "export",
				Usage: "Export your list to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (json, csv, markdown, txt)",
						Value:   string(formatter.FormatJSON),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: anime_list.<ext>)",
					},
					&cli.BoolFlag{
						Name:  "details",
						Usage: "Include catalog details for each entry",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent detail fetches",
						Value: 3,
					},
				},
				Action: r.ListExport,
			},
		},
	}
}

// catalogCommand handles anime catalog lookups
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"cat"},
		Usage:   "Search the anime catalog",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search titles",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags:  jsonFlags(),
				Action: r.CatalogSearch,
			},
			{
				Name:  "details",
				Usage: "Show a title's details and characters",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "mal_id"},
				},
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the catalog page in a browser",
					},
				}, jsonFlags()...),
				Action: r.CatalogDetails,
			},
		},
	}
}

// cacheCommand handles the local search cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the search cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Count cached searches for this session",
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Clear cached searches for this session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stale",
						Usage: "Only remove searches left by ended sessions",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Interactive list and search",
		Action: r.TUI,
	}
}
