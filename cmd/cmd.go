// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/moviememo/internal/tasks"
	"github.com/urfave/cli/v3"
)

func outputFlags(prettyDefault bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: prettyDefault,
		},
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize the credential database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles sign-in and account operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your account",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password, or with Google in the browser",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"e"},
						Usage:   "Account email",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password",
					},
					&cli.BoolFlag{
						Name:  "google",
						Usage: "Sign in with Google in the browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "signup",
				Usage: "Create an account and send the verification email",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Username (a random one is generated when omitted)",
					},
				},
				Action: r.AuthSignup,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "reset",
				Usage: "Send a password reset email",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Required: true,
					},
				},
				Action: r.AuthReset,
			},
			{
				Name:   "status",
				Usage:  "Show the signed in account and profile",
				Flags:  outputFlags(true),
				Action: r.AuthStatus,
			},
		},
	}
}

// moviesCommand handles catalog browsing
func moviesCommand(r *Runner) *cli.Command {
	pageFlags := func() []cli.Flag {
		return append([]cli.Flag{
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page of results to show",
				Value: 1,
			},
		}, outputFlags(true)...)
	}

	return &cli.Command{
		Name:    "movies",
		Aliases: []string{"m"},
		Usage:   "Browse the movie catalog",
		Commands: []*cli.Command{
			{
				Name:   "trending",
				Usage:  "List this week's trending movies",
				Flags:  pageFlags(),
				Action: r.MoviesTrending,
			},
			{
				Name:   "popular",
				Usage:  "List popular movies",
				Flags:  pageFlags(),
				Action: r.MoviesPopular,
			},
			{
				Name:  "show",
				Usage: "Show details for a movie",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(true),
				Action: r.MoviesShow,
			},
		},
	}
}

// profileCommand handles profile operations for the signed in user
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "View and edit profiles",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show your profile, or another user's with --username",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Look up this username instead",
					},
				}, outputFlags(true)...),
				Action: r.ProfileShow,
			},
			{
				Name:  "username",
				Usage: "Change your username",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
				},
				Action: r.ProfileUsername,
			},
			{
				Name:  "avatar",
				Usage: "Upload a new profile picture (jpg, png, gif or webp up to 10MB)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.ProfileAvatar,
			},
		},
	}
}

// playlistsCommand handles playlist operations
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage movie playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "List every user's playlists",
					},
				}, outputFlags(true)...),
				Action: r.PlaylistsList,
			},
			{
				Name:  "show",
				Usage: "Show a playlist with catalog details for its movies",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent catalog lookups",
						Value: tasks.DefaultWorkers,
					},
				}, outputFlags(true)...),
				Action: r.PlaylistsShow,
			},
			{
				Name:  "create",
				Usage: "Create a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Playlist description",
					},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:  "update",
				Usage: "Rename a playlist or change its description",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "New name",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "New description",
					},
				},
				Action: r.PlaylistsUpdate,
			},
			{
				Name:  "delete",
				Usage: "Delete a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.PlaylistsDelete,
			},
			{
				Name:  "add",
				Usage: "Add a movie to a playlist by IMDb id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "imdb_id"},
				},
				Action: r.PlaylistsAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a movie from a playlist by IMDb id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "imdb_id"},
				},
				Action: r.PlaylistsRemove,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files",
				ArgsUsage: "<id> [id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: " + strings.Join(tasks.Formats, ", "),
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: moviememo_export_{timestamp})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent playlist exports",
						Value: tasks.DefaultWorkers,
					},
					&cli.BoolFlag{
						Name:  "mine",
						Usage: "Export all of your playlists",
					},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

// apiCommand returns raw request commands against the profile & playlist backend.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Send raw requests to the profile & playlist backend",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a backend path",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "include",
						Aliases: []string{"i"},
						Usage:   "Print the status line and response headers",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "POST a JSON body to a backend path",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON request body",
						Required: true,
					},
					&cli.BoolFlag{
						Name:    "include",
						Aliases: []string{"i"},
						Usage:   "Print the status line and response headers",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive movie browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while the TUI runs (e.g. :9090)",
			},
		},
		Action: r.TUI,
	}
}
