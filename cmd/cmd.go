// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User ID (defaults to player.user_id, then the Spotify profile)",
	}
}

func playlistFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "playlist",
		Aliases:  []string{"p"},
		Usage:    "Playlist ID",
		Required: required,
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, csv, markdown or json",
		Value:   "text",
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the position store and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles Spotify authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize playhead with Spotify and save the token pair to the config file",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the authorization callback",
						Value: defaultLoginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check that the stored credentials are usable",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the saved token pair from the config file",
				Action: r.AuthLogout,
			},
		},
	}
}

// positionsCommand manages saved playlist positions
func positionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "positions",
		Aliases: []string{"pos"},
		Usage:   "Saved playlist positions",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show the saved position for a playlist",
				Flags:  []cli.Flag{userFlag(), playlistFlag(true), formatFlag()},
				Action: r.PositionsGet,
			},
			{
				Name:  "save",
				Usage: "Save a track as the position for a playlist",
				Flags: []cli.Flag{
					userFlag(),
					playlistFlag(true),
					&cli.StringFlag{
						Name:     "track",
						Aliases:  []string{"t"},
						Usage:    "Track ID",
						Required: true,
					},
				},
				Action: r.PositionsSave,
			},
			{
				Name:   "delete",
				Usage:  "Delete the saved position for a playlist",
				Flags:  []cli.Flag{userFlag(), playlistFlag(true), formatFlag()},
				Action: r.PositionsDelete,
			},
			{
				Name:   "list",
				Usage:  "List every saved position for a user",
				Flags:  []cli.Flag{userFlag(), formatFlag()},
				Action: r.PositionsList,
			},
		},
	}
}

// playerCommand sends commands to the active Spotify session
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "player",
		Usage: "Control and inspect playback",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show what is playing",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the merged view as JSON",
					},
				},
				Action: r.PlayerStatus,
			},
			{
				Name:   "play",
				Usage:  "Resume playback",
				Action: r.PlayerPlay,
			},
			{
				Name:   "pause",
				Usage:  "Pause playback",
				Action: r.PlayerPause,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Action: r.PlayerNext,
			},
			{
				Name:    "prev",
				Aliases: []string{"previous"},
				Usage:   "Skip to the previous track",
				Action:  r.PlayerPrevious,
			},
			{
				Name:  "seek",
				Usage: "Seek within the current track (m:ss or milliseconds)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Action: r.PlayerSeek,
			},
			{
				Name:  "volume",
				Usage: "Set the volume (0 to 100)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "percent"},
				},
				Action: r.PlayerVolume,
			},
			{
				Name:   "queue",
				Usage:  "Show the playback queue",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.PlayerQueue,
			},
			{
				Name:   "playlists",
				Usage:  "List the playlists in your library",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.PlayerPlaylists,
			},
			{
				Name:   "tracks",
				Usage:  "List the tracks of a playlist",
				Flags:  []cli.Flag{playlistFlag(true), formatFlag()},
				Action: r.PlayerTracks,
			},
			{
				Name:   "resume",
				Usage:  "Play a playlist from its saved position",
				Flags:  []cli.Flag{userFlag(), playlistFlag(true)},
				Action: r.PlayerResume,
			},
		},
	}
}

// serveCommand runs the HTTP surface, the SDK relay and the reconciler.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the position API, token endpoint and SDK bridge page",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
			userFlag(),
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for the now playing screen.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"ui"},
		Usage:   "Serve and open the terminal now playing screen",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
			userFlag(),
		},
		Action: r.TUI,
	}
}
