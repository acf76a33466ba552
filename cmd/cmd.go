// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func profileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "Processing profile: fast, background or paged (default from config)",
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with defaults",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// convertCommand converts a single playlist or track file.
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Match a playlist's tracks on YouTube and print watch_videos URLs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Spotify playlist ID, URI or URL",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Track file: CSV (name,artist) or 'Artist - Title' lines",
			},
			profileFlag(),
			&cli.IntFlag{
				Name:  "start-from",
				Usage: "Index of the first track to convert",
			},
			&cli.IntFlag{
				Name:  "max-tracks",
				Usage: "Maximum number of tracks to convert (default: profile window)",
			},
			&cli.BoolFlag{
				Name:  "advanced",
				Usage: "Run the advanced query pass for tracks the primary queries miss",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, json, csv or markdown",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to this file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Ignore and do not update stored conversions",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress monitor",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the first watch URL in the default browser",
			},
		},
		Action: r.Convert,
	}
}

// bulkCommand converts several playlists and exports each one.
func bulkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "bulk",
		Usage:     "Convert several playlists and export each to a directory",
		ArgsUsage: "<playlist>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "files",
				Usage: "Treat arguments as track files instead of Spotify playlists",
			},
			profileFlag(),
			&cli.StringFlag{
				Name:  "format",
				Usage: "Export format: json, csv, markdown or txt",
				Value: "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: sp2yt_export_{timestamp})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Playlists converted concurrently (max 5)",
				Value: 2,
			},
		},
		Action: r.Bulk,
	}
}

// searchCommand runs one query through the adapter and ranker.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search YouTube for a query and show how candidates rank",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "artist",
				Usage: "Artist to rank against (default: the query)",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Title to rank against (default: the query)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum results",
				Value: 10,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Query timeout",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

// queriesCommand prints the query plan for a track.
func queriesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queries",
		Usage: "Show the search queries generated for a track",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "artist"},
			&cli.StringArg{Name: "title"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Queries,
	}
}

// serveCommand starts the HTTP job server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP job server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
			profileFlag(),
			&cli.BoolFlag{
				Name:  "no-store",
				Usage: "Do not persist completed conversions",
			},
		},
		Action: r.Serve,
	}
}

func jobIDArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "id"}}
}

// jobsCommand talks to a running server.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Manage jobs on a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL (default from config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Start a job for a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					profileFlag(),
					&cli.IntFlag{Name: "start-from", Usage: "Index of the first track"},
					&cli.IntFlag{Name: "max-tracks", Usage: "Maximum number of tracks"},
					&cli.BoolFlag{Name: "advanced", Usage: "Enable the advanced query pass"},
				},
				Action: r.JobsCreate,
			},
			{
				Name:   "list",
				Usage:  "List jobs",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.JobsList,
			},
			{
				Name:      "status",
				Usage:     "Show a job's progress",
				Arguments: jobIDArg(),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "results", Usage: "Include per-track results and watch URLs"},
				},
				Action: r.JobsStatus,
			},
			{
				Name:      "pause",
				Usage:     "Pause a job at its next batch boundary",
				Arguments: jobIDArg(),
				Action:    r.JobsPause,
			},
			{
				Name:      "resume",
				Usage:     "Resume a paused job",
				Arguments: jobIDArg(),
				Action:    r.JobsResume,
			},
			{
				Name:      "delete",
				Usage:     "Cancel and forget a job",
				Arguments: jobIDArg(),
				Action:    r.JobsDelete,
			},
		},
	}
}

// cacheCommand manages the failed-query cache and stored conversions.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear caches",
		Commands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Clear the failed-query cache",
				Action: r.CacheClear,
			},
			{
				Name:  "list",
				Usage: "List stored conversions",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.CacheList,
			},
			{
				Name:  "prune",
				Usage: "Delete stored conversions",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only delete conversions not updated within this duration",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Delete a single conversion by playlist key",
					},
				},
				Action: r.CachePrune,
			},
		},
	}
}
