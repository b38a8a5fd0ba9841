package cmd

import (
	"vidcast/config"

	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "vidcast",
		Usage: "Turn YouTube channels into personal podcast feeds",
		Description: `Tracks a set of YouTube channels, periodically discovers new
		uploads, extracts their audio locally and serves each channel as an
		authenticated podcast RSS feed plus the audio files it references.

		State lives in an SQLite database next to the audio artifacts, so the
		data directory can be backed up and restored as one unit.

		Flags can generally be set via environment variables, e.g.:

		--data-dir => VIDCAST_DATA_DIR=/var/lib/vidcast
		--port => VIDCAST_PORT=5000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			addCmd(),
			refreshCmd(),
			authCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// configFlags are shared by every command that touches the catalog.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "vidcast.toml",
			Usage:   "Path to TOML configuration file",
			EnvVars: []string{"VIDCAST_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Directory holding the SQLite database and audio artifacts",
			EnvVars: []string{"VIDCAST_DATA_DIR"},
		},
	}
}

// serveFlags extend configFlags with the server-only settings.
func serveFlags() []cli.Flag {
	return append(configFlags(),
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Host the HTTP server binds to",
			EnvVars: []string{"VIDCAST_HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port the HTTP server binds to",
			EnvVars: []string{"VIDCAST_PORT"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Externally visible base URL used in feed links",
			EnvVars: []string{"VIDCAST_BASE_URL"},
		},
		&cli.IntFlag{
			Name:    "fetch-count",
			Usage:   "Number of most recent uploads considered per refresh",
			EnvVars: []string{"VIDCAST_FETCH_COUNT"},
		},
		&cli.DurationFlag{
			Name:    "refresh-interval",
			Usage:   "Interval between scheduled refresh runs",
			EnvVars: []string{"VIDCAST_REFRESH_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "admin-username",
			Usage:   "Username guarding the management endpoints",
			EnvVars: []string{"VIDCAST_ADMIN_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Password guarding the management endpoints",
			EnvVars: []string{"VIDCAST_ADMIN_PASSWORD"},
		},
	)
}

// loadConfig layers CLI flags and environment variables on top of the
// TOML configuration file.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("data-dir") {
		cfg.DataDir = ctx.String("data-dir")
	}
	if ctx.IsSet("host") {
		cfg.Host = ctx.String("host")
	}
	if ctx.IsSet("port") {
		cfg.Port = ctx.Int("port")
	}
	if ctx.IsSet("base-url") {
		cfg.BaseURL = ctx.String("base-url")
	}
	if ctx.IsSet("fetch-count") {
		cfg.FetchCount = ctx.Int("fetch-count")
	}
	if ctx.IsSet("refresh-interval") {
		cfg.SetInterval(ctx.Duration("refresh-interval"))
	}
	if ctx.IsSet("admin-username") {
		cfg.AdminUsername = ctx.String("admin-username")
	}
	if ctx.IsSet("admin-password") {
		cfg.AdminPassword = ctx.String("admin-password")
	}

	return cfg, nil
}
