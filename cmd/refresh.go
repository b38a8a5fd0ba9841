package cmd

import (
	"encoding/json"
	"fmt"

	"vidcast/db"
	"vidcast/media"
	"vidcast/models"
	"vidcast/refresh"
	"vidcast/youtube"

	"github.com/urfave/cli/v2"
)

func refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Refresh channels from the command line",
		Description: `Runs a refresh for all tracked channels, or a single channel
when --channel is given, and waits for it to finish.

Prints one run summary per channel as a JSON object on a single line.
Use a tool like jq to process the output.`,
		Flags: append(configFlags(),
			&cli.Int64Flag{
				Name:  "channel",
				Usage: "Catalog id of a single channel to refresh",
			},
			&cli.IntFlag{
				Name:    "fetch-count",
				Usage:   "Number of most recent uploads considered per refresh",
				EnvVars: []string{"VIDCAST_FETCH_COUNT"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			if err := db.Migrate(cfg.DatabasePath()); err != nil {
				return err
			}

			store, err := db.NewStore(cfg.DatabasePath(), cfg.AudioDir())
			if err != nil {
				return err
			}
			defer store.Close()

			client := youtube.NewClient()
			materializer := media.NewMaterializer(cfg.AudioDir(), cfg.AudioFormat, cfg.AudioBitrate)
			engine := refresh.NewEngine(client, materializer, store, cfg.FetchCount)

			var channels []models.Channel
			if ctx.IsSet("channel") {
				channel, err := store.GetChannel(ctx.Context, ctx.Int64("channel"))
				if err != nil {
					return err
				}
				channels = []models.Channel{channel}
			} else {
				channels, err = store.ListChannels(ctx.Context)
				if err != nil {
					return err
				}
			}

			for _, channel := range channels {
				summary := engine.RefreshChannel(ctx.Context, channel)

				encoded, err := json.Marshal(summary)
				if err != nil {
					return err
				}
				fmt.Println(string(encoded))
			}

			return nil
		},
	}
}
