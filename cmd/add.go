package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"vidcast/db"
	"vidcast/media"
	"vidcast/refresh"
	"vidcast/youtube"

	"github.com/urfave/cli/v2"
)

func addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a YouTube channel and fetch its first episodes",
		ArgsUsage: "<channel URL, @handle, or channel ID>",
		Description: `Resolves the given channel reference, records the channel in
the catalog and runs an initial refresh so the feed has episodes right
away. Prints the run summary as JSON.`,
		Flags: append(configFlags(),
			&cli.IntFlag{
				Name:    "fetch-count",
				Usage:   "Number of most recent uploads considered per refresh",
				EnvVars: []string{"VIDCAST_FETCH_COUNT"},
			},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one channel reference")
			}

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

			channelID, name, err := client.ResolveChannel(ctx.Context, ctx.Args().First())
			if err != nil {
				return err
			}

			channel, err := store.UpsertChannel(
				ctx.Context,
				channelID,
				name,
				"https://www.youtube.com/channel/"+channelID,
			)
			if err != nil {
				return err
			}

			fmt.Printf("Added channel %q (%s)\n", channel.Name, channel.YoutubeChannelID)

			materializer := media.NewMaterializer(cfg.AudioDir(), cfg.AudioFormat, cfg.AudioBitrate)
			engine := refresh.NewEngine(client, materializer, store, cfg.FetchCount)

			summary := engine.RefreshChannel(ctx.Context, channel)

			encoded, err := json.Marshal(summary)
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))

			return nil
		},
	}
}
