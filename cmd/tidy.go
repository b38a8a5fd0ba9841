package cmd

import (
	"vidcast/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Remove orphaned audio artifacts",
		Description: `Remove audio files that no episode references.

		Orphans can appear when the process dies between extracting an
		artifact and recording its episode. Safe to run as a cron job.`,
		Flags: configFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			return db.Tidy(cfg.DatabasePath(), cfg.AudioDir())
		},
	}
}
