package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"vidcast/db"
	"vidcast/models"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/choose"
	"github.com/cqroot/prompt/input"
	"github.com/urfave/cli/v2"
)

func authCmd() *cli.Command {
	return &cli.Command{
		Name:      "auth",
		Usage:     "Set the access policy for a channel feed",
		ArgsUsage: "<channel id>",
		Description: `Sets how a channel's feed and audio are protected.

"none" makes the feed public, "basic" asks for a username and password,
and "token" mints a fresh secret token and prints the tokenized feed
URL path. Setting a policy replaces the previous one, so old
credentials and tokens stop working immediately.`,
		Flags: append(configFlags(),
			&cli.StringFlag{
				Name:  "type",
				Usage: "Access policy type: none, basic or token",
			},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one channel id")
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			store, err := db.NewStore(cfg.DatabasePath(), cfg.AudioDir())
			if err != nil {
				return err
			}
			defer store.Close()

			channel, err := channelFromArg(ctx.Context, store, ctx.Args().First())
			if err != nil {
				return err
			}

			policyType := ctx.String("type")
			if policyType == "" {
				policyType, err = prompt.New().Ask("Access policy:").Choose(
					[]string{models.AuthNone, models.AuthBasic, models.AuthToken},
					choose.WithHelp(true),
				)
				if err != nil {
					return err
				}
			}

			policy := models.AccessPolicy{Type: policyType}

			if policyType == models.AuthBasic {
				policy.Username, err = prompt.New().Ask("Username:").Input("")
				if err != nil {
					return err
				}
				policy.Password, err = prompt.New().Ask("Password:").Input("", input.WithEchoMode(input.EchoNone))
				if err != nil {
					return err
				}
			}

			updated, err := store.SetAccessPolicy(ctx.Context, channel.ID, policy)
			if err != nil {
				return err
			}

			switch updated.AuthType {
			case models.AuthToken:
				fmt.Printf("Channel %q now requires a token\n", updated.Name)
				fmt.Printf("Feed path: /feed/t/%s\n", updated.SecretToken)
			case models.AuthBasic:
				fmt.Printf("Channel %q now requires basic auth credentials\n", updated.Name)
			default:
				fmt.Printf("Channel %q is now public\n", updated.Name)
			}

			return nil
		},
	}
}

// channelFromArg resolves a CLI argument to a tracked channel, accepting
// either the numeric catalog id or the YouTube channel id.
func channelFromArg(ctx context.Context, store *db.Store, arg string) (models.Channel, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return store.GetChannel(ctx, id)
	}
	return store.GetChannelByYoutubeID(ctx, arg)
}
