package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

func avatarCmd() *cli.Command {
	return &cli.Command{
		Name:      "avatar",
		Usage:     "Print the avatar URL of a YouTube channel",
		ArgsUsage: "[channel-id]",
		Description: `Resolves the avatar of the given channel, or of the configured
channel_id when no argument is given, and prints its URL to stdout.`,
		Flags: configFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			channelId := ctx.Args().First()
			if channelId == "" {
				channelId = cfg.ChannelId
			}
			if channelId == "" {
				return errors.New("please specify a channel id")
			}

			avatarUrl, err := newPipeline(cfg).resolver.ResolveAvatar(ctx.Context, channelId)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, avatarUrl)
			return nil
		},
	}
}
