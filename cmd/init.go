package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"smwall/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a configuration file",
		Description: `Asks for the YouTube API key, channel id and keyword and writes a
configuration file with default intervals for every strategy.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "smwall.toml",
				Usage:   "Path of the configuration file to write",
				EnvVars: []string{"SMWALL_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
			},
		},
		Action: func(ctx *cli.Context) error {
			path := ctx.String("config")
			if _, err := os.Stat(path); err == nil && !ctx.Bool("force") {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}

			cfg := config.Default()

			apiKey, err := prompt.New().Ask("YouTube API key:").Input("", input.WithEchoMode(input.EchoNone))
			if err != nil {
				return err
			}
			if apiKey == "" {
				return errors.New("an API key is required")
			}
			cfg.ApiKey = apiKey

			cfg.ChannelId, err = prompt.New().Ask("Channel id:").Input("UC...")
			if err != nil {
				return err
			}

			cfg.Keyword, err = prompt.New().Ask("Keyword:").Input("")
			if err != nil {
				return err
			}
			if cfg.Keyword == "" {
				cfg.Strategies.KeywordVideo.Enabled = false
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.Write(path); err != nil {
				return err
			}

			log.WithField("path", path).Info("Wrote configuration")
			return nil
		},
	}
}
