package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"smwall/models"
)

func pollCmd() *cli.Command {
	return &cli.Command{
		Name:  "poll",
		Usage: "Run a single ingestion cycle and print new videos",
		Description: `Runs one ingestion cycle of the given strategy and prints every
published video as a JSON string on a single line to stdout.

Prints all other log messages to stderr.`,
		Flags: append(configFlags(),
			&cli.StringFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Strategy to run (shorts, keyword_video or channel_video)",
				Required: true,
			},
		),
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the videos
			log.SetOutput(os.Stderr)

			strategy, err := models.ParseStrategy(ctx.String("strategy"))
			if err != nil {
				return err
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			cfg.EnableOnly(strategy)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			p := newPipeline(cfg)
			cycle, err := p.cycle(strategy, &stdoutPublisher{out: ctx.App.Writer})
			if err != nil {
				return err
			}
			cycle.Run(ctx.Context)
			return nil
		},
	}
}

// stdoutPublisher prints every item of a batch as one JSON line
type stdoutPublisher struct {
	out io.Writer
}

func (s *stdoutPublisher) Publish(batch models.MediaBatch) {
	for _, item := range batch.Items {
		itemJson, err := json.Marshal(item)
		if err != nil {
			log.Errorf("Could not marshal video %s: %v", item.Id, err)
			continue
		}
		fmt.Fprintln(s.out, string(itemJson))
	}
}
