package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "smwall",
		Usage: "A live YouTube feed for the social media wall",
		Description: `Polls the YouTube Data API for a channel's latest shorts and videos
		and for videos matching a keyword, enriches every new video with its
		channel avatar and pushes it to the wall over SSE and WebSocket.

		Each video is broadcast at most once per process lifetime.

		Flags can generally be set via environment variables, e.g.:

		--api-key => SMWALL_API_KEY=...
		--listen => SMWALL_LISTEN=:3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"SMWALL_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text or json)",
				EnvVars: []string{"SMWALL_LOG_FORMAT"},
			},
		},
		Before: configureLogging,
		Commands: []*cli.Command{
			serveCmd(),
			pollCmd(),
			avatarCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configureLogging(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch ctx.String("log-format") {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", ctx.String("log-format"))
	}
	return nil
}
