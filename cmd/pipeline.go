package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"smwall/cache"
	"smwall/config"
	"smwall/ingest"
	"smwall/models"
	"smwall/youtube"
)

// configFlags are shared by every command that talks to YouTube
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "smwall.toml",
			Usage:   "Path to the TOML configuration file",
			EnvVars: []string{"SMWALL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "YouTube Data API key, overrides api_key",
			EnvVars: []string{"SMWALL_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "channel-id",
			Usage:   "YouTube channel id, overrides channel_id",
			EnvVars: []string{"SMWALL_CHANNEL_ID"},
		},
		&cli.StringFlag{
			Name:    "keyword",
			Usage:   "Search keyword, overrides keyword",
			EnvVars: []string{"SMWALL_KEYWORD"},
		},
	}
}

// loadConfig reads the configuration file and applies flag overrides. A
// missing file falls back to defaults unless its path was given explicitly.
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	path := ctx.String("config")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) || ctx.IsSet("config") {
			return nil, err
		}
		cfg = config.Default()
	}

	if ctx.IsSet("api-key") {
		cfg.ApiKey = ctx.String("api-key")
	}
	if ctx.IsSet("channel-id") {
		cfg.ChannelId = ctx.String("channel-id")
	}
	if ctx.IsSet("keyword") {
		cfg.Keyword = ctx.String("keyword")
	}
	return cfg, nil
}

// pipeline holds the components shared by every ingestion cycle
type pipeline struct {
	cfg      *config.TomlConfig
	http     *http.Client
	seen     *cache.Dedup
	profiles *cache.Profiles
	feed     *youtube.Client
	resolver *youtube.ProfileResolver
}

func newPipeline(cfg *config.TomlConfig) *pipeline {
	// Commands that skip Validate still get a bounded client
	timeout := cfg.HTTPTimeout()
	if timeout <= 0 {
		timeout = config.Default().HTTPTimeout()
		log.WithField("timeout", timeout).Warn("http_timeout_seconds is not positive, using default")
	}
	httpClient := &http.Client{Timeout: timeout}
	profiles := cache.NewProfiles()

	return &pipeline{
		cfg:      cfg,
		http:     httpClient,
		seen:     cache.NewDedup(),
		profiles: profiles,
		feed: youtube.NewClient(youtube.ClientConfig{
			APIKey:     cfg.ApiKey,
			APIBaseURL: cfg.ApiBaseUrl,
			HTTPClient: httpClient,
		}),
		resolver: youtube.NewProfileResolver(youtube.ProfileResolverConfig{
			ChannelBaseURL: cfg.ChannelBaseUrl,
			HTTPClient:     httpClient,
		}, profiles),
	}
}

// searchParams builds the canonical query of a strategy
func (p *pipeline) searchParams(s models.Strategy) (youtube.SearchParams, error) {
	maxResults := p.cfg.Strategy(s).MaxResults
	switch s {
	case models.StrategyShorts:
		return youtube.ShortsParams(p.cfg.ChannelId, maxResults), nil
	case models.StrategyKeywordVideo:
		return youtube.KeywordVideoParams(p.cfg.Keyword, maxResults), nil
	case models.StrategyChannelVideo:
		return youtube.ChannelVideoParams(p.cfg.ChannelId, maxResults), nil
	}
	return youtube.SearchParams{}, fmt.Errorf("unknown strategy %q", s)
}

func (p *pipeline) cycle(s models.Strategy, publisher ingest.Publisher) (*ingest.Cycle, error) {
	params, err := p.searchParams(s)
	if err != nil {
		return nil, err
	}
	return ingest.NewCycle(params, p.feed, p.seen, p.resolver, publisher), nil
}

// needsChannelAvatar reports whether any enabled strategy resolves the
// configured channel's avatar
func (p *pipeline) needsChannelAvatar() bool {
	return p.cfg.Strategy(models.StrategyShorts).Enabled || p.cfg.Strategy(models.StrategyChannelVideo).Enabled
}
