package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"smwall/models"
)

// The search API refuses larger pages
const maxResultsLimit = 50

// TomlStrategy configures the polling of one strategy
type TomlStrategy struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
	MaxResults      int  `toml:"max_results"`
}

func (s TomlStrategy) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// TomlStrategies holds one entry per known strategy
type TomlStrategies struct {
	Shorts       TomlStrategy `toml:"shorts"`
	KeywordVideo TomlStrategy `toml:"keyword_video"`
	ChannelVideo TomlStrategy `toml:"channel_video"`
}

// TomlServer configures the subscriber facing listeners
type TomlServer struct {
	Listen       string `toml:"listen"`
	WsListen     string `toml:"ws_listen"`
	AllowOrigins string `toml:"allow_origins"`
}

type TomlScheduler struct {
	GracePeriodSeconds int  `toml:"grace_period_seconds"`
	RunOnStart         bool `toml:"run_on_start"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	ApiKey             string         `toml:"api_key"`
	ChannelId          string         `toml:"channel_id"`
	Keyword            string         `toml:"keyword"`
	ApiBaseUrl         string         `toml:"api_base_url,omitempty"`
	ChannelBaseUrl     string         `toml:"channel_base_url,omitempty"`
	HttpTimeoutSeconds int            `toml:"http_timeout_seconds"`
	Server             TomlServer     `toml:"server"`
	Scheduler          TomlScheduler  `toml:"scheduler"`
	Strategies         TomlStrategies `toml:"strategies"`
}

// Default returns the configuration used for every value a file leaves out
func Default() *TomlConfig {
	strategy := TomlStrategy{Enabled: true, IntervalSeconds: 60, MaxResults: 10}
	return &TomlConfig{
		HttpTimeoutSeconds: 10,
		Server: TomlServer{
			Listen:       ":3000",
			WsListen:     ":3001",
			AllowOrigins: "*",
		},
		Scheduler: TomlScheduler{
			GracePeriodSeconds: 30,
		},
		Strategies: TomlStrategies{
			Shorts:       strategy,
			KeywordVideo: strategy,
			ChannelVideo: strategy,
		},
	}
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// Write stores the configuration as TOML at path
func (c *TomlConfig) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

func (c *TomlConfig) Strategy(s models.Strategy) TomlStrategy {
	switch s {
	case models.StrategyShorts:
		return c.Strategies.Shorts
	case models.StrategyKeywordVideo:
		return c.Strategies.KeywordVideo
	case models.StrategyChannelVideo:
		return c.Strategies.ChannelVideo
	}
	return TomlStrategy{}
}

// EnableOnly disables every strategy but s
func (c *TomlConfig) EnableOnly(s models.Strategy) {
	c.Strategies.Shorts.Enabled = s == models.StrategyShorts
	c.Strategies.KeywordVideo.Enabled = s == models.StrategyKeywordVideo
	c.Strategies.ChannelVideo.Enabled = s == models.StrategyChannelVideo
}

func (c *TomlConfig) EnabledStrategies() []models.Strategy {
	var enabled []models.Strategy
	for _, s := range models.Strategies {
		if c.Strategy(s).Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

func (c *TomlConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HttpTimeoutSeconds) * time.Second
}

func (c *TomlConfig) GracePeriod() time.Duration {
	return time.Duration(c.Scheduler.GracePeriodSeconds) * time.Second
}

// Validate reports every problem that would keep the configured strategies
// from running
func (c *TomlConfig) Validate() error {
	var errs []error

	if c.ApiKey == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if c.HttpTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http_timeout_seconds must be positive"))
	}

	enabled := c.EnabledStrategies()
	if len(enabled) == 0 {
		errs = append(errs, errors.New("at least one strategy must be enabled"))
	}

	for _, s := range enabled {
		strategy := c.Strategy(s)
		if strategy.IntervalSeconds <= 0 {
			errs = append(errs, fmt.Errorf("strategies.%s.interval_seconds must be positive", s))
		}
		if strategy.MaxResults < 1 || strategy.MaxResults > maxResultsLimit {
			errs = append(errs, fmt.Errorf("strategies.%s.max_results must be between 1 and %d", s, maxResultsLimit))
		}

		switch s {
		case models.StrategyShorts, models.StrategyChannelVideo:
			if c.ChannelId == "" {
				errs = append(errs, fmt.Errorf("channel_id is required by strategy %s", s))
			}
		case models.StrategyKeywordVideo:
			if c.Keyword == "" {
				errs = append(errs, fmt.Errorf("keyword is required by strategy %s", s))
			}
		}
	}

	return errors.Join(errs...)
}
