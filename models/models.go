package models

import (
	"fmt"
	"time"
)

// Strategy identifies one configured way of querying the video platform
type Strategy string

const (
	StrategyShorts       Strategy = "shorts"
	StrategyKeywordVideo Strategy = "keyword_video"
	StrategyChannelVideo Strategy = "channel_video"
)

// Strategies lists every known strategy in a stable order
var Strategies = []Strategy{StrategyShorts, StrategyKeywordVideo, StrategyChannelVideo}

func ParseStrategy(s string) (Strategy, error) {
	for _, strategy := range Strategies {
		if string(strategy) == s {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

func (s Strategy) String() string {
	return string(s)
}

// FeedItem is a single video fetched from the platform. AvatarUrl is empty
// until the item has been enriched.
type FeedItem struct {
	Id             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	PublishedAt    time.Time `json:"publishedAt"`
	ChannelId      string    `json:"channelId"`
	ChannelTitle   string    `json:"channelTitle,omitempty"`
	ThumbnailUrl   string    `json:"thumbnailUrl,omitempty"`
	AvatarUrl      string    `json:"avatarUrl,omitempty"`
	Url            string    `json:"url"`
	EmbedUrl       string    `json:"embedUrl"`
	SourceStrategy Strategy  `json:"sourceStrategy"`
}

// MediaBatch is the message pushed to subscribers for one published batch
type MediaBatch struct {
	Strategy    Strategy   `json:"strategy"`
	Items       []FeedItem `json:"items"`
	PublishedAt time.Time  `json:"publishedAt"`
}

// WallStatus summarizes the running process for the status endpoint
type WallStatus struct {
	Subscribers       int        `json:"subscribers"`
	SeenItems         int        `json:"seenItems"`
	CachedAvatars     int        `json:"cachedAvatars"`
	EnabledStrategies []Strategy `json:"enabledStrategies"`
}
