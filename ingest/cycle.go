package ingest

import (
	"context"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"smwall/models"
	"smwall/youtube"
)

// Fetcher runs one search query against the video platform
type Fetcher interface {
	Fetch(ctx context.Context, params youtube.SearchParams) ([]models.FeedItem, error)
}

// AvatarResolver maps a channel id to its avatar URL
type AvatarResolver interface {
	ResolveAvatar(ctx context.Context, channelId string) (string, error)
}

// Marker reports whether an item id is seen for the first time
type Marker interface {
	MarkIfNew(id string) bool
}

// Publisher delivers a batch to whoever is listening
type Publisher interface {
	Publish(batch models.MediaBatch)
}

// Cycle is the fetch, filter, enrich and publish pipeline of one strategy
type Cycle struct {
	params    youtube.SearchParams
	feed      Fetcher
	seen      Marker
	avatars   AvatarResolver
	publisher Publisher
}

func NewCycle(params youtube.SearchParams, feed Fetcher, seen Marker, avatars AvatarResolver, publisher Publisher) *Cycle {
	return &Cycle{
		params:    params,
		feed:      feed,
		seen:      seen,
		avatars:   avatars,
		publisher: publisher,
	}
}

func (c *Cycle) Strategy() models.Strategy {
	return c.params.Strategy
}

// Run executes the pipeline once. Failures end this invocation only and are
// logged; the next scheduled run is the retry.
func (c *Cycle) Run(ctx context.Context) {
	start := time.Now()
	outcome := c.run(ctx)

	strategy := c.params.Strategy.String()
	cycleRuns.WithLabelValues(strategy, outcome).Inc()
	cycleDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

func (c *Cycle) run(ctx context.Context) string {
	logger := log.WithFields(log.Fields{
		"strategy":   c.params.Strategy,
		"channel_id": c.params.ChannelId,
	})
	logger.Info("Start getting youtube media")

	items, err := c.feed.Fetch(ctx, c.params)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch youtube media")
		return outcomeFetchFailed
	}
	if len(items) == 0 {
		logger.Debug("No youtube media fetched")
		return outcomeEmpty
	}

	// Shorts all belong to the configured channel, so the avatar is resolved
	// once for the whole batch and a failure aborts the cycle before any item
	// is marked as seen.
	var batchAvatar string
	if c.resolvesPerBatch() {
		avatar, err := c.avatars.ResolveAvatar(ctx, c.params.ChannelId)
		if err != nil {
			avatarFailures.WithLabelValues(c.params.Strategy.String()).Inc()
			logger.WithError(err).Error("Failed to resolve channel avatar, skipping cycle")
			return outcomeAvatarFailed
		}
		batchAvatar = avatar
	}

	fresh := lo.Filter(items, func(item models.FeedItem, _ int) bool {
		return c.seen.MarkIfNew(item.Id)
	})
	itemsDuplicate.WithLabelValues(c.params.Strategy.String()).Add(float64(len(items) - len(fresh)))

	batch := c.enrich(ctx, logger, fresh, batchAvatar)
	if len(batch) == 0 {
		logger.WithField("fetched", len(items)).Debug("No new youtube media")
		return outcomeEmpty
	}

	logger.WithField("count", len(batch)).Info("Broadcasting new fetched youtube media")
	c.publisher.Publish(models.MediaBatch{
		Strategy:    c.params.Strategy,
		Items:       batch,
		PublishedAt: time.Now().UTC(),
	})
	itemsPublished.WithLabelValues(c.params.Strategy.String()).Add(float64(len(batch)))

	return outcomePublished
}

// enrich attaches avatars in fetch order. Items whose avatar cannot be
// resolved are dropped rather than broadcast without one.
func (c *Cycle) enrich(ctx context.Context, logger *log.Entry, items []models.FeedItem, batchAvatar string) []models.FeedItem {
	batch := make([]models.FeedItem, 0, len(items))
	for _, item := range items {
		if c.resolvesPerBatch() {
			item.AvatarUrl = batchAvatar
			batch = append(batch, item)
			continue
		}

		avatar, err := c.avatars.ResolveAvatar(ctx, item.ChannelId)
		if err != nil {
			avatarFailures.WithLabelValues(c.params.Strategy.String()).Inc()
			logger.WithError(err).WithFields(log.Fields{
				"video_id":        item.Id,
				"item_channel_id": item.ChannelId,
			}).Warn("Dropping item without avatar")
			continue
		}
		item.AvatarUrl = avatar
		batch = append(batch, item)
	}
	return batch
}

func (c *Cycle) resolvesPerBatch() bool {
	return c.params.Strategy == models.StrategyShorts
}
