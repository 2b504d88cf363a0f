package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// WarmAvatar resolves the avatar of channelId ahead of the first cycle,
// retrying with exponential backoff until maxElapsed has passed. A failure
// here is not fatal: cycles resolve on demand.
func WarmAvatar(ctx context.Context, avatars AvatarResolver, channelId string, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.Multiplier = 1.5
	b.MaxElapsedTime = maxElapsed

	return backoff.RetryNotify(func() error {
		_, err := avatars.ResolveAvatar(ctx, channelId)
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.WithFields(log.Fields{
			"channel_id": channelId,
			"retry_in":   next,
		}).Warnf("Warming channel avatar failed: %v", err)
	})
}
