package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"smwall/cache"
	"smwall/ingest"
	"smwall/models"
	"smwall/youtube"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	items []models.FeedItem
	err   error
	calls atomic.Int32
}

func (f *fakeFeed) Fetch(ctx context.Context, params youtube.SearchParams) ([]models.FeedItem, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	items := make([]models.FeedItem, len(f.items))
	for i, item := range f.items {
		item.SourceStrategy = params.Strategy
		items[i] = item
	}
	return items, nil
}

type fakeAvatars struct {
	avatars map[string]string
	calls   atomic.Int32
}

func (f *fakeAvatars) ResolveAvatar(ctx context.Context, channelId string) (string, error) {
	f.calls.Add(1)
	if url, ok := f.avatars[channelId]; ok {
		return url, nil
	}
	return "", fmt.Errorf("%w: %s", youtube.ErrAvatarExtractionFailed, channelId)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches []models.MediaBatch
}

func (p *recordingPublisher) Publish(batch models.MediaBatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
}

func (p *recordingPublisher) published() []models.MediaBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MediaBatch(nil), p.batches...)
}

func ids(items []models.FeedItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Id
	}
	return out
}

func TestShortsCyclePublishesEnrichedBatch(t *testing.T) {
	feed := &fakeFeed{items: []models.FeedItem{
		{Id: "v1", ChannelId: "c1"},
		{Id: "v2", ChannelId: "c1"},
	}}
	avatars := &fakeAvatars{avatars: map[string]string{"c1": "http://avatar/c1"}}
	publisher := &recordingPublisher{}

	cycle := ingest.NewCycle(youtube.ShortsParams("c1", 10), feed, cache.NewDedup(), avatars, publisher)
	cycle.Run(context.Background())

	batches := publisher.published()
	require.Len(t, batches, 1)
	assert.Equal(t, models.StrategyShorts, batches[0].Strategy)
	assert.Equal(t, []string{"v1", "v2"}, ids(batches[0].Items))
	for _, item := range batches[0].Items {
		assert.Equal(t, "http://avatar/c1", item.AvatarUrl)
	}
	assert.Equal(t, int32(1), avatars.calls.Load())
}

func TestOverlappingStrategiesPublishEachItemOnce(t *testing.T) {
	dedup := cache.NewDedup()
	avatars := &fakeAvatars{avatars: map[string]string{"c1": "http://avatar/c1"}}
	publisher := &recordingPublisher{}

	shorts := ingest.NewCycle(youtube.ShortsParams("c1", 10),
		&fakeFeed{items: []models.FeedItem{{Id: "v1", ChannelId: "c1"}, {Id: "s2", ChannelId: "c1"}}},
		dedup, avatars, publisher)
	videos := ingest.NewCycle(youtube.ChannelVideoParams("c1", 10),
		&fakeFeed{items: []models.FeedItem{{Id: "v1", ChannelId: "c1"}, {Id: "v3", ChannelId: "c1"}}},
		dedup, avatars, publisher)

	var wg sync.WaitGroup
	for _, cycle := range []*ingest.Cycle{shorts, videos, shorts, videos} {
		wg.Add(1)
		go func(c *ingest.Cycle) {
			defer wg.Done()
			c.Run(context.Background())
		}(cycle)
	}
	wg.Wait()

	counts := map[string]int{}
	for _, batch := range publisher.published() {
		for _, item := range batch.Items {
			counts[item.Id]++
		}
	}
	assert.Equal(t, map[string]int{"v1": 1, "s2": 1, "v3": 1}, counts)
}

func TestShortsCycleAvatarTimeoutPublishesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	profiles := cache.NewProfiles()
	resolver := youtube.NewProfileResolver(youtube.ProfileResolverConfig{
		ChannelBaseURL: srv.URL,
		HTTPClient:     &http.Client{Timeout: 50 * time.Millisecond},
	}, profiles)

	dedup := cache.NewDedup()
	feed := &fakeFeed{items: []models.FeedItem{{Id: "v1", ChannelId: "c1"}}}
	publisher := &recordingPublisher{}

	cycle := ingest.NewCycle(youtube.ShortsParams("c1", 10), feed, dedup, resolver, publisher)
	cycle.Run(context.Background())

	assert.Empty(t, publisher.published())
	assert.Equal(t, 0, profiles.Len())
	assert.Equal(t, 0, dedup.Len())
	assert.Equal(t, int32(1), feed.calls.Load())
}

func channelPage(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<meta property="og:image" content="http://avatar/c1">`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCycleWithoutPublish(t *testing.T) {
	fetchFailed := fmt.Errorf("%w: status 500", youtube.ErrFetchFailed)

	tests := []struct {
		name   string
		params youtube.SearchParams
		feed   *fakeFeed
	}{
		{
			name:   "keyword zero items",
			params: youtube.KeywordVideoParams("go", 10),
			feed:   &fakeFeed{},
		},
		{
			name:   "keyword fetch failure",
			params: youtube.KeywordVideoParams("go", 10),
			feed:   &fakeFeed{err: fetchFailed},
		},
		{
			name:   "shorts zero items",
			params: youtube.ShortsParams("c1", 10),
			feed:   &fakeFeed{},
		},
		{
			name:   "shorts fetch failure",
			params: youtube.ShortsParams("c1", 10),
			feed:   &fakeFeed{err: fetchFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := channelPage(t, &hits)

			profiles := cache.NewProfiles()
			resolver := youtube.NewProfileResolver(youtube.ProfileResolverConfig{
				ChannelBaseURL: srv.URL,
			}, profiles)
			dedup := cache.NewDedup()
			publisher := &recordingPublisher{}

			cycle := ingest.NewCycle(tt.params, tt.feed, dedup, resolver, publisher)
			assert.NotPanics(t, func() { cycle.Run(context.Background()) })

			assert.Empty(t, publisher.published())
			assert.Equal(t, 0, dedup.Len())
			assert.Equal(t, 0, profiles.Len())
			assert.Equal(t, int32(0), hits.Load())
			assert.Equal(t, int32(1), tt.feed.calls.Load())
		})
	}
}

func TestShortsCycleResolvesAvatarAfterFetch(t *testing.T) {
	var hits atomic.Int32
	srv := channelPage(t, &hits)

	profiles := cache.NewProfiles()
	resolver := youtube.NewProfileResolver(youtube.ProfileResolverConfig{
		ChannelBaseURL: srv.URL,
	}, profiles)
	publisher := &recordingPublisher{}

	feed := &fakeFeed{items: []models.FeedItem{{Id: "v1", ChannelId: "c1"}}}
	cycle := ingest.NewCycle(youtube.ShortsParams("c1", 10), feed, cache.NewDedup(), resolver, publisher)
	cycle.Run(context.Background())
	cycle.Run(context.Background())

	batches := publisher.published()
	require.Len(t, batches, 1)
	assert.Equal(t, "http://avatar/c1", batches[0].Items[0].AvatarUrl)
	assert.Equal(t, 1, profiles.Len())
	assert.Equal(t, int32(1), hits.Load())
}

func TestKeywordCycleDropsItemsWithoutAvatar(t *testing.T) {
	feed := &fakeFeed{items: []models.FeedItem{
		{Id: "v1", ChannelId: "c1"},
		{Id: "v2", ChannelId: "broken"},
		{Id: "v3", ChannelId: "c3"},
	}}
	avatars := &fakeAvatars{avatars: map[string]string{
		"c1": "http://avatar/c1",
		"c3": "http://avatar/c3",
	}}
	publisher := &recordingPublisher{}

	cycle := ingest.NewCycle(youtube.KeywordVideoParams("go", 10), feed, cache.NewDedup(), avatars, publisher)
	cycle.Run(context.Background())

	batches := publisher.published()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"v1", "v3"}, ids(batches[0].Items))
	assert.Equal(t, "http://avatar/c1", batches[0].Items[0].AvatarUrl)
	assert.Equal(t, "http://avatar/c3", batches[0].Items[1].AvatarUrl)
}

func TestDroppedItemLogsError(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	feed := &fakeFeed{items: []models.FeedItem{{Id: "v1", ChannelId: "broken"}}}
	cycle := ingest.NewCycle(youtube.KeywordVideoParams("go", 10), feed, cache.NewDedup(),
		&fakeAvatars{}, &recordingPublisher{})
	cycle.Run(context.Background())

	var dropped *log.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Dropping item without avatar" {
			dropped = entry
		}
	}
	require.NotNil(t, dropped)
	assert.Equal(t, log.WarnLevel, dropped.Level)
	assert.Equal(t, "v1", dropped.Data["video_id"])

	err, ok := dropped.Data[log.ErrorKey].(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, youtube.ErrAvatarExtractionFailed)
}

func TestRepeatedCycleSkipsSeenItems(t *testing.T) {
	feed := &fakeFeed{items: []models.FeedItem{{Id: "v1", ChannelId: "c1"}}}
	avatars := &fakeAvatars{avatars: map[string]string{"c1": "http://avatar/c1"}}
	publisher := &recordingPublisher{}

	cycle := ingest.NewCycle(youtube.ChannelVideoParams("c1", 10), feed, cache.NewDedup(), avatars, publisher)
	cycle.Run(context.Background())

	feed.items = append(feed.items, models.FeedItem{Id: "v2", ChannelId: "c1"})
	cycle.Run(context.Background())

	batches := publisher.published()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"v1"}, ids(batches[0].Items))
	assert.Equal(t, []string{"v2"}, ids(batches[1].Items))
}

type flakyAvatars struct {
	failures int
	calls    int
}

func (f *flakyAvatars) ResolveAvatar(ctx context.Context, channelId string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("temporary")
	}
	return "http://avatar/" + channelId, nil
}

func TestWarmAvatarRetries(t *testing.T) {
	avatars := &flakyAvatars{failures: 2}
	err := ingest.WarmAvatar(context.Background(), avatars, "c1", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, avatars.calls)
}

func TestWarmAvatarStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	avatars := &flakyAvatars{failures: 100}
	err := ingest.WarmAvatar(ctx, avatars, "c1", time.Minute)
	assert.Error(t, err)
	assert.Less(t, avatars.calls, 100)
}
