package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"smwall/cache"
)

// MaxChannelPageBytes caps how much channel page HTML is read into memory
const MaxChannelPageBytes = 16 * 1024 * 1024

// avatarPattern matches the channel avatar advertised in the page metadata
var avatarPattern = regexp.MustCompile(`<meta\s+property="og:image"\s+content="([^"]+)"`)

type ProfileResolverConfig struct {
	ChannelBaseURL string
	HTTPClient     *http.Client
}

// ProfileResolver maps channel ids to avatar URLs by scraping the public
// channel page. Successful lookups are served from the profile cache.
type ProfileResolver struct {
	baseURL string
	http    *http.Client
	cache   *cache.Profiles
}

func NewProfileResolver(config ProfileResolverConfig, profiles *cache.Profiles) *ProfileResolver {
	baseURL := config.ChannelBaseURL
	if baseURL == "" {
		baseURL = DefaultChannelBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &ProfileResolver{
		baseURL: baseURL,
		http:    httpClient,
		cache:   profiles,
	}
}

func (r *ProfileResolver) ResolveAvatar(ctx context.Context, channelId string) (string, error) {
	if channelId == "" {
		return "", fmt.Errorf("%w: empty channel id", ErrAvatarExtractionFailed)
	}

	return r.cache.GetOrCompute(ctx, channelId, func(ctx context.Context) (string, error) {
		return r.scrape(ctx, channelId)
	})
}

func (r *ProfileResolver) scrape(ctx context.Context, channelId string) (string, error) {
	url := ChannelURL(r.baseURL, channelId)

	log.WithFields(log.Fields{
		"channel_id": channelId,
		"url":        url,
	}).Info("Getting channel profile picture")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrAvatarExtractionFailed, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAvatarExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: channel page returned status %d", ErrAvatarExtractionFailed, resp.StatusCode)
	}

	html, err := readLimited(resp.Body, MaxChannelPageBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAvatarExtractionFailed, err)
	}

	match := avatarPattern.FindSubmatch(html)
	if match == nil {
		return "", fmt.Errorf("%w: no avatar found for channel %s", ErrAvatarExtractionFailed, channelId)
	}

	return string(match[1]), nil
}

var errPageTooLarge = errors.New("channel page exceeds size limit")

// readLimited reads at most limit bytes and fails if the body is longer
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read channel page: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errPageTooLarge
	}
	return data, nil
}
