package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"smwall/models"
)

// Maximum size of an error body we are willing to read for diagnostics
const maxErrorBodyBytes = 64 * 1024

type ClientConfig struct {
	APIKey     string
	APIBaseURL string
	HTTPClient *http.Client
}

// Client queries the YouTube Data API search endpoint. It holds no state
// besides its configuration and never retries.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(config ClientConfig) *Client {
	baseURL := config.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		apiKey:  config.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Id struct {
		VideoId string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		PublishedAt  time.Time `json:"publishedAt"`
		ChannelId    string    `json:"channelId"`
		Title        string    `json:"title"`
		Description  string    `json:"description"`
		ChannelTitle string    `json:"channelTitle"`
		Thumbnails   map[string]struct {
			Url string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch runs one search request for params and returns the items in the
// order the API returned them, without avatars.
func (c *Client) Fetch(ctx context.Context, params SearchParams) ([]models.FeedItem, error) {
	endpoint := c.baseURL + "/search?" + params.query(c.apiKey).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	log.WithFields(log.Fields{
		"strategy":   params.Strategy,
		"channel_id": params.ChannelId,
		"keyword":    params.Keyword,
		"maxResults": params.PageSize,
	}).Debug("Querying YouTube search API")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, describeError(resp))
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrFetchFailed, err)
	}

	items := make([]models.FeedItem, 0, len(body.Items))
	for _, raw := range body.Items {
		// Channels and playlists carry no video id
		if raw.Id.VideoId == "" {
			continue
		}
		items = append(items, toFeedItem(raw, params.Strategy))
	}

	return items, nil
}

func toFeedItem(raw searchItem, strategy models.Strategy) models.FeedItem {
	var thumbnail string
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := raw.Snippet.Thumbnails[size]; ok && t.Url != "" {
			thumbnail = t.Url
			break
		}
	}

	return models.FeedItem{
		Id:             raw.Id.VideoId,
		Title:          raw.Snippet.Title,
		Description:    raw.Snippet.Description,
		PublishedAt:    raw.Snippet.PublishedAt,
		ChannelId:      raw.Snippet.ChannelId,
		ChannelTitle:   raw.Snippet.ChannelTitle,
		ThumbnailUrl:   thumbnail,
		Url:            WatchURL(raw.Id.VideoId),
		EmbedUrl:       EmbedURL(raw.Id.VideoId),
		SourceStrategy: strategy,
	}
}

// describeError turns a non-2xx response into a readable message, preferring
// the API error envelope when present
func describeError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var envelope apiError
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, envelope.Error.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
