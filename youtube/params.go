package youtube

import (
	"net/url"
	"strconv"

	"smwall/models"
)

const (
	OrderDate      = "date"
	ResultVideo    = "video"
	DurationShort  = "short"
	DefaultResults = 10
)

// SearchParams describes one query strategy against the search endpoint.
// Values are built once per strategy and never modified.
type SearchParams struct {
	Strategy      models.Strategy
	Keyword       string
	ChannelId     string
	PageSize      int
	Ordering      string
	ResultType    string
	VideoDuration string
}

// ShortsParams queries the most recent short videos of a channel
func ShortsParams(channelId string, pageSize int) SearchParams {
	return SearchParams{
		Strategy:      models.StrategyShorts,
		ChannelId:     channelId,
		PageSize:      pageSize,
		Ordering:      OrderDate,
		ResultType:    ResultVideo,
		VideoDuration: DurationShort,
	}
}

// KeywordVideoParams queries the most recent videos matching a keyword
func KeywordVideoParams(keyword string, pageSize int) SearchParams {
	return SearchParams{
		Strategy:   models.StrategyKeywordVideo,
		Keyword:    keyword,
		PageSize:   pageSize,
		Ordering:   OrderDate,
		ResultType: ResultVideo,
	}
}

// ChannelVideoParams queries the most recent videos of a channel
func ChannelVideoParams(channelId string, pageSize int) SearchParams {
	return SearchParams{
		Strategy:   models.StrategyChannelVideo,
		ChannelId:  channelId,
		PageSize:   pageSize,
		Ordering:   OrderDate,
		ResultType: ResultVideo,
	}
}

// query encodes the params as search endpoint query parameters
func (p SearchParams) query(apiKey string) url.Values {
	q := url.Values{}
	q.Set("part", "snippet")
	if p.ChannelId != "" {
		q.Set("channelId", p.ChannelId)
	}
	if p.Keyword != "" {
		q.Set("q", p.Keyword)
	}
	if p.ResultType != "" {
		q.Set("type", p.ResultType)
	}
	if p.Ordering != "" {
		q.Set("order", p.Ordering)
	}
	if p.VideoDuration != "" {
		q.Set("videoDuration", p.VideoDuration)
	}

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultResults
	}
	q.Set("maxResults", strconv.Itoa(pageSize))
	q.Set("key", apiKey)
	return q
}
