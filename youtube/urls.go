package youtube

import "strings"

const (
	DefaultAPIBaseURL     = "https://www.googleapis.com/youtube/v3"
	DefaultChannelBaseURL = "https://www.youtube.com/channel"

	watchURL = "https://www.youtube.com/watch?v="
	embedURL = "https://www.youtube.com/embed/"
)

func WatchURL(videoId string) string {
	return watchURL + videoId
}

func EmbedURL(videoId string) string {
	return embedURL + videoId
}

// ChannelURL returns the public page of a channel below base
func ChannelURL(base, channelId string) string {
	return strings.TrimSuffix(base, "/") + "/" + channelId
}
