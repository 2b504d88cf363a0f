package youtube

import "errors"

var (
	// ErrFetchFailed is returned when the search API call or its decoding fails
	ErrFetchFailed = errors.New("youtube fetch failed")

	// ErrAvatarExtractionFailed is returned when a channel avatar could not be scraped
	ErrAvatarExtractionFailed = errors.New("profile picture extraction failed")
)
