package models

import "time"

// Auth policy types for a channel. Exactly one is active at a time.
const (
	AuthNone  = "none"
	AuthBasic = "basic"
	AuthToken = "token"
)

// Channel is a tracked YouTube channel mapped to one podcast feed.
type Channel struct {
	ID               int64     `json:"id"`
	YoutubeChannelID string    `json:"youtubeChannelId"`
	Name             string    `json:"name"`
	URL              string    `json:"url"`
	AddedAt          time.Time `json:"addedAt"`

	AuthType         string `json:"authType"`
	AuthUsername     string `json:"authUsername,omitempty"`
	AuthPasswordHash string `json:"-"`
	SecretToken      string `json:"secretToken,omitempty"`
}

// Episode is one video from a channel. An episode with an empty AudioPath
// is pending; once the artifact exists locally it is published.
type Episode struct {
	ID           int64     `json:"id"`
	ChannelID    int64     `json:"channelId"`
	VideoID      string    `json:"videoId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Duration     int64     `json:"duration"`
	PublishedAt  time.Time `json:"publishedAt"`
	AudioPath    string    `json:"audioPath,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

// Published reports whether the episode has a local audio artifact.
func (e Episode) Published() bool {
	return e.AudioPath != ""
}

// RemoteVideo is one entry from a channel's remote upload listing.
type RemoteVideo struct {
	VideoID      string
	Title        string
	Description  string
	Duration     int64
	PublishedAt  time.Time
	ThumbnailURL string
}

// AccessPolicy is the requested per-channel authorization policy.
// Password is plaintext on the way in only; the store persists a hash.
type AccessPolicy struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// RunSummary accumulates the outcome of a single refresh run.
type RunSummary struct {
	ChannelID   int64  `json:"channelId"`
	ChannelName string `json:"channelName"`
	New         int    `json:"new"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	// ListingError is set when the remote listing itself could not be
	// fetched, in which case no items were processed.
	ListingError string `json:"listingError,omitempty"`
}
