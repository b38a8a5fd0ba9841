package youtube

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"vidcast/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/lrstanley/go-ytdlp"
	log "github.com/sirupsen/logrus"
)

// channelIDPattern matches bare YouTube channel ids like UCabc...
var channelIDPattern = regexp.MustCompile(`^UC[\w-]{22}$`)

// Client lists channel uploads and video metadata via yt-dlp.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

// NormalizeChannelURL turns the accepted input forms (UC… id, @handle,
// bare handle, full URL) into a canonical channel URL.
func NormalizeChannelURL(urlOrID string) string {
	input := strings.TrimSpace(urlOrID)
	switch {
	case channelIDPattern.MatchString(input):
		return "https://www.youtube.com/channel/" + input
	case strings.HasPrefix(input, "@"):
		return "https://www.youtube.com/" + input
	case !strings.HasPrefix(input, "http"):
		return "https://www.youtube.com/@" + input
	default:
		return input
	}
}

// ResolveChannel resolves any accepted channel reference to its stable
// channel id and display name.
func (c *Client) ResolveChannel(ctx context.Context, urlOrID string) (string, string, error) {
	url := NormalizeChannelURL(urlOrID)

	info, err := c.extract(ctx, func(cmd *ytdlp.Command) *ytdlp.Command {
		return cmd.FlatPlaylist()
	}, url)
	if err != nil {
		return "", "", fmt.Errorf("%w: resolve %s: %v", models.ErrValidation, urlOrID, err)
	}

	channelID := stringValue(info.ChannelID)
	if channelID == "" {
		channelID = info.ID
	}
	if channelID == "" {
		return "", "", fmt.Errorf("%w: no channel id for %s", models.ErrValidation, urlOrID)
	}

	name := stringValue(info.Channel)
	if name == "" {
		name = stringValue(info.Uploader)
	}
	if name == "" {
		name = stringValue(info.Title)
	}

	return channelID, name, nil
}

// ListUploads fetches up to limit most recent uploads for a channel,
// newest first. Flat extraction keeps this cheap; full metadata is
// fetched per video only for items the catalog has not seen.
func (c *Client) ListUploads(ctx context.Context, channelID string, limit int) ([]models.RemoteVideo, error) {
	url := fmt.Sprintf("https://www.youtube.com/channel/%s/videos", channelID)

	info, err := c.extract(ctx, func(cmd *ytdlp.Command) *ytdlp.Command {
		return cmd.FlatPlaylist().PlaylistEnd(limit)
	}, url)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", models.ErrTransientSource, channelID, err)
	}

	videos := make([]models.RemoteVideo, 0, limit)
	for _, entry := range info.Entries {
		if entry == nil || entry.ID == "" {
			continue
		}
		videos = append(videos, models.RemoteVideo{
			VideoID: entry.ID,
			Title:   stringValue(entry.Title),
		})
		if len(videos) == limit {
			break
		}
	}

	log.WithFields(log.Fields{
		"channel": channelID,
		"count":   len(videos),
	}).Info("Fetched upload listing")

	return videos, nil
}

// VideoMetadata fetches the full descriptor for one video.
func (c *Client) VideoMetadata(ctx context.Context, videoID string) (models.RemoteVideo, error) {
	url := "https://www.youtube.com/watch?v=" + videoID

	info, err := c.extract(ctx, func(cmd *ytdlp.Command) *ytdlp.Command {
		return cmd
	}, url)
	if err != nil {
		return models.RemoteVideo{}, fmt.Errorf("%w: metadata %s: %v", models.ErrTransientSource, videoID, err)
	}

	video := models.RemoteVideo{
		VideoID:      videoID,
		Title:        stringValue(info.Title),
		Description:  stringValue(info.Description),
		ThumbnailURL: stringValue(info.Thumbnail),
	}
	if video.Title == "" {
		video.Title = "Untitled"
	}
	if info.Duration != nil {
		video.Duration = int64(*info.Duration)
	}
	if info.Timestamp != nil {
		video.PublishedAt = time.Unix(int64(*info.Timestamp), 0).UTC()
	} else if date := stringValue(info.UploadDate); date != "" {
		if parsed, err := time.Parse("20060102", date); err == nil {
			video.PublishedAt = parsed
		}
	}

	return video, nil
}

// extract runs a metadata-only yt-dlp invocation with bounded retries on
// transient failures.
func (c *Client) extract(ctx context.Context, configure func(*ytdlp.Command) *ytdlp.Command, url string) (*ytdlp.ExtractedInfo, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = time.Minute

	var info *ytdlp.ExtractedInfo
	operation := func() error {
		cmd := configure(ytdlp.New().
			Quiet().
			NoWarnings().
			SkipDownload().
			DumpSingleJSON())

		result, err := cmd.Run(ctx, url)
		if err != nil {
			return err
		}

		extracted, err := result.GetExtractedInfo()
		if err != nil {
			return err
		}
		if len(extracted) == 0 {
			return backoff.Permanent(fmt.Errorf("no metadata for %s", url))
		}

		info = extracted[0]
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return info, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
