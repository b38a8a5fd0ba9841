package feeds

import (
	"context"
	"fmt"
	"path/filepath"

	"vidcast/db"
	"vidcast/media"
	"vidcast/models"

	"github.com/eduncan911/podcast"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// maxDescriptionRunes caps episode descriptions in the rendered feed.
const maxDescriptionRunes = 4000

// Publisher renders channel catalogs as podcast RSS and resolves audio
// artifacts for authorized requests.
type Publisher struct {
	store       *db.Store
	baseURL     string
	audioFormat string
}

func NewPublisher(store *db.Store, baseURL, audioFormat string) *Publisher {
	return &Publisher{
		store:       store,
		baseURL:     baseURL,
		audioFormat: audioFormat,
	}
}

// FeedURL is the self link for a channel's feed. Token channels get the
// token-qualified form so clients carry the credential in the URL.
func (p *Publisher) FeedURL(channel models.Channel) string {
	if channel.AuthType == models.AuthToken && channel.SecretToken != "" {
		return fmt.Sprintf("%s/feed/t/%s", p.baseURL, channel.SecretToken)
	}
	return fmt.Sprintf("%s/feed/%d", p.baseURL, channel.ID)
}

func (p *Publisher) audioURL(channel models.Channel, filename string) string {
	if channel.AuthType == models.AuthToken && channel.SecretToken != "" {
		return fmt.Sprintf("%s/audio/t/%s/%s", p.baseURL, channel.SecretToken, filename)
	}
	return fmt.Sprintf("%s/audio/%s", p.baseURL, filename)
}

// RenderFeed renders the channel's published episodes as an RSS 2.0
// document with iTunes extensions, newest publish date first. Pending
// episodes and episodes whose artifact is missing on disk are omitted:
// the feed never references audio that cannot be served.
func (p *Publisher) RenderFeed(ctx context.Context, channelID int64) ([]byte, error) {
	channel, err := p.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	episodes, err := p.store.ListPublishedEpisodes(ctx, channel.ID)
	if err != nil {
		return nil, err
	}

	// The catalog filters on audio_path; double-check the files exist so
	// a manually removed artifact never produces a dead enclosure.
	episodes = lo.Filter(episodes, func(episode models.Episode, _ int) bool {
		if media.ArtifactSize(p.store.AudioDir(), episode.AudioPath) > 0 {
			return true
		}
		log.WithFields(log.Fields{
			"channel": channel.ID,
			"video":   episode.VideoID,
			"file":    episode.AudioPath,
		}).Warn("Artifact missing on disk, omitting from feed")
		return false
	})

	feed := podcast.New(
		channel.Name,
		channel.URL,
		fmt.Sprintf("Podcast feed for YouTube channel: %s", channel.Name),
		&channel.AddedAt,
		nil,
	)
	feed.Generator = "vidcast"
	feed.Language = "en"
	feed.AddAtomLink(p.FeedURL(channel))
	feed.AddAuthor(channel.Name, "noreply@example.com")
	feed.AddCategory("Technology", nil)
	feed.IExplicit = "no"
	feed.AddSummary(fmt.Sprintf("Audio from YouTube channel: %s", channel.Name))

	for _, episode := range episodes {
		item := podcast.Item{
			GUID:        episode.VideoID,
			Title:       episode.Title,
			Description: itemDescription(episode),
			Link:        "https://www.youtube.com/watch?v=" + episode.VideoID,
		}

		if !episode.PublishedAt.IsZero() {
			publishedAt := episode.PublishedAt
			item.AddPubDate(&publishedAt)
		}

		size := media.ArtifactSize(p.store.AudioDir(), episode.AudioPath)
		item.AddEnclosure(p.audioURL(channel, episode.AudioPath), enclosureType(p.audioFormat), size)
		item.AddDuration(episode.Duration)
		if episode.ThumbnailURL != "" {
			item.IImage = &podcast.IImage{HREF: episode.ThumbnailURL}
		}

		if _, err := feed.AddItem(item); err != nil {
			return nil, fmt.Errorf("add feed item %s: %w", episode.VideoID, err)
		}
	}

	return feed.Bytes(), nil
}

// ResolveAudio returns the on-disk path for an artifact, verifying the
// filename belongs to one of the channel's own episodes so requests
// cannot traverse into other channels' artifacts.
func (p *Publisher) ResolveAudio(ctx context.Context, channel models.Channel, filename string) (string, error) {
	if filename != filepath.Base(filename) {
		return "", fmt.Errorf("artifact %s: %w", filename, models.ErrNotFound)
	}

	episode, err := p.store.GetEpisodeByFilename(ctx, channel.ID, filename)
	if err != nil {
		return "", err
	}

	return filepath.Join(p.store.AudioDir(), episode.AudioPath), nil
}

func itemDescription(episode models.Episode) string {
	description := episode.Description
	if description == "" {
		return episode.Title
	}
	runes := []rune(description)
	if len(runes) > maxDescriptionRunes {
		return string(runes[:maxDescriptionRunes])
	}
	return description
}

func enclosureType(format string) podcast.EnclosureType {
	switch format {
	case "m4a":
		return podcast.M4A
	default:
		return podcast.MP3
	}
}
