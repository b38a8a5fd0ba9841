package refresh

import (
	"context"
	"errors"
	"time"

	"vidcast/models"

	log "github.com/sirupsen/logrus"
)

// Source lists a channel's current remote uploads and resolves full
// metadata for individual videos.
type Source interface {
	ListUploads(ctx context.Context, channelID string, limit int) ([]models.RemoteVideo, error)
	VideoMetadata(ctx context.Context, videoID string) (models.RemoteVideo, error)
}

// Materializer produces a local audio artifact for one video and returns
// its filename and duration.
type Materializer interface {
	Materialize(ctx context.Context, video models.RemoteVideo) (filename string, duration int64, err error)
}

// Catalog is the slice of the store the engine needs for the new-vs-seen
// decision and the per-item commit.
type Catalog interface {
	EpisodeExists(ctx context.Context, channelID int64, videoID string) (bool, error)
	InsertEpisode(ctx context.Context, episode models.Episode) (models.Episode, error)
}

// Engine reconciles one channel's remote upload listing with the
// catalog. Everything that goes wrong inside a run stays inside the run:
// per-item failures are counted and logged, never propagated.
type Engine struct {
	source       Source
	materializer Materializer
	catalog      Catalog
	fetchCount   int
}

func NewEngine(source Source, materializer Materializer, catalog Catalog, fetchCount int) *Engine {
	return &Engine{
		source:       source,
		materializer: materializer,
		catalog:      catalog,
		fetchCount:   fetchCount,
	}
}

// RefreshChannel runs one reconciliation pass for the channel. Items are
// processed newest first so a partial failure keeps the feed maximally
// current. Re-running against an unchanged listing performs zero writes.
// A failed item is not retried within the run; it stays absent from the
// catalog and the next scheduled run picks it up again.
func (engine *Engine) RefreshChannel(ctx context.Context, channel models.Channel) models.RunSummary {
	summary := models.RunSummary{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
	}

	started := time.Now()
	log.WithFields(log.Fields{
		"channel": channel.YoutubeChannelID,
		"name":    channel.Name,
	}).Info("Refreshing channel")

	videos, err := engine.source.ListUploads(ctx, channel.YoutubeChannelID, engine.fetchCount)
	if err != nil {
		summary.ListingError = err.Error()
		refreshListingErrors.Inc()
		log.WithFields(log.Fields{
			"channel": channel.YoutubeChannelID,
			"error":   err,
		}).Error("Could not fetch upload listing")
		return summary
	}

	for _, video := range videos {
		if err := engine.processVideo(ctx, channel, video); err != nil {
			if errors.Is(err, errAlreadySeen) {
				summary.Skipped++
				continue
			}
			summary.Failed++
			episodesFailed.Inc()
			log.WithFields(log.Fields{
				"channel": channel.YoutubeChannelID,
				"video":   video.VideoID,
				"error":   err,
			}).Error("Could not process video")
			continue
		}
		summary.New++
		episodesNew.Inc()
	}

	refreshRuns.Inc()
	refreshDuration.Observe(time.Since(started).Seconds())

	log.WithFields(log.Fields{
		"channel": channel.YoutubeChannelID,
		"new":     summary.New,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
		"elapsed": time.Since(started),
	}).Info("Finished refresh run")

	return summary
}

// errAlreadySeen marks videos the catalog already has; they count as
// skipped, not failed.
var errAlreadySeen = errors.New("already seen")

func (engine *Engine) processVideo(ctx context.Context, channel models.Channel, video models.RemoteVideo) error {
	exists, err := engine.catalog.EpisodeExists(ctx, channel.ID, video.VideoID)
	if err != nil {
		return err
	}
	if exists {
		return errAlreadySeen
	}

	metadata, err := engine.source.VideoMetadata(ctx, video.VideoID)
	if err != nil {
		return err
	}
	if metadata.Title == "" {
		metadata.Title = video.Title
	}

	filename, duration, err := engine.materializer.Materialize(ctx, metadata)
	if err != nil {
		return err
	}
	if duration > 0 {
		metadata.Duration = duration
	}

	_, err = engine.catalog.InsertEpisode(ctx, models.Episode{
		ChannelID:    channel.ID,
		VideoID:      metadata.VideoID,
		Title:        metadata.Title,
		Description:  metadata.Description,
		Duration:     metadata.Duration,
		PublishedAt:  metadata.PublishedAt,
		AudioPath:    filename,
		ThumbnailURL: metadata.ThumbnailURL,
	})
	if errors.Is(err, models.ErrConflict) {
		// The unique index caught a duplicate the exists check missed.
		// The artifact is in place and the row exists, so treat as seen.
		log.WithFields(log.Fields{
			"channel": channel.YoutubeChannelID,
			"video":   metadata.VideoID,
		}).Warn("Episode inserted concurrently")
		return errAlreadySeen
	}
	return err
}
