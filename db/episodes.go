package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vidcast/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// episodeColumns is the select list shared by all episode queries.
var episodeColumns = []string{
	"id", "channel_id", "video_id", "title", "description",
	"duration", "published_at", "audio_path", "downloaded_at", "thumbnail_url",
}

// EpisodeExists reports whether the catalog already has an episode for
// (channel, video). The refresh engine uses this for the new-vs-seen
// decision; the unique index is the backstop under coordinator bugs.
func (store *Store) EpisodeExists(ctx context.Context, channelID int64, videoID string) (bool, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("1").From("episodes").
		Where(sb.Equal("channel_id", channelID), sb.Equal("video_id", videoID))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var one int
	err := store.read.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return true, nil
}

// InsertEpisode records one materialized episode. Inserting a (channel,
// video) pair that already exists fails with ErrConflict and writes
// nothing.
func (store *Store) InsertEpisode(ctx context.Context, episode models.Episode) (models.Episode, error) {
	if episode.VideoID == "" {
		return models.Episode{}, fmt.Errorf("%w: empty video id", models.ErrValidation)
	}

	var downloadedAt any
	if episode.AudioPath != "" {
		downloadedAt = time.Now().Unix()
	}

	var publishedAt any
	if !episode.PublishedAt.IsZero() {
		publishedAt = episode.PublishedAt.Unix()
	}

	insert := sqlbuilder.NewInsertBuilder()
	insert.InsertInto("episodes").
		Cols("channel_id", "video_id", "title", "description", "duration",
			"published_at", "audio_path", "downloaded_at", "thumbnail_url").
		Values(episode.ChannelID, episode.VideoID, episode.Title, episode.Description,
			episode.Duration, publishedAt, episode.AudioPath, downloadedAt, episode.ThumbnailURL)
	query, args := insert.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := store.write.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Episode{}, fmt.Errorf("episode %s: %w", episode.VideoID, models.ErrConflict)
		}
		return models.Episode{}, fmt.Errorf("insert episode: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Episode{}, err
	}
	episode.ID = id

	log.WithFields(log.Fields{
		"channel": episode.ChannelID,
		"video":   episode.VideoID,
		"title":   episode.Title,
	}).Info("Inserted episode")

	return episode, nil
}

// ListEpisodes returns every episode of a channel, published or pending.
func (store *Store) ListEpisodes(ctx context.Context, channelID int64) ([]models.Episode, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(episodeColumns...).From("episodes").
		Where(sb.Equal("channel_id", channelID)).
		OrderBy("published_at").Desc()
	return store.queryEpisodes(ctx, sb)
}

// ListPublishedEpisodes returns a channel's episodes with a local audio
// artifact, newest publish date first. Feed rendering re-sorts here
// regardless of insert order.
func (store *Store) ListPublishedEpisodes(ctx context.Context, channelID int64) ([]models.Episode, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(episodeColumns...).From("episodes").
		Where(
			sb.Equal("channel_id", channelID),
			sb.IsNotNull("audio_path"),
			sb.NotEqual("audio_path", ""),
		).
		OrderBy("published_at").Desc()
	return store.queryEpisodes(ctx, sb)
}

// GetEpisodeByFilename returns the channel's episode owning the given
// artifact filename. Requests for files outside the channel's own
// artifacts miss with ErrNotFound.
func (store *Store) GetEpisodeByFilename(ctx context.Context, channelID int64, filename string) (models.Episode, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(episodeColumns...).From("episodes").
		Where(sb.Equal("channel_id", channelID), sb.Equal("audio_path", filename))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	episode, err := scanEpisode(store.read.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Episode{}, fmt.Errorf("artifact %s: %w", filename, models.ErrNotFound)
	}
	if err != nil {
		return models.Episode{}, err
	}
	return episode, nil
}

// ResolveArtifact finds the episode owning an artifact filename and the
// channel it belongs to. Used by the plain audio route, where the
// filename is the only identifier in the request.
func (store *Store) ResolveArtifact(ctx context.Context, filename string) (models.Channel, models.Episode, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(episodeColumns...).From("episodes").Where(sb.Equal("audio_path", filename))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	episode, err := scanEpisode(store.read.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, models.Episode{}, fmt.Errorf("artifact %s: %w", filename, models.ErrNotFound)
	}
	if err != nil {
		return models.Channel{}, models.Episode{}, err
	}

	channel, err := store.GetChannel(ctx, episode.ChannelID)
	if err != nil {
		return models.Channel{}, models.Episode{}, err
	}

	return channel, episode, nil
}

func (store *Store) queryEpisodes(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]models.Episode, error) {
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := store.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var episodes []models.Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		episodes = append(episodes, episode)
	}

	return episodes, rows.Err()
}
