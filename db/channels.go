package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vidcast/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// UpsertChannel inserts a channel for the given remote identity or
// returns the existing row. Identical identities never produce duplicate
// channel rows.
func (store *Store) UpsertChannel(ctx context.Context, youtubeChannelID, name, url string) (models.Channel, error) {
	if youtubeChannelID == "" {
		return models.Channel{}, fmt.Errorf("%w: empty channel id", models.ErrValidation)
	}
	if name == "" {
		name = youtubeChannelID
	}

	existing, err := store.GetChannelByYoutubeID(ctx, youtubeChannelID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Channel{}, err
	}

	insert := sqlbuilder.NewInsertBuilder()
	insert.InsertInto("channels").
		Cols("youtube_channel_id", "name", "url", "added_at", "auth_type").
		Values(youtubeChannelID, name, url, time.Now().Unix(), models.AuthNone)
	query, args := insert.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := store.write.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent add of the same identity
			return store.GetChannelByYoutubeID(ctx, youtubeChannelID)
		}
		return models.Channel{}, fmt.Errorf("insert channel: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Channel{}, err
	}

	log.WithFields(log.Fields{
		"channel": youtubeChannelID,
		"name":    name,
		"id":      id,
	}).Info("Added channel")

	return store.GetChannel(ctx, id)
}

// ListChannels returns all tracked channels, most recently added first.
func (store *Store) ListChannels(ctx context.Context) ([]models.Channel, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(channelColumns...).From("channels").OrderBy("added_at").Desc()
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := store.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		channels = append(channels, channel)
	}

	return channels, rows.Err()
}

// GetChannel returns a channel by its catalog id.
func (store *Store) GetChannel(ctx context.Context, id int64) (models.Channel, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(channelColumns...).From("channels").Where(sb.Equal("id", id))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	channel, err := scanChannel(store.read.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, fmt.Errorf("channel %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// GetChannelByYoutubeID returns a channel by its remote identity.
func (store *Store) GetChannelByYoutubeID(ctx context.Context, youtubeChannelID string) (models.Channel, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(channelColumns...).From("channels").Where(sb.Equal("youtube_channel_id", youtubeChannelID))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	channel, err := scanChannel(store.read.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, fmt.Errorf("channel %s: %w", youtubeChannelID, models.ErrNotFound)
	}
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// DeleteChannel removes a channel, its episode rows and their audio
// artifacts. Artifacts are removed first so a failed file delete leaves
// the rows in place for a retry; a file that is already gone is logged
// and does not abort the removal.
func (store *Store) DeleteChannel(ctx context.Context, id int64) error {
	if _, err := store.GetChannel(ctx, id); err != nil {
		return err
	}

	episodes, err := store.ListEpisodes(ctx, id)
	if err != nil {
		return err
	}

	for _, episode := range episodes {
		if episode.AudioPath == "" {
			continue
		}
		path := filepath.Join(store.audioDir, episode.AudioPath)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				log.WithFields(log.Fields{
					"channel": id,
					"file":    episode.AudioPath,
				}).Warn("Audio artifact already missing")
				continue
			}
			return fmt.Errorf("remove artifact %s: %w", episode.AudioPath, err)
		}
	}

	// Episode rows cascade via the foreign key
	_, err = store.write.ExecContext(ctx, "DELETE FROM channels WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	log.WithFields(log.Fields{
		"channel":  id,
		"episodes": len(episodes),
	}).Info("Deleted channel")

	return nil
}
