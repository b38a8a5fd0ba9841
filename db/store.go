package db

import (
	"database/sql"
	"strings"
	"time"

	"vidcast/models"
)

// Store is the durable catalog of channels and episodes. It owns two
// connection pools: a single-connection writer and a small reader pool
// for feed and audio requests.
type Store struct {
	write    *sql.DB
	read     *sql.DB
	audioDir string
}

// NewStore opens the catalog database. Migrations must have been run
// before the store is used (the serve and migrate commands do this).
func NewStore(database string, audioDir string) (*Store, error) {
	write, err := writeConnection(database)
	if err != nil {
		return nil, err
	}

	read, err := readConnection(database)
	if err != nil {
		write.Close()
		return nil, err
	}

	return &Store{
		write:    write,
		read:     read,
		audioDir: audioDir,
	}, nil
}

// AudioDir is the directory holding this catalog's audio artifacts.
func (store *Store) AudioDir() string {
	return store.audioDir
}

func (store *Store) Close() error {
	rerr := store.read.Close()
	werr := store.write.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// channelColumns is the select list shared by all channel queries.
var channelColumns = []string{
	"id", "youtube_channel_id", "name", "url", "added_at",
	"auth_type", "auth_username", "auth_password_hash", "secret_token",
}

func scanChannel(row interface{ Scan(...any) error }) (models.Channel, error) {
	var channel models.Channel
	var addedAt int64
	var username, passwordHash, token sql.NullString

	err := row.Scan(
		&channel.ID,
		&channel.YoutubeChannelID,
		&channel.Name,
		&channel.URL,
		&addedAt,
		&channel.AuthType,
		&username,
		&passwordHash,
		&token,
	)
	if err != nil {
		return models.Channel{}, err
	}

	channel.AddedAt = time.Unix(addedAt, 0).UTC()
	channel.AuthUsername = username.String
	channel.AuthPasswordHash = passwordHash.String
	channel.SecretToken = token.String

	return channel, nil
}

func scanEpisode(row interface{ Scan(...any) error }) (models.Episode, error) {
	var episode models.Episode
	var description, audioPath, thumbnail sql.NullString
	var duration, publishedAt, downloadedAt sql.NullInt64

	err := row.Scan(
		&episode.ID,
		&episode.ChannelID,
		&episode.VideoID,
		&episode.Title,
		&description,
		&duration,
		&publishedAt,
		&audioPath,
		&downloadedAt,
		&thumbnail,
	)
	if err != nil {
		return models.Episode{}, err
	}

	episode.Description = description.String
	episode.Duration = duration.Int64
	episode.AudioPath = audioPath.String
	episode.ThumbnailURL = thumbnail.String
	if publishedAt.Valid {
		episode.PublishedAt = time.Unix(publishedAt.Int64, 0).UTC()
	}
	if downloadedAt.Valid {
		episode.DownloadedAt = time.Unix(downloadedAt.Int64, 0).UTC()
	}

	return episode, nil
}

// isUniqueViolation matches SQLite unique constraint failures regardless
// of which index tripped.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
