package db

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"vidcast/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps credential resolution work constant when the username
// does not match any channel.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vidcast-no-such-user"), bcrypt.DefaultCost)

// SetAccessPolicy atomically replaces a channel's access policy. The
// previous policy's credentials are unusable as soon as this returns:
// all policy columns are rewritten in a single UPDATE. Switching into
// token mode always generates a fresh token.
func (store *Store) SetAccessPolicy(ctx context.Context, channelID int64, policy models.AccessPolicy) (models.Channel, error) {
	if _, err := store.GetChannel(ctx, channelID); err != nil {
		return models.Channel{}, err
	}

	var username, passwordHash, token any

	switch policy.Type {
	case models.AuthNone:
		// All credential columns cleared

	case models.AuthBasic:
		if policy.Username == "" || policy.Password == "" {
			return models.Channel{}, fmt.Errorf("%w: basic auth requires username and password", models.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(policy.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.Channel{}, fmt.Errorf("hash password: %w", err)
		}
		username = policy.Username
		passwordHash = string(hash)

	case models.AuthToken:
		generated, err := generateToken()
		if err != nil {
			return models.Channel{}, fmt.Errorf("generate token: %w", err)
		}
		token = generated

	default:
		return models.Channel{}, fmt.Errorf("%w: unknown auth type %q", models.ErrValidation, policy.Type)
	}

	update := sqlbuilder.NewUpdateBuilder()
	update.Update("channels").
		Set(
			update.Assign("auth_type", policy.Type),
			update.Assign("auth_username", username),
			update.Assign("auth_password_hash", passwordHash),
			update.Assign("secret_token", token),
		).
		Where(update.Equal("id", channelID))
	query, args := update.BuildWithFlavor(sqlbuilder.SQLite)

	if _, err := store.write.ExecContext(ctx, query, args...); err != nil {
		return models.Channel{}, fmt.Errorf("update policy: %w", err)
	}

	log.WithFields(log.Fields{
		"channel": channelID,
		"type":    policy.Type,
	}).Info("Updated access policy")

	return store.GetChannel(ctx, channelID)
}

// ResolveByToken returns the token-authorized channel matching the
// presented token. Comparison is constant-time per candidate so response
// timing does not leak token prefixes.
func (store *Store) ResolveByToken(ctx context.Context, token string) (models.Channel, error) {
	if token == "" {
		return models.Channel{}, models.ErrAuthDenied
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(channelColumns...).From("channels").Where(sb.Equal("auth_type", models.AuthToken))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := store.read.QueryContext(ctx, query, args...)
	if err != nil {
		return models.Channel{}, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var match *models.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return models.Channel{}, fmt.Errorf("scan error: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(channel.SecretToken), []byte(token)) == 1 {
			found := channel
			match = &found
		}
	}
	if err := rows.Err(); err != nil {
		return models.Channel{}, err
	}

	if match == nil {
		return models.Channel{}, models.ErrAuthDenied
	}
	return *match, nil
}

// ResolveByCredential returns the basic-auth channel matching the
// presented username and password. bcrypt comparison is constant-time; a
// dummy comparison runs when the username is unknown.
func (store *Store) ResolveByCredential(ctx context.Context, username, password string) (models.Channel, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(channelColumns...).From("channels").
		Where(sb.Equal("auth_type", models.AuthBasic), sb.Equal("auth_username", username))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	channel, err := scanChannel(store.read.QueryRowContext(ctx, query, args...))
	if err != nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return models.Channel{}, models.ErrAuthDenied
	}

	if bcrypt.CompareHashAndPassword([]byte(channel.AuthPasswordHash), []byte(password)) != nil {
		return models.Channel{}, models.ErrAuthDenied
	}

	return channel, nil
}

// generateToken returns an unguessable 32 character hex token.
func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
