package feeds_test

import (
	"testing"

	"vidcast/feeds"
	"vidcast/models"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthorize(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	assert.NoError(t, err)

	public := models.Channel{ID: 1, AuthType: models.AuthNone}
	legacy := models.Channel{ID: 2}
	basic := models.Channel{ID: 3, AuthType: models.AuthBasic, AuthUsername: "alice", AuthPasswordHash: string(hash)}
	token := models.Channel{ID: 4, AuthType: models.AuthToken, SecretToken: "aabbccdd"}

	tests := []struct {
		name    string
		channel models.Channel
		creds   feeds.Credentials
		denied  bool
	}{
		{
			name:    "public channel without credentials",
			channel: public,
		},
		{
			name:    "public channel ignores stray credentials",
			channel: public,
			creds:   feeds.Credentials{Username: "x", Password: "y", Token: "z"},
		},
		{
			name:    "empty auth type treated as public",
			channel: legacy,
		},
		{
			name:    "basic with correct credentials",
			channel: basic,
			creds:   feeds.Credentials{Username: "alice", Password: "s3cret"},
		},
		{
			name:    "basic with wrong password",
			channel: basic,
			creds:   feeds.Credentials{Username: "alice", Password: "wrong"},
			denied:  true,
		},
		{
			name:    "basic with wrong username",
			channel: basic,
			creds:   feeds.Credentials{Username: "bob", Password: "s3cret"},
			denied:  true,
		},
		{
			name:    "basic without credentials",
			channel: basic,
			denied:  true,
		},
		{
			name:    "basic does not accept a token",
			channel: basic,
			creds:   feeds.Credentials{Token: "aabbccdd"},
			denied:  true,
		},
		{
			name:    "token with correct token",
			channel: token,
			creds:   feeds.Credentials{Token: "aabbccdd"},
		},
		{
			name:    "token with wrong token",
			channel: token,
			creds:   feeds.Credentials{Token: "eeff0011"},
			denied:  true,
		},
		{
			name:    "token without credentials",
			channel: token,
			denied:  true,
		},
		{
			name:    "token does not accept basic credentials",
			channel: token,
			creds:   feeds.Credentials{Username: "alice", Password: "s3cret"},
			denied:  true,
		},
		{
			name:    "token channel without a stored token denies",
			channel: models.Channel{ID: 5, AuthType: models.AuthToken},
			creds:   feeds.Credentials{Token: ""},
			denied:  true,
		},
		{
			name:    "unknown auth type denies",
			channel: models.Channel{ID: 6, AuthType: "oauth"},
			denied:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := feeds.Authorize(tt.channel, tt.creds)
			if tt.denied {
				assert.ErrorIs(t, err, models.ErrAuthDenied)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizeAfterPolicySwitch(t *testing.T) {
	// A channel that switched from token T1 to token T2: only T2 works
	channel := models.Channel{ID: 1, AuthType: models.AuthToken, SecretToken: "token-two"}

	assert.ErrorIs(t, feeds.Authorize(channel, feeds.Credentials{Token: "token-one"}), models.ErrAuthDenied)
	assert.NoError(t, feeds.Authorize(channel, feeds.Credentials{Token: "token-two"}))
}
