package feeds

import (
	"crypto/subtle"

	"vidcast/models"

	"golang.org/x/crypto/bcrypt"
)

// Credentials are whatever a feed or audio request presented: a basic
// auth pair, a URL token, or nothing.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Authorize evaluates a channel's access policy against presented
// credentials. Any mismatch is the same uniform ErrAuthDenied; callers
// must not reveal whether the channel exists or which part was wrong.
func Authorize(channel models.Channel, creds Credentials) error {
	switch channel.AuthType {
	case models.AuthNone, "":
		return nil

	case models.AuthBasic:
		if creds.Username != channel.AuthUsername {
			// Equalize work with a real comparison before denying
			bcrypt.CompareHashAndPassword([]byte(channel.AuthPasswordHash), []byte(creds.Password))
			return models.ErrAuthDenied
		}
		if bcrypt.CompareHashAndPassword([]byte(channel.AuthPasswordHash), []byte(creds.Password)) != nil {
			return models.ErrAuthDenied
		}
		return nil

	case models.AuthToken:
		if channel.SecretToken == "" {
			return models.ErrAuthDenied
		}
		if subtle.ConstantTimeCompare([]byte(channel.SecretToken), []byte(creds.Token)) != 1 {
			return models.ErrAuthDenied
		}
		return nil

	default:
		return models.ErrAuthDenied
	}
}
