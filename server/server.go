package server

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vidcast/db"
	"vidcast/feeds"
	"vidcast/models"
	"vidcast/refresh"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

//go:embed static/*
var static embed.FS

// ChannelResolver resolves user-supplied channel references (URL,
// @handle, bare id) to a stable channel id and display name.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, urlOrID string) (string, string, error)
}

type ServerConfig struct {

	// The catalog store shared with the refresh pipeline
	Store *db.Store

	// Publisher renders feeds and resolves audio artifacts
	Publisher *feeds.Publisher

	// Coordinator handles on-demand refresh triggers
	Coordinator *refresh.Coordinator

	// Resolver turns channel URLs into channel identities
	Resolver ChannelResolver

	// Admin credentials for the management endpoints; both empty
	// disables the check
	AdminUsername string
	AdminPassword string
}

type channelResponse struct {
	models.Channel
	FeedURL string `json:"feedUrl"`
}

// Returns a fiber.App instance serving the vidcast feed, audio and
// management endpoints
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Feed and audio endpoints, guarded by the per-channel access policy

	app.Get("/feed/t/:token", func(c *fiber.Ctx) error {
		channel, err := config.Store.ResolveByToken(c.UserContext(), c.Params("token"))
		if err != nil {
			// Unknown and revoked tokens are the same uniform miss
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}
		return sendFeed(c, config, channel)
	})

	app.Get("/feed/:id", func(c *fiber.Ctx) error {
		channel, ok := channelFromParam(c, config)
		if !ok {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		if err := feeds.Authorize(channel, basicCredentials(c)); err != nil {
			return unauthorized(c, channel)
		}

		return sendFeed(c, config, channel)
	})

	app.Get("/audio/t/:token/:filename", func(c *fiber.Ctx) error {
		channel, err := config.Store.ResolveByToken(c.UserContext(), c.Params("token"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		path, err := config.Publisher.ResolveAudio(c.UserContext(), channel, c.Params("filename"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		return c.SendFile(path)
	})

	app.Get("/audio/:filename", func(c *fiber.Ctx) error {
		channel, _, err := config.Store.ResolveArtifact(c.UserContext(), c.Params("filename"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		// Token-guarded artifacts are only reachable through their
		// token-qualified URL
		if channel.AuthType == models.AuthToken {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		if err := feeds.Authorize(channel, basicCredentials(c)); err != nil {
			return unauthorized(c, channel)
		}

		path, err := config.Publisher.ResolveAudio(c.UserContext(), channel, c.Params("filename"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).SendString("Not found")
		}

		return c.SendFile(path)
	})

	// Management endpoints, guarded by the process-wide admin credential
	// when one is configured

	admin := app.Group("")
	if config.AdminUsername != "" && config.AdminPassword != "" {
		admin.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{
				config.AdminUsername: config.AdminPassword,
			},
		}))
	}

	admin.Get("/channels", func(c *fiber.Ctx) error {
		channels, err := config.Store.ListChannels(c.UserContext())
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error listing channels")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not list channels"})
		}

		responses := lo.Map(channels, func(channel models.Channel, _ int) channelResponse {
			return channelResponse{
				Channel: channel,
				FeedURL: config.Publisher.FeedURL(channel),
			}
		})

		return c.JSON(responses)
	})

	admin.Post("/channels", func(c *fiber.Ctx) error {
		var body struct {
			URL string `json:"url"`
		}
		if err := c.BodyParser(&body); err != nil || strings.TrimSpace(body.URL) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
		}

		channelID, name, err := config.Resolver.ResolveChannel(c.UserContext(), body.URL)
		if err != nil {
			log.WithFields(log.Fields{
				"url":   body.URL,
				"error": err,
			}).Error("Could not resolve channel")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not resolve channel"})
		}

		channel, err := config.Store.UpsertChannel(
			c.UserContext(),
			channelID,
			name,
			"https://www.youtube.com/channel/"+channelID,
		)
		if err != nil {
			if errors.Is(err, models.ErrValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not add channel"})
		}

		// Kick off the initial fetch; the response does not wait for it
		config.Coordinator.TriggerChannel(context.WithoutCancel(c.UserContext()), channel)

		return c.Status(fiber.StatusCreated).JSON(channelResponse{
			Channel: channel,
			FeedURL: config.Publisher.FeedURL(channel),
		})
	})

	admin.Delete("/channels/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "channel not found"})
		}

		if err := config.Store.DeleteChannel(c.UserContext(), id); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "channel not found"})
			}
			log.WithFields(log.Fields{
				"channel": id,
				"error":   err,
			}).Error("Error deleting channel")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not delete channel"})
		}

		return c.JSON(fiber.Map{"success": true})
	})

	admin.Put("/channels/:id/auth", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "channel not found"})
		}

		var policy models.AccessPolicy
		if err := c.BodyParser(&policy); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid policy"})
		}

		channel, err := config.Store.SetAccessPolicy(c.UserContext(), id, policy)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "channel not found"})
			case errors.Is(err, models.ErrValidation):
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not update policy"})
			}
		}

		return c.JSON(channelResponse{
			Channel: channel,
			FeedURL: config.Publisher.FeedURL(channel),
		})
	})

	admin.Post("/refresh", func(c *fiber.Ctx) error {
		started := config.Coordinator.TriggerAll(context.WithoutCancel(c.UserContext()))
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": started})
	})

	admin.Post("/refresh/:id", func(c *fiber.Ctx) error {
		channel, ok := channelFromParam(c, config)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "channel not found"})
		}

		started := config.Coordinator.TriggerChannel(context.WithoutCancel(c.UserContext()), channel)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": started})
	})

	// Serve the management UI
	app.Use("/", filesystem.New(filesystem.Config{
		Browse:     false,
		Index:      "index.html",
		Root:       http.FS(static),
		PathPrefix: "/static",
	}))

	return app
}

func channelFromParam(c *fiber.Ctx, config *ServerConfig) (models.Channel, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return models.Channel{}, false
	}

	channel, err := config.Store.GetChannel(c.UserContext(), id)
	if err != nil {
		return models.Channel{}, false
	}

	return channel, true
}

func sendFeed(c *fiber.Ctx, config *ServerConfig, channel models.Channel) error {
	document, err := config.Publisher.RenderFeed(c.UserContext(), channel.ID)
	if err != nil {
		log.WithFields(log.Fields{
			"channel": channel.ID,
			"error":   err,
		}).Error("Error rendering feed")
		return c.Status(fiber.StatusInternalServerError).SendString("Error rendering feed")
	}

	c.Set("Content-Type", "application/rss+xml; charset=utf-8")
	return c.Send(document)
}

// basicCredentials parses the Authorization header into per-channel
// credentials; absent or malformed headers yield empty credentials that
// only a policy of none will accept.
func basicCredentials(c *fiber.Ctx) feeds.Credentials {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Basic ") {
		return feeds.Credentials{}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return feeds.Credentials{}
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return feeds.Credentials{}
	}

	return feeds.Credentials{Username: username, Password: password}
}

func unauthorized(c *fiber.Ctx, channel models.Channel) error {
	if channel.AuthType == models.AuthBasic {
		c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="vidcast"`)
	}
	return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
}
