package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidcast/db"
	"vidcast/feeds"
	"vidcast/media"
	"vidcast/refresh"
	"vidcast/server"
	"vidcast/youtube"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the vidcast feeds and start the refresh scheduler",
		Description: `Starts the vidcast HTTP server and the background refresh
scheduler.

Serves each tracked channel as a podcast RSS feed with its audio
artifacts, guarded by the channel's access policy. The scheduler
periodically checks every channel for new uploads and extracts their
audio; on-demand refreshes can be triggered via the management API.`,
		Flags: serveFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			if err := cfg.EnsureDirs(); err != nil {
				return err
			}

			if err := db.Migrate(cfg.DatabasePath()); err != nil {
				return err
			}

			store, err := db.NewStore(cfg.DatabasePath(), cfg.AudioDir())
			if err != nil {
				return err
			}
			defer store.Close()

			client := youtube.NewClient()
			materializer := media.NewMaterializer(cfg.AudioDir(), cfg.AudioFormat, cfg.AudioBitrate)
			engine := refresh.NewEngine(client, materializer, store, cfg.FetchCount)
			coordinator := refresh.NewCoordinator(engine, store, cfg.Interval())
			publisher := feeds.NewPublisher(store, cfg.ResolvedBaseURL(), cfg.AudioFormat)

			app := server.Server(&server.ServerConfig{
				Store:         store,
				Publisher:     publisher,
				Coordinator:   coordinator,
				Resolver:      client,
				AdminUsername: cfg.AdminUsername,
				AdminPassword: cfg.AdminPassword,
			})

			coordinator.Start()

			// Graceful shutdown: stop dispatching new runs, let in-flight
			// artifact writes land, then drain the HTTP server
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-interrupt
				log.Info("Gracefully shutting down...")
				coordinator.Stop()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error shutting down server")
				}
			}()

			log.WithFields(log.Fields{
				"addr":     cfg.ListenAddr(),
				"baseUrl":  cfg.ResolvedBaseURL(),
				"interval": cfg.Interval(),
			}).Info("Starting vidcast")

			return app.Listen(cfg.ListenAddr())
		},
	}
}
