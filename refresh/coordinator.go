package refresh

import (
	"context"
	"sync"
	"time"

	"vidcast/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ChannelLister enumerates the channels a tick fans out over.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]models.Channel, error)
}

// Coordinator drives refresh runs without overlap: at most one in-flight
// run per channel, channels independent of each other. Triggers for a
// channel that is already running are acknowledged as no-ops.
type Coordinator struct {
	engine   *Engine
	channels ChannelLister
	interval time.Duration

	mu      sync.Mutex
	running map[int64]bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCoordinator(engine *Engine, channels ChannelLister, interval time.Duration) *Coordinator {
	return &Coordinator{
		engine:   engine,
		channels: channels,
		interval: interval,
		running:  map[int64]bool{},
		stop:     make(chan struct{}),
	}
}

// TriggerChannel starts a refresh run for the channel unless one is
// already in flight. It returns immediately; the run continues
// asynchronously. The started flag reports whether a new run began.
func (c *Coordinator) TriggerChannel(ctx context.Context, channel models.Channel) bool {
	c.mu.Lock()
	if c.running[channel.ID] {
		c.mu.Unlock()
		log.WithFields(log.Fields{
			"channel": channel.YoutubeChannelID,
		}).Info("Refresh already in flight, ignoring trigger")
		return false
	}
	c.running[channel.ID] = true
	c.mu.Unlock()

	c.wg.Add(1)
	refreshInFlight.Inc()

	go func() {
		defer func() {
			// A panicking engine must not leave the channel stuck in
			// running, or every future trigger would be a no-op.
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"channel": channel.YoutubeChannelID,
					"panic":   r,
				}).Error("Refresh run panicked")
			}
			c.mu.Lock()
			delete(c.running, channel.ID)
			c.mu.Unlock()
			refreshInFlight.Dec()
			c.wg.Done()
		}()

		runID := uuid.New().String()
		log.WithFields(log.Fields{
			"channel": channel.YoutubeChannelID,
			"run":     runID,
		}).Debug("Dispatching refresh run")

		summary := c.engine.RefreshChannel(ctx, channel)

		log.WithFields(log.Fields{
			"channel": channel.YoutubeChannelID,
			"run":     runID,
			"new":     summary.New,
			"skipped": summary.Skipped,
			"failed":  summary.Failed,
		}).Info("Refresh run complete")
	}()

	return true
}

// TriggerAll dispatches a refresh for every tracked channel. Each channel
// runs on its own goroutine so a slow channel never delays the others.
// Returns the number of runs actually started.
func (c *Coordinator) TriggerAll(ctx context.Context) int {
	channels, err := c.channels.ListChannels(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Could not list channels for refresh")
		return 0
	}

	started := 0
	for _, channel := range channels {
		if c.TriggerChannel(ctx, channel) {
			started++
		}
	}
	return started
}

// RunTick performs a single scheduler tick. Exposed so tests can drive
// ticks deterministically instead of waiting on wall-clock timers.
func (c *Coordinator) RunTick(ctx context.Context) int {
	log.Info("Scheduled refresh tick")
	return c.TriggerAll(ctx)
}

// Start launches the periodic scheduler. The tick goroutine only
// dispatches runs, so a stuck channel cannot delay the timer.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		log.WithFields(log.Fields{
			"interval": c.interval,
		}).Info("Refresh scheduler started")

		for {
			select {
			case <-c.stop:
				log.Info("Refresh scheduler stopped")
				return
			case <-ticker.C:
				c.RunTick(context.Background())
			}
		}
	}()
}

// Stop halts the scheduler and waits for in-flight runs to finish, so
// shutdown never interrupts an artifact commit.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
}

// InFlight reports whether the channel currently has a running refresh.
func (c *Coordinator) InFlight(channelID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[channelID]
}
