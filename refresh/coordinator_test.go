package refresh_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"vidcast/models"
	"vidcast/refresh"

	"github.com/stretchr/testify/assert"
)

type fakeLister struct {
	channels []models.Channel
}

func (l *fakeLister) ListChannels(ctx context.Context) ([]models.Channel, error) {
	return l.channels, nil
}

// blockingSource parks every listing call until released, so tests can
// hold a refresh run in flight deterministically.
type blockingSource struct {
	started chan string
	release chan struct{}
}

func (s *blockingSource) ListUploads(ctx context.Context, channelID string, limit int) ([]models.RemoteVideo, error) {
	s.started <- channelID
	<-s.release
	return nil, nil
}

func (s *blockingSource) VideoMetadata(ctx context.Context, videoID string) (models.RemoteVideo, error) {
	return models.RemoteVideo{VideoID: videoID}, nil
}

func TestTriggerChannelNoOverlap(t *testing.T) {
	source := &blockingSource{started: make(chan string, 1), release: make(chan struct{})}
	engine := refresh.NewEngine(source, &fakeMaterializer{}, newFakeCatalog(), 10)
	coordinator := refresh.NewCoordinator(engine, &fakeLister{}, time.Hour)

	assert.True(t, coordinator.TriggerChannel(context.Background(), testChannel))
	<-source.started
	assert.True(t, coordinator.InFlight(testChannel.ID))

	// Triggers while the run is in flight are acknowledged as no-ops
	assert.False(t, coordinator.TriggerChannel(context.Background(), testChannel))
	assert.False(t, coordinator.TriggerChannel(context.Background(), testChannel))

	close(source.release)
	coordinator.Stop()

	assert.False(t, coordinator.InFlight(testChannel.ID))
}

func TestTriggerChannelRunsAgainAfterCompletion(t *testing.T) {
	source := &fakeSource{videos: []models.RemoteVideo{{VideoID: "v1", Title: "first"}}}
	engine := refresh.NewEngine(source, &fakeMaterializer{}, newFakeCatalog(), 10)
	coordinator := refresh.NewCoordinator(engine, &fakeLister{}, time.Hour)

	assert.True(t, coordinator.TriggerChannel(context.Background(), testChannel))
	coordinator.Stop()

	// Once the run has completed the channel is idle again
	coordinator = refresh.NewCoordinator(engine, &fakeLister{}, time.Hour)
	assert.True(t, coordinator.TriggerChannel(context.Background(), testChannel))
	coordinator.Stop()

	assert.Equal(t, 2, source.listCalls)
}

func TestRunTickFansOutOverChannels(t *testing.T) {
	channels := []models.Channel{
		{ID: 1, YoutubeChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", Name: "a"},
		{ID: 2, YoutubeChannelID: "UCbbbbbbbbbbbbbbbbbbbbbb", Name: "b"},
		{ID: 3, YoutubeChannelID: "UCcccccccccccccccccccccc", Name: "c"},
	}

	var mu sync.Mutex
	seen := map[string]int{}

	source := &countingSource{onList: func(channelID string) {
		mu.Lock()
		seen[channelID]++
		mu.Unlock()
	}}
	engine := refresh.NewEngine(source, &fakeMaterializer{}, newFakeCatalog(), 10)
	coordinator := refresh.NewCoordinator(engine, &fakeLister{channels: channels}, time.Hour)

	started := coordinator.RunTick(context.Background())
	coordinator.Stop()

	assert.Equal(t, 3, started)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
	for _, channel := range channels {
		assert.Equal(t, 1, seen[channel.YoutubeChannelID])
	}
}

func TestRunTickSkipsBusyChannel(t *testing.T) {
	channels := []models.Channel{
		{ID: 1, YoutubeChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", Name: "a"},
		{ID: 2, YoutubeChannelID: "UCbbbbbbbbbbbbbbbbbbbbbb", Name: "b"},
	}

	source := &blockingSource{started: make(chan string, 2), release: make(chan struct{})}
	engine := refresh.NewEngine(source, &fakeMaterializer{}, newFakeCatalog(), 10)
	coordinator := refresh.NewCoordinator(engine, &fakeLister{channels: channels}, time.Hour)

	assert.Equal(t, 2, coordinator.RunTick(context.Background()))
	<-source.started
	<-source.started

	// Both channels still busy: the next tick starts nothing
	assert.Equal(t, 0, coordinator.RunTick(context.Background()))

	close(source.release)
	coordinator.Stop()
}

func TestPanickingRunReturnsChannelToIdle(t *testing.T) {
	source := &panickingSource{}
	engine := refresh.NewEngine(source, &fakeMaterializer{}, newFakeCatalog(), 10)
	coordinator := refresh.NewCoordinator(engine, &fakeLister{}, time.Hour)

	assert.True(t, coordinator.TriggerChannel(context.Background(), testChannel))
	coordinator.Stop()

	// The panic must not leave the channel stuck in running
	assert.False(t, coordinator.InFlight(testChannel.ID))

	coordinator = refresh.NewCoordinator(engine, &fakeLister{}, time.Hour)
	assert.True(t, coordinator.TriggerChannel(context.Background(), testChannel))
	coordinator.Stop()
}

type countingSource struct {
	onList func(channelID string)
}

func (s *countingSource) ListUploads(ctx context.Context, channelID string, limit int) ([]models.RemoteVideo, error) {
	s.onList(channelID)
	return nil, nil
}

func (s *countingSource) VideoMetadata(ctx context.Context, videoID string) (models.RemoteVideo, error) {
	return models.RemoteVideo{VideoID: videoID}, nil
}

type panickingSource struct{}

func (s *panickingSource) ListUploads(ctx context.Context, channelID string, limit int) ([]models.RemoteVideo, error) {
	panic("listing blew up")
}

func (s *panickingSource) VideoMetadata(ctx context.Context, videoID string) (models.RemoteVideo, error) {
	return models.RemoteVideo{VideoID: videoID}, nil
}
