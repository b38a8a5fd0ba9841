package refresh_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"vidcast/models"
	"vidcast/refresh"

	"github.com/stretchr/testify/assert"
)

// fakeSource serves a fixed upload listing and metadata out of memory.
type fakeSource struct {
	videos    []models.RemoteVideo
	listErr   error
	metaErr   map[string]error
	listCalls int
}

func (s *fakeSource) ListUploads(ctx context.Context, channelID string, limit int) ([]models.RemoteVideo, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.videos) > limit {
		return s.videos[:limit], nil
	}
	return s.videos, nil
}

func (s *fakeSource) VideoMetadata(ctx context.Context, videoID string) (models.RemoteVideo, error) {
	if err := s.metaErr[videoID]; err != nil {
		return models.RemoteVideo{}, err
	}
	for _, video := range s.videos {
		if video.VideoID == videoID {
			return video, nil
		}
	}
	return models.RemoteVideo{VideoID: videoID, Title: "meta " + videoID}, nil
}

// fakeMaterializer pretends every video extracts cleanly unless told
// otherwise.
type fakeMaterializer struct {
	failFor map[string]error
	calls   []string
}

func (m *fakeMaterializer) Materialize(ctx context.Context, video models.RemoteVideo) (string, int64, error) {
	m.calls = append(m.calls, video.VideoID)
	if err := m.failFor[video.VideoID]; err != nil {
		return "", 0, err
	}
	return video.VideoID + ".mp3", 120, nil
}

// fakeCatalog is an in-memory (channel, video) set.
type fakeCatalog struct {
	mu       sync.Mutex
	episodes map[string]models.Episode
	inserts  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{episodes: map[string]models.Episode{}}
}

func (c *fakeCatalog) key(channelID int64, videoID string) string {
	return fmt.Sprintf("%d/%s", channelID, videoID)
}

func (c *fakeCatalog) EpisodeExists(ctx context.Context, channelID int64, videoID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.episodes[c.key(channelID, videoID)]
	return ok, nil
}

func (c *fakeCatalog) InsertEpisode(ctx context.Context, episode models.Episode) (models.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(episode.ChannelID, episode.VideoID)
	if _, ok := c.episodes[key]; ok {
		return models.Episode{}, models.ErrConflict
	}
	c.inserts++
	c.episodes[key] = episode
	return episode, nil
}

var testChannel = models.Channel{
	ID:               1,
	YoutubeChannelID: "UCabcdefghijklmnopqrstuv",
	Name:             "Test Channel",
}

func TestRefreshChannelNewVideos(t *testing.T) {
	source := &fakeSource{videos: []models.RemoteVideo{
		{VideoID: "v3", Title: "third"},
		{VideoID: "v2", Title: "second"},
		{VideoID: "v1", Title: "first"},
	}}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 10)
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.Equal(t, 3, summary.New)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.ListingError)

	// Newest first, matching the listing order
	assert.Equal(t, []string{"v3", "v2", "v1"}, materializer.calls)
	assert.Equal(t, 3, catalog.inserts)
}

func TestRefreshChannelIdempotent(t *testing.T) {
	source := &fakeSource{videos: []models.RemoteVideo{
		{VideoID: "v2", Title: "second"},
		{VideoID: "v1", Title: "first"},
	}}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 10)
	engine.RefreshChannel(context.Background(), testChannel)

	// Unchanged listing: everything skipped, zero writes
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 2, catalog.inserts)
	assert.Len(t, materializer.calls, 2)
}

func TestRefreshChannelNewUploadAppears(t *testing.T) {
	source := &fakeSource{videos: []models.RemoteVideo{
		{VideoID: "v3", Title: "third"},
		{VideoID: "v2", Title: "second"},
		{VideoID: "v1", Title: "first"},
	}}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 10)
	engine.RefreshChannel(context.Background(), testChannel)

	// A fresh upload pushes the oldest item out of the fetch window
	source.videos = []models.RemoteVideo{
		{VideoID: "v4", Title: "fourth"},
		{VideoID: "v3", Title: "third"},
		{VideoID: "v2", Title: "second"},
	}
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 4, catalog.inserts)
}

func TestRefreshChannelListingError(t *testing.T) {
	source := &fakeSource{listErr: fmt.Errorf("%w: youtube unreachable", models.ErrTransientSource)}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 10)
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.NotEmpty(t, summary.ListingError)
	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 0, catalog.inserts)
	assert.Empty(t, materializer.calls)
}

func TestRefreshChannelPartialFailure(t *testing.T) {
	source := &fakeSource{videos: []models.RemoteVideo{
		{VideoID: "v3", Title: "third"},
		{VideoID: "v2", Title: "second"},
		{VideoID: "v1", Title: "first"},
	}}
	materializer := &fakeMaterializer{failFor: map[string]error{
		"v2": fmt.Errorf("%w: extraction failed", models.ErrMaterialization),
	}}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 10)
	summary := engine.RefreshChannel(context.Background(), testChannel)

	// One failed item never aborts the run or hides the others
	assert.Equal(t, 2, summary.New)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, catalog.inserts)

	exists, _ := catalog.EpisodeExists(context.Background(), testChannel.ID, "v2")
	assert.False(t, exists, "failed item must stay absent so the next run retries it")

	// Next run picks the failed item up again
	materializer.failFor = nil
	summary = engine.RefreshChannel(context.Background(), testChannel)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 2, summary.Skipped)
}

func TestRefreshChannelMetadataError(t *testing.T) {
	source := &fakeSource{
		videos:  []models.RemoteVideo{{VideoID: "v1", Title: "first"}},
		metaErr: map[string]error{"v1": errors.New("metadata fetch failed")},
	}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 10)
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, materializer.calls)
}

func TestRefreshChannelConcurrentInsertTreatedAsSeen(t *testing.T) {
	source := &fakeSource{videos: []models.RemoteVideo{{VideoID: "v1", Title: "first"}}}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	// Pre-populate as if a concurrent run committed between the exists
	// check and the insert; the fake's exists check is bypassed by
	// inserting under a different key view first.
	conflictCatalog := &conflictingCatalog{fakeCatalog: catalog}

	engine := refresh.NewEngine(source, materializer, conflictCatalog, 10)
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

// conflictingCatalog reports videos as unseen but rejects every insert,
// simulating a lost race against a concurrent run.
type conflictingCatalog struct {
	*fakeCatalog
}

func (c *conflictingCatalog) EpisodeExists(ctx context.Context, channelID int64, videoID string) (bool, error) {
	return false, nil
}

func (c *conflictingCatalog) InsertEpisode(ctx context.Context, episode models.Episode) (models.Episode, error) {
	return models.Episode{}, models.ErrConflict
}

func TestRefreshChannelFetchWindow(t *testing.T) {
	var videos []models.RemoteVideo
	for i := 20; i > 0; i-- {
		videos = append(videos, models.RemoteVideo{VideoID: fmt.Sprintf("v%d", i), Title: fmt.Sprintf("video %d", i)})
	}
	source := &fakeSource{videos: videos}
	materializer := &fakeMaterializer{}
	catalog := newFakeCatalog()

	engine := refresh.NewEngine(source, materializer, catalog, 5)
	summary := engine.RefreshChannel(context.Background(), testChannel)

	assert.Equal(t, 5, summary.New)
	assert.Equal(t, []string{"v20", "v19", "v18", "v17", "v16"}, materializer.calls)
}
