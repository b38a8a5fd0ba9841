package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"vidcast/models"

	"github.com/lrstanley/go-ytdlp"
	log "github.com/sirupsen/logrus"
)

// Materializer extracts a video's audio into the artifact directory.
// Extraction happens in a per-video staging directory and the finished
// file is renamed into place, so a crash mid-download never leaves a
// half-written artifact at a path a catalog row could reference.
type Materializer struct {
	audioDir string
	format   string
	bitrate  string
}

func NewMaterializer(audioDir, format, bitrate string) *Materializer {
	return &Materializer{
		audioDir: audioDir,
		format:   format,
		bitrate:  bitrate,
	}
}

// Materialize downloads and extracts the audio for one video. It returns
// the artifact filename (relative to the audio directory) and the
// duration in seconds when yt-dlp reports one. Failures are per-item:
// callers log them and move on.
func (m *Materializer) Materialize(ctx context.Context, video models.RemoteVideo) (string, int64, error) {
	filename := fmt.Sprintf("%s.%s", video.VideoID, m.format)
	finalPath := filepath.Join(m.audioDir, filename)

	// Already materialized, e.g. by a run that crashed before the insert
	if _, err := os.Stat(finalPath); err == nil {
		return filename, video.Duration, nil
	}

	staging, err := os.MkdirTemp(m.audioDir, "staging-"+video.VideoID+"-")
	if err != nil {
		return "", 0, fmt.Errorf("%w: staging dir: %v", models.ErrMaterialization, err)
	}
	defer os.RemoveAll(staging)

	url := "https://www.youtube.com/watch?v=" + video.VideoID

	dl := ytdlp.New().
		Quiet().
		NoWarnings().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(m.format).
		AudioQuality(m.bitrate).
		Output(filepath.Join(staging, video.VideoID+".%(ext)s"))

	result, err := dl.Run(ctx, url)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", models.ErrMaterialization, video.VideoID, err)
	}

	stagedPath := filepath.Join(staging, filename)
	if _, err := os.Stat(stagedPath); err != nil {
		return "", 0, fmt.Errorf("%w: %s: extracted audio not found", models.ErrMaterialization, video.VideoID)
	}

	if err := os.Rename(stagedPath, finalPath); err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", models.ErrMaterialization, video.VideoID, err)
	}

	duration := video.Duration
	if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Duration != nil {
		duration = int64(*info[0].Duration)
	}

	log.WithFields(log.Fields{
		"video": video.VideoID,
		"file":  filename,
	}).Info("Materialized audio artifact")

	return filename, duration, nil
}

// ArtifactSize returns the size in bytes of an artifact, or 0 when the
// file does not exist.
func ArtifactSize(audioDir, filename string) int64 {
	info, err := os.Stat(filepath.Join(audioDir, filename))
	if err != nil {
		return 0
	}
	return info.Size()
}
