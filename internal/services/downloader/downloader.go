// Package downloader is the fetch-and-store collaborator: it pulls a
// discovered item's media file to local disk with yt-dlp and records the
// file's dimensions.
package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// Store is the slice of the database the downloader needs.
type Store interface {
	GetItemsByStatus(ctx context.Context, status models.ItemStatus, limit int) ([]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
}

// Config holds the downloader's tunables.
type Config struct {
	YtDlpPath   string
	DownloadDir string
	MaxRetries  int
	Timeout     time.Duration // Per-download ceiling
}

// runFunc executes an external command and returns its combined output.
// Split out so tests can stand in for yt-dlp and ffprobe.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Service downloads discovered items.
type Service struct {
	store Store
	cfg   Config
	run   runFunc
}

// New creates a downloader service.
func New(store Store, cfg Config) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Service{store: store, cfg: cfg, run: execRun}
}

// probeResult is the subset of ffprobe/yt-dlp JSON we care about.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// Download fetches one item's media file. Returns true on success. On
// failure the retry counter is bumped, and once MaxRetries is exceeded
// the item transitions to FAILED.
func (s *Service) Download(ctx context.Context, item *models.Item) (bool, error) {
	outputPath := filepath.Join(s.cfg.DownloadDir, item.ID+".mp4")

	// Already on disk: just record it. Re-running a batch is idempotent.
	if fi, err := os.Stat(outputPath); err == nil && fi.Size() > 0 {
		log.Printf("📥 Item %s already downloaded", item.ID)
		return true, s.recordDownloaded(ctx, item, outputPath)
	}

	if err := os.MkdirAll(s.cfg.DownloadDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create download dir: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	log.Printf("📥 Downloading item %s from %s", item.ID, item.URL)
	out, err := s.run(dctx, s.cfg.YtDlpPath,
		"-f", "best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-o", outputPath,
		item.URL,
	)
	if err != nil {
		reason := strings.TrimSpace(string(out))
		if reason == "" {
			reason = err.Error()
		}
		if dctx.Err() == context.DeadlineExceeded {
			reason = "download timed out"
		}
		return false, s.recordFailure(ctx, item, reason)
	}

	if fi, err := os.Stat(outputPath); err != nil || fi.Size() == 0 {
		return false, s.recordFailure(ctx, item, "downloaded file missing or empty")
	}

	return true, s.recordDownloaded(ctx, item, outputPath)
}

// recordDownloaded probes the file and persists the DOWNLOADED state.
func (s *Service) recordDownloaded(ctx context.Context, item *models.Item, path string) error {
	duration, width, height := s.probe(ctx, path)

	item.LocalPath = path
	item.Duration = duration
	item.Width = width
	item.Height = height
	item.Status = models.ItemDownloaded
	item.Error = ""
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("failed to persist download: %w", err)
	}

	log.Printf("📥 Downloaded item %s (%.1fs, %dx%d)", item.ID, duration, width, height)
	return nil
}

// recordFailure bumps the retry counter; after MaxRetries the item is
// FAILED for good.
func (s *Service) recordFailure(ctx context.Context, item *models.Item, reason string) error {
	item.RetryCount++
	item.Error = reason
	if item.RetryCount >= s.cfg.MaxRetries {
		item.Status = models.ItemFailed
		log.Printf("❌ Item %s failed after %d retries: %s", item.ID, item.RetryCount, reason)
	} else {
		log.Printf("⚠️  Download failed for %s (attempt %d/%d): %s",
			item.ID, item.RetryCount, s.cfg.MaxRetries, reason)
	}
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("failed to persist download failure: %w", err)
	}
	return nil
}

// probe reads duration and dimensions with ffprobe. Probe failures are
// tolerated — a zero duration just means "unknown".
func (s *Service) probe(ctx context.Context, path string) (duration float64, width, height int) {
	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := s.run(pctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return 0, 0, 0
	}

	var pr probeResult
	if err := json.Unmarshal(out, &pr); err != nil {
		return 0, 0, 0
	}

	fmt.Sscanf(pr.Format.Duration, "%f", &duration)
	for _, st := range pr.Streams {
		if st.Width > 0 {
			return duration, st.Width, st.Height
		}
	}
	return duration, 0, 0
}

// DownloadDiscovered downloads every DISCOVERED item (up to limit;
// limit <= 0 means all). Returns (succeeded, failed).
func (s *Service) DownloadDiscovered(ctx context.Context, limit int) (int, int, error) {
	items, err := s.store.GetItemsByStatus(ctx, models.ItemDiscovered, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load discovered items: %w", err)
	}

	var succeeded, failed int
	for i := range items {
		ok, err := s.Download(ctx, &items[i])
		if err != nil {
			return succeeded, failed, err
		}
		if ok {
			succeeded++
		} else {
			failed++
		}
	}

	log.Printf("📥 Downloaded %d items, %d failed", succeeded, failed)
	return succeeded, failed, nil
}

// RetryFailed re-attempts FAILED items still under the retry ceiling.
func (s *Service) RetryFailed(ctx context.Context, limit int) (int, int, error) {
	items, err := s.store.GetItemsByStatus(ctx, models.ItemFailed, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load failed items: %w", err)
	}

	var succeeded, failed int
	for i := range items {
		item := &items[i]
		if item.RetryCount >= s.cfg.MaxRetries {
			continue
		}
		ok, err := s.Download(ctx, item)
		if err != nil {
			return succeeded, failed, err
		}
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed, nil
}
