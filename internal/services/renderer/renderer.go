// Package renderer turns a grouped compilation into a single vertical
// video file with ffmpeg: each clip is scaled and center-cropped to the
// target frame, trimmed, concatenated, and mixed with background music
// matched to the compilation's category mood.
package renderer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/metrics"
	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// Store is the slice of the database the renderer needs.
type Store interface {
	GetCompilationsByStatus(ctx context.Context, status models.CompilationStatus, limit int) ([]models.Compilation, error)
	UpdateCompilation(ctx context.Context, comp *models.Compilation) error
	GetItemsForCompilation(ctx context.Context, compilationID string) ([]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
}

// Config holds the renderer's tunables.
type Config struct {
	FFmpegPath      string
	OutputDir       string
	MusicDir        string
	Width           int
	Height          int
	FPS             int
	MaxClipDuration float64
}

// categoryMoods maps each category to a music mood. Everything is upbeat
// for now; the indirection exists so new categories can diverge.
var categoryMoods = map[models.Category]string{
	models.CategoryFails:  "upbeat",
	models.CategoryComedy: "upbeat",
}

// moodTracks names the preferred music files per mood, in MusicDir.
var moodTracks = map[string][]string{
	"upbeat": {"energetic.mp3", "fun.mp3", "happy.mp3", "comedic.mp3"},
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Service renders pending compilations.
type Service struct {
	store   Store
	cfg     Config
	run     runFunc
	pick    func(n int) int // Music track selector, injectable for tests
	metrics metrics.Collector
}

// New creates a renderer service.
func New(store Store, cfg Config) *Service {
	if cfg.Width == 0 {
		cfg.Width = 1080
	}
	if cfg.Height == 0 {
		cfg.Height = 1920
	}
	if cfg.FPS == 0 {
		cfg.FPS = 30
	}
	if cfg.MaxClipDuration == 0 {
		cfg.MaxClipDuration = 15
	}
	return &Service{store: store, cfg: cfg, run: execRun, pick: rand.Intn, metrics: metrics.Noop{}}
}

// WithMetrics swaps in a real metrics collector.
func (s *Service) WithMetrics(m metrics.Collector) *Service {
	s.metrics = m
	return s
}

// musicTrack selects a background track for the category's mood, falling
// back to any .mp3 in MusicDir. Empty string means render without music.
func (s *Service) musicTrack(category models.Category) string {
	mood := categoryMoods[category]
	if mood == "" {
		mood = "upbeat"
	}

	var available []string
	for _, name := range moodTracks[mood] {
		path := filepath.Join(s.cfg.MusicDir, name)
		if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
			available = append(available, path)
		}
	}
	if len(available) == 0 {
		matches, _ := filepath.Glob(filepath.Join(s.cfg.MusicDir, "*.mp3"))
		available = matches
	}
	if len(available) == 0 {
		log.Printf("⚠️  No music tracks available in %s", s.cfg.MusicDir)
		return ""
	}
	return available[s.pick(len(available))]
}

// processClip normalizes one clip: scale to cover the frame, center
// crop, fix the frame rate, trim to the clip ceiling.
func (s *Service) processClip(ctx context.Context, item *models.Item, outputPath string) error {
	if item.LocalPath == "" {
		return fmt.Errorf("item %s has no local file", item.ID)
	}
	if _, err := os.Stat(item.LocalPath); err != nil {
		return fmt.Errorf("item %s file missing: %w", item.ID, err)
	}

	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d",
		s.cfg.Width, s.cfg.Height, s.cfg.Width, s.cfg.Height, s.cfg.FPS,
	)
	duration := s.cfg.MaxClipDuration
	if item.Duration > 0 && item.Duration < duration {
		duration = item.Duration
	}

	cctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := s.run(cctx, s.cfg.FFmpegPath,
		"-y",
		"-i", item.LocalPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-t", strconv.FormatFloat(duration, 'f', -1, 64),
		"-movflags", "+faststart",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg failed for %s: %s", item.ID, firstLine(out, err))
	}
	if fi, statErr := os.Stat(outputPath); statErr != nil || fi.Size() == 0 {
		return fmt.Errorf("processed clip %s missing or empty", item.ID)
	}
	return nil
}

// concatenate joins processed clips via the concat demuxer, ducking the
// music under the clip audio when a track is given.
func (s *Service) concatenate(ctx context.Context, clipPaths []string, outputPath, musicPath string) error {
	listFile, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listFile.Name())
	for _, p := range clipPaths {
		fmt.Fprintf(listFile, "file '%s'\n", p)
	}
	if err := listFile.Close(); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
	}
	if musicPath != "" {
		args = append(args,
			"-i", musicPath,
			"-filter_complex",
			"[0:a]volume=1.0[v];[1:a]volume=0.25[m];[v][m]amix=inputs=2:duration=first:dropout_transition=2",
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	} else {
		args = append(args,
			"-c:v", "copy",
			"-c:a", "aac",
		)
	}
	args = append(args, outputPath)

	out, err := s.run(cctx, s.cfg.FFmpegPath, args...)
	if err != nil {
		return fmt.Errorf("concatenation failed: %s", firstLine(out, err))
	}
	if fi, statErr := os.Stat(outputPath); statErr != nil || fi.Size() == 0 {
		return fmt.Errorf("concatenated output missing or empty")
	}
	return nil
}

// probeDuration reads the final file's duration. Failures are tolerated.
func (s *Service) probeDuration(ctx context.Context, path string) float64 {
	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := s.run(pctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return d
}

// Render renders one compilation. The compilation is frozen at RENDERING
// for the duration; on any failure it is re-queued to PENDING with the
// error recorded, so membership stays editable and a later run retries.
func (s *Service) Render(ctx context.Context, comp *models.Compilation) (bool, error) {
	if comp.Status != models.CompilationPending {
		return false, fmt.Errorf("compilation %s is %s, not pending", comp.ID, comp.Status)
	}

	comp.Status = models.CompilationRendering
	if err := s.store.UpdateCompilation(ctx, comp); err != nil {
		return false, fmt.Errorf("failed to mark rendering: %w", err)
	}

	items, err := s.store.GetItemsForCompilation(ctx, comp.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load compilation items: %w", err)
	}
	if len(items) == 0 {
		return false, s.requeue(ctx, comp, "no items assigned")
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create output dir: %w", err)
	}
	tempDir, err := os.MkdirTemp("", "render-"+comp.ID+"-*")
	if err != nil {
		return false, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	log.Printf("🎬 Rendering compilation %s (%d clips)", comp.ID, len(items))

	var clipPaths []string
	for i := range items {
		clipPath := filepath.Join(tempDir, fmt.Sprintf("clip_%03d.mp4", i))
		if err := s.processClip(ctx, &items[i], clipPath); err != nil {
			log.Printf("⚠️  Skipping clip %d of %s: %v", i, comp.ID, err)
			continue
		}
		clipPaths = append(clipPaths, clipPath)
	}
	if len(clipPaths) == 0 {
		return false, s.requeue(ctx, comp, "no clips processed successfully")
	}

	musicPath := s.musicTrack(comp.Category)
	if musicPath != "" {
		comp.MusicTrack = filepath.Base(musicPath)
	}

	// Timestamp prefix keeps the review directory chronologically sorted.
	outputPath := filepath.Join(s.cfg.OutputDir,
		time.Now().Format("20060102-150405")+"-"+comp.ID+".mp4")
	if err := s.concatenate(ctx, clipPaths, outputPath, musicPath); err != nil {
		return false, s.requeue(ctx, comp, err.Error())
	}

	comp.OutputPath = outputPath
	comp.Duration = s.probeDuration(ctx, outputPath)
	comp.Status = models.CompilationReview
	comp.Error = ""
	if err := s.store.UpdateCompilation(ctx, comp); err != nil {
		return false, fmt.Errorf("failed to persist rendered compilation: %w", err)
	}

	for i := range items {
		items[i].Status = models.ItemUsed
		if err := s.store.UpdateItem(ctx, &items[i]); err != nil {
			return false, fmt.Errorf("failed to mark item used: %w", err)
		}
	}

	s.metrics.RecordRender(true)
	log.Printf("✅ Rendered compilation %s: %.1fs at %s", comp.ID, comp.Duration, outputPath)
	return true, nil
}

// requeue puts a failed render back on the PENDING queue with the error
// recorded.
func (s *Service) requeue(ctx context.Context, comp *models.Compilation, reason string) error {
	s.metrics.RecordRender(false)
	log.Printf("❌ Render failed for %s: %s", comp.ID, reason)
	comp.Status = models.CompilationPending
	comp.Error = reason
	if err := s.store.UpdateCompilation(ctx, comp); err != nil {
		return fmt.Errorf("failed to re-queue compilation: %w", err)
	}
	return nil
}

// RenderPending renders every PENDING compilation (up to limit; <= 0
// means all). Returns (succeeded, failed).
func (s *Service) RenderPending(ctx context.Context, limit int) (int, int, error) {
	pending, err := s.store.GetCompilationsByStatus(ctx, models.CompilationPending, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load pending compilations: %w", err)
	}

	var succeeded, failed int
	for i := range pending {
		ok, err := s.Render(ctx, &pending[i])
		if err != nil {
			return succeeded, failed, err
		}
		if ok {
			succeeded++
		} else {
			failed++
		}
	}

	log.Printf("🎬 Render complete: %d succeeded, %d failed", succeeded, failed)
	return succeeded, failed, nil
}

// PromoteAutoApproved moves rendered compilations that were flagged for
// auto-approval from REVIEW straight to APPROVED, skipping the human.
func (s *Service) PromoteAutoApproved(ctx context.Context) (int, error) {
	inReview, err := s.store.GetCompilationsByStatus(ctx, models.CompilationReview, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load review queue: %w", err)
	}

	var promoted int
	for i := range inReview {
		comp := &inReview[i]
		if !comp.AutoApproved {
			continue
		}
		comp.Status = models.CompilationApproved
		if err := s.store.UpdateCompilation(ctx, comp); err != nil {
			return promoted, fmt.Errorf("failed to auto-approve %s: %w", comp.ID, err)
		}
		promoted++
		log.Printf("✅ Auto-approved compilation %s (confidence: %.2f)", comp.ID, comp.ConfidenceScore)
	}
	return promoted, nil
}

func firstLine(out []byte, err error) string {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return err.Error()
	}
	return line
}
