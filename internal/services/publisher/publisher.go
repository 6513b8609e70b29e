// Package publisher pushes rendered compilations to the platforms. Each
// platform gets an Uploader implementation; the Dispatcher drains the
// upload queue one job at a time, charging accounts and recording
// outcomes through the routing layer.
package publisher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/briahnloo/content-generator-stitching/internal/metrics"
	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// Uploader publishes one file to a platform using an account's decrypted
// credentials. Returns the platform's video ID.
type Uploader interface {
	Upload(ctx context.Context, upload *models.Upload, account *models.Account, comp *models.Compilation, creds map[string]string) (string, error)
}

// Queue is the upload scheduling surface the dispatcher drives.
type Queue interface {
	NextUpload(ctx context.Context, platform models.Platform) (*models.Upload, *models.Account, *models.Compilation, error)
	MarkStarted(ctx context.Context, upload *models.Upload) error
	MarkSuccess(ctx context.Context, upload *models.Upload, platformVideoID string) error
	MarkFailed(ctx context.Context, upload *models.Upload, errText string) error
}

// CredentialSource decrypts an account's stored credentials.
type CredentialSource interface {
	GetCredentials(ctx context.Context, id string) (map[string]string, error)
	RecordError(ctx context.Context, id, errText string) error
}

// Store is the slice of the database the dispatcher needs directly.
type Store interface {
	UpdateCompilation(ctx context.Context, comp *models.Compilation) error
}

// categoryHashtags are appended to platform descriptions.
var categoryHashtags = map[models.Category][]string{
	models.CategoryFails:  {"#fail", "#epicfail", "#fails", "#instantregret"},
	models.CategoryComedy: {"#funny", "#comedy", "#humor", "#memes"},
}

// Dispatcher moves queued uploads through their platform uploaders.
type Dispatcher struct {
	queue     Queue
	creds     CredentialSource
	store     Store
	uploaders map[models.Platform]Uploader
	metrics   metrics.Collector
}

// NewDispatcher creates a dispatcher with the given platform uploaders.
func NewDispatcher(queue Queue, creds CredentialSource, store Store, uploaders map[models.Platform]Uploader) *Dispatcher {
	return &Dispatcher{queue: queue, creds: creds, store: store, uploaders: uploaders, metrics: metrics.Noop{}}
}

// WithMetrics swaps in a real metrics collector.
func (d *Dispatcher) WithMetrics(m metrics.Collector) *Dispatcher {
	d.metrics = m
	return d
}

// ProcessNext dispatches at most one upload, trying platforms in
// AllPlatforms order so YouTube drains before TikTok. Returns false when
// every queue is idle.
func (d *Dispatcher) ProcessNext(ctx context.Context) (bool, error) {
	for _, platform := range models.AllPlatforms {
		if _, ok := d.uploaders[platform]; !ok {
			continue
		}
		upload, account, comp, err := d.queue.NextUpload(ctx, platform)
		if err != nil {
			return false, fmt.Errorf("failed to fetch next upload: %w", err)
		}
		if upload == nil {
			continue
		}
		return true, d.process(ctx, upload, account, comp)
	}
	return false, nil
}

// ProcessPlatform dispatches at most one upload for a single platform.
func (d *Dispatcher) ProcessPlatform(ctx context.Context, platform models.Platform) (bool, error) {
	if _, ok := d.uploaders[platform]; !ok {
		return false, fmt.Errorf("no uploader registered for platform %s", platform)
	}

	upload, account, comp, err := d.queue.NextUpload(ctx, platform)
	if err != nil {
		return false, fmt.Errorf("failed to fetch next upload: %w", err)
	}
	if upload == nil {
		return false, nil
	}
	return true, d.process(ctx, upload, account, comp)
}

// process runs one upload job end to end. Platform failures are recorded
// on the job and the account, not returned: the retry sweep owns them.
func (d *Dispatcher) process(ctx context.Context, upload *models.Upload, account *models.Account, comp *models.Compilation) error {
	uploader := d.uploaders[upload.Platform]

	if err := d.queue.MarkStarted(ctx, upload); err != nil {
		return fmt.Errorf("failed to mark upload started: %w", err)
	}

	creds, err := d.creds.GetCredentials(ctx, account.ID)
	if err != nil {
		return d.fail(ctx, upload, account, fmt.Sprintf("credentials unavailable: %v", err))
	}

	log.Printf("📤 Uploading compilation %s to %s via %s", comp.ID, upload.Platform, account.Name)

	videoID, err := uploader.Upload(ctx, upload, account, comp, creds)
	if err != nil {
		return d.fail(ctx, upload, account, err.Error())
	}
	if videoID == "" {
		return d.fail(ctx, upload, account, "upload returned no video ID")
	}

	if err := d.queue.MarkSuccess(ctx, upload, videoID); err != nil {
		return fmt.Errorf("failed to mark upload success: %w", err)
	}

	comp.Status = models.CompilationUploaded
	comp.PlatformVideoID = videoID
	if err := d.store.UpdateCompilation(ctx, comp); err != nil {
		return fmt.Errorf("failed to mark compilation uploaded: %w", err)
	}

	d.metrics.RecordUpload(string(upload.Platform), "success")
	log.Printf("✅ Uploaded compilation %s: %s video %s", comp.ID, upload.Platform, videoID)
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, upload *models.Upload, account *models.Account, reason string) error {
	d.metrics.RecordUpload(string(upload.Platform), "failure")
	log.Printf("❌ Upload %s failed: %s", upload.ID, reason)
	if err := d.queue.MarkFailed(ctx, upload, reason); err != nil {
		return fmt.Errorf("failed to mark upload failed: %w", err)
	}
	if err := d.creds.RecordError(ctx, account.ID, reason); err != nil {
		return fmt.Errorf("failed to record account error: %w", err)
	}
	return nil
}

// buildDescription assembles the caption shared by the platform
// uploaders: title, credits, category hashtags, capped to limit.
func buildDescription(comp *models.Compilation, extra string, limit int) string {
	parts := []string{comp.Title, ""}
	if comp.CreditsText != "" {
		parts = append(parts, "Credits: "+comp.CreditsText, "")
	}
	if tags := categoryHashtags[comp.Category]; len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	return truncate(strings.Join(parts, "\n"), limit)
}

// truncate caps s at limit bytes without splitting a multi-byte rune —
// platform caption fields reject invalid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
