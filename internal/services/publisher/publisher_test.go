package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

type fakeQueue struct {
	upload  *models.Upload
	account *models.Account
	comp    *models.Compilation

	started   bool
	successID string
	failedMsg string
}

func (f *fakeQueue) NextUpload(_ context.Context, platform models.Platform) (*models.Upload, *models.Account, *models.Compilation, error) {
	if f.upload == nil || f.upload.Platform != platform {
		return nil, nil, nil, nil
	}
	return f.upload, f.account, f.comp, nil
}

func (f *fakeQueue) MarkStarted(_ context.Context, _ *models.Upload) error {
	f.started = true
	return nil
}

func (f *fakeQueue) MarkSuccess(_ context.Context, _ *models.Upload, platformVideoID string) error {
	f.successID = platformVideoID
	return nil
}

func (f *fakeQueue) MarkFailed(_ context.Context, _ *models.Upload, errText string) error {
	f.failedMsg = errText
	return nil
}

type fakeCreds struct {
	creds     map[string]string
	credsErr  error
	errorsFor []string
}

func (f *fakeCreds) GetCredentials(_ context.Context, _ string) (map[string]string, error) {
	return f.creds, f.credsErr
}

func (f *fakeCreds) RecordError(_ context.Context, id, _ string) error {
	f.errorsFor = append(f.errorsFor, id)
	return nil
}

type fakeCompStore struct {
	updated *models.Compilation
}

func (f *fakeCompStore) UpdateCompilation(_ context.Context, comp *models.Compilation) error {
	cp := *comp
	f.updated = &cp
	return nil
}

type fakeUploader struct {
	videoID string
	err     error
	calls   int
}

func (f *fakeUploader) Upload(_ context.Context, _ *models.Upload, _ *models.Account, _ *models.Compilation, _ map[string]string) (string, error) {
	f.calls++
	return f.videoID, f.err
}

func queuedJob(platform models.Platform) *fakeQueue {
	return &fakeQueue{
		upload:  &models.Upload{ID: "u1", Platform: platform, Status: models.UploadPending, Privacy: "public"},
		account: &models.Account{ID: "a1", Platform: platform, Name: "acct"},
		comp:    &models.Compilation{ID: "c1", Status: models.CompilationApproved, OutputPath: "/tmp/c1.mp4"},
	}
}

func TestProcessNextSuccess(t *testing.T) {
	queue := queuedJob(models.PlatformYouTube)
	creds := &fakeCreds{creds: map[string]string{"refresh_token": "r"}}
	store := &fakeCompStore{}
	uploader := &fakeUploader{videoID: "yt123"}

	d := NewDispatcher(queue, creds, store, map[models.Platform]Uploader{
		models.PlatformYouTube: uploader,
	})

	dispatched, err := d.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if !dispatched {
		t.Fatal("expected a dispatch")
	}
	if !queue.started {
		t.Error("upload never marked started")
	}
	if queue.successID != "yt123" {
		t.Errorf("success ID = %q, want yt123", queue.successID)
	}
	if store.updated == nil || store.updated.Status != models.CompilationUploaded {
		t.Error("compilation not marked uploaded")
	}
	if store.updated.PlatformVideoID != "yt123" {
		t.Errorf("platform video ID = %q, want yt123", store.updated.PlatformVideoID)
	}
}

func TestProcessNextUploadFailureRecorded(t *testing.T) {
	queue := queuedJob(models.PlatformYouTube)
	creds := &fakeCreds{creds: map[string]string{}}
	store := &fakeCompStore{}
	uploader := &fakeUploader{err: errors.New("quota exceeded")}

	d := NewDispatcher(queue, creds, store, map[models.Platform]Uploader{
		models.PlatformYouTube: uploader,
	})

	dispatched, err := d.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if !dispatched {
		t.Fatal("expected a dispatch")
	}
	if queue.failedMsg != "quota exceeded" {
		t.Errorf("failure message = %q, want quota exceeded", queue.failedMsg)
	}
	if len(creds.errorsFor) != 1 || creds.errorsFor[0] != "a1" {
		t.Errorf("account error not recorded: %v", creds.errorsFor)
	}
	if store.updated != nil {
		t.Error("compilation updated despite failed upload")
	}
}

func TestProcessNextEmptyVideoIDFails(t *testing.T) {
	queue := queuedJob(models.PlatformYouTube)
	creds := &fakeCreds{creds: map[string]string{}}
	uploader := &fakeUploader{videoID: ""}

	d := NewDispatcher(queue, creds, &fakeCompStore{}, map[models.Platform]Uploader{
		models.PlatformYouTube: uploader,
	})

	if _, err := d.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if queue.failedMsg == "" {
		t.Error("empty video ID not treated as failure")
	}
}

func TestProcessNextCredentialFailure(t *testing.T) {
	queue := queuedJob(models.PlatformTikTok)
	creds := &fakeCreds{credsErr: errors.New("sealed blob corrupt")}
	uploader := &fakeUploader{videoID: "tt1"}

	d := NewDispatcher(queue, creds, &fakeCompStore{}, map[models.Platform]Uploader{
		models.PlatformTikTok: uploader,
	})

	if _, err := d.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if uploader.calls != 0 {
		t.Error("uploader called without credentials")
	}
	if !strings.Contains(queue.failedMsg, "credentials unavailable") {
		t.Errorf("failure message = %q", queue.failedMsg)
	}
}

func TestProcessNextIdleQueues(t *testing.T) {
	d := NewDispatcher(&fakeQueue{}, &fakeCreds{}, &fakeCompStore{}, map[models.Platform]Uploader{
		models.PlatformYouTube: &fakeUploader{},
		models.PlatformTikTok:  &fakeUploader{},
	})

	dispatched, err := d.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if dispatched {
		t.Error("dispatched with empty queues")
	}
}

func TestProcessPlatformUnknownPlatform(t *testing.T) {
	d := NewDispatcher(&fakeQueue{}, &fakeCreds{}, &fakeCompStore{}, map[models.Platform]Uploader{})
	if _, err := d.ProcessPlatform(context.Background(), models.PlatformYouTube); err == nil {
		t.Fatal("expected error for unregistered platform")
	}
}

func TestBuildDescription(t *testing.T) {
	comp := &models.Compilation{
		Title:       "Epic Fails Compilation #3",
		Category:    models.CategoryFails,
		CreditsText: "@alice, @bob",
	}

	desc := buildDescription(comp, "#fyp", tiktokDescriptionLimit)
	for _, want := range []string{"Epic Fails Compilation #3", "Credits: @alice, @bob", "#fail", "#fyp"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q:\n%s", want, desc)
		}
	}
}

func TestBuildDescriptionTruncates(t *testing.T) {
	comp := &models.Compilation{
		Title:    strings.Repeat("a", 300),
		Category: models.CategoryComedy,
	}
	if got := buildDescription(comp, "", 100); len(got) != 100 {
		t.Errorf("length = %d, want 100", len(got))
	}
}

// TestBuildDescriptionTruncatesOnRuneBoundary verifies the caption cap never
// splits a multi-byte rune — platforms reject invalid UTF-8 in descriptions.
func TestBuildDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	comp := &models.Compilation{
		Title:    strings.Repeat("🔥", 100), // 4 bytes each
		Category: models.CategoryComedy,
	}

	// Walk the cap across every byte offset of the emoji so at least three
	// of them land mid-rune.
	for limit := 90; limit < 94; limit++ {
		got := buildDescription(comp, "", limit)
		if len(got) > limit {
			t.Errorf("limit %d: length = %d", limit, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("limit %d: truncated description is not valid UTF-8: %q", limit, got)
		}
	}

	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("truncate under limit = %q, want unchanged", got)
	}
}
