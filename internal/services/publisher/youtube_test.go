package publisher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

func writeRenderedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ytCreds() map[string]string {
	return map[string]string{
		"client_id":     "cid",
		"client_secret": "secret",
		"refresh_token": "refresh",
	}
}

func TestYouTubeUpload(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh" {
			t.Errorf("unexpected token form: %v", r.Form)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer tokenSrv.Close()

	var gotAuth, gotBody string
	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		json.NewEncoder(w).Encode(map[string]string{"id": "yt-video-1"})
	}))
	defer uploadSrv.Close()

	y := NewYouTubeUploader()
	y.tokenURL = tokenSrv.URL
	y.apiURL = uploadSrv.URL

	comp := &models.Compilation{
		ID:         "c1",
		Title:      "Epic Fails Compilation #1",
		Category:   models.CategoryFails,
		OutputPath: writeRenderedFile(t),
	}
	upload := &models.Upload{Privacy: "public"}
	account := &models.Account{Platform: models.PlatformYouTube, Name: "yt-main"}

	videoID, err := y.Upload(context.Background(), upload, account, comp, ytCreds())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if videoID != "yt-video-1" {
		t.Errorf("video ID = %q, want yt-video-1", videoID)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q, want Bearer tok", gotAuth)
	}
	for _, want := range []string{"Epic Fails Compilation #1", `"privacyStatus":"public"`, "video-bytes"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("upload body missing %q", want)
		}
	}
}

func TestYouTubeUploadMissingCredentials(t *testing.T) {
	y := NewYouTubeUploader()
	comp := &models.Compilation{ID: "c1", OutputPath: writeRenderedFile(t)}
	account := &models.Account{Platform: models.PlatformYouTube}

	_, err := y.Upload(context.Background(), &models.Upload{}, account, comp, map[string]string{
		"client_id": "cid",
	})
	if err == nil || !strings.Contains(err.Error(), "client_secret") {
		t.Fatalf("err = %v, want missing client_secret", err)
	}
}

func TestYouTubeUploadWrongPlatform(t *testing.T) {
	y := NewYouTubeUploader()
	account := &models.Account{Platform: models.PlatformTikTok, Name: "tt"}
	if _, err := y.Upload(context.Background(), &models.Upload{}, account, &models.Compilation{}, ytCreds()); err == nil {
		t.Fatal("expected error for non-YouTube account")
	}
}

func TestYouTubeUploadTokenRejected(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenSrv.Close()

	y := NewYouTubeUploader()
	y.tokenURL = tokenSrv.URL

	comp := &models.Compilation{ID: "c1", OutputPath: writeRenderedFile(t)}
	account := &models.Account{Platform: models.PlatformYouTube}

	_, err := y.Upload(context.Background(), &models.Upload{}, account, comp, ytCreds())
	if err == nil || !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("err = %v, want invalid_grant", err)
	}
}

func TestTikTokUpload(t *testing.T) {
	var putBody string
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		putBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer fileSrv.Close()

	initSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tt-token" {
			t.Errorf("authorization = %q", got)
		}
		var req tiktokInitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.PostInfo.PrivacyLevel != "PUBLIC_TO_EVERYONE" {
			t.Errorf("privacy = %q", req.PostInfo.PrivacyLevel)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":  map[string]string{"publish_id": "pub-1", "upload_url": fileSrv.URL},
			"error": map[string]string{"code": "ok"},
		})
	}))
	defer initSrv.Close()

	tt := NewTikTokUploader()
	tt.initURL = initSrv.URL

	comp := &models.Compilation{
		ID:         "c1",
		Title:      "Comedy Gold",
		Category:   models.CategoryComedy,
		OutputPath: writeRenderedFile(t),
	}
	upload := &models.Upload{Privacy: "public"}
	account := &models.Account{Platform: models.PlatformTikTok, Name: "tt-main"}

	videoID, err := tt.Upload(context.Background(), upload, account, comp,
		map[string]string{"access_token": "tt-token"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if videoID != "pub-1" {
		t.Errorf("video ID = %q, want pub-1", videoID)
	}
	if putBody != "video-bytes" {
		t.Errorf("PUT body = %q, want file contents", putBody)
	}
}

func TestTikTokUploadInitRejected(t *testing.T) {
	initSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":  map[string]string{},
			"error": map[string]string{"code": "spam_risk_too_many_posts", "message": "daily post cap"},
		})
	}))
	defer initSrv.Close()

	tt := NewTikTokUploader()
	tt.initURL = initSrv.URL

	comp := &models.Compilation{ID: "c1", OutputPath: writeRenderedFile(t)}
	account := &models.Account{Platform: models.PlatformTikTok}

	_, err := tt.Upload(context.Background(), &models.Upload{}, account, comp,
		map[string]string{"access_token": "tt-token"})
	if err == nil || !strings.Contains(err.Error(), "daily post cap") {
		t.Fatalf("err = %v, want daily post cap", err)
	}
}

func TestTikTokUploadMissingToken(t *testing.T) {
	tt := NewTikTokUploader()
	comp := &models.Compilation{ID: "c1", OutputPath: writeRenderedFile(t)}
	account := &models.Account{Platform: models.PlatformTikTok}

	_, err := tt.Upload(context.Background(), &models.Upload{}, account, comp, map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "access_token") {
		t.Fatalf("err = %v, want missing access_token", err)
	}
}
