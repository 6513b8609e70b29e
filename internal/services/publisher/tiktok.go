package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

const (
	tiktokInitURL = "https://open.tiktokapis.com/v2/post/publish/video/init/"

	tiktokDescriptionLimit = 2200
)

// TikTokUploader publishes videos through the TikTok Content Posting
// API. Account credentials carry an access_token; the API hands back an
// upload URL the file is PUT to, plus a publish ID we record as the
// platform video ID.
type TikTokUploader struct {
	client  *http.Client
	initURL string
}

// NewTikTokUploader creates a TikTok uploader.
func NewTikTokUploader() *TikTokUploader {
	return &TikTokUploader{
		client:  &http.Client{Timeout: 10 * time.Minute},
		initURL: tiktokInitURL,
	}
}

type tiktokInitRequest struct {
	PostInfo   tiktokPostInfo   `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
}

type tiktokPostInfo struct {
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
}

type tiktokSourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// description builds the TikTok caption: title, category hashtags, and
// the evergreen discovery tags.
func (t *TikTokUploader) description(comp *models.Compilation) string {
	return buildDescription(comp, "#fyp #viral #foryou #foryoupage", tiktokDescriptionLimit)
}

// Upload publishes the compilation's rendered file and returns the
// publish ID.
func (t *TikTokUploader) Upload(ctx context.Context, upload *models.Upload, account *models.Account, comp *models.Compilation, creds map[string]string) (string, error) {
	if account.Platform != models.PlatformTikTok {
		return "", fmt.Errorf("account %s is not a TikTok account", account.Name)
	}
	if comp.OutputPath == "" {
		return "", fmt.Errorf("compilation %s has no rendered file", comp.ID)
	}
	token := creds["access_token"]
	if token == "" {
		return "", fmt.Errorf("missing access_token in credentials")
	}

	fi, err := os.Stat(comp.OutputPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat rendered file: %w", err)
	}

	privacy := "PUBLIC_TO_EVERYONE"
	if upload.Privacy == "private" {
		privacy = "SELF_ONLY"
	}

	initBody, err := json.Marshal(tiktokInitRequest{
		PostInfo: tiktokPostInfo{
			Title:        t.description(comp),
			PrivacyLevel: privacy,
		},
		SourceInfo: tiktokSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       fi.Size(),
			ChunkSize:       fi.Size(),
			TotalChunkCount: 1,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode init request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.initURL, bytes.NewReader(initBody))
	if err != nil {
		return "", fmt.Errorf("failed to build init request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("init request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("init returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var initResp tiktokInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return "", fmt.Errorf("failed to decode init response: %w", err)
	}
	if initResp.Error.Code != "" && initResp.Error.Code != "ok" {
		return "", fmt.Errorf("init rejected: %s (%s)", initResp.Error.Message, initResp.Error.Code)
	}
	if initResp.Data.PublishID == "" || initResp.Data.UploadURL == "" {
		return "", fmt.Errorf("init response missing publish_id or upload_url")
	}

	file, err := os.Open(comp.OutputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open rendered file: %w", err)
	}
	defer file.Close()

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, initResp.Data.UploadURL, file)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	putReq.ContentLength = fi.Size()
	putReq.Header.Set("Content-Type", "video/mp4")
	putReq.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", fi.Size()-1, fi.Size()))

	putResp, err := t.client.Do(putReq)
	if err != nil {
		return "", fmt.Errorf("file upload failed: %w", err)
	}
	defer putResp.Body.Close()

	if putResp.StatusCode != http.StatusOK && putResp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(putResp.Body, 4096))
		return "", fmt.Errorf("file upload returned %d: %s", putResp.StatusCode, strings.TrimSpace(string(body)))
	}

	return initResp.Data.PublishID, nil
}
