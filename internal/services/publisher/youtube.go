package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

const (
	youtubeTokenURL  = "https://oauth2.googleapis.com/token"
	youtubeUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=multipart&part=snippet,status"

	youtubeTitleLimit       = 100
	youtubeDescriptionLimit = 5000
)

// YouTubeUploader publishes videos through the YouTube Data API v3.
// Account credentials carry client_id, client_secret, and refresh_token;
// an access token is minted per upload.
type YouTubeUploader struct {
	client   *http.Client
	tokenURL string
	apiURL   string
}

// NewYouTubeUploader creates a YouTube uploader.
func NewYouTubeUploader() *YouTubeUploader {
	return &YouTubeUploader{
		client:   &http.Client{Timeout: 10 * time.Minute},
		tokenURL: youtubeTokenURL,
		apiURL:   youtubeUploadURL,
	}
}

type youtubeSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"categoryId"`
}

type youtubeStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type youtubeMetadata struct {
	Snippet youtubeSnippet `json:"snippet"`
	Status  youtubeStatus  `json:"status"`
}

type youtubeVideo struct {
	ID string `json:"id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken exchanges the account's refresh token for an access token.
func (y *YouTubeUploader) accessToken(ctx context.Context, creds map[string]string) (string, error) {
	for _, key := range []string{"client_id", "client_secret", "refresh_token"} {
		if creds[key] == "" {
			return "", fmt.Errorf("missing %s in credentials", key)
		}
	}

	form := url.Values{
		"client_id":     {creds["client_id"]},
		"client_secret": {creds["client_secret"]},
		"refresh_token": {creds["refresh_token"]},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := y.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token refresh returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return tok.AccessToken, nil
}

// metadata builds the video resource sent alongside the media body.
func (y *YouTubeUploader) metadata(comp *models.Compilation, privacy string) youtubeMetadata {
	tags := []string{"shorts", "viral", "compilation", string(comp.Category)}
	for _, h := range categoryHashtags[comp.Category] {
		tags = append(tags, strings.TrimPrefix(h, "#"))
	}

	return youtubeMetadata{
		Snippet: youtubeSnippet{
			Title:       truncate(comp.Title, youtubeTitleLimit),
			Description: buildDescription(comp, "", youtubeDescriptionLimit),
			Tags:        tags,
			CategoryID:  "24", // Entertainment
		},
		Status: youtubeStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: false,
		},
	}
}

// Upload publishes the compilation's rendered file and returns the
// YouTube video ID.
func (y *YouTubeUploader) Upload(ctx context.Context, upload *models.Upload, account *models.Account, comp *models.Compilation, creds map[string]string) (string, error) {
	if account.Platform != models.PlatformYouTube {
		return "", fmt.Errorf("account %s is not a YouTube account", account.Name)
	}
	if comp.OutputPath == "" {
		return "", fmt.Errorf("compilation %s has no rendered file", comp.ID)
	}
	file, err := os.Open(comp.OutputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open rendered file: %w", err)
	}
	defer file.Close()

	token, err := y.accessToken(ctx, creds)
	if err != nil {
		return "", err
	}

	privacy := upload.Privacy
	if privacy == "" {
		privacy = "public"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("failed to build metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(y.metadata(comp, privacy)); err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", "video/mp4")
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return "", fmt.Errorf("failed to build media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, file); err != nil {
		return "", fmt.Errorf("failed to read rendered file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := y.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var video youtubeVideo
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if video.ID == "" {
		return "", fmt.Errorf("upload response missing video ID")
	}
	return video.ID, nil
}
