// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// Unlike Python dataclasses with ORM mixins, Go models are just data
// containers — no ORM magic. The database package handles persistence.
//
// JSON tags (e.g., `json:"id"`) control how struct fields are serialized
// to/from JSON. The `db` tags work with sqlx for database column mapping.
package models

import (
	"time"

	"github.com/lib/pq"
)

// ItemStatus represents the lifecycle state of a candidate clip.
// Go Pattern: We use string constants instead of enums (Go doesn't have enums).
// The progression is monotonic forward; SKIPPED and FAILED are absorbing,
// except GROUPED reverts to CLASSIFIED when its compilation is ungrouped.
type ItemStatus string

const (
	ItemDiscovered ItemStatus = "discovered" // Metadata fetched, nothing else
	ItemDownloaded ItemStatus = "downloaded" // Media file saved locally
	ItemClassified ItemStatus = "classified" // Category assigned and accepted
	ItemGrouped    ItemStatus = "grouped"    // Assigned to a compilation
	ItemUsed       ItemStatus = "used"       // In a rendered compilation
	ItemSkipped    ItemStatus = "skipped"    // Rejected as content (terminal)
	ItemFailed     ItemStatus = "failed"     // Infra failure, retryable by operator
)

// CompilationStatus represents the lifecycle state of a compilation.
type CompilationStatus string

const (
	CompilationPending   CompilationStatus = "pending"   // Clips grouped, not yet rendered
	CompilationRendering CompilationStatus = "rendering" // Render in progress; membership frozen
	CompilationReview    CompilationStatus = "review"    // Rendered, awaiting human review
	CompilationApproved  CompilationStatus = "approved"  // Ready to upload
	CompilationUploaded  CompilationStatus = "uploaded"  // Published on a platform
	CompilationRejected  CompilationStatus = "rejected"  // Rejected at review (or revoked approval)
)

// UploadStatus represents the state of one upload job.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadFailed    UploadStatus = "failed"
)

// Platform identifies an upload destination.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTikTok  Platform = "tiktok"
)

// AllPlatforms is the default routing target set.
var AllPlatforms = []Platform{PlatformYouTube, PlatformTikTok}

// Category is a closed set of content labels the oracle may assign.
// Anything outside the set is coerced to CategoryReject — the gate treats
// reject as a content judgment, never as an error.
type Category string

const (
	CategoryFails  Category = "fails"
	CategoryComedy Category = "comedy"
	CategoryReject Category = "reject"
)

// AcceptedCategories are the labels that can pass the acceptance gate.
var AcceptedCategories = []Category{CategoryFails, CategoryComedy}

// ValidCategory reports whether the label is an accepted (non-reject) category.
func ValidCategory(c Category) bool {
	for _, v := range AcceptedCategories {
		if c == v {
			return true
		}
	}
	return false
}

// ContentStrategy is an account-level content policy label.
type ContentStrategy string

const (
	StrategyFails  ContentStrategy = "fails"
	StrategyComedy ContentStrategy = "comedy"
	StrategyMixed  ContentStrategy = "mixed" // Accepts every category
)

// StrategiesForCategory maps a category to the ordered list of strategies
// that may serve it: the category-specific strategy first, then mixed.
func StrategiesForCategory(category Category) []ContentStrategy {
	switch category {
	case CategoryFails:
		return []ContentStrategy{StrategyFails, StrategyMixed}
	case CategoryComedy:
		return []ContentStrategy{StrategyComedy, StrategyMixed}
	default:
		return []ContentStrategy{StrategyMixed}
	}
}

// Item is a candidate clip (or source compilation) tracked through the pipeline.
type Item struct {
	ID         string `json:"id" db:"id"`                   // Internal content-derived ID
	ExternalID string `json:"external_id" db:"external_id"` // Platform's video ID
	URL        string `json:"url" db:"url"`

	Description string         `json:"description" db:"description"`
	Author      string         `json:"author" db:"author"`
	Hashtags    pq.StringArray `json:"hashtags" db:"hashtags"`

	Plays  int `json:"plays" db:"plays"`
	Likes  int `json:"likes" db:"likes"`
	Shares int `json:"shares" db:"shares"`

	Status    ItemStatus `json:"status" db:"status"`
	LocalPath string     `json:"local_path" db:"local_path"`
	Duration  float64    `json:"duration" db:"duration"` // Seconds
	Width     int        `json:"width" db:"width"`
	Height    int        `json:"height" db:"height"`

	// Derived scores, all 0.0-1.0, default 0 until scored.
	Category           Category `json:"category" db:"category"`
	Subcategory        string   `json:"subcategory" db:"subcategory"`
	Confidence         float64  `json:"confidence" db:"confidence"`
	CompilationScore   float64  `json:"compilation_score" db:"compilation_score"`
	VisualIndependence float64  `json:"visual_independence" db:"visual_independence"`
	Reasoning          string   `json:"reasoning,omitempty" db:"reasoning"`

	// Grouping fields. CompilationID empty <=> status not GROUPED/USED.
	CompilationID string `json:"compilation_id" db:"compilation_id"`
	ClipOrder     int    `json:"clip_order" db:"clip_order"`
	Caption       string `json:"caption,omitempty" db:"caption"`

	// Source-compilation items are already-assembled compilations scraped
	// whole; they feed the mega-compilation variant instead of clip grouping.
	IsSourceCompilation bool   `json:"is_source_compilation" db:"is_source_compilation"`
	CompilationType     string `json:"compilation_type,omitempty" db:"compilation_type"`

	Error      string `json:"error,omitempty" db:"error"`
	RetryCount int    `json:"retry_count" db:"retry_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EngagementScore is the ranking proxy used when selecting clips:
// likes weighted above raw plays, shares counted double.
func (i *Item) EngagementScore() int {
	return i.Likes + 2*i.Shares
}

// IsUnscored reports whether the item predates the scoring fields.
// Legacy items with all-zero scores bypass the quality filter — this is a
// deliberate backwards-compatibility shim, named so a genuine zero score
// is never confused with "never scored".
func (i *Item) IsUnscored() bool {
	return i.CompilationScore == 0 && i.VisualIndependence == 0
}

// Compilation is an ordered group of items rendered into one output video.
type Compilation struct {
	ID          string         `json:"id" db:"id"`
	Category    Category       `json:"category" db:"category"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"` // Subcategory/quality annotation
	ItemIDs     pq.StringArray `json:"item_ids" db:"item_ids"`       // Render order

	Status          CompilationStatus `json:"status" db:"status"`
	ConfidenceScore float64           `json:"confidence_score" db:"confidence_score"` // Mean over members
	AutoApproved    bool              `json:"auto_approved" db:"auto_approved"`

	OutputPath string  `json:"output_path" db:"output_path"`
	Duration   float64 `json:"duration" db:"duration"`
	MusicTrack string  `json:"music_track" db:"music_track"`

	PlatformVideoID string `json:"platform_video_id,omitempty" db:"platform_video_id"`
	CreditsText     string `json:"credits_text" db:"credits_text"` // "@user1, @user2, ..."

	// Caption structure used by the renderer.
	Hook         string         `json:"hook,omitempty" db:"hook"`
	ClipCaptions pq.StringArray `json:"clip_captions,omitempty" db:"clip_captions"`
	Transitions  pq.StringArray `json:"transitions,omitempty" db:"transitions"`
	EndCard      string         `json:"end_card,omitempty" db:"end_card"`

	Error string `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Account is an upload destination on one platform.
type Account struct {
	ID       string   `json:"id" db:"id"`
	Platform Platform `json:"platform" db:"platform"`
	Name     string   `json:"name" db:"name"`
	Handle   string   `json:"handle,omitempty" db:"handle"`

	ContentStrategy  ContentStrategy `json:"content_strategy" db:"content_strategy"`
	DailyUploadLimit int             `json:"daily_upload_limit" db:"daily_upload_limit"`
	UploadsToday     int             `json:"uploads_today" db:"uploads_today"`
	LastUploadAt     *time.Time      `json:"last_upload_at,omitempty" db:"last_upload_at"` // Pointer = nullable
	IsActive         bool            `json:"is_active" db:"is_active"`

	// Credentials are sealed with secretbox before they touch the database;
	// the raw blob is opaque to everything but the account manager.
	CredentialsEncrypted []byte `json:"-" db:"credentials_encrypted"` // "-" means never serialize to JSON

	Error string `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasCredentials reports whether the account has a stored credential blob.
func (a *Account) HasCredentials() bool {
	return len(a.CredentialsEncrypted) > 0
}

// RemainingToday is the account's remaining daily upload capacity.
func (a *Account) RemainingToday() int {
	remaining := a.DailyUploadLimit - a.UploadsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RoutingRule is a declarative (category -> account) routing preference,
// consulted before strategy-based fallback matching.
type RoutingRule struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	Category      Category  `json:"category" db:"category"`
	MinConfidence float64   `json:"min_confidence" db:"min_confidence"`
	Priority      int       `json:"priority" db:"priority"` // Higher = preferred
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Upload is a queued publish job for one (compilation, account) pair.
// At most one non-terminal upload may exist per pair.
type Upload struct {
	ID            string       `json:"id" db:"id"`
	CompilationID string       `json:"compilation_id" db:"compilation_id"`
	AccountID     string       `json:"account_id" db:"account_id"`
	Platform      Platform     `json:"platform" db:"platform"`
	Status        UploadStatus `json:"status" db:"status"`
	Privacy       string       `json:"privacy" db:"privacy"` // "public" or "private"

	PlatformVideoID string     `json:"platform_video_id,omitempty" db:"platform_video_id"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	UploadedAt      *time.Time `json:"uploaded_at,omitempty" db:"uploaded_at"`

	Error      string `json:"error,omitempty" db:"error"`
	RetryCount int    `json:"retry_count" db:"retry_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the upload has reached a final state.
func (u *Upload) IsTerminal() bool {
	return u.Status == UploadSuccess || u.Status == UploadFailed
}

// User is an operator who reviews compilations through the dashboard.
// Note: We store the bcrypt HASH of the password, never the password itself.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// APIKey authenticates the external trigger (cron) against the pipeline API.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	KeyHash    string     `json:"-" db:"key_hash"`
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"` // First 8 chars for identification
	Name       string     `json:"name" db:"name"`
	Active     bool       `json:"active" db:"active"`
	RateLimit  int        `json:"rate_limit" db:"rate_limit"` // Requests per hour
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// --- Request/Response DTOs (Data Transfer Objects) ---
// Go Pattern: Separate structs for API input/output vs database models.
// This keeps your API contract clean and independent of your database schema.

// ClassifyRequest is the JSON body for POST /api/v1/pipeline/classify.
type ClassifyRequest struct {
	Limit int `json:"limit,omitempty"` // 0 = no limit
}

// ClassifyResponse reports the outcome of a classification sweep.
type ClassifyResponse struct {
	Classified int `json:"classified"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// GroupRequest is the JSON body for POST /api/v1/pipeline/group.
type GroupRequest struct {
	MaxCompilations int `json:"max_compilations,omitempty"`
	ClipsPer        int `json:"clips_per,omitempty"`
}

// MegaGroupRequest is the JSON body for POST /api/v1/pipeline/group/mega.
// An empty CompilationType means "every groupable source type".
type MegaGroupRequest struct {
	CompilationType string `json:"compilation_type,omitempty"`
	NumSources      int    `json:"num_sources,omitempty"`
	MaxCompilations int    `json:"max_compilations,omitempty"`
}

// CreateAccountRequest is the JSON body for POST /api/v1/accounts.
type CreateAccountRequest struct {
	Platform   Platform        `json:"platform" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	Handle     string          `json:"handle,omitempty"`
	Strategy   ContentStrategy `json:"strategy,omitempty"`
	DailyLimit int             `json:"daily_limit,omitempty"`
}

// UpdateAccountRequest is the JSON body for PATCH /api/v1/accounts/:id.
// Pointer fields distinguish "not provided" from zero values.
type UpdateAccountRequest struct {
	Name       *string          `json:"name,omitempty"`
	Handle     *string          `json:"handle,omitempty"`
	Strategy   *ContentStrategy `json:"strategy,omitempty"`
	DailyLimit *int             `json:"daily_limit,omitempty"`
	IsActive   *bool            `json:"is_active,omitempty"`
}

// SetCredentialsRequest is the JSON body for PUT /api/v1/accounts/:id/credentials.
type SetCredentialsRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// CreateRoutingRuleRequest is the JSON body for POST /api/v1/accounts/:id/rules.
type CreateRoutingRuleRequest struct {
	Category      Category `json:"category" binding:"required"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
	Priority      int      `json:"priority,omitempty"`
}

// RegisterRequest is the JSON body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the JWT session token.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateAPIKeyRequest is the JSON body for POST /api/v1/keys.
type CreateAPIKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	RateLimit int    `json:"rate_limit,omitempty"` // 0 = use default
}

// CreateAPIKeyResponse includes the raw key — shown only once at creation time.
type CreateAPIKeyResponse struct {
	APIKey
	RawKey string `json:"raw_key"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Workers  int    `json:"workers"`
}

// PipelineStats summarizes store contents for the dashboard.
type PipelineStats struct {
	ItemsByStatus        map[string]int `json:"items_by_status"`
	CompilationsByStatus map[string]int `json:"compilations_by_status"`
	UploadsByStatus      map[string]int `json:"uploads_by_status"`
}
