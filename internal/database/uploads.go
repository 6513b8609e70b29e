// uploads.go — queries for the upload job queue.
package database

import (
	"context"
	"fmt"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

const uploadColumns = `id, compilation_id, account_id, platform, status, privacy,
	platform_video_id, scheduled_at, uploaded_at, error, retry_count,
	created_at, updated_at`

// CreateUpload inserts a new upload job.
func (db *DB) CreateUpload(ctx context.Context, upload *models.Upload) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO uploads (id, compilation_id, account_id, platform, status, privacy,
			platform_video_id, scheduled_at, uploaded_at, error, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		upload.ID, upload.CompilationID, upload.AccountID, upload.Platform,
		upload.Status, upload.Privacy, upload.PlatformVideoID,
		upload.ScheduledAt, upload.UploadedAt, upload.Error, upload.RetryCount,
	).Scan(&upload.CreatedAt, &upload.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// UpdateUpload persists an upload job's mutable fields.
func (db *DB) UpdateUpload(ctx context.Context, upload *models.Upload) error {
	query := `
		UPDATE uploads
		SET status = $2, privacy = $3, platform_video_id = $4,
			scheduled_at = $5, uploaded_at = $6, error = $7, retry_count = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return db.QueryRowContext(ctx, query,
		upload.ID, upload.Status, upload.Privacy, upload.PlatformVideoID,
		upload.ScheduledAt, upload.UploadedAt, upload.Error, upload.RetryCount,
	).Scan(&upload.UpdatedAt)
}

// GetUpload retrieves a single upload job by ID.
func (db *DB) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	var upload models.Upload
	err := db.GetContext(ctx, &upload, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("upload not found: %w", err)
	}
	return &upload, nil
}

// GetUploadsByStatus returns uploads in one state, oldest first.
// limit <= 0 means no limit.
func (db *DB) GetUploadsByStatus(ctx context.Context, status models.UploadStatus, limit int) ([]models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE status = $1 ORDER BY created_at ASC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var uploads []models.Upload
	if err := db.SelectContext(ctx, &uploads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	return uploads, nil
}

// ListUploads returns the most recent uploads across all states.
func (db *DB) ListUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	if limit <= 0 {
		limit = 200
	}
	var uploads []models.Upload
	err := db.SelectContext(ctx, &uploads,
		`SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	return uploads, nil
}

// GetPendingUploadsForPlatform returns PENDING uploads for one platform in
// creation order. The dispatcher walks this list and takes the first job
// whose account is under its daily cap and past its cool-down.
func (db *DB) GetPendingUploadsForPlatform(ctx context.Context, platform models.Platform) ([]models.Upload, error) {
	var uploads []models.Upload
	err := db.SelectContext(ctx, &uploads,
		`SELECT `+uploadColumns+` FROM uploads
		 WHERE status = $1 AND platform = $2
		 ORDER BY created_at ASC`, models.UploadPending, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending uploads: %w", err)
	}
	return uploads, nil
}

// GetUploadsForCompilation returns every upload for one compilation.
func (db *DB) GetUploadsForCompilation(ctx context.Context, compilationID string) ([]models.Upload, error) {
	var uploads []models.Upload
	err := db.SelectContext(ctx, &uploads,
		`SELECT `+uploadColumns+` FROM uploads
		 WHERE compilation_id = $1 ORDER BY created_at ASC`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	return uploads, nil
}

// NonTerminalUploadExists reports whether a compilation already has a
// PENDING or UPLOADING job on the given account. The router checks this
// before queueing — at most one live upload per (compilation, account).
func (db *DB) NonTerminalUploadExists(ctx context.Context, compilationID, accountID string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM uploads
			WHERE compilation_id = $1 AND account_id = $2 AND status IN ($3, $4)
		)`, compilationID, accountID, models.UploadPending, models.UploadUploading)
	if err != nil {
		return false, fmt.Errorf("failed to check upload existence: %w", err)
	}
	return exists, nil
}

// SuccessfulUploadExists reports whether a compilation already published
// on the given account.
func (db *DB) SuccessfulUploadExists(ctx context.Context, compilationID, accountID string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM uploads
			WHERE compilation_id = $1 AND account_id = $2 AND status = $3
		)`, compilationID, accountID, models.UploadSuccess)
	if err != nil {
		return false, fmt.Errorf("failed to check upload existence: %w", err)
	}
	return exists, nil
}

// GetRetryableUploads returns FAILED uploads still under the retry ceiling,
// oldest first.
func (db *DB) GetRetryableUploads(ctx context.Context, maxRetries int) ([]models.Upload, error) {
	var uploads []models.Upload
	err := db.SelectContext(ctx, &uploads,
		`SELECT `+uploadColumns+` FROM uploads
		 WHERE status = $1 AND retry_count < $2
		 ORDER BY created_at ASC`, models.UploadFailed, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable uploads: %w", err)
	}
	return uploads, nil
}

// CountUploadsByStatus returns upload counts grouped by state.
func (db *DB) CountUploadsByStatus(ctx context.Context) (map[string]int, error) {
	return db.statusCounts(ctx, "uploads")
}
