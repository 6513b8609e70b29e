// compilations.go — queries over the compilations table, including the
// transactional create-with-members and ungroup operations.
package database

import (
	"context"
	"fmt"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

const compilationColumns = `id, category, title, description, item_ids, status,
	confidence_score, auto_approved, output_path, duration, music_track,
	platform_video_id, credits_text, hook, clip_captions, transitions, end_card,
	error, created_at, updated_at`

// CreateCompilationWithItems inserts a compilation and claims its member
// items (compilation_id, clip_order, status GROUPED) in one transaction.
// The grouper must never do this as N separate auto-committing calls — an
// interruption would leave a half-claimed compilation behind.
func (db *DB) CreateCompilationWithItems(ctx context.Context, comp *models.Compilation, items []models.Item) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after Commit — safe to defer unconditionally.
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO compilations (id, category, title, description, item_ids, status,
			confidence_score, auto_approved, output_path, duration, music_track,
			platform_video_id, credits_text, hook, clip_captions, transitions, end_card, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`,
		comp.ID, comp.Category, comp.Title, comp.Description, comp.ItemIDs, comp.Status,
		comp.ConfidenceScore, comp.AutoApproved, comp.OutputPath, comp.Duration,
		comp.MusicTrack, comp.PlatformVideoID, comp.CreditsText,
		comp.Hook, comp.ClipCaptions, comp.Transitions, comp.EndCard, comp.Error,
	).Scan(&comp.CreatedAt, &comp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert compilation: %w", err)
	}

	for order, item := range items {
		_, err := tx.ExecContext(ctx, `
			UPDATE items
			SET compilation_id = $2, clip_order = $3, status = $4, updated_at = NOW()
			WHERE id = $1`,
			item.ID, comp.ID, order, models.ItemGrouped)
		if err != nil {
			return fmt.Errorf("failed to assign item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// UngroupCompilation deletes a compilation and returns every member item to
// CLASSIFIED with cleared grouping fields, atomically. Returns the number of
// items released.
func (db *DB) UngroupCompilation(ctx context.Context, compilationID string) (int, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE items
		SET compilation_id = '', clip_order = 0, status = $2, updated_at = NOW()
		WHERE compilation_id = $1`,
		compilationID, models.ItemClassified)
	if err != nil {
		return 0, fmt.Errorf("failed to release items: %w", err)
	}
	released, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM compilations WHERE id = $1`, compilationID); err != nil {
		return 0, fmt.Errorf("failed to delete compilation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(released), nil
}

// UpdateCompilation persists a compilation's mutable fields.
func (db *DB) UpdateCompilation(ctx context.Context, comp *models.Compilation) error {
	query := `
		UPDATE compilations
		SET title = $2, description = $3, item_ids = $4, status = $5,
			confidence_score = $6, auto_approved = $7,
			output_path = $8, duration = $9, music_track = $10,
			platform_video_id = $11, credits_text = $12,
			hook = $13, clip_captions = $14, transitions = $15, end_card = $16,
			error = $17, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return db.QueryRowContext(ctx, query,
		comp.ID, comp.Title, comp.Description, comp.ItemIDs, comp.Status,
		comp.ConfidenceScore, comp.AutoApproved,
		comp.OutputPath, comp.Duration, comp.MusicTrack,
		comp.PlatformVideoID, comp.CreditsText,
		comp.Hook, comp.ClipCaptions, comp.Transitions, comp.EndCard,
		comp.Error,
	).Scan(&comp.UpdatedAt)
}

// GetCompilation retrieves a single compilation by ID.
func (db *DB) GetCompilation(ctx context.Context, id string) (*models.Compilation, error) {
	var comp models.Compilation
	err := db.GetContext(ctx, &comp, `SELECT `+compilationColumns+` FROM compilations WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("compilation not found: %w", err)
	}
	return &comp, nil
}

// GetCompilationsByStatus returns compilations in one state, oldest first.
// limit <= 0 means no limit.
func (db *DB) GetCompilationsByStatus(ctx context.Context, status models.CompilationStatus, limit int) ([]models.Compilation, error) {
	query := `SELECT ` + compilationColumns + ` FROM compilations WHERE status = $1 ORDER BY created_at ASC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var comps []models.Compilation
	if err := db.SelectContext(ctx, &comps, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query compilations: %w", err)
	}
	return comps, nil
}

// ListCompilations returns every compilation, newest first.
func (db *DB) ListCompilations(ctx context.Context) ([]models.Compilation, error) {
	var comps []models.Compilation
	err := db.SelectContext(ctx, &comps,
		`SELECT `+compilationColumns+` FROM compilations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list compilations: %w", err)
	}
	return comps, nil
}

// CountActiveCompilationsByCategory counts a category's non-rejected
// compilations. Drives the "#N" part number in generated titles.
func (db *DB) CountActiveCompilationsByCategory(ctx context.Context, category models.Category) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM compilations
		WHERE category = $1 AND status != $2`,
		category, models.CompilationRejected)
	if err != nil {
		return 0, fmt.Errorf("failed to count compilations: %w", err)
	}
	return count, nil
}

// CountCompilationsByStatus returns compilation counts grouped by state.
func (db *DB) CountCompilationsByStatus(ctx context.Context) (map[string]int, error) {
	return db.statusCounts(ctx, "compilations")
}
