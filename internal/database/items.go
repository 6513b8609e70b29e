// items.go — queries over the items table (candidate clips).
//
// These are the batch-selection queries the pipeline stages run on every
// cycle, so every WHERE column here is indexed (see migrations).
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// itemColumns is the explicit column list shared by item SELECTs.
// Keeping it explicit (instead of SELECT *) means a schema migration can
// add columns without breaking struct scanning.
const itemColumns = `id, external_id, url, description, author, hashtags,
	plays, likes, shares, status, local_path, duration, width, height,
	category, subcategory, confidence, compilation_score, visual_independence,
	reasoning, compilation_id, clip_order, caption,
	is_source_compilation, compilation_type, error, retry_count,
	created_at, updated_at`

// CreateItem inserts a new item. Returns false without error when an item
// with the same ID already exists — re-discovery of a known item is an
// expected no-op, not a failure, because IDs are content-derived.
func (db *DB) CreateItem(ctx context.Context, item *models.Item) (bool, error) {
	query := `
		INSERT INTO items (id, external_id, url, description, author, hashtags,
			plays, likes, shares, status, local_path, duration, width, height,
			category, subcategory, confidence, compilation_score, visual_independence,
			reasoning, compilation_id, clip_order, caption,
			is_source_compilation, compilation_type, error, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at`

	err := db.QueryRowContext(ctx, query,
		item.ID, item.ExternalID, item.URL, item.Description, item.Author, item.Hashtags,
		item.Plays, item.Likes, item.Shares, item.Status, item.LocalPath,
		item.Duration, item.Width, item.Height,
		item.Category, item.Subcategory, item.Confidence, item.CompilationScore,
		item.VisualIndependence, item.Reasoning, item.CompilationID, item.ClipOrder,
		item.Caption, item.IsSourceCompilation, item.CompilationType,
		item.Error, item.RetryCount,
	).Scan(&item.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil // Conflict: already discovered
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert item: %w", err)
	}
	return true, nil
}

// UpdateItem persists an item's mutable fields after a stage transition.
func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items
		SET description = $2, author = $3, hashtags = $4,
			plays = $5, likes = $6, shares = $7,
			status = $8, local_path = $9, duration = $10, width = $11, height = $12,
			category = $13, subcategory = $14, confidence = $15,
			compilation_score = $16, visual_independence = $17, reasoning = $18,
			compilation_id = $19, clip_order = $20, caption = $21,
			error = $22, retry_count = $23, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return db.QueryRowContext(ctx, query,
		item.ID, item.Description, item.Author, item.Hashtags,
		item.Plays, item.Likes, item.Shares,
		item.Status, item.LocalPath, item.Duration, item.Width, item.Height,
		item.Category, item.Subcategory, item.Confidence,
		item.CompilationScore, item.VisualIndependence, item.Reasoning,
		item.CompilationID, item.ClipOrder, item.Caption,
		item.Error, item.RetryCount,
	).Scan(&item.UpdatedAt)
}

// GetItem retrieves a single item by internal ID.
func (db *DB) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("item not found: %w", err)
	}
	return &item, nil
}

// ExternalIDExists reports whether an item with the platform ID is known.
func (db *DB) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM items WHERE external_id = $1)`, externalID)
	return exists, err
}

// GetItemsByStatus returns items in one lifecycle state, oldest first.
// limit <= 0 means no limit.
func (db *DB) GetItemsByStatus(ctx context.Context, status models.ItemStatus, limit int) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE status = $1 ORDER BY created_at ASC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var items []models.Item
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query items by status: %w", err)
	}
	return items, nil
}

// ListRecentItems returns the most recently discovered items across all
// states, newest first. Used by the dashboard item browser.
func (db *DB) ListRecentItems(ctx context.Context, limit int) ([]models.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.Item
	err := db.SelectContext(ctx, &items,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	return items, nil
}

// GetItemsByCategory returns items in a category, best-first (compilation
// score, then engagement proxy). unassignedOnly restricts to items not yet
// claimed by a compilation — the GROUPED transition is what keeps this
// query consistent across batch runs without separate locking.
func (db *DB) GetItemsByCategory(ctx context.Context, category models.Category, status models.ItemStatus, unassignedOnly bool) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE category = $1 AND status = $2 AND is_source_compilation = FALSE`
	if unassignedOnly {
		query += ` AND compilation_id = ''`
	}
	query += ` ORDER BY compilation_score DESC, (likes + shares * 2) DESC`

	var items []models.Item
	if err := db.SelectContext(ctx, &items, query, category, status); err != nil {
		return nil, fmt.Errorf("failed to query items by category: %w", err)
	}
	return items, nil
}

// GetItemsBySubcategory narrows GetItemsByCategory to one subcategory.
func (db *DB) GetItemsBySubcategory(ctx context.Context, category models.Category, subcategory string, status models.ItemStatus, unassignedOnly bool) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE category = $1 AND subcategory = $2 AND status = $3 AND is_source_compilation = FALSE`
	if unassignedOnly {
		query += ` AND compilation_id = ''`
	}
	query += ` ORDER BY compilation_score DESC, (likes + shares * 2) DESC`

	var items []models.Item
	if err := db.SelectContext(ctx, &items, query, category, subcategory, status); err != nil {
		return nil, fmt.Errorf("failed to query items by subcategory: %w", err)
	}
	return items, nil
}

// GetAvailableSubcategories returns subcategory -> unassigned item count for
// a category, restricted to subcategories with at least minItems candidates.
func (db *DB) GetAvailableSubcategories(ctx context.Context, category models.Category, status models.ItemStatus, minItems int) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT subcategory, COUNT(*) AS count FROM items
		WHERE category = $1 AND status = $2 AND subcategory != ''
			AND compilation_id = '' AND is_source_compilation = FALSE
		GROUP BY subcategory
		HAVING COUNT(*) >= $3
		ORDER BY count DESC`,
		category, status, minItems)
	if err != nil {
		return nil, fmt.Errorf("failed to query subcategories: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var subcat string
		var count int
		if err := rows.Scan(&subcat, &count); err != nil {
			return nil, err
		}
		result[subcat] = count
	}
	return result, rows.Err()
}

// GetItemsForCompilation returns a compilation's members in render order.
func (db *DB) GetItemsForCompilation(ctx context.Context, compilationID string) ([]models.Item, error) {
	var items []models.Item
	err := db.SelectContext(ctx, &items,
		`SELECT `+itemColumns+` FROM items WHERE compilation_id = $1 ORDER BY clip_order ASC`,
		compilationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query compilation items: %w", err)
	}
	return items, nil
}

// GetSourceCompilations returns source-compilation items (whole compilations
// scraped as single candidates), best-first by score then length.
func (db *DB) GetSourceCompilations(ctx context.Context, status models.ItemStatus, compilationType string, unassignedOnly bool) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE is_source_compilation = TRUE AND status = $1`
	args := []interface{}{status}

	if compilationType != "" {
		query += ` AND compilation_type = $2`
		args = append(args, compilationType)
	}
	if unassignedOnly {
		query += ` AND compilation_id = ''`
	}
	query += ` ORDER BY compilation_score DESC, duration DESC`

	var items []models.Item
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query source compilations: %w", err)
	}
	return items, nil
}

// CountItemsByStatus returns item counts grouped by lifecycle state.
func (db *DB) CountItemsByStatus(ctx context.Context) (map[string]int, error) {
	return db.statusCounts(ctx, "items")
}
