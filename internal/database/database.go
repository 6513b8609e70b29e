// Package database handles PostgreSQL connections and queries.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard `database/sql`
// with convenient features like scanning rows into structs. Unlike an ORM,
// you write raw SQL — which gives you full control over the batch-selection
// queries the pipeline depends on.
//
// Go's database/sql has built-in connection pooling — you create one *sql.DB
// (or *sqlx.DB) at startup and share it across your entire application.
// It's safe for concurrent use by multiple goroutines.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver — the underscore import runs its init()

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// DB wraps the sqlx database connection with our application-specific methods.
// Go Pattern: Embedding (*sqlx.DB) gives us all of sqlx's methods automatically,
// plus we can add our own. This is Go's version of inheritance — composition.
type DB struct {
	*sqlx.DB
}

// New creates a new database connection with connection pooling configured.
func New(databaseURL string) (*DB, error) {
	// sqlx.Connect both opens the connection and pings the database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The pipeline runs as a single batch process; a small pool is plenty
	// and keeps serverless Postgres providers from recycling us mid-batch.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	return &DB{db}, nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// statusCounts runs a GROUP BY count over a status column.
func (db *DB) statusCounts(ctx context.Context, table string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to count %s by status: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// GetPipelineStats returns status counts across the three lifecycle tables.
// Used by the dashboard and by operators deciding whether a retry sweep is due.
func (db *DB) GetPipelineStats(ctx context.Context) (*models.PipelineStats, error) {
	items, err := db.statusCounts(ctx, "items")
	if err != nil {
		return nil, err
	}
	comps, err := db.statusCounts(ctx, "compilations")
	if err != nil {
		return nil, err
	}
	uploads, err := db.statusCounts(ctx, "uploads")
	if err != nil {
		return nil, err
	}

	return &models.PipelineStats{
		ItemsByStatus:        items,
		CompilationsByStatus: comps,
		UploadsByStatus:      uploads,
	}, nil
}
