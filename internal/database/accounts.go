// accounts.go — queries for upload accounts and routing rules.
package database

import (
	"context"
	"fmt"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

const accountColumns = `id, platform, name, handle, content_strategy,
	daily_upload_limit, uploads_today, last_upload_at, is_active,
	credentials_encrypted, error, created_at, updated_at`

// CreateAccount inserts a new upload account.
func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, platform, name, handle, content_strategy,
			daily_upload_limit, uploads_today, is_active, credentials_encrypted, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		account.ID, account.Platform, account.Name, account.Handle,
		account.ContentStrategy, account.DailyUploadLimit, account.UploadsToday,
		account.IsActive, account.CredentialsEncrypted, account.Error,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// UpdateAccount persists an account's mutable fields.
func (db *DB) UpdateAccount(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, handle = $3, content_strategy = $4, daily_upload_limit = $5,
			uploads_today = $6, last_upload_at = $7, is_active = $8,
			credentials_encrypted = $9, error = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return db.QueryRowContext(ctx, query,
		account.ID, account.Name, account.Handle, account.ContentStrategy,
		account.DailyUploadLimit, account.UploadsToday, account.LastUploadAt,
		account.IsActive, account.CredentialsEncrypted, account.Error,
	).Scan(&account.UpdatedAt)
}

// GetAccount retrieves a single account by ID.
func (db *DB) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := db.GetContext(ctx, &account, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("account not found: %w", err)
	}
	return &account, nil
}

// ListAccounts returns every account, active first, then by name.
func (db *DB) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := db.SelectContext(ctx, &accounts,
		`SELECT `+accountColumns+` FROM accounts ORDER BY is_active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// GetActiveAccountsByPlatform returns active accounts on one platform.
func (db *DB) GetActiveAccountsByPlatform(ctx context.Context, platform models.Platform) ([]models.Account, error) {
	var accounts []models.Account
	err := db.SelectContext(ctx, &accounts,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE platform = $1 AND is_active = TRUE
		 ORDER BY uploads_today ASC, name ASC`, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return accounts, nil
}

// GetActiveAccountsByStrategy returns active accounts on one platform with
// the given content strategy, fewest uploads today first. That ordering is
// what spreads a day's uploads evenly across same-strategy accounts.
func (db *DB) GetActiveAccountsByStrategy(ctx context.Context, platform models.Platform, strategy models.ContentStrategy) ([]models.Account, error) {
	var accounts []models.Account
	err := db.SelectContext(ctx, &accounts,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE platform = $1 AND content_strategy = $2 AND is_active = TRUE
		 ORDER BY uploads_today ASC, name ASC`, platform, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return accounts, nil
}

// IncrementUploadCount bumps the account's daily counter and stamps the
// cool-down clock. Done in SQL so two concurrent dispatchers can't lose
// an increment.
func (db *DB) IncrementUploadCount(ctx context.Context, accountID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET uploads_today = uploads_today + 1, last_upload_at = NOW(), updated_at = NOW()
		WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to increment upload count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}
	return nil
}

// ResetDailyUploadCounts zeroes uploads_today across all accounts.
// Run once per day by the scheduler (or the reset endpoint). Returns the
// number of accounts touched.
func (db *DB) ResetDailyUploadCounts(ctx context.Context) (int, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET uploads_today = 0, updated_at = NOW() WHERE uploads_today != 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteAccount removes an account and its routing rules.
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM routing_rules WHERE account_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete routing rules: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account not found: %s", id)
	}

	return tx.Commit()
}

// --- Routing rules ---

// CreateRoutingRule inserts a routing rule.
func (db *DB) CreateRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO routing_rules (id, account_id, category, min_confidence, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		rule.ID, rule.AccountID, rule.Category, rule.MinConfidence, rule.Priority,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create routing rule: %w", err)
	}
	return nil
}

// GetRoutingRulesForCategory returns the rules matching a category,
// highest priority first.
func (db *DB) GetRoutingRulesForCategory(ctx context.Context, category models.Category) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	err := db.SelectContext(ctx, &rules, `
		SELECT id, account_id, category, min_confidence, priority, created_at
		FROM routing_rules
		WHERE category = $1
		ORDER BY priority DESC, created_at ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query routing rules: %w", err)
	}
	return rules, nil
}

// ListRoutingRules returns every routing rule, highest priority first.
func (db *DB) ListRoutingRules(ctx context.Context) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	err := db.SelectContext(ctx, &rules, `
		SELECT id, account_id, category, min_confidence, priority, created_at
		FROM routing_rules
		ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}
	return rules, nil
}

// DeleteRoutingRule removes one routing rule by ID.
func (db *DB) DeleteRoutingRule(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete routing rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("routing rule not found: %s", id)
	}
	return nil
}
