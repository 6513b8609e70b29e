// Package uploadrouter assigns approved compilations to platform accounts
// and meters the upload queue.
//
// Routing is two-tier: explicit RoutingRules first (an operator saying
// "fails go to this account"), then strategy-based fallback matching. The
// rate limits (daily caps, cool-down between uploads) are enforced by
// reading persisted counters at decision time, so they survive process
// restarts; the design assumes a single active scheduler process.
package uploadrouter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// Store is the slice of the database the router needs.
type Store interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetActiveAccountsByStrategy(ctx context.Context, platform models.Platform, strategy models.ContentStrategy) ([]models.Account, error)
	GetRoutingRulesForCategory(ctx context.Context, category models.Category) ([]models.RoutingRule, error)
	GetCompilation(ctx context.Context, id string) (*models.Compilation, error)
	GetCompilationsByStatus(ctx context.Context, status models.CompilationStatus, limit int) ([]models.Compilation, error)
	GetPendingUploadsForPlatform(ctx context.Context, platform models.Platform) ([]models.Upload, error)
	GetUploadsForCompilation(ctx context.Context, compilationID string) ([]models.Upload, error)
	GetRetryableUploads(ctx context.Context, maxRetries int) ([]models.Upload, error)
	NonTerminalUploadExists(ctx context.Context, compilationID, accountID string) (bool, error)
	CreateUpload(ctx context.Context, upload *models.Upload) error
	UpdateUpload(ctx context.Context, upload *models.Upload) error
	IncrementUploadCount(ctx context.Context, accountID string) error
}

// Config holds the router's rate-limit tunables.
type Config struct {
	CoolDown   time.Duration // Minimum interval between uploads from one account
	MaxRetries int           // Retry ceiling for failed uploads
}

// Service routes compilations to accounts and manages the upload queue.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time // Injected for cool-down tests
}

// New creates an upload router.
func New(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// eligible reports whether an account can take an upload right now,
// ignoring the cool-down (that is checked only at dequeue time).
func eligible(account *models.Account) bool {
	return account.IsActive && account.HasCredentials() && account.RemainingToday() > 0
}

// matchByRules finds the best rule-matched account for one platform.
// Candidates are scored rule.priority*10 + remaining daily capacity, so a
// higher-priority rule wins and capacity breaks ties.
func (s *Service) matchByRules(ctx context.Context, comp *models.Compilation, platform models.Platform) (*models.Account, error) {
	rules, err := s.store.GetRoutingRulesForCategory(ctx, comp.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing rules: %w", err)
	}

	var best *models.Account
	bestScore := -1
	for _, rule := range rules {
		account, err := s.store.GetAccount(ctx, rule.AccountID)
		if err != nil {
			continue // Rule pointing at a deleted account
		}
		if account.Platform != platform || !eligible(account) {
			continue
		}
		if comp.ConfidenceScore < rule.MinConfidence {
			continue
		}

		score := rule.Priority*10 + account.RemainingToday()
		if score > bestScore {
			best = account
			bestScore = score
		}
	}
	return best, nil
}

// matchByStrategy is the fallback: pick the eligible account matching the
// category's strategy list with the fewest uploads today, so a day's
// uploads spread evenly.
func (s *Service) matchByStrategy(ctx context.Context, comp *models.Compilation, platform models.Platform) (*models.Account, error) {
	seen := map[string]bool{}
	var best *models.Account

	for _, strategy := range models.StrategiesForCategory(comp.Category) {
		accounts, err := s.store.GetActiveAccountsByStrategy(ctx, platform, strategy)
		if err != nil {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
		for i := range accounts {
			account := &accounts[i]
			if seen[account.ID] || !eligible(account) {
				continue
			}
			seen[account.ID] = true
			if best == nil || account.UploadsToday < best.UploadsToday {
				cp := *account
				best = &cp
			}
		}
	}
	return best, nil
}

// RouteCompilation creates upload jobs for one compilation across the
// given platforms (nil means all). Only APPROVED compilations are routed;
// anything else returns an empty list — callers may invoke the router
// speculatively. A platform with no eligible account is skipped silently;
// partial routing is expected.
func (s *Service) RouteCompilation(ctx context.Context, comp *models.Compilation, platforms []models.Platform) ([]models.Upload, error) {
	if comp.Status != models.CompilationApproved {
		log.Printf("⚠️  Compilation %s is not approved (status: %s)", comp.ID, comp.Status)
		return nil, nil
	}
	if platforms == nil {
		platforms = models.AllPlatforms
	}

	var uploads []models.Upload
	for _, platform := range platforms {
		account, err := s.matchByRules(ctx, comp, platform)
		if err != nil {
			return uploads, err
		}
		if account == nil {
			account, err = s.matchByStrategy(ctx, comp, platform)
			if err != nil {
				return uploads, err
			}
		}
		if account == nil {
			log.Printf("⚠️  No available %s accounts for compilation %s", platform, comp.ID)
			continue
		}

		// At most one live upload per (compilation, account) — repeated
		// router invocations must not double-queue.
		exists, err := s.store.NonTerminalUploadExists(ctx, comp.ID, account.ID)
		if err != nil {
			return uploads, fmt.Errorf("failed to check for existing upload: %w", err)
		}
		if exists {
			continue
		}

		upload := models.Upload{
			ID:            uuid.NewString()[:12],
			CompilationID: comp.ID,
			AccountID:     account.ID,
			Platform:      platform,
			Status:        models.UploadPending,
			Privacy:       "public",
		}
		if err := s.store.CreateUpload(ctx, &upload); err != nil {
			return uploads, fmt.Errorf("failed to create upload: %w", err)
		}
		uploads = append(uploads, upload)
		log.Printf("📤 Routed compilation %s -> %s (%s)", comp.ID, account.Name, platform)
	}
	return uploads, nil
}

// RouteApprovedCompilations routes every APPROVED compilation that has no
// live upload yet. limit <= 0 means all.
func (s *Service) RouteApprovedCompilations(ctx context.Context, limit int) ([]models.Upload, error) {
	approved, err := s.store.GetCompilationsByStatus(ctx, models.CompilationApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved compilations: %w", err)
	}

	var all []models.Upload
	for i := range approved {
		comp := &approved[i]

		existing, err := s.store.GetUploadsForCompilation(ctx, comp.ID)
		if err != nil {
			return all, fmt.Errorf("failed to load uploads: %w", err)
		}
		hasLive := false
		for _, u := range existing {
			if !u.IsTerminal() {
				hasLive = true
				break
			}
		}
		if hasLive {
			continue
		}

		uploads, err := s.RouteCompilation(ctx, comp, nil)
		if err != nil {
			return all, err
		}
		all = append(all, uploads...)
	}

	log.Printf("📤 Created %d upload jobs", len(all))
	return all, nil
}

// NextUpload is the queue's sole admission-control point: it scans the
// platform's PENDING uploads in creation order and returns the first whose
// account is active, under its daily cap, and past the cool-down. Returns
// all-nil when nothing is ready — that is a normal idle state.
func (s *Service) NextUpload(ctx context.Context, platform models.Platform) (*models.Upload, *models.Account, *models.Compilation, error) {
	pending, err := s.store.GetPendingUploadsForPlatform(ctx, platform)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load pending uploads: %w", err)
	}

	for i := range pending {
		upload := &pending[i]

		account, err := s.store.GetAccount(ctx, upload.AccountID)
		if err != nil {
			continue
		}
		if !account.IsActive || account.RemainingToday() <= 0 {
			continue
		}
		if account.LastUploadAt != nil && s.now().Sub(*account.LastUploadAt) < s.cfg.CoolDown {
			continue
		}

		comp, err := s.store.GetCompilation(ctx, upload.CompilationID)
		if err != nil {
			continue
		}
		return upload, account, comp, nil
	}
	return nil, nil, nil, nil
}

// MarkStarted transitions an upload to UPLOADING.
func (s *Service) MarkStarted(ctx context.Context, upload *models.Upload) error {
	upload.Status = models.UploadUploading
	return s.store.UpdateUpload(ctx, upload)
}

// MarkSuccess records the published video and charges the account's daily
// counter, which also stamps the cool-down clock.
func (s *Service) MarkSuccess(ctx context.Context, upload *models.Upload, platformVideoID string) error {
	now := s.now()
	upload.Status = models.UploadSuccess
	upload.PlatformVideoID = platformVideoID
	upload.UploadedAt = &now
	upload.Error = ""
	if err := s.store.UpdateUpload(ctx, upload); err != nil {
		return err
	}
	if err := s.store.IncrementUploadCount(ctx, upload.AccountID); err != nil {
		return fmt.Errorf("failed to charge upload count: %w", err)
	}
	log.Printf("✅ Upload %s successful: %s", upload.ID, platformVideoID)
	return nil
}

// MarkFailed records the error and bumps the retry counter.
func (s *Service) MarkFailed(ctx context.Context, upload *models.Upload, errText string) error {
	upload.Status = models.UploadFailed
	upload.Error = errText
	upload.RetryCount++
	if err := s.store.UpdateUpload(ctx, upload); err != nil {
		return err
	}
	log.Printf("❌ Upload %s failed: %s", upload.ID, errText)
	return nil
}

// RetryFailedUploads re-queues FAILED uploads still under the retry
// ceiling. Returns the number re-queued.
func (s *Service) RetryFailedUploads(ctx context.Context) (int, error) {
	failed, err := s.store.GetRetryableUploads(ctx, s.cfg.MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to load retryable uploads: %w", err)
	}

	retried := 0
	for i := range failed {
		upload := &failed[i]
		upload.Status = models.UploadPending
		if err := s.store.UpdateUpload(ctx, upload); err != nil {
			return retried, fmt.Errorf("failed to re-queue upload %s: %w", upload.ID, err)
		}
		retried++
		log.Printf("🔄 Re-queued upload %s (retry %d/%d)", upload.ID, upload.RetryCount, s.cfg.MaxRetries)
	}
	return retried, nil
}
