// Package classifier runs the scoring stage: pre-filter, oracle call,
// and the acceptance gate that decides whether a clip enters the
// grouping pool.
package classifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/metrics"
	"github.com/briahnloo/content-generator-stitching/internal/models"
	"github.com/briahnloo/content-generator-stitching/internal/services/prefilter"
)

// Store is the slice of the database the classifier needs.
type Store interface {
	GetItemsByStatus(ctx context.Context, status models.ItemStatus, limit int) ([]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
}

// Thresholds are the acceptance gate's minimums, checked in order.
type Thresholds struct {
	MinConfidence         float64
	MinCompilationScore   float64
	MinVisualIndependence float64
}

// Service classifies downloaded items and applies the acceptance gate.
type Service struct {
	store      Store
	oracle     Oracle
	thresholds Thresholds
	metrics    metrics.Collector
}

// New creates a classifier service.
func New(store Store, oracle Oracle, thresholds Thresholds) *Service {
	return &Service{
		store:      store,
		oracle:     oracle,
		thresholds: thresholds,
		metrics:    metrics.Noop{},
	}
}

// WithMetrics swaps in a real metrics collector.
func (s *Service) WithMetrics(m metrics.Collector) *Service {
	s.metrics = m
	return s
}

// ProgressFunc is called after each item in a batch — observability only,
// never control flow.
type ProgressFunc func(done, total int, item *models.Item)

// AcceptAndUpdate scores one item and applies the acceptance gate,
// persisting the result. Returns true only if the item was CLASSIFIED.
//
// Three distinct outcomes, reflected in the item's status:
//   - CLASSIFIED: passed every check; eligible for grouping.
//   - SKIPPED: a content judgment (pre-filter match, reject label, or a
//     below-threshold score). Terminal — re-running won't change it.
//   - FAILED: the oracle call itself broke (network, API). Transient;
//     the operator can retry these.
func (s *Service) AcceptAndUpdate(ctx context.Context, item *models.Item) (bool, error) {
	// Cheap checks first: a pre-filter match costs nothing and saves an
	// oracle call.
	if reject, reason := prefilter.Check(item.Description, item.Hashtags); reject {
		return false, s.skip(ctx, item, "prefilter", "pre-filter: "+reason)
	}

	start := time.Now()
	result, err := s.oracle.Score(ctx, item)
	s.metrics.RecordOracleLatency(time.Since(start))
	if err != nil {
		s.metrics.RecordItemFailed()
		item.Status = models.ItemFailed
		item.Error = err.Error()
		if uerr := s.store.UpdateItem(ctx, item); uerr != nil {
			return false, fmt.Errorf("failed to record oracle failure: %w", uerr)
		}
		return false, nil
	}

	// Record the verdict regardless of acceptance — rejected items keep
	// their scores so the gate's decision is auditable.
	item.Category = result.Category
	item.Subcategory = result.Subcategory
	item.Confidence = result.Confidence
	item.CompilationScore = result.CompilationScore
	item.VisualIndependence = result.VisualIndependence
	item.Reasoning = result.Reasoning
	item.Error = ""

	// The gate: ordered checks, first failure wins.
	switch {
	case result.Category == models.CategoryReject:
		return false, s.skip(ctx, item, "verdict", "oracle rejected: "+result.Reasoning)
	case result.Confidence < s.thresholds.MinConfidence:
		return false, s.skip(ctx, item, "confidence", fmt.Sprintf("low confidence: %.2f < %.2f",
			result.Confidence, s.thresholds.MinConfidence))
	case result.CompilationScore < s.thresholds.MinCompilationScore:
		return false, s.skip(ctx, item, "quality", fmt.Sprintf("low compilation score: %.2f < %.2f",
			result.CompilationScore, s.thresholds.MinCompilationScore))
	case result.VisualIndependence < s.thresholds.MinVisualIndependence:
		return false, s.skip(ctx, item, "visual", fmt.Sprintf("fails mute test: %.2f < %.2f",
			result.VisualIndependence, s.thresholds.MinVisualIndependence))
	}

	item.Status = models.ItemClassified
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("failed to persist classification: %w", err)
	}
	s.metrics.RecordItemClassified(string(item.Category))
	return true, nil
}

// skip marks an item SKIPPED with a human-readable reason. Rejection is
// an expected outcome, not an error. The gate label feeds the skip
// counter so rejections can be broken down by which check fired.
func (s *Service) skip(ctx context.Context, item *models.Item, gate, reason string) error {
	item.Status = models.ItemSkipped
	item.Error = reason
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("failed to persist skip: %w", err)
	}
	s.metrics.RecordItemSkipped(gate)
	return nil
}

// ClassifyBatch runs the gate over a batch, one item at a time. Each item
// is persisted independently, so an interrupted batch leaves processed
// items in their new state and the rest untouched.
func (s *Service) ClassifyBatch(ctx context.Context, items []models.Item, progress ProgressFunc) (classified, skipped, failed int) {
	for i := range items {
		item := &items[i]

		accepted, err := s.AcceptAndUpdate(ctx, item)
		switch {
		case err != nil:
			// Persistence failure — count it with the infra failures.
			log.Printf("❌ Classify %s: %v", item.ID, err)
			failed++
		case accepted:
			classified++
		case item.Status == models.ItemSkipped:
			skipped++
		default:
			failed++
		}

		if progress != nil {
			progress(i+1, len(items), item)
		}
	}

	log.Printf("🏷️  Batch classification: %d classified, %d skipped, %d failed",
		classified, skipped, failed)
	return classified, skipped, failed
}

// ClassifyDownloaded classifies every DOWNLOADED item (up to limit;
// limit <= 0 means all).
func (s *Service) ClassifyDownloaded(ctx context.Context, limit int, progress ProgressFunc) (classified, skipped, failed int, err error) {
	items, err := s.store.GetItemsByStatus(ctx, models.ItemDownloaded, limit)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to load downloaded items: %w", err)
	}
	if len(items) == 0 {
		return 0, 0, 0, nil
	}

	log.Printf("🏷️  Found %d items to classify", len(items))
	classified, skipped, failed = s.ClassifyBatch(ctx, items, progress)
	return classified, skipped, failed, nil
}
