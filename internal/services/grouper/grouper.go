// Package grouper clusters classified clips into coherent compilations.
//
// Grouping is subcategory-first: a compilation built from one subcategory
// (all pet fails, all kitchen disasters) is thematically coherent in a way
// a whole-category grab bag is not. Mixed whole-category compilations are
// the fallback once subcategory pools run dry.
package grouper

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/briahnloo/content-generator-stitching/internal/metrics"
	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// Store is the slice of the database the grouper needs.
type Store interface {
	GetItemsByCategory(ctx context.Context, category models.Category, status models.ItemStatus, unassignedOnly bool) ([]models.Item, error)
	GetItemsBySubcategory(ctx context.Context, category models.Category, subcategory string, status models.ItemStatus, unassignedOnly bool) ([]models.Item, error)
	GetAvailableSubcategories(ctx context.Context, category models.Category, status models.ItemStatus, minItems int) (map[string]int, error)
	GetSourceCompilations(ctx context.Context, status models.ItemStatus, compilationType string, unassignedOnly bool) ([]models.Item, error)
	GetCompilation(ctx context.Context, id string) (*models.Compilation, error)
	CountActiveCompilationsByCategory(ctx context.Context, category models.Category) (int, error)
	CreateCompilationWithItems(ctx context.Context, comp *models.Compilation, items []models.Item) error
	UngroupCompilation(ctx context.Context, compilationID string) (int, error)
}

// Config holds the grouper's tunables.
type Config struct {
	MinClips              int
	MaxClips              int
	AutoApproveThreshold  float64
	MinCompilationScore   float64
	MinVisualIndependence float64

	// Mega-compilation ranking weights.
	MegaEngagementWeight  float64
	MegaQualityWeight     float64
	MegaDurationPenalty   float64
	MegaRecencyBonus      float64
	MegaTargetDuration    float64
	MegaRecencyWindowDays int
}

// Service groups classified items into compilations.
type Service struct {
	store   Store
	cfg     Config
	metrics metrics.Collector
}

// New creates a grouper service.
func New(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, metrics: metrics.Noop{}}
}

// WithMetrics swaps in a real metrics collector.
func (s *Service) WithMetrics(m metrics.Collector) *Service {
	s.metrics = m
	return s
}

// partition is one groupable pool of quality items.
type partition struct {
	category    models.Category
	subcategory string // empty = whole-category ("mixed") partition
	items       []models.Item
}

// filterQuality keeps items that meet both score thresholds. Items with
// all-zero scores predate the scoring fields and pass through for
// backwards compatibility.
func (s *Service) filterQuality(items []models.Item) []models.Item {
	var out []models.Item
	for _, it := range items {
		if it.IsUnscored() {
			out = append(out, it)
			continue
		}
		if it.CompilationScore >= s.cfg.MinCompilationScore &&
			it.VisualIndependence >= s.cfg.MinVisualIndependence {
			out = append(out, it)
		}
	}
	return out
}

// meanNonzero averages the non-zero values; zero/unset scores are ignored
// rather than dragging the mean down.
func meanNonzero(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// aggregateScores computes the three per-compilation means.
func aggregateScores(items []models.Item) (confidence, quality, visual float64) {
	conf := make([]float64, len(items))
	qual := make([]float64, len(items))
	vis := make([]float64, len(items))
	for i, it := range items {
		conf[i] = it.Confidence
		qual[i] = it.CompilationScore
		vis[i] = it.VisualIndependence
	}
	return meanNonzero(conf), meanNonzero(qual), meanNonzero(vis)
}

// shouldAutoApprove applies the conjunctive auto-approval rule: all three
// aggregate means must clear the threshold. Any one weak dimension
// (confident-but-unfunny, funny-but-audio-dependent) forces human review.
func (s *Service) shouldAutoApprove(confidence, quality, visual float64) bool {
	return confidence >= s.cfg.AutoApproveThreshold &&
		quality >= s.cfg.AutoApproveThreshold &&
		visual >= s.cfg.AutoApproveThreshold
}

// selectBest picks the top n items by engagement (likes weighted above raw
// plays, shares counted double).
func selectBest(items []models.Item, n int) []models.Item {
	sorted := make([]models.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EngagementScore() > sorted[j].EngagementScore()
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// clipCount resolves the requested clip count against the configured
// [MinClips, MaxClips] range and the available pool.
func (s *Service) clipCount(requested, available int) int {
	n := requested
	if n <= 0 {
		n = s.cfg.MaxClips
	}
	if n > available {
		n = available
	}
	if n > s.cfg.MaxClips {
		n = s.cfg.MaxClips
	}
	if n < s.cfg.MinClips {
		n = s.cfg.MinClips
	}
	return n
}

// nextPartNumber is one past the count of the category's non-rejected
// compilations, so titles number monotonically even across rejects.
func (s *Service) nextPartNumber(ctx context.Context, category models.Category) (int, error) {
	count, err := s.store.CountActiveCompilationsByCategory(ctx, category)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// creditsText lists the distinct authors of the selected clips.
func creditsText(items []models.Item, limit int) string {
	seen := map[string]bool{}
	var authors []string
	for _, it := range items {
		if it.Author == "" || seen[it.Author] {
			continue
		}
		seen[it.Author] = true
		authors = append(authors, "@"+it.Author)
		if limit > 0 && len(authors) == limit {
			break
		}
	}
	return strings.Join(authors, ", ")
}

// titleizeSubcategory turns "pet_fails" into "Pet Fails".
func titleizeSubcategory(subcategory string) string {
	words := strings.Split(strings.ReplaceAll(subcategory, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// categoryTitles are the display names used in mixed-compilation titles.
var categoryTitles = map[models.Category]string{
	models.CategoryFails:  "Epic Fails",
	models.CategoryComedy: "Comedy",
}

func categoryTitle(category models.Category) string {
	if t, ok := categoryTitles[category]; ok {
		return t
	}
	return titleizeSubcategory(string(category))
}

// newCompilationID generates a short unique compilation ID.
func newCompilationID() string {
	return uuid.NewString()[:12]
}

// buildAndPersist assembles the compilation record from the selected items
// and commits it together with the member updates in one transaction.
func (s *Service) buildAndPersist(ctx context.Context, kind string, category models.Category, title, description string, selected []models.Item) (*models.Compilation, error) {
	confidence, quality, visual := aggregateScores(selected)
	autoApprove := s.shouldAutoApprove(confidence, quality, visual)

	ids := make([]string, len(selected))
	for i, it := range selected {
		ids[i] = it.ID
	}

	comp := &models.Compilation{
		ID:              newCompilationID(),
		Category:        category,
		Title:           title,
		Description:     description,
		ItemIDs:         ids,
		Status:          models.CompilationPending,
		ConfidenceScore: confidence,
		AutoApproved:    autoApprove,
		CreditsText:     creditsText(selected, 0),
	}

	if err := s.store.CreateCompilationWithItems(ctx, comp, selected); err != nil {
		return nil, fmt.Errorf("failed to persist compilation: %w", err)
	}
	s.metrics.RecordCompilationCreated(kind, autoApprove)

	if autoApprove {
		log.Printf("✅ Compilation %s auto-approved (confidence: %.2f, quality: %.2f, visual: %.2f)",
			comp.ID, confidence, quality, visual)
	}
	return comp, nil
}

// CreateCompilationBySubcategory builds one compilation from a single
// subcategory's pool. Returns (nil, nil) when the pool is too small —
// an empty pool is an expected condition, not an error.
func (s *Service) CreateCompilationBySubcategory(ctx context.Context, category models.Category, subcategory string, numClips int) (*models.Compilation, error) {
	items, err := s.store.GetItemsBySubcategory(ctx, category, subcategory, models.ItemClassified, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load subcategory pool: %w", err)
	}

	quality := s.filterQuality(items)
	if len(quality) < s.cfg.MinClips {
		log.Printf("⚠️  Not enough quality items for %s/%s compilation (%d < %d)",
			category, subcategory, len(quality), s.cfg.MinClips)
		return nil, nil
	}

	selected := selectBest(quality, s.clipCount(numClips, len(quality)))

	part, err := s.nextPartNumber(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to compute part number: %w", err)
	}
	title := fmt.Sprintf("%s Compilation #%d", titleizeSubcategory(subcategory), part)

	_, _, visual := aggregateScores(selected)
	description := fmt.Sprintf("Subcategory: %s | Avg visual independence: %.2f", subcategory, visual)

	comp, err := s.buildAndPersist(ctx, "subcategory", category, title, description, selected)
	if err != nil {
		return nil, err
	}

	log.Printf("🎬 Created %s/%s compilation %s: %q with %d clips",
		category, subcategory, comp.ID, comp.Title, len(selected))
	return comp, nil
}

// CreateCompilationByCategory builds one mixed compilation from a whole
// category's pool, used when no single subcategory has enough items.
func (s *Service) CreateCompilationByCategory(ctx context.Context, category models.Category, numClips int) (*models.Compilation, error) {
	items, err := s.store.GetItemsByCategory(ctx, category, models.ItemClassified, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load category pool: %w", err)
	}

	quality := s.filterQuality(items)
	if len(quality) < s.cfg.MinClips {
		log.Printf("⚠️  Not enough quality items for %s compilation (%d < %d)",
			category, len(quality), s.cfg.MinClips)
		return nil, nil
	}

	selected := selectBest(quality, s.clipCount(numClips, len(quality)))

	part, err := s.nextPartNumber(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to compute part number: %w", err)
	}
	title := fmt.Sprintf("%s Compilation #%d", categoryTitle(category), part)

	subcats := map[string]bool{}
	var subcatList []string
	for _, it := range selected {
		if it.Subcategory != "" && !subcats[it.Subcategory] {
			subcats[it.Subcategory] = true
			subcatList = append(subcatList, it.Subcategory)
		}
	}
	_, _, visual := aggregateScores(selected)
	mixedNote := "none"
	if len(subcatList) > 0 {
		mixedNote = strings.Join(subcatList, ", ")
	}
	description := fmt.Sprintf("Mixed: %s | Avg visual independence: %.2f", mixedNote, visual)

	comp, err := s.buildAndPersist(ctx, "category", category, title, description, selected)
	if err != nil {
		return nil, err
	}

	log.Printf("🎬 Created mixed %s compilation %s: %q with %d clips",
		category, comp.ID, comp.Title, len(selected))
	return comp, nil
}

// CreateCompilations builds up to maxCount compilations. Subcategory
// partitions (largest pool first) are consumed before whole-category
// fallbacks; the fallback pass skips categories already represented in
// this call. Returns an empty slice when nothing is groupable.
func (s *Service) CreateCompilations(ctx context.Context, maxCount, numClipsPer int) ([]models.Compilation, error) {
	var created []models.Compilation

	parts, err := s.groupablePartitions(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range parts {
		if len(created) >= maxCount {
			break
		}
		log.Printf("🎬 Creating %s/%s compilation (%d quality items available)",
			p.category, p.subcategory, len(p.items))
		comp, err := s.CreateCompilationBySubcategory(ctx, p.category, p.subcategory, numClipsPer)
		if err != nil {
			return created, err
		}
		if comp != nil {
			created = append(created, *comp)
		}
	}

	if len(created) < maxCount {
		fallbacks, err := s.groupableCategories(ctx)
		if err != nil {
			return created, err
		}
		for _, fb := range fallbacks {
			if len(created) >= maxCount {
				break
			}
			// A category already covered by a subcategory compilation
			// this round shouldn't immediately get a mixed one too.
			if containsCategory(created, fb.category) {
				continue
			}
			log.Printf("🎬 Creating mixed %s compilation (%d quality items available)",
				fb.category, len(fb.items))
			comp, err := s.CreateCompilationByCategory(ctx, fb.category, numClipsPer)
			if err != nil {
				return created, err
			}
			if comp != nil {
				created = append(created, *comp)
			}
		}
	}

	log.Printf("🎬 Created %d compilations", len(created))
	return created, nil
}

func containsCategory(comps []models.Compilation, category models.Category) bool {
	for _, c := range comps {
		if c.Category == category {
			return true
		}
	}
	return false
}

// groupablePartitions returns every (category, subcategory) pool with
// enough quality items, largest pool first.
func (s *Service) groupablePartitions(ctx context.Context) ([]partition, error) {
	var parts []partition

	for _, category := range models.AcceptedCategories {
		subcats, err := s.store.GetAvailableSubcategories(ctx, category, models.ItemClassified, s.cfg.MinClips)
		if err != nil {
			return nil, fmt.Errorf("failed to list subcategories: %w", err)
		}
		for subcat := range subcats {
			items, err := s.store.GetItemsBySubcategory(ctx, category, subcat, models.ItemClassified, true)
			if err != nil {
				return nil, fmt.Errorf("failed to load subcategory pool: %w", err)
			}
			// The raw count cleared minItems, but the quality filter can
			// still shrink the pool below MinClips.
			quality := s.filterQuality(items)
			if len(quality) >= s.cfg.MinClips {
				parts = append(parts, partition{category: category, subcategory: subcat, items: quality})
			}
		}
	}

	sort.SliceStable(parts, func(i, j int) bool {
		return len(parts[i].items) > len(parts[j].items)
	})
	return parts, nil
}

// groupableCategories returns whole-category pools with enough quality
// items, largest first.
func (s *Service) groupableCategories(ctx context.Context) ([]partition, error) {
	var parts []partition

	for _, category := range models.AcceptedCategories {
		items, err := s.store.GetItemsByCategory(ctx, category, models.ItemClassified, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load category pool: %w", err)
		}
		quality := s.filterQuality(items)
		if len(quality) >= s.cfg.MinClips {
			parts = append(parts, partition{category: category, items: quality})
		}
	}

	sort.SliceStable(parts, func(i, j int) bool {
		return len(parts[i].items) > len(parts[j].items)
	})
	return parts, nil
}

// Ungroup dissolves a compilation, returning its members to CLASSIFIED.
// Only PENDING and REJECTED compilations may be ungrouped: once rendering
// starts, membership is frozen.
func (s *Service) Ungroup(ctx context.Context, compilationID string) (bool, error) {
	comp, err := s.store.GetCompilation(ctx, compilationID)
	if err != nil {
		log.Printf("⚠️  Compilation %s not found", compilationID)
		return false, nil
	}

	if comp.Status != models.CompilationPending && comp.Status != models.CompilationRejected {
		log.Printf("⚠️  Cannot ungroup compilation %s with status %s", compilationID, comp.Status)
		return false, nil
	}

	released, err := s.store.UngroupCompilation(ctx, compilationID)
	if err != nil {
		return false, fmt.Errorf("failed to ungroup compilation: %w", err)
	}

	log.Printf("🔄 Ungrouped compilation %s (%d items released)", compilationID, released)
	return true, nil
}
