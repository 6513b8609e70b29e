// mega.go groups already-assembled source compilations into longer
// "mega-compilations". Sources were viral compilations in their own
// right, so the quality gate is replaced by a ranking score and the
// result is auto-approved unconditionally.
package grouper

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// MinMegaSources is the floor for a mega-compilation: two sources stitched
// together already beat either alone.
const MinMegaSources = 2

// DefaultMegaSources caps how many sources one mega-compilation consumes.
const DefaultMegaSources = 5

// megaConfidence is the fixed confidence recorded for mega-compilations;
// their inputs are pre-vetted, so no oracle mean exists to aggregate.
const megaConfidence = 0.9

// sourceScore ranks a source compilation for selection. Higher is better.
// The weights are tunables; the components are:
//   - engagement, normalized against a typical viral ceiling
//   - quality ratio (likes/plays)
//   - distance-from-target-duration penalty
//   - recency bonus decaying linearly over the configured window
func (s *Service) sourceScore(item *models.Item, now time.Time) float64 {
	engagementNorm := math.Min(float64(item.EngagementScore())/50000, 1.0)

	var qualityRatio float64
	if item.Plays > 0 {
		qualityRatio = float64(item.Likes) / float64(item.Plays)
	}

	durationPenalty := 0.5
	if item.Duration > 0 {
		durationPenalty = math.Abs(item.Duration-s.cfg.MegaTargetDuration) / s.cfg.MegaTargetDuration
	}

	daysOld := now.Sub(item.CreatedAt).Hours() / 24
	recencyBonus := math.Max(0, 1-daysOld/float64(s.cfg.MegaRecencyWindowDays))

	return engagementNorm*s.cfg.MegaEngagementWeight +
		qualityRatio*s.cfg.MegaQualityWeight -
		durationPenalty*s.cfg.MegaDurationPenalty +
		recencyBonus*s.cfg.MegaRecencyBonus
}

// GroupableSourceTypes returns available source compilations bucketed by
// compilation type (untyped sources count as "mixed").
func (s *Service) GroupableSourceTypes(ctx context.Context) (map[string]int, error) {
	sources, err := s.store.GetSourceCompilations(ctx, models.ItemDownloaded, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to load source compilations: %w", err)
	}

	byType := map[string]int{}
	for _, v := range sources {
		t := v.CompilationType
		if t == "" {
			t = "mixed"
		}
		byType[t]++
	}
	return byType, nil
}

// CreateMegaCompilation builds one mega-compilation from source
// compilations of the given type ("" mixes all types). Returns (nil, nil)
// if fewer than MinMegaSources are available.
func (s *Service) CreateMegaCompilation(ctx context.Context, compilationType string, numSources int) (*models.Compilation, error) {
	sources, err := s.store.GetSourceCompilations(ctx, models.ItemDownloaded, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to load source compilations: %w", err)
	}

	// Filter in memory so untyped sources still land in the "mixed" pool.
	if compilationType != "" {
		var typed []models.Item
		for _, v := range sources {
			t := v.CompilationType
			if t == "" {
				t = "mixed"
			}
			if t == compilationType {
				typed = append(typed, v)
			}
		}
		sources = typed
	}

	if len(sources) < MinMegaSources {
		log.Printf("⚠️  Not enough source compilations for mega-compilation (%d < %d)",
			len(sources), MinMegaSources)
		return nil, nil
	}

	if numSources <= 0 {
		numSources = DefaultMegaSources
	}
	if numSources > len(sources) {
		numSources = len(sources)
	}

	now := time.Now()
	sort.SliceStable(sources, func(i, j int) bool {
		return s.sourceScore(&sources[i], now) > s.sourceScore(&sources[j], now)
	})
	selected := sources[:numSources]

	var totalDuration float64
	for _, v := range selected {
		totalDuration += v.Duration
	}

	category := models.Category(compilationType)
	if compilationType == "" {
		category = models.Category("mega")
	}

	part, err := s.nextPartNumber(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to compute part number: %w", err)
	}
	title := fmt.Sprintf("Ultimate %s Compilation #%d", titleizeSubcategory(string(category)), part)

	typeSet := map[string]bool{}
	for _, v := range selected {
		t := v.CompilationType
		if t == "" {
			t = "mixed"
		}
		typeSet[t] = true
	}
	var types []string
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)

	ids := make([]string, len(selected))
	for i, v := range selected {
		ids[i] = v.ID
	}

	comp := &models.Compilation{
		ID:       newCompilationID(),
		Category: category,
		Title:    title,
		Description: fmt.Sprintf("Mega-compilation from %d sources | Total duration: %.0fs | Types: %v",
			len(selected), totalDuration, types),
		ItemIDs:         ids,
		Status:          models.CompilationPending,
		ConfidenceScore: megaConfidence,
		AutoApproved:    true, // Sources are pre-vetted compilations
		CreditsText:     creditsText(selected, 10),
	}

	if err := s.store.CreateCompilationWithItems(ctx, comp, selected); err != nil {
		return nil, fmt.Errorf("failed to persist mega-compilation: %w", err)
	}
	s.metrics.RecordCompilationCreated("mega", true)

	log.Printf("🎬 Created mega-compilation %s: %q with %d sources (%.0fs total)",
		comp.ID, comp.Title, len(selected), totalDuration)
	return comp, nil
}

// CreateMegaCompilations builds up to maxCount mega-compilations, typed
// pools first (largest first), then one mixed pass if room remains.
func (s *Service) CreateMegaCompilations(ctx context.Context, maxCount, numSourcesPer int) ([]models.Compilation, error) {
	var created []models.Compilation

	available, err := s.GroupableSourceTypes(ctx)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		log.Println("⚠️  No downloaded source compilations available")
		return created, nil
	}

	type typeCount struct {
		name  string
		count int
	}
	var sorted []typeCount
	for t, c := range available {
		sorted = append(sorted, typeCount{t, c})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})

	for _, tc := range sorted {
		if len(created) >= maxCount {
			break
		}
		if tc.count < MinMegaSources {
			continue
		}
		log.Printf("🎬 Creating %s mega-compilation (%d sources available)", tc.name, tc.count)
		comp, err := s.CreateMegaCompilation(ctx, tc.name, numSourcesPer)
		if err != nil {
			return created, err
		}
		if comp != nil {
			created = append(created, *comp)
		}
	}

	if len(created) < maxCount {
		remaining, err := s.store.GetSourceCompilations(ctx, models.ItemDownloaded, "", true)
		if err != nil {
			return created, fmt.Errorf("failed to load source compilations: %w", err)
		}
		if len(remaining) >= MinMegaSources {
			log.Printf("🎬 Creating mixed mega-compilation (%d sources available)", len(remaining))
			comp, err := s.CreateMegaCompilation(ctx, "", numSourcesPer)
			if err != nil {
				return created, err
			}
			if comp != nil {
				created = append(created, *comp)
			}
		}
	}

	log.Printf("🎬 Created %d mega-compilations", len(created))
	return created, nil
}
