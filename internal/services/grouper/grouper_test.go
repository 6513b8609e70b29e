package grouper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// fakeStore is an in-memory Store good enough to exercise the clustering
// logic without a database.
type fakeStore struct {
	items        map[string]*models.Item
	compilations map[string]*models.Compilation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:        map[string]*models.Item{},
		compilations: map[string]*models.Compilation{},
	}
}

func (f *fakeStore) addItem(it models.Item) {
	cp := it
	f.items[it.ID] = &cp
}

func (f *fakeStore) GetItemsByCategory(_ context.Context, category models.Category, status models.ItemStatus, unassignedOnly bool) ([]models.Item, error) {
	var out []models.Item
	for _, it := range f.items {
		if it.IsSourceCompilation || it.Category != category || it.Status != status {
			continue
		}
		if unassignedOnly && it.CompilationID != "" {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeStore) GetItemsBySubcategory(ctx context.Context, category models.Category, subcategory string, status models.ItemStatus, unassignedOnly bool) ([]models.Item, error) {
	all, _ := f.GetItemsByCategory(ctx, category, status, unassignedOnly)
	var out []models.Item
	for _, it := range all {
		if it.Subcategory == subcategory {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAvailableSubcategories(ctx context.Context, category models.Category, status models.ItemStatus, minItems int) (map[string]int, error) {
	all, _ := f.GetItemsByCategory(ctx, category, status, true)
	counts := map[string]int{}
	for _, it := range all {
		if it.Subcategory != "" {
			counts[it.Subcategory]++
		}
	}
	for sub, n := range counts {
		if n < minItems {
			delete(counts, sub)
		}
	}
	return counts, nil
}

func (f *fakeStore) GetSourceCompilations(_ context.Context, status models.ItemStatus, compilationType string, unassignedOnly bool) ([]models.Item, error) {
	var out []models.Item
	for _, it := range f.items {
		if !it.IsSourceCompilation || it.Status != status {
			continue
		}
		if compilationType != "" && it.CompilationType != compilationType {
			continue
		}
		if unassignedOnly && it.CompilationID != "" {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeStore) GetCompilation(_ context.Context, id string) (*models.Compilation, error) {
	c, ok := f.compilations[id]
	if !ok {
		return nil, fmt.Errorf("compilation not found: %s", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CountActiveCompilationsByCategory(_ context.Context, category models.Category) (int, error) {
	n := 0
	for _, c := range f.compilations {
		if c.Category == category && c.Status != models.CompilationRejected {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateCompilationWithItems(_ context.Context, comp *models.Compilation, items []models.Item) error {
	cp := *comp
	f.compilations[comp.ID] = &cp
	for order, it := range items {
		stored := f.items[it.ID]
		stored.CompilationID = comp.ID
		stored.ClipOrder = order
		stored.Status = models.ItemGrouped
	}
	return nil
}

func (f *fakeStore) UngroupCompilation(_ context.Context, compilationID string) (int, error) {
	released := 0
	for _, it := range f.items {
		if it.CompilationID == compilationID {
			it.CompilationID = ""
			it.ClipOrder = 0
			it.Status = models.ItemClassified
			released++
		}
	}
	delete(f.compilations, compilationID)
	return released, nil
}

func testConfig() Config {
	return Config{
		MinClips:              3,
		MaxClips:              5,
		AutoApproveThreshold:  0.75,
		MinCompilationScore:   0.6,
		MinVisualIndependence: 0.6,
		MegaEngagementWeight:  0.4,
		MegaQualityWeight:     0.3,
		MegaDurationPenalty:   0.2,
		MegaRecencyBonus:      0.1,
		MegaTargetDuration:    600,
		MegaRecencyWindowDays: 14,
	}
}

// classifiedItem builds a quality fails clip.
func classifiedItem(id, subcategory string, likes int) models.Item {
	return models.Item{
		ID:                 id,
		Status:             models.ItemClassified,
		Category:           models.CategoryFails,
		Subcategory:        subcategory,
		Confidence:         0.8,
		CompilationScore:   0.8,
		VisualIndependence: 0.8,
		Likes:              likes,
		Author:             "author_" + id,
	}
}

func TestCreateCompilationBySubcategory(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		store.addItem(classifiedItem(fmt.Sprintf("v%d", i), "pet_fails", 100*(i+1)))
	}

	svc := New(store, testConfig())
	comp, err := svc.CreateCompilationBySubcategory(context.Background(), models.CategoryFails, "pet_fails", 0)
	if err != nil {
		t.Fatalf("CreateCompilationBySubcategory() error = %v", err)
	}
	if comp == nil {
		t.Fatal("expected a compilation, got nil")
	}

	if comp.Title != "Pet Fails Compilation #1" {
		t.Errorf("title = %q, want %q", comp.Title, "Pet Fails Compilation #1")
	}
	if len(comp.ItemIDs) != 5 {
		t.Errorf("members = %d, want 5", len(comp.ItemIDs))
	}
	// Highest-engagement clip first.
	if comp.ItemIDs[0] != "v4" {
		t.Errorf("first clip = %s, want v4 (highest engagement)", comp.ItemIDs[0])
	}

	// Every member transitioned to GROUPED with its selection rank.
	for order, id := range comp.ItemIDs {
		it := store.items[id]
		if it.Status != models.ItemGrouped {
			t.Errorf("item %s status = %s, want %s", id, it.Status, models.ItemGrouped)
		}
		if it.CompilationID != comp.ID {
			t.Errorf("item %s compilation_id = %q, want %q", id, it.CompilationID, comp.ID)
		}
		if it.ClipOrder != order {
			t.Errorf("item %s clip_order = %d, want %d", id, it.ClipOrder, order)
		}
	}

	// All means are 0.8 >= 0.75-threshold, so the conjunctive rule fires.
	if !comp.AutoApproved {
		t.Error("expected auto-approval with all scores above threshold")
	}
}

func TestCreateCompilationTooFewItems(t *testing.T) {
	store := newFakeStore()
	store.addItem(classifiedItem("v1", "pet_fails", 100))
	store.addItem(classifiedItem("v2", "pet_fails", 200))

	svc := New(store, testConfig())
	comp, err := svc.CreateCompilationBySubcategory(context.Background(), models.CategoryFails, "pet_fails", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp != nil {
		t.Error("expected nil compilation when pool is below min clips")
	}
}

func TestConjunctiveAutoApproval(t *testing.T) {
	tests := []struct {
		name                        string
		confidence, quality, visual float64
		want                        bool
	}{
		{"all above threshold", 0.8, 0.9, 0.76, true},
		{"one weak dimension blocks", 0.8, 0.9, 0.5, false},
		{"exactly at threshold passes", 0.75, 0.75, 0.75, true},
		{"all weak", 0.5, 0.5, 0.5, false},
	}

	svc := New(newFakeStore(), testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.shouldAutoApprove(tt.confidence, tt.quality, tt.visual)
			if got != tt.want {
				t.Errorf("shouldAutoApprove(%v, %v, %v) = %v, want %v",
					tt.confidence, tt.quality, tt.visual, got, tt.want)
			}
		})
	}
}

func TestFilterQuality(t *testing.T) {
	svc := New(newFakeStore(), testConfig())

	legacy := models.Item{ID: "legacy"} // all-zero scores
	good := models.Item{ID: "good", CompilationScore: 0.7, VisualIndependence: 0.7}
	lowQuality := models.Item{ID: "low", CompilationScore: 0.3, VisualIndependence: 0.9}
	audioDependent := models.Item{ID: "audio", CompilationScore: 0.9, VisualIndependence: 0.2}

	out := svc.filterQuality([]models.Item{legacy, good, lowQuality, audioDependent})
	if len(out) != 2 {
		t.Fatalf("filtered count = %d, want 2", len(out))
	}
	if out[0].ID != "legacy" || out[1].ID != "good" {
		t.Errorf("kept = [%s, %s], want [legacy, good]", out[0].ID, out[1].ID)
	}
}

func TestCreateCompilationsSubcategoryFirst(t *testing.T) {
	store := newFakeStore()
	// pet_fails has a full subcategory pool; comedy only works as mixed.
	for i := 0; i < 4; i++ {
		store.addItem(classifiedItem(fmt.Sprintf("f%d", i), "pet_fails", 100))
	}
	for i := 0; i < 4; i++ {
		it := classifiedItem(fmt.Sprintf("c%d", i), "", 100)
		it.Category = models.CategoryComedy
		if i%2 == 0 {
			it.Subcategory = "pranks"
		} else {
			it.Subcategory = "skits"
		}
		store.addItem(it)
	}

	svc := New(store, testConfig())
	created, err := svc.CreateCompilations(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("CreateCompilations() error = %v", err)
	}

	if len(created) != 2 {
		t.Fatalf("created %d compilations, want 2", len(created))
	}
	// The subcategory compilation comes first, then the mixed fallback for
	// the category with no big-enough subcategory.
	if created[0].Category != models.CategoryFails {
		t.Errorf("first compilation category = %s, want fails", created[0].Category)
	}
	if created[1].Category != models.CategoryComedy {
		t.Errorf("second compilation category = %s, want comedy", created[1].Category)
	}
}

// A category that already got a subcategory compilation this round must
// not immediately get a mixed one too.
func TestCreateCompilationsSkipsRepresentedCategory(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 4; i++ {
		store.addItem(classifiedItem(fmt.Sprintf("p%d", i), "pet_fails", 100))
	}
	for i := 0; i < 3; i++ {
		store.addItem(classifiedItem(fmt.Sprintf("m%d", i), "sports_fails", 50))
	}

	svc := New(store, testConfig())
	created, err := svc.CreateCompilations(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("CreateCompilations() error = %v", err)
	}

	// Both subcategory pools produce compilations, but the mixed fallback
	// for fails is skipped because the category is already represented.
	for _, c := range created {
		if strings.HasPrefix(c.Description, "Mixed") {
			t.Errorf("unexpected mixed compilation %q for already-represented category", c.Title)
		}
	}
}

func TestUngroup(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		store.addItem(classifiedItem(fmt.Sprintf("v%d", i), "pet_fails", 100))
	}

	svc := New(store, testConfig())
	comp, err := svc.CreateCompilationBySubcategory(context.Background(), models.CategoryFails, "pet_fails", 0)
	if err != nil || comp == nil {
		t.Fatalf("setup failed: comp=%v err=%v", comp, err)
	}

	ok, err := svc.Ungroup(context.Background(), comp.ID)
	if err != nil {
		t.Fatalf("Ungroup() error = %v", err)
	}
	if !ok {
		t.Fatal("expected ungroup to succeed on a pending compilation")
	}

	// Ungroup is the exact inverse of grouping.
	for _, id := range comp.ItemIDs {
		it := store.items[id]
		if it.Status != models.ItemClassified || it.CompilationID != "" || it.ClipOrder != 0 {
			t.Errorf("item %s not fully released: status=%s compilation_id=%q order=%d",
				id, it.Status, it.CompilationID, it.ClipOrder)
		}
	}
	if _, exists := store.compilations[comp.ID]; exists {
		t.Error("compilation record should be deleted")
	}
}

func TestUngroupRefusesFrozenStatuses(t *testing.T) {
	for _, status := range []models.CompilationStatus{
		models.CompilationRendering,
		models.CompilationReview,
		models.CompilationApproved,
		models.CompilationUploaded,
	} {
		t.Run(string(status), func(t *testing.T) {
			store := newFakeStore()
			store.compilations["c1"] = &models.Compilation{ID: "c1", Status: status}

			svc := New(store, testConfig())
			ok, err := svc.Ungroup(context.Background(), "c1")
			if err != nil {
				t.Fatalf("Ungroup() error = %v", err)
			}
			if ok {
				t.Errorf("ungroup must be refused for status %s", status)
			}
			if _, exists := store.compilations["c1"]; !exists {
				t.Error("compilation must survive a refused ungroup")
			}
		})
	}
}

func sourceItem(id string, likes, plays int, duration float64, age time.Duration) models.Item {
	return models.Item{
		ID:                  id,
		Status:              models.ItemDownloaded,
		IsSourceCompilation: true,
		CompilationType:     "fails",
		Likes:               likes,
		Plays:               plays,
		Duration:            duration,
		CreatedAt:           time.Now().Add(-age),
		Author:              "author_" + id,
	}
}

func TestSourceScoreMonotonicity(t *testing.T) {
	svc := New(newFakeStore(), testConfig())
	now := time.Now()

	base := sourceItem("base", 10000, 100000, 600, 24*time.Hour)

	// More engagement, all else equal, never lowers the score.
	moreLikes := base
	moreLikes.Likes = 20000
	if svc.sourceScore(&moreLikes, now) < svc.sourceScore(&base, now) {
		t.Error("higher engagement must not lower the ranking score")
	}

	// Drifting away from the target duration never raises the score.
	offTarget := base
	offTarget.Duration = 1200
	if svc.sourceScore(&offTarget, now) > svc.sourceScore(&base, now) {
		t.Error("moving away from the target duration must not raise the score")
	}

	// Older content, all else equal, never scores higher.
	older := base
	older.CreatedAt = now.Add(-10 * 24 * time.Hour)
	if svc.sourceScore(&older, now) > svc.sourceScore(&base, now) {
		t.Error("older content must not outrank fresher content")
	}
}

func TestCreateMegaCompilation(t *testing.T) {
	store := newFakeStore()
	store.addItem(sourceItem("s1", 50000, 500000, 600, 24*time.Hour))
	store.addItem(sourceItem("s2", 30000, 400000, 580, 48*time.Hour))
	store.addItem(sourceItem("s3", 10000, 300000, 900, 10*24*time.Hour))

	svc := New(store, testConfig())
	comp, err := svc.CreateMegaCompilation(context.Background(), "fails", 0)
	if err != nil {
		t.Fatalf("CreateMegaCompilation() error = %v", err)
	}
	if comp == nil {
		t.Fatal("expected a mega-compilation")
	}

	if !comp.AutoApproved {
		t.Error("mega-compilations are auto-approved unconditionally")
	}
	if comp.ConfidenceScore != 0.9 {
		t.Errorf("confidence = %v, want 0.9", comp.ConfidenceScore)
	}
	if len(comp.ItemIDs) != 3 {
		t.Errorf("sources = %d, want 3", len(comp.ItemIDs))
	}
	for _, id := range comp.ItemIDs {
		if store.items[id].Status != models.ItemGrouped {
			t.Errorf("source %s not transitioned to GROUPED", id)
		}
	}
}

func TestCreateMegaCompilationNeedsTwoSources(t *testing.T) {
	store := newFakeStore()
	store.addItem(sourceItem("s1", 50000, 500000, 600, 24*time.Hour))

	svc := New(store, testConfig())
	comp, err := svc.CreateMegaCompilation(context.Background(), "fails", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp != nil {
		t.Error("a single source must not produce a mega-compilation")
	}
}
