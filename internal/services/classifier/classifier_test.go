package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// fakeStore records updates in memory.
type fakeStore struct {
	items   []models.Item
	updated []models.Item
}

func (f *fakeStore) GetItemsByStatus(_ context.Context, status models.ItemStatus, limit int) ([]models.Item, error) {
	var out []models.Item
	for _, it := range f.items {
		if it.Status == status {
			out = append(out, it)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateItem(_ context.Context, item *models.Item) error {
	f.updated = append(f.updated, *item)
	return nil
}

// fakeOracle returns a canned result and counts invocations.
type fakeOracle struct {
	result *ScoreResult
	err    error
	calls  int
}

func (f *fakeOracle) Score(_ context.Context, _ *models.Item) (*ScoreResult, error) {
	f.calls++
	return f.result, f.err
}

func defaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:         0.5,
		MinCompilationScore:   0.6,
		MinVisualIndependence: 0.6,
	}
}

func TestAcceptAndUpdateGateOrder(t *testing.T) {
	tests := []struct {
		name       string
		result     *ScoreResult
		wantStatus models.ItemStatus
		wantAccept bool
	}{
		{
			name: "passes all checks",
			result: &ScoreResult{
				Category: models.CategoryFails, Subcategory: "pet_fails",
				Confidence: 0.9, CompilationScore: 0.8, VisualIndependence: 0.7,
			},
			wantStatus: models.ItemClassified,
			wantAccept: true,
		},
		{
			name: "reject label wins over good scores",
			result: &ScoreResult{
				Category:   models.CategoryReject,
				Confidence: 0.95, CompilationScore: 0.9, VisualIndependence: 0.9,
			},
			wantStatus: models.ItemSkipped,
		},
		{
			name: "low confidence",
			result: &ScoreResult{
				Category: models.CategoryComedy, Confidence: 0.3,
				CompilationScore: 0.9, VisualIndependence: 0.9,
			},
			wantStatus: models.ItemSkipped,
		},
		{
			name: "low compilation score",
			result: &ScoreResult{
				Category: models.CategoryComedy, Confidence: 0.9,
				CompilationScore: 0.4, VisualIndependence: 0.9,
			},
			wantStatus: models.ItemSkipped,
		},
		{
			name: "fails mute test",
			result: &ScoreResult{
				Category: models.CategoryComedy, Confidence: 0.9,
				CompilationScore: 0.9, VisualIndependence: 0.2,
			},
			wantStatus: models.ItemSkipped,
		},
		{
			name: "exactly at thresholds passes",
			result: &ScoreResult{
				Category: models.CategoryFails, Confidence: 0.5,
				CompilationScore: 0.6, VisualIndependence: 0.6,
			},
			wantStatus: models.ItemClassified,
			wantAccept: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := New(store, &fakeOracle{result: tt.result}, defaultThresholds())

			item := &models.Item{ID: "v1", Status: models.ItemDownloaded,
				Description: "guy slips on ice"}
			accepted, err := svc.AcceptAndUpdate(context.Background(), item)
			if err != nil {
				t.Fatalf("AcceptAndUpdate() error = %v", err)
			}
			if accepted != tt.wantAccept {
				t.Errorf("accepted = %v, want %v", accepted, tt.wantAccept)
			}
			if item.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s (error: %q)", item.Status, tt.wantStatus, item.Error)
			}
			if len(store.updated) != 1 {
				t.Errorf("expected exactly one persisted update, got %d", len(store.updated))
			}
			if tt.wantStatus == models.ItemSkipped && item.Error == "" {
				t.Error("skipped item should carry a reason")
			}
		})
	}
}

// A pre-filter match must short-circuit before the oracle is consulted.
func TestPreFilterSkipsOracle(t *testing.T) {
	store := &fakeStore{}
	oracle := &fakeOracle{result: &ScoreResult{Category: models.CategoryFails,
		Confidence: 0.9, CompilationScore: 0.9, VisualIndependence: 0.9}}
	svc := New(store, oracle, defaultThresholds())

	item := &models.Item{
		ID:          "v1",
		Status:      models.ItemDownloaded,
		Description: "check this dance out",
		Hashtags:    []string{"#dancechallenge"},
	}

	accepted, err := svc.AcceptAndUpdate(context.Background(), item)
	if err != nil {
		t.Fatalf("AcceptAndUpdate() error = %v", err)
	}
	if accepted {
		t.Error("blacklisted item should not be accepted")
	}
	if oracle.calls != 0 {
		t.Errorf("oracle called %d times, want 0", oracle.calls)
	}
	if item.Status != models.ItemSkipped {
		t.Errorf("status = %s, want %s", item.Status, models.ItemSkipped)
	}
}

// An oracle failure is FAILED (retryable), not SKIPPED (terminal).
func TestOracleErrorMarksFailed(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, &fakeOracle{err: errors.New("connection refused")}, defaultThresholds())

	item := &models.Item{ID: "v1", Status: models.ItemDownloaded,
		Description: "funny moment"}
	accepted, err := svc.AcceptAndUpdate(context.Background(), item)
	if err != nil {
		t.Fatalf("AcceptAndUpdate() error = %v", err)
	}
	if accepted {
		t.Error("failed item should not be accepted")
	}
	if item.Status != models.ItemFailed {
		t.Errorf("status = %s, want %s", item.Status, models.ItemFailed)
	}
	if item.Error == "" {
		t.Error("failed item should record the error text")
	}
}

func TestClassifyBatchCounts(t *testing.T) {
	// One accept, one skip (reject label), one infra failure.
	items := []models.Item{
		{ID: "a", Status: models.ItemDownloaded, Description: "slip on ice"},
		{ID: "b", Status: models.ItemDownloaded, Description: "new dance trend"}, // pre-filtered
		{ID: "c", Status: models.ItemDownloaded, Description: "funny moment"},
	}

	store := &fakeStore{}
	// Oracle accepts the first call, errors on the second (item b never
	// reaches it, so c gets the error).
	oracle := &seqOracle{results: []step{
		{result: &ScoreResult{Category: models.CategoryFails, Confidence: 0.9,
			CompilationScore: 0.9, VisualIndependence: 0.9}},
		{err: errors.New("timeout")},
	}}
	svc := New(store, oracle, defaultThresholds())

	var progressCalls int
	classified, skipped, failed := svc.ClassifyBatch(context.Background(), items,
		func(done, total int, _ *models.Item) { progressCalls++ })

	if classified != 1 || skipped != 1 || failed != 1 {
		t.Errorf("counts = (%d, %d, %d), want (1, 1, 1)", classified, skipped, failed)
	}
	if progressCalls != len(items) {
		t.Errorf("progress called %d times, want %d", progressCalls, len(items))
	}
}

type step struct {
	result *ScoreResult
	err    error
}

type seqOracle struct {
	results []step
	i       int
}

func (s *seqOracle) Score(_ context.Context, _ *models.Item) (*ScoreResult, error) {
	if s.i >= len(s.results) {
		return nil, errors.New("unexpected oracle call")
	}
	st := s.results[s.i]
	s.i++
	return st.result, st.err
}

func TestParseScoreResult(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantCategory models.Category
		wantConf     float64
	}{
		{
			name:         "clean json",
			content:      `{"category": "fails", "subcategory": "pet_fails", "confidence": 0.85, "compilation_score": 0.8, "visual_independence": 0.75, "reasoning": "dog slips"}`,
			wantCategory: models.CategoryFails,
			wantConf:     0.85,
		},
		{
			name:         "markdown fenced json",
			content:      "```json\n{\"category\": \"comedy\", \"confidence\": 0.7}\n```",
			wantCategory: models.CategoryComedy,
			wantConf:     0.7,
		},
		{
			name:         "json wrapped in prose",
			content:      `Here is my answer: {"category": "fails", "confidence": 0.9} hope that helps`,
			wantCategory: models.CategoryFails,
			wantConf:     0.9,
		},
		{
			name:         "unknown category coerced to reject",
			content:      `{"category": "wholesome", "confidence": 0.95}`,
			wantCategory: models.CategoryReject,
			wantConf:     0,
		},
		{
			name:         "malformed json coerced to reject",
			content:      `sorry, I cannot classify this`,
			wantCategory: models.CategoryReject,
			wantConf:     0,
		},
		{
			name:         "out of range confidence clamped",
			content:      `{"category": "fails", "confidence": 1.8}`,
			wantCategory: models.CategoryFails,
			wantConf:     1.0,
		},
		{
			name:         "negative score clamped to zero",
			content:      `{"category": "fails", "confidence": -0.5}`,
			wantCategory: models.CategoryFails,
			wantConf:     0,
		},
		{
			name:         "uppercase category normalized",
			content:      `{"category": "FAILS", "confidence": 0.8}`,
			wantCategory: models.CategoryFails,
			wantConf:     0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseScoreResult(tt.content)
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.Category == models.CategoryReject && got.Reasoning == "" {
				t.Error("reject result should carry a diagnostic reason")
			}
		})
	}
}
