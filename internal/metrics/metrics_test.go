package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestRecordItemClassified(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemClassified("fails")
	c.RecordItemClassified("fails")
	c.RecordItemClassified("comedy")

	if got := counterValue(t, reg, "pipeline_items_classified_total"); got != 3 {
		t.Errorf("items_classified_total = %v, want 3", got)
	}
}

func TestRecordItemSkippedByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemSkipped("prefilter")
	c.RecordItemSkipped("verdict")
	c.RecordItemSkipped("prefilter")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "pipeline_items_skipped_total" {
			continue
		}
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			label := m.GetLabel()[0].GetValue()
			val := m.GetCounter().GetValue()
			switch label {
			case "prefilter":
				if val != 2 {
					t.Errorf("skipped{reason=prefilter} = %v, want 2", val)
				}
			case "verdict":
				if val != 1 {
					t.Errorf("skipped{reason=verdict} = %v, want 1", val)
				}
			default:
				t.Errorf("unexpected label value: %s", label)
			}
		}
	}
}

func TestRecordCompilationCreatedApprovalPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCompilationCreated("subcategory", true)
	c.RecordCompilationCreated("mega", true)
	c.RecordCompilationCreated("category", false)

	if got := counterValue(t, reg, "pipeline_compilations_created_total"); got != 3 {
		t.Errorf("compilations_created_total = %v, want 3", got)
	}
}

func TestRecordOracleLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOracleLatency(100 * time.Millisecond)
	c.RecordOracleLatency(2 * time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "pipeline_oracle_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("pipeline_oracle_latency_seconds metric not found")
	}
}

func TestHandlerReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemClassified("fails")
	c.RecordItemFailed()
	c.RecordRender(true)
	c.RecordUpload("youtube", "success")

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"pipeline_items_classified_total",
		"pipeline_items_failed_total",
		"pipeline_renders_total",
		"pipeline_uploads_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

func TestNoopImplementsCollector(t *testing.T) {
	var _ Collector = Noop{}
	var _ Collector = (*PrometheusCollector)(nil)
}
