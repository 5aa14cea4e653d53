package quality

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalMetricKnownSlug(t *testing.T) {
	catalog, err := NewCatalog(DefaultMetrics())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}

	cases := map[string]string{
		"headrice":  "head_rice",
		"paddy":     "paddy_rate",
		"precision": "process_precision",
		"whiteness": "whiteness",
	}
	for slug, want := range cases {
		if got := catalog.CanonicalMetric(slug); got != want {
			t.Errorf("CanonicalMetric(%q) = %q, want %q", slug, got, want)
		}
	}
}

func TestCanonicalMetricUnknownPassesThrough(t *testing.T) {
	catalog, err := NewCatalog(DefaultMetrics())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if got := catalog.CanonicalMetric("moisture"); got != "moisture" {
		t.Fatalf("expected unknown slug to pass through, got %q", got)
	}
}

func TestMetricLabelFallback(t *testing.T) {
	catalog, err := NewCatalog(DefaultMetrics())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if got := catalog.MetricLabel("whiteness"); got != "Whiteness" {
		t.Fatalf("expected label Whiteness, got %q", got)
	}
	if got := catalog.MetricLabel("moisture"); got != "moisture" {
		t.Fatalf("expected unknown id to return itself, got %q", got)
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Metric{
		{ID: "whiteness", Label: "Whiteness"},
		{ID: "whiteness", Label: "Again"},
	})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}

	_, err = NewCatalog([]Metric{
		{ID: "head_rice", Label: "Head Rice", Slug: "hr"},
		{ID: "whole_kernels", Label: "Whole Kernels", Slug: "hr"},
	})
	if err == nil {
		t.Fatal("expected duplicate slug error")
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	content := []byte(`metrics:
  - id: whiteness
    label: Whiteness
  - id: head_rice
    label: Head Rice
    slug: headrice
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := catalog.CanonicalMetric("headrice"); got != "head_rice" {
		t.Fatalf("expected head_rice, got %q", got)
	}
	ids := catalog.MetricIDs()
	if len(ids) != 2 || ids[0] != "whiteness" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestLoadCatalogDefault(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog.MetricIDs()) != len(DefaultMetrics()) {
		t.Fatal("expected built-in metric set")
	}
}
