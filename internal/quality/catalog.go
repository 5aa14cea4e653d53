package quality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Metric describes one rice-quality channel reported by an analyzer.
// ID is the canonical telemetry column name; Slug is the URL-facing
// identifier when it differs from the ID.
type Metric struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Slug  string `yaml:"slug,omitempty"`
	Unit  string `yaml:"unit,omitempty"`
}

// Catalog is an immutable lookup table between external metric slugs,
// canonical metric ids and display labels. Safe for concurrent use.
type Catalog struct {
	metrics []Metric
	bySlug  map[string]string
	labels  map[string]string
}

// NewCatalog builds a catalog from a metric list.
func NewCatalog(metrics []Metric) (*Catalog, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("quality: empty metric list")
	}
	catalog := &Catalog{
		metrics: make([]Metric, 0, len(metrics)),
		bySlug:  make(map[string]string, len(metrics)),
		labels:  make(map[string]string, len(metrics)),
	}
	for _, metric := range metrics {
		if metric.ID == "" {
			return nil, fmt.Errorf("quality: metric with empty id")
		}
		if _, exists := catalog.labels[metric.ID]; exists {
			return nil, fmt.Errorf("quality: duplicate metric id %q", metric.ID)
		}
		slug := metric.Slug
		if slug == "" {
			slug = metric.ID
		}
		if prior, exists := catalog.bySlug[slug]; exists {
			return nil, fmt.Errorf("quality: slug %q maps to both %q and %q", slug, prior, metric.ID)
		}
		catalog.metrics = append(catalog.metrics, metric)
		catalog.bySlug[slug] = metric.ID
		catalog.labels[metric.ID] = metric.Label
	}
	return catalog, nil
}

// DefaultMetrics returns the built-in rice-quality metric set.
func DefaultMetrics() []Metric {
	return []Metric{
		{ID: "whiteness", Label: "Whiteness", Unit: "index"},
		{ID: "head_rice", Label: "Head Rice", Slug: "headrice", Unit: "%"},
		{ID: "whole_kernels", Label: "Whole Kernels", Unit: "%"},
		{ID: "total_brokens", Label: "Total Brokens", Unit: "%"},
		{ID: "small_brokens", Label: "Small Brokens", Unit: "%"},
		{ID: "small_brokens_c1", Label: "Small Brokens C1", Unit: "%"},
		{ID: "paddy_rate", Label: "Paddy", Slug: "paddy", Unit: "grain/kg"},
		{ID: "yellow_rice_rate", Label: "Yellow Rice", Unit: "%"},
		{ID: "red_line_rate", Label: "Red Line Rice", Unit: "%"},
		{ID: "sticky_rice_rate", Label: "Sticky Rice", Unit: "%"},
		{ID: "imperfection_rate", Label: "Imperfect Grains", Unit: "%"},
		{ID: "process_precision", Label: "Milling Precision", Slug: "precision", Unit: "index"},
		{ID: "mix_rate", Label: "Mix Rate", Unit: "%"},
		{ID: "mix_index", Label: "Mix Index", Unit: "index"},
	}
}

// LoadCatalog builds a catalog from a yaml file, or the built-in set
// when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultMetrics())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Metrics []Metric `yaml:"metrics"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("quality: parse %s: %w", path, err)
	}
	return NewCatalog(file.Metrics)
}

// CanonicalMetric resolves an external slug to its canonical metric id.
// Unknown slugs pass through unchanged.
func (c *Catalog) CanonicalMetric(slug string) string {
	if c == nil {
		return slug
	}
	if id, ok := c.bySlug[slug]; ok {
		return id
	}
	return slug
}

// MetricLabel returns the display label for a canonical metric id.
// Unknown ids return the id itself.
func (c *Catalog) MetricLabel(metricID string) string {
	if c == nil {
		return metricID
	}
	if label, ok := c.labels[metricID]; ok && label != "" {
		return label
	}
	return metricID
}

// MetricIDs returns the canonical column names in catalog order.
func (c *Catalog) MetricIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.metrics))
	for i, metric := range c.metrics {
		ids[i] = metric.ID
	}
	return ids
}

// Metrics returns a copy of the metric list in catalog order.
func (c *Catalog) Metrics() []Metric {
	if c == nil {
		return nil
	}
	out := make([]Metric, len(c.metrics))
	copy(out, c.metrics)
	return out
}
