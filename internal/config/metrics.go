package config

import (
	"fmt"
	"strings"

	"mmtconf/internal/pyliteral"
)

// Metric identifies an evaluation metric.
type Metric string

const (
	MetricLoss      Metric = "loss"
	MetricBLEU      Metric = "bleu"
	MetricSacreBLEU Metric = "sacrebleu"
	MetricMETEOR    Metric = "meteor"
	MetricROUGE     Metric = "rouge"
	MetricCER       Metric = "cer"
	MetricWER       Metric = "wer"
)

var knownMetrics = []Metric{
	MetricLoss, MetricBLEU, MetricSacreBLEU, MetricMETEOR, MetricROUGE, MetricCER, MetricWER,
}

// Metrics returns the known metric identifiers.
func Metrics() []Metric {
	return append([]Metric(nil), knownMetrics...)
}

// Known reports whether m is a recognized metric.
func (m Metric) Known() bool {
	for _, k := range knownMetrics {
		if k == m {
			return true
		}
	}
	return false
}

// LowerIsBetter reports whether smaller values of m are improvements.
func (m Metric) LowerIsBetter() bool {
	switch m {
	case MetricLoss, MetricCER, MetricWER:
		return true
	default:
		return false
	}
}

func metricNames() []string {
	metrics := Metrics()
	out := make([]string, len(metrics))
	for i, m := range metrics {
		out[i] = string(m)
	}
	return out
}

// ParseMetrics parses a comma-separated or Python list of metric names,
// preserving order. Names are case-insensitive.
func ParseMetrics(raw string) ([]Metric, error) {
	names, err := splitList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Metric, 0, len(names))
	for _, name := range names {
		out = append(out, Metric(strings.ToLower(name)))
	}
	return out, nil
}

func formatMetrics(metrics []Metric) string {
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = string(m)
	}
	return strings.Join(names, ",")
}

// splitList accepts "a,b,c" or a Python list/tuple of strings. Empty input
// yields an empty list.
func splitList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "(") {
		v, err := pyliteral.Parse(raw)
		if err != nil {
			return nil, err
		}
		if v.Kind != pyliteral.KindList && v.Kind != pyliteral.KindTuple {
			return nil, fmt.Errorf("expected a list, got %s", v.Kind)
		}
		out := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			if item.Kind != pyliteral.KindString {
				return nil, fmt.Errorf("list items must be strings, got %s", item.Kind)
			}
			if s := strings.TrimSpace(item.Str); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
