package state

import (
	"fmt"
	"strings"
)

// Metric names one country metric as it appears in generated payloads.
type Metric string

const (
	MetricMilitary            Metric = "militär"
	MetricStability           Metric = "stabilität"
	MetricEconomy             Metric = "wirtschaft"
	MetricDiplomaticInfluence Metric = "diplomatie"
	MetricPublicApproval      Metric = "öffentliche_zustimmung"
)

// MetricNames lists every metric in payload order.
func MetricNames() []Metric {
	return []Metric{
		MetricMilitary,
		MetricStability,
		MetricEconomy,
		MetricDiplomaticInfluence,
		MetricPublicApproval,
	}
}

// ParseMetric resolves a payload metric name.
func ParseMetric(value string) (Metric, error) {
	name := Metric(strings.TrimSpace(value))
	for _, known := range MetricNames() {
		if name == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", value)
}

// Metrics holds the five country metrics, or a delta over them.
//
// Values are unbounded; nothing in the engine clamps them.
type Metrics struct {
	Military            int `json:"military"`
	Stability           int `json:"stability"`
	Economy             int `json:"economy"`
	DiplomaticInfluence int `json:"diplomatic_influence"`
	PublicApproval      int `json:"public_approval"`
}

// Add returns m with every field of delta added.
func (m Metrics) Add(delta Metrics) Metrics {
	return Metrics{
		Military:            m.Military + delta.Military,
		Stability:           m.Stability + delta.Stability,
		Economy:             m.Economy + delta.Economy,
		DiplomaticInfluence: m.DiplomaticInfluence + delta.DiplomaticInfluence,
		PublicApproval:      m.PublicApproval + delta.PublicApproval,
	}
}

// Negate returns the inverse delta.
func (m Metrics) Negate() Metrics {
	return Metrics{
		Military:            -m.Military,
		Stability:           -m.Stability,
		Economy:             -m.Economy,
		DiplomaticInfluence: -m.DiplomaticInfluence,
		PublicApproval:      -m.PublicApproval,
	}
}

// IsZero reports whether every metric is zero.
func (m Metrics) IsZero() bool {
	return m == Metrics{}
}

// Get returns the value of one metric.
func (m Metrics) Get(metric Metric) int {
	switch metric {
	case MetricMilitary:
		return m.Military
	case MetricStability:
		return m.Stability
	case MetricEconomy:
		return m.Economy
	case MetricDiplomaticInfluence:
		return m.DiplomaticInfluence
	case MetricPublicApproval:
		return m.PublicApproval
	default:
		return 0
	}
}

// With returns a copy of m with one metric replaced.
func (m Metrics) With(metric Metric, value int) Metrics {
	switch metric {
	case MetricMilitary:
		m.Military = value
	case MetricStability:
		m.Stability = value
	case MetricEconomy:
		m.Economy = value
	case MetricDiplomaticInfluence:
		m.DiplomaticInfluence = value
	case MetricPublicApproval:
		m.PublicApproval = value
	}
	return m
}

// MetricsFromMap builds metrics from payload names; missing names are zero.
func MetricsFromMap(values map[string]int) (Metrics, error) {
	var m Metrics
	for name, value := range values {
		metric, err := ParseMetric(name)
		if err != nil {
			return Metrics{}, err
		}
		m = m.With(metric, value)
	}
	return m, nil
}

// ToMap returns the metrics keyed by payload name.
func (m Metrics) ToMap() map[string]int {
	out := make(map[string]int, len(MetricNames()))
	for _, metric := range MetricNames() {
		out[string(metric)] = m.Get(metric)
	}
	return out
}

// Named returns the metrics keyed by their JSON field names.
func (m Metrics) Named() map[string]int {
	return map[string]int{
		"military":             m.Military,
		"stability":            m.Stability,
		"economy":              m.Economy,
		"diplomatic_influence": m.DiplomaticInfluence,
		"public_approval":      m.PublicApproval,
	}
}

// CountryMetrics is the stored state of one country.
type CountryMetrics struct {
	Country  string
	Metrics  Metrics
	Ambition string
}
