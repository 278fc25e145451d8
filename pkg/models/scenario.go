package models

import "strings"

// Scenario governs whether station positions come from the CSV or are resampled.
type Scenario string

const (
	// ScenarioExplicitGeometry uses station positions supplied in the CSV.
	ScenarioExplicitGeometry Scenario = "explicit_geometry"
	// ScenarioSparseGeometry resamples regularly spaced stations; requires a spacing.
	ScenarioSparseGeometry Scenario = "sparse_geometry"
)

// ParseScenario accepts the canonical names plus the short forms older clients sent.
func ParseScenario(s string) (Scenario, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "explicit_geometry", "explicit":
		return ScenarioExplicitGeometry, true
	case "sparse_geometry", "sparse", "sparse_only":
		return ScenarioSparseGeometry, true
	default:
		return "", false
	}
}

// Valid reports whether s is one of the two enumerated scenarios.
func (s Scenario) Valid() bool {
	return s == ScenarioExplicitGeometry || s == ScenarioSparseGeometry
}

// RequiresSpacing reports whether a station spacing must accompany the scenario.
func (s Scenario) RequiresSpacing() bool {
	return s == ScenarioSparseGeometry
}

// ColumnMapping selects which CSV columns carry the coordinates and the TMI value.
type ColumnMapping struct {
	XColumn     string `json:"x_column"`
	YColumn     string `json:"y_column"`
	ValueColumn string `json:"value_column"`
}
