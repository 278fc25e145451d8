package models

import (
	"encoding/json"
	"fmt"
)

// Source tells whether a result value was observed or produced by the backend model.
type Source string

const (
	SourceMeasured  Source = "measured"
	SourcePredicted Source = "predicted"
)

// ResultRow is one record of GET /jobs/{id}/result.json.
type ResultRow struct {
	DistanceAlong float64 `json:"distance_along"`
	MagneticValue float64 `json:"magnetic_value"`
	Source        Source  `json:"source"`
}

// UnmarshalJSON rejects rows whose source is neither measured nor predicted.
func (r *ResultRow) UnmarshalJSON(data []byte) error {
	type plain ResultRow
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Source {
	case SourceMeasured, SourcePredicted:
	default:
		return fmt.Errorf("unknown result source %q", p.Source)
	}
	*r = ResultRow(p)
	return nil
}
