// Package plot turns job result rows into the measured and predicted series and
// renders them.
package plot

import "github.com/gaia-magnetics/magclient/pkg/models"

// Point is one plotted value: distance along the traverse against TMI.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projection holds the two series drawn on a shared pair of axes.
type Projection struct {
	Measured  []Point `json:"measured"`
	Predicted []Point `json:"predicted"`
}

// Project partitions rows by source, keeping row order. rows is not modified, and
// a source with no rows yields an empty, non-nil series.
func Project(rows []models.ResultRow) Projection {
	p := Projection{
		Measured:  []Point{},
		Predicted: []Point{},
	}
	for _, r := range rows {
		pt := Point{X: r.DistanceAlong, Y: r.MagneticValue}
		switch r.Source {
		case models.SourceMeasured:
			p.Measured = append(p.Measured, pt)
		case models.SourcePredicted:
			p.Predicted = append(p.Predicted, pt)
		}
	}
	return p
}

// Empty reports whether neither series has a point.
func (p Projection) Empty() bool {
	return len(p.Measured) == 0 && len(p.Predicted) == 0
}
