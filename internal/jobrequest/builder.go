// Package jobrequest validates user input and assembles job creation requests.
package jobrequest

import (
	"math"
	"strconv"
	"strings"

	"github.com/gaia-magnetics/magclient/internal/csvheader"
	"github.com/gaia-magnetics/magclient/pkg/models"
)

// Input is everything the user supplied for one submission attempt.
type Input struct {
	File     []byte
	FileName string
	Scenario models.Scenario
	Mapping  models.ColumnMapping
	// SpacingText is the raw spacing field. It is parsed, never forwarded as text.
	SpacingText string
	// Headers, when non-nil, is the most recently extracted header set; every
	// selected column must be one of them.
	Headers []string
}

// JobRequest is a validated, immutable job creation payload.
type JobRequest struct {
	file     []byte
	fileName string
	scenario models.Scenario
	mapping  models.ColumnMapping
	spacing  *float64
}

const defaultFileName = "survey.csv"

// Build validates in and returns a JobRequest. Rules are checked in a fixed order
// and the first failure is returned; every failure wraps ErrValidation.
func Build(in Input) (*JobRequest, error) {
	if len(in.File) == 0 {
		return nil, ErrMissingFile
	}

	if !in.Scenario.Valid() {
		return nil, ErrInvalidScenario
	}

	mapping := models.ColumnMapping{
		XColumn:     strings.TrimSpace(in.Mapping.XColumn),
		YColumn:     strings.TrimSpace(in.Mapping.YColumn),
		ValueColumn: strings.TrimSpace(in.Mapping.ValueColumn),
	}
	cols := []struct {
		which Column
		name  string
	}{
		{ColumnX, mapping.XColumn},
		{ColumnY, mapping.YColumn},
		{ColumnValue, mapping.ValueColumn},
	}
	for _, c := range cols {
		if c.name == "" {
			return nil, &MissingColumnError{Which: c.which}
		}
	}
	if in.Headers != nil {
		for _, c := range cols {
			if !csvheader.Contains(in.Headers, c.name) {
				return nil, &UnknownColumnError{Which: c.which, Column: c.name}
			}
		}
	}

	req := &JobRequest{
		file:     append([]byte(nil), in.File...),
		fileName: in.FileName,
		scenario: in.Scenario,
		mapping:  mapping,
	}
	if req.fileName == "" {
		req.fileName = defaultFileName
	}

	if in.Scenario.RequiresSpacing() {
		spacing, ok := parseSpacing(in.SpacingText)
		if !ok {
			return nil, ErrMissingSpacing
		}
		req.spacing = &spacing
	}
	// Explicit geometry drops any stray spacing value.

	return req, nil
}

func parseSpacing(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// File returns a copy of the CSV bytes.
func (r *JobRequest) File() []byte { return append([]byte(nil), r.file...) }

func (r *JobRequest) FileName() string { return r.fileName }

func (r *JobRequest) Scenario() models.Scenario { return r.scenario }

func (r *JobRequest) Mapping() models.ColumnMapping { return r.mapping }

// Spacing returns the station spacing and whether one is attached.
func (r *JobRequest) Spacing() (float64, bool) {
	if r.spacing == nil {
		return 0, false
	}
	return *r.spacing, true
}

// Collisions lists column names chosen for more than one selection. The backend
// accepts such requests; callers should warn.
func (r *JobRequest) Collisions() []string {
	seen := map[string]int{}
	for _, c := range []string{r.mapping.XColumn, r.mapping.YColumn, r.mapping.ValueColumn} {
		seen[c]++
	}
	var dups []string
	for _, c := range []string{r.mapping.XColumn, r.mapping.YColumn, r.mapping.ValueColumn} {
		if seen[c] > 1 {
			dups = append(dups, c)
			seen[c] = 0
		}
	}
	return dups
}
