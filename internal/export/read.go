// Package export reads downloaded job artifacts and writes result rows to other
// formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gaia-magnetics/magclient/pkg/models"
)

var (
	ErrMissingArtifactColumn = errors.New("artifact is missing a required column")
	ErrMalformedRow          = errors.New("malformed artifact row")
)

// columnSet names the three columns of one artifact layout.
type columnSet struct {
	distance string
	value    string
	source   string
}

var (
	// Layout written by the backend's download route.
	artifactColumns = columnSet{distance: "d_along", value: "tmi", source: "is_measured"}
	// Same fields as result.json.
	canonicalColumns = columnSet{distance: "distance_along", value: "magnetic_value", source: "source"}
)

// ReadArtifactCSV parses a result CSV in either the artifact layout
// (d_along, tmi, is_measured) or the canonical layout (distance_along,
// magnetic_value, source). Extra columns are ignored.
func ReadArtifactCSV(r io.Reader) ([]models.ResultRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingArtifactColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[strings.ToLower(h)] = i
	}

	cols := artifactColumns
	if _, ok := index[cols.distance]; !ok {
		cols = canonicalColumns
	}
	var pos [3]int
	for i, name := range []string{cols.distance, cols.value, cols.source} {
		p, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifactColumn, name)
		}
		pos[i] = p
	}

	rows := []models.ResultRow{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading artifact line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row, err := parseRow(rec, pos, cols == artifactColumns)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string, pos [3]int, flagSource bool) (models.ResultRow, error) {
	field := func(i int) (string, error) {
		if pos[i] >= len(rec) {
			return "", fmt.Errorf("expected at least %d fields, got %d", pos[i]+1, len(rec))
		}
		return strings.TrimSpace(rec[pos[i]]), nil
	}

	var row models.ResultRow
	d, err := field(0)
	if err != nil {
		return row, err
	}
	if row.DistanceAlong, err = strconv.ParseFloat(d, 64); err != nil {
		return row, fmt.Errorf("distance %q: %w", d, err)
	}
	v, err := field(1)
	if err != nil {
		return row, err
	}
	if row.MagneticValue, err = strconv.ParseFloat(v, 64); err != nil {
		return row, fmt.Errorf("value %q: %w", v, err)
	}
	s, err := field(2)
	if err != nil {
		return row, err
	}
	if row.Source, err = parseSource(s, flagSource); err != nil {
		return row, err
	}
	return row, nil
}

// parseSource reads is_measured flags ("1" is measured, anything else predicted)
// or the literal source names.
func parseSource(s string, flag bool) (models.Source, error) {
	if flag {
		switch strings.ToLower(s) {
		case "1", "true":
			return models.SourceMeasured, nil
		default:
			return models.SourcePredicted, nil
		}
	}
	switch src := models.Source(strings.ToLower(s)); src {
	case models.SourceMeasured, models.SourcePredicted:
		return src, nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}

// ReadResultJSON decodes a saved result.json body.
func ReadResultJSON(r io.Reader) ([]models.ResultRow, error) {
	var rows []models.ResultRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding result json: %w", err)
	}
	if rows == nil {
		rows = []models.ResultRow{}
	}
	return rows, nil
}
