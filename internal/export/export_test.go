package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gaia-magnetics/magclient/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadArtifactCSV_ArtifactLayout(t *testing.T) {
	in := "line_id,d_along,tmi,is_measured\n" +
		"L1,0,50010.5,1\n" +
		"L1,12.5,50022,0\n" +
		"L1,25,50040,1\n"

	rows, err := ReadArtifactCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []models.ResultRow{
		{DistanceAlong: 0, MagneticValue: 50010.5, Source: models.SourceMeasured},
		{DistanceAlong: 12.5, MagneticValue: 50022, Source: models.SourcePredicted},
		{DistanceAlong: 25, MagneticValue: 50040, Source: models.SourceMeasured},
	}, rows)
}

func TestReadArtifactCSV_CanonicalLayout(t *testing.T) {
	in := "\ufeffdistance_along,magnetic_value,source\r\n0,10,measured\r\n1,12,predicted\r\n"

	rows, err := ReadArtifactCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []models.ResultRow{
		{DistanceAlong: 0, MagneticValue: 10, Source: models.SourceMeasured},
		{DistanceAlong: 1, MagneticValue: 12, Source: models.SourcePredicted},
	}, rows)
}

func TestReadArtifactCSV_HeaderOnly(t *testing.T) {
	rows, err := ReadArtifactCSV(strings.NewReader("d_along,tmi,is_measured\n"))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReadArtifactCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrMissingArtifactColumn},
		{"no value column", "d_along,is_measured\n0,1\n", ErrMissingArtifactColumn},
		{"bad number", "d_along,tmi,is_measured\nx,1,1\n", ErrMalformedRow},
		{"short row", "d_along,tmi,is_measured\n0,1\n", ErrMalformedRow},
		{"unknown source", "distance_along,magnetic_value,source\n0,1,guessed\n", ErrMalformedRow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadArtifactCSV(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadResultJSON(t *testing.T) {
	rows, err := ReadResultJSON(strings.NewReader(
		`[{"distance_along":0,"magnetic_value":10,"source":"measured"},{"distance_along":1,"magnetic_value":12,"source":"predicted"}]`))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, models.SourcePredicted, rows[1].Source)

	rows, err = ReadResultJSON(strings.NewReader("null"))
	require.NoError(t, err)
	assert.NotNil(t, rows)

	_, err = ReadResultJSON(strings.NewReader(`[{"distance_along":0,"magnetic_value":1,"source":"x"}]`))
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	rows := []models.ResultRow{
		{DistanceAlong: 0, MagneticValue: 10, Source: models.SourceMeasured},
		{DistanceAlong: 1.5, MagneticValue: 12.25, Source: models.SourcePredicted},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"distance_along", "magnetic_value", "source"},
		{"0", "10", "measured"},
		{"1.5", "12.25", "predicted"},
	}, got)
}
