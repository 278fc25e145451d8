package csvheader

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SimpleHeader(t *testing.T) {
	headers, err := Extract(strings.NewReader("x,y,tmi\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "tmi"}, headers)
}

func TestExtract_NoTrailingNewline(t *testing.T) {
	headers, err := Extract(strings.NewReader("x,y,tmi"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "tmi"}, headers)
}

func TestExtract_TrimsWhitespaceAndCRLF(t *testing.T) {
	headers, err := Extract(strings.NewReader(" easting , northing,\ttmi \r\n1,2,3\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"easting", "northing", "tmi"}, headers)
}

func TestExtract_StripsBOM(t *testing.T) {
	headers, err := Extract(strings.NewReader("\ufeffx,y,tmi\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", headers[0])
}

func TestExtract_EmptyFile(t *testing.T) {
	_, err := Extract(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestExtract_QuotedCommaIsNotHandled(t *testing.T) {
	headers, err := Extract(strings.NewReader(`"a,b",c` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{`"a`, `b"`, "c"}, headers)
}

func TestExtract_ReadError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := Extract(iotest.ErrReader(boom))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrEmptyFile)
}

func TestExtract_OnlyFirstLineIsRead(t *testing.T) {
	// Anything past the header line fails to read; it must never be touched.
	r := io.MultiReader(strings.NewReader("x,y,tmi\n"), iotest.ErrReader(errors.New("row data read")))
	headers, err := Extract(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "tmi"}, headers)
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")
	require.NoError(t, os.WriteFile(path, []byte("line_x,line_y,mag\n0,0,50000\n"), 0o644))

	headers, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"line_x", "line_y", "mag"}, headers)

	_, err = ExtractFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestContains(t *testing.T) {
	headers := []string{"x", "y", "tmi"}
	assert.True(t, Contains(headers, "tmi"))
	assert.False(t, Contains(headers, "TMI"))
	assert.False(t, Contains(nil, "x"))
}
