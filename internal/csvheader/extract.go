// Package csvheader reads the column names from the first line of a survey CSV.
//
// Only the header line is read. Fields are split on commas and trimmed; quoted
// fields are not supported, so a header name containing a literal comma is split
// in two.
package csvheader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmptyFile is returned when the source yields no content at all.
var ErrEmptyFile = errors.New("csv file is empty")

const utf8BOM = "\ufeff"

// Extract returns the ordered, trimmed column names on the first line of r.
func Extract(r io.Reader) ([]string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	if line == "" {
		return nil, ErrEmptyFile
	}

	line = strings.TrimPrefix(line, utf8BOM)
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Split(line, ",")
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = strings.TrimSpace(f)
	}
	return headers, nil
}

// ExtractFile opens path and extracts its header line.
func ExtractFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	return Extract(f)
}

// Contains reports whether name is one of headers.
func Contains(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}
