// Package feedfile reads merchant feed exports into rows.
package feedfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedcanon/backend/internal/domain"
)

// Format names a feed file encoding
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// maxLineSize bounds a single JSON line
const maxLineSize = 20 * 1024 * 1024

// Result holds the rows read from a feed and the lines that could not be
// decoded
type Result struct {
	Rows    []domain.Row
	Invalid int
}

// DetectFormat picks the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".jl", ".ndjson":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("cannot detect feed format of %s", path)
}

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSONL, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown feed format %q", name)
}

// ReadFile reads the feed at path. An empty format is detected from the
// extension.
func ReadFile(path string, format Format) (*Result, error) {
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f, format)
}

// Read decodes rows from r
func Read(r io.Reader, format Format) (*Result, error) {
	switch format {
	case FormatJSONL:
		return readJSONL(r)
	case FormatCSV:
		return readCSV(r)
	}
	return nil, fmt.Errorf("unknown feed format %q", format)
}

// readJSONL decodes one object per line. Lines that are not JSON objects are
// counted and skipped.
func readJSONL(r io.Reader) (*Result, error) {
	res := &Result{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		// keep numeric ids exactly as written
		dec.UseNumber()
		var row domain.Row
		if err := dec.Decode(&row); err != nil || row == nil {
			res.Invalid++
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jsonl feed: %w", err)
	}
	return res, nil
}

// readCSV maps every record onto the header. Short records leave the
// trailing columns absent.
func readCSV(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	res := &Result{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.Invalid++
				continue
			}
			return nil, fmt.Errorf("failed to read csv feed: %w", err)
		}

		row := make(domain.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}
