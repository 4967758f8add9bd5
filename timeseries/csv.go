package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	ValueColumn string    // Header name of the value column; takes precedence over ValueIndex
	ValueIndex  int       // Zero-based column index used when ValueColumn is empty
	HasHeader   bool      // Whether the first (non-skipped) row is a header
	Delimiter   rune      // Field delimiter (default: ',')
	SkipRows    int       // Number of rows to skip before the header
	Start       time.Time // Month of the first observation
	Name        string    // Name given to the loaded series
}

// DefaultCSVOptions reads the second column of a headed file, monthly from
// January 2013.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		ValueIndex: 1,
		HasHeader:  true,
		Delimiter:  ',',
		Start:      time.Date(2013, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LoadCSV loads a monthly series from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a monthly series from r. Every data row must carry
// a parseable number in the value column.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("skip row %d: %w", i+1, err)
		}
	}

	valueIdx := opts.ValueIndex
	row := opts.SkipRows

	if opts.HasHeader {
		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrInvalidSeries)
		}
		if err != nil {
			return nil, err
		}
		row++

		if opts.ValueColumn != "" {
			valueIdx = -1
			for i, h := range header {
				if strings.TrimSpace(strings.Trim(h, "\"")) == opts.ValueColumn {
					valueIdx = i
					break
				}
			}
			if valueIdx == -1 {
				return nil, fmt.Errorf("%w: column %q not in header", ErrInvalidSeries, opts.ValueColumn)
			}
		}
	}

	if valueIdx < 0 {
		return nil, fmt.Errorf("%w: negative value column index %d", ErrInvalidSeries, valueIdx)
	}

	var values []float64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row++

		if valueIdx >= len(record) {
			return nil, fmt.Errorf("%w: row %d has %d columns, value column is %d", ErrInvalidSeries, row, len(record), valueIdx)
		}

		raw := strings.TrimSpace(strings.Trim(record[valueIdx], "\""))
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: parse %q", ErrInvalidSeries, row, raw)
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInvalidSeries)
	}

	start := opts.Start
	if start.IsZero() {
		start = DefaultCSVOptions().Start
	}

	s := NewMonthly(start, values)
	s.Name = opts.Name
	return s, nil
}
