package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/internal/config"
	"github.com/dashlytics/compute/pkg/models"
)

// ConfigLoader resolves the effective configuration and logger for a
// command invocation.
type ConfigLoader func() (*config.Config, *logrus.Logger, error)

// readSeries loads a dataset from a CSV file, or stdin when path is "-".
// One column yields values only; two columns are read as timestamp,value.
// A non-numeric first row is treated as a header and skipped.
func readSeries(path string) (*models.AnalyticsData, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	data := &models.AnalyticsData{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", row+1, err)
		}
		row++
		if len(record) == 0 {
			continue
		}

		var (
			timestamp int64
			value     float64
			parseErr  error
		)
		if len(record) >= 2 {
			timestamp, parseErr = strconv.ParseInt(record[0], 10, 64)
			if parseErr == nil {
				value, parseErr = strconv.ParseFloat(record[1], 64)
			}
		} else {
			value, parseErr = strconv.ParseFloat(record[0], 64)
		}
		if parseErr != nil {
			if row == 1 {
				continue // header
			}
			return nil, fmt.Errorf("failed to parse csv row %d: %w", row, parseErr)
		}

		data.Values = append(data.Values, value)
		if len(record) >= 2 {
			data.Timestamps = append(data.Timestamps, timestamp)
		}
	}

	return data, nil
}

func writeOutput(path string, render func(io.Writer) error) error {
	if path == "" || path == "-" {
		return render(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	return render(f)
}
