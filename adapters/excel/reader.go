// Package excel loads series matrices from .xlsx or .csv files and exports
// ranked results to .xlsx.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"gocorr/domain/correlation"
	"gocorr/internal/errors"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ReaderConfig
	logger   zerolog.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, config ReaderConfig, logger zerolog.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if config.Sheet == "" {
		config.Sheet = "Sheet1"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		config:   config,
		logger:   logger.With().Str("component", "excel").Logger(),
	}
}

// ReadData reads the series matrix from Excel or CSV files
func (r *DataReader) ReadData() (*SeriesData, error) {
	r.logger.Debug().Str("type", r.fileType).Str("path", r.filePath).Msg("Reading series file")

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("%s file %s", strings.ToUpper(r.fileType), r.filePath))
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}

	data, err := r.processRows(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Info().
		Int("num_series", data.Matrix.NumSeries()).
		Int("size_series", data.Matrix.SizeSeries()).
		Dur("elapsed", time.Since(start)).
		Msg("Series file loaded")
	return data, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.Sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string cells into a series matrix
func (r *DataReader) processRows(rows [][]string) (*SeriesData, error) {
	rows = dropBlankRows(rows)
	if r.config.SeriesInRows {
		rows = transpose(rows)
	}

	var names []string
	if r.config.HasHeader {
		if len(rows) == 0 {
			return nil, errors.InvalidInput("file has no header row")
		}
		for _, h := range rows[0] {
			names = append(names, strings.TrimSpace(h))
		}
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("file has no samples")
	}

	numSeries := len(rows[0])
	if names != nil && len(names) != numSeries {
		return nil, errors.InvalidInput(fmt.Sprintf("header names %d series but samples have %d", len(names), numSeries))
	}

	// rows are timesteps here; the matrix wants one slice per series
	series := make([][]float64, numSeries)
	for i := range series {
		series[i] = make([]float64, len(rows))
	}
	for t, row := range rows {
		if len(row) != numSeries {
			return nil, errors.InvalidInput(fmt.Sprintf("sample row %d has %d values, expected %d", t+1, len(row), numSeries))
		}
		for i, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("row %d column %d: %q is not a number", t+1, i+1, cell))
			}
			series[i][t] = v
		}
	}

	if names == nil {
		names = make([]string, numSeries)
		for i := range names {
			names[i] = fmt.Sprintf("series_%d", i)
		}
	}

	matrix, err := correlation.NewMatrix(series)
	if err != nil {
		return nil, errors.Wrap(err, "invalid series matrix")
	}
	return &SeriesData{Names: names, Matrix: matrix}, nil
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// transpose swaps rows and columns, padding short rows with empty cells
func transpose(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, width)
	for c := range out {
		out[c] = make([]string, len(rows))
		for r, row := range rows {
			if c < len(row) {
				out[c][r] = row[c]
			}
		}
	}
	return out
}
