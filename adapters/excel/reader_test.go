package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gocorr/domain/correlation"
	"gocorr/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadData_CSVColumns(t *testing.T) {
	path := writeFile(t, "series.csv", "a,b,c\n1,2,5\n2,4,3\n3,6,1\n\n4,8,-1\n5,10,4\n")

	data, err := NewDataReader(path, DefaultReaderConfig(), zerolog.Nop()).ReadData()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, data.Names)
	assert.Equal(t, 3, data.Matrix.NumSeries())
	assert.Equal(t, 5, data.Matrix.SizeSeries())
	assert.Equal(t, []float64{5, 3, 1, -1, 4}, data.Matrix.Row(2))
}

func TestReadData_CSVRowsWithoutHeader(t *testing.T) {
	path := writeFile(t, "series.csv", "1,2,3\n4, 5, 6\n")

	cfg := ReaderConfig{SeriesInRows: true}
	data, err := NewDataReader(path, cfg, zerolog.Nop()).ReadData()
	require.NoError(t, err)

	assert.Equal(t, []string{"series_0", "series_1"}, data.Names)
	assert.Equal(t, []float64{4, 5, 6}, data.Matrix.Row(1))
}

func TestReadData_Invalid(t *testing.T) {
	tests := []struct {
		name, content string
	}{
		{"not a number", "a,b\n1,x\n"},
		{"ragged", "a,b\n1,2\n3\n"},
		{"header only", "a,b\n"},
		{"header mismatch", "a\n1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tt.content)
			_, err := NewDataReader(path, DefaultReaderConfig(), zerolog.Nop()).ReadData()
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestReadData_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "none.xlsx"), DefaultReaderConfig(), zerolog.Nop()).ReadData()
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestReadData_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"x", "y"},
		{1.5, 3},
		{2.5, 5},
		{3.5, 7},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	data, err := NewDataReader(path, DefaultReaderConfig(), zerolog.Nop()).ReadData()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, data.Names)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, data.Matrix.Row(0))
	assert.Equal(t, []float64{3, 5, 7}, data.Matrix.Row(1))
}

func TestWriteResults_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.xlsx")
	result := &correlation.RunResult{
		Steps: []correlation.StepResult{
			{Timestep: 0, Top: []correlation.TopEntry{{Value: 0.9, A: 1, B: 0, Index: 0}}},
			{Timestep: 1, Top: []correlation.TopEntry{{Value: 0.5, A: 2, B: 1, Index: 2}, {Value: 0.1, A: 2, B: 0, Index: 1}}},
		},
	}
	require.NoError(t, WriteResults(path, result, []string{"a", "b", "c"}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(topSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "timestep", rows[0][0])
	assert.Equal(t, []string{"1", "1", "0.5", "c", "b", "2", "0"}, rows[2])
}
