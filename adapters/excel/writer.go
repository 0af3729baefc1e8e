package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gocorr/domain/correlation"
)

const topSheet = "Top"

var topHeader = []interface{}{"timestep", "rank", "value", "series_a", "series_b", "pair_index", "p_value"}

// WriteResults exports the ranked pairs of every timestep to an .xlsx file.
// names, when given, replaces series ordinals with their header names.
func WriteResults(path string, result *correlation.RunResult, names []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", topSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(topSheet, "A1", &topHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for _, step := range result.Steps {
		for rank, e := range step.Top {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{step.Timestep, rank + 1, e.Value, seriesName(names, e.A), seriesName(names, e.B), e.Index, nil}
			if e.PValue != nil {
				values[6] = *e.PValue
			}
			if err := f.SetSheetRow(topSheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func seriesName(names []string, i int) interface{} {
	if i < len(names) {
		return names[i]
	}
	return i
}
