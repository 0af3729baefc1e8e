package excel

// ReaderConfig describes how series are laid out in a sheet or CSV file
type ReaderConfig struct {
	Sheet string `json:"sheet"`
	// SeriesInRows reads one series per row; otherwise each column is a series
	// and each row a timestep.
	SeriesInRows bool `json:"series_in_rows"`
	// HasHeader treats the first row (or first column when SeriesInRows) as
	// series names.
	HasHeader bool `json:"has_header"`
}

// DefaultReaderConfig returns the column-per-series layout with a header row
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Sheet:     "Sheet1",
		HasHeader: true,
	}
}
