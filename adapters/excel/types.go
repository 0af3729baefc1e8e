package excel

import "gocorr/domain/correlation"

// SeriesData is a loaded input matrix with the names of its series
type SeriesData struct {
	Names  []string
	Matrix *correlation.Matrix
}
