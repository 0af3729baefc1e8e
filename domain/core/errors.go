package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors abort a run before any computation
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrTooManySeries         = fmt.Errorf("%w: too many series", ErrInvalidConfiguration)
	ErrWindowTooSmall        = fmt.Errorf("%w: window size must be at least 2", ErrInvalidConfiguration)
	ErrTimestepsExceedSeries = fmt.Errorf("%w: timesteps exceed series length", ErrInvalidConfiguration)
	ErrNegativeTopK          = fmt.Errorf("%w: top-k must not be negative", ErrInvalidConfiguration)

	// Input errors
	ErrEmptyMatrix      = errors.New("series matrix is empty")
	ErrRaggedMatrix     = errors.New("series matrix rows differ in length")
	ErrSamePairIndex    = errors.New("pair index requires two distinct series")
	ErrPreparedMismatch = errors.New("prepared step does not match kernel dimensions")

	// Execution errors
	ErrCancelled = errors.New("run cancelled")
)

// NewTooManySeriesError reports a series count above the supported maximum.
func NewTooManySeriesError(numSeries, max int) error {
	return fmt.Errorf("%w: %d > %d", ErrTooManySeries, numSeries, max)
}

// NewTimestepsError reports a timestep count longer than the series.
func NewTimestepsError(numTimesteps, sizeSeries int) error {
	return fmt.Errorf("%w: %d > %d", ErrTimestepsExceedSeries, numTimesteps, sizeSeries)
}

func NewWindowError(window int) error {
	return fmt.Errorf("%w: got %d", ErrWindowTooSmall, window)
}

func NewRaggedMatrixError(row, got, want int) error {
	return fmt.Errorf("%w: row %d has %d samples, expected %d", ErrRaggedMatrix, row, got, want)
}

func NewCancelledError(timestep int, cause error) error {
	return fmt.Errorf("%w at timestep %d: %w", ErrCancelled, timestep, cause)
}

// IsConfigurationError reports whether err is one of the fatal configuration errors
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsInputError reports whether err describes a malformed input matrix
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyMatrix) ||
		errors.Is(err, ErrRaggedMatrix) ||
		errors.Is(err, ErrSamePairIndex) ||
		errors.Is(err, ErrPreparedMismatch)
}
