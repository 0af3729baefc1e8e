package testkit

import (
	"context"
	"fmt"
	"math/rand"

	"gocorr/domain/correlation"
	"gocorr/ports"
)

// TestKit bundles the seeded fixtures used across package tests
type TestKit struct {
	seed int64
	rng  *RNGAdapter
}

// NewTestKit creates a kit whose every stream derives from seed
func NewTestKit(seed int64) *TestKit {
	return &TestKit{seed: seed, rng: &RNGAdapter{}}
}

// RNGAdapter returns an RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// Matrix draws a uniform matrix from the stream registered under name
func (t *TestKit) Matrix(ctx context.Context, name string, numSeries, sizeSeries int) (*correlation.Matrix, error) {
	rng, err := t.rng.Stream(ctx, name, t.seed)
	if err != nil {
		return nil, err
	}
	g := &Generator{rng: rng}
	m, err := correlation.NewMatrix(g.Uniform(numSeries, sizeSeries))
	if err != nil {
		return nil, fmt.Errorf("testkit matrix %q: %w", name, err)
	}
	return m, nil
}

// RNGAdapter implements the RNGPort interface for testing
type RNGAdapter struct{}

// SeededStream creates a deterministic random number generator for a named operation
func (r *RNGAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(seed)), nil
}

// Stream derives a per-fixture seed from name so that two fixtures built from
// the same base seed still see independent values.
func (r *RNGAdapter) Stream(ctx context.Context, name string, baseSeed int64) (*rand.Rand, error) {
	seed := baseSeed
	if name != "" {
		seed = int64(hashString(name)) + seed
	}
	return r.SeededStream(ctx, name, seed)
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
