package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Fingerprinter accumulates numeric output into a SHA-256 digest. Floats are
// written by their IEEE-754 bits so two fingerprints match only when the
// outputs are bit-identical.
type Fingerprinter struct {
	h   hash.Hash
	buf [8]byte
}

func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{h: sha256.New()}
}

func (f *Fingerprinter) Float64(v float64) {
	binary.LittleEndian.PutUint64(f.buf[:], math.Float64bits(v))
	f.h.Write(f.buf[:])
}

func (f *Fingerprinter) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(f.buf[:], v)
	f.h.Write(f.buf[:])
}

func (f *Fingerprinter) Int(v int) {
	f.Uint64(uint64(int64(v)))
}

// Sum returns the digest of everything written so far
func (f *Fingerprinter) Sum() Hash {
	return Hash(hex.EncodeToString(f.h.Sum(nil)))
}
