// Package random provides seeded draws for generated round content.
//
// Seeds come from crypto/rand; draws come from a math/rand/v2 PCG source so
// a recorded seed replays the same sequence.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Source draws integers from inclusive ranges.
type Source interface {
	Between(lo, hi int) int
}

// Rand is a goroutine-safe Source.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Rand seeded with seed.
func New(seed int64) *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))}
}

// NewFromCrypto returns a Rand seeded by NewSeed.
func NewFromCrypto() (*Rand, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return New(seed), nil
}

// Between returns an integer in [lo, hi]. Swapped bounds are accepted.
func (r *Rand) Between(lo, hi int) int {
	if lo > hi {
		lo, hi = hi, lo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.IntN(hi-lo+1)
}

// Fixed always returns Value clamped into the requested range.
type Fixed struct {
	Value int
}

// Between implements Source.
func (f Fixed) Between(lo, hi int) int {
	if lo > hi {
		lo, hi = hi, lo
	}
	return min(hi, max(lo, f.Value))
}
