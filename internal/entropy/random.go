// Package entropy provides the random streams of a run. Every agent owns one
// stream derived from the run seed and its index, so a run replays exactly
// and no two agents share generator state.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
)

// Source is a seeded stream of uniform numbers. A Source is not safe for
// concurrent use; each agent owns its own.
type Source struct {
	rng *mrand.Rand
}

// NewSource creates a stream seeded with seed.
func NewSource(seed int64) *Source {
	return &Source{rng: mrand.New(mrand.NewSource(seed))}
}

// ForAgent derives the stream of the agent at index within a run.
func ForAgent(runSeed int64, index int) *Source {
	return NewSource(mix(runSeed, uint64(index)))
}

// Float returns a uniform float64 in [0, 1).
func (s *Source) Float() float64 {
	return s.rng.Float64()
}

// Intn returns a uniform int in [0, n). n <= 0 yields 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// Between returns a uniform float64 in [lo, hi). Reversed bounds are swapped.
func (s *Source) Between(lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + s.Float()*(hi-lo)
}

// mix spreads neighbouring agent indices across the seed space (splitmix64).
func mix(seed int64, index uint64) int64 {
	z := uint64(seed) + (index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z & math.MaxInt64)
}

// RandomSeed returns a run seed from crypto/rand, used when the scenario
// leaves the seed unset.
func RandomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but keep runs startable.
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) & math.MaxInt64)
}
