package game

import (
	"math"

	"vrfGameServer/config"
)

// LCG parameters. The expansion must stay byte-compatible with every other
// client that replays a round from its seed, so these never change.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// SeededRandom expands one seed into a reproducible stream of values in [0, 1).
type SeededRandom struct {
	state uint64
}

func NewSeededRandom(seed Seed) *SeededRandom {
	// Reducing first keeps state*multiplier inside uint64; the residue is unchanged.
	return &SeededRandom{state: uint64(seed) % lcgModulus}
}

// Next advances the generator and returns state/modulus.
func (r *SeededRandom) Next() float64 {
	r.state = (r.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(r.state) / lcgModulus
}

// Intn returns a value in [0, n) drawn from the stream.
func (r *SeededRandom) Intn(n int) int {
	return int(math.Floor(r.Next() * float64(n)))
}

// Shuffle returns a Fisher-Yates permutation of items driven by seed.
// The input slice is not modified.
func Shuffle[T any](items []T, seed Seed) []T {
	out := make([]T, len(items))
	copy(out, items)

	rng := NewSeededRandom(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// NormalizeSeed maps a seed into [0, 1) using its low decimal digits.
func NormalizeSeed(seed Seed) float64 {
	return float64(uint64(seed)%config.VRFNormalizer) / config.VRFNormalizer
}

// ScaleSeed maps a seed into the integer range [min, max).
func ScaleSeed(seed Seed, min, max int) int {
	if max <= min {
		return min
	}
	return int(math.Floor(NormalizeSeed(seed)*float64(max-min))) + min
}

// DeriveSeeds produces count sub-seeds from one verified seed using a fixed
// offset step. The whole sequence is determined by the base seed.
func DeriveSeeds(base Seed, count int) []Seed {
	out := make([]Seed, count)
	for i := range out {
		out[i] = Seed((uint64(base)%config.VRFNormalizer + uint64(i)*config.VRFOffsetStep) % config.VRFNormalizer)
	}
	return out
}
