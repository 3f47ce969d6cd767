package splice

import (
	"math/rand"

	"github.com/zjy-dev/tree-crasher/internal/seed"
)

// MaxByteModeSize is the hard output ceiling for byte-level mutation mode,
// independent of --max-size. Byte-level mode is meant for quick, cheap
// perturbation passes, not for producing large candidates.
const MaxByteModeSize = 4096

// ByteMutator implements the --radamsa feature-gated fallback: grammar-
// blind, byte-level mutation. It is restricted to a single worker (spec.md
// §4.3) because, unlike the grammar-aware mutator, it carries no per-worker
// state isolation story beyond the rng its caller passes in.
type ByteMutator struct {
	corpus *seed.Corpus
}

// NewByteMutator builds a ByteMutator over corpus.
func NewByteMutator(corpus *seed.Corpus) *ByteMutator {
	return &ByteMutator{corpus: corpus}
}

// Mutate picks a uniformly random seed and applies a handful of byte-level
// operations (bit flips, byte overwrites, and truncation) bounded by
// MaxByteModeSize.
func (m *ByteMutator) Mutate(rng *rand.Rand) []byte {
	base := m.corpus.Pick(rng)
	out := append([]byte(nil), base.Bytes...)
	if len(out) > MaxByteModeSize {
		out = out[:MaxByteModeSize]
	}
	if len(out) == 0 {
		return out
	}

	ops := 1 + rng.Intn(8)
	for i := 0; i < ops; i++ {
		pos := rng.Intn(len(out))
		switch rng.Intn(3) {
		case 0: // bit flip
			out[pos] ^= 1 << uint(rng.Intn(8))
		case 1: // byte overwrite
			out[pos] = byte(rng.Intn(256))
		case 2: // truncate at a random point
			out = out[:pos+1]
		}
	}
	return out
}
