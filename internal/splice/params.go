package splice

import "math/rand"

// Batch is the number of mutated outputs a worker produces before drawing a
// fresh set of BatchParams. Carried from the original tool's constant of
// the same role.
const Batch = 100_000

// BatchParams are the per-batch mutation parameters. The CLI accepts
// --chaos/--deletions/--mutations flags (spec.md §6), but per the
// documented divergence in spec.md §9 every batch overrides them with a
// fresh random draw — this is intentional, not a bug, and is restated in
// SPEC_FULL.md §2. --seed is not overridden: it seeds each worker's PRNG,
// which these draws come from. The drawn Seed field is not read by either
// mutator.
//
// Per spec.md §4.3, one output is produced by a single loop of exactly
// InterSplices operations; each operation independently rolls a
// Deletions%/Chaos% chance to be a deletion/chaos op instead of a splice, so
// Chaos and Deletions are percentages (0-100), not iteration counts.
type BatchParams struct {
	InterSplices int
	Chaos        int
	Deletions    int
	Seed         uint64
}

// RandomBatchParams draws a fresh BatchParams from rng, using the ranges
// observed in the tool this was ported from: inter_splices in [12,48),
// chaos% in [15,20), deletions% in [10,20).
func RandomBatchParams(rng *rand.Rand) BatchParams {
	return BatchParams{
		InterSplices: 12 + rng.Intn(36),
		Chaos:        15 + rng.Intn(5),
		Deletions:    10 + rng.Intn(10),
		Seed:         rng.Uint64(),
	}
}
