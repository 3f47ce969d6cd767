// Package worker implements the per-worker fuzz loop (spec.md §4.4): draw
// batch parameters, mutate, check, triage on an interesting verdict,
// report throughput, repeat until cancelled.
package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/zjy-dev/tree-crasher/internal/logger"
	"github.com/zjy-dev/tree-crasher/internal/oracle"
	"github.com/zjy-dev/tree-crasher/internal/splice"
	"github.com/zjy-dev/tree-crasher/internal/triage"
)

// reportEvery controls how often a worker logs its execs/sec, matching the
// 1000-execution cadence of the tool this was ported from.
const reportEvery = 1000

// Mutator abstracts over splice.Mutator and splice.ByteMutator so Worker
// doesn't need to know which mutation mode it's running.
type Mutator interface {
	next(rng *rand.Rand, params splice.BatchParams) []byte
}

type grammarMutator struct{ m *splice.Mutator }

func (g grammarMutator) next(rng *rand.Rand, params splice.BatchParams) []byte {
	return g.m.Mutate(rng, params)
}

type byteMutator struct{ m *splice.ByteMutator }

func (b byteMutator) next(rng *rand.Rand, _ splice.BatchParams) []byte {
	return b.m.Mutate(rng)
}

// Worker owns its own PRNG and oracle clone; it shares the read-only
// mutator/corpus with no cross-worker synchronization, per spec.md §5.
type Worker struct {
	ID      int
	mutator Mutator
	oracle  *oracle.Oracle
	triager *triage.Triager
	rng     *rand.Rand
}

// NewGrammarAware builds a Worker in the default grammar-aware splicing
// mode.
func NewGrammarAware(id int, m *splice.Mutator, o *oracle.Oracle, t *triage.Triager, seed uint64) *Worker {
	return &Worker{ID: id, mutator: grammarMutator{m}, oracle: o, triager: t, rng: rand.New(rand.NewSource(int64(seed)))}
}

// NewByteLevel builds a Worker in --radamsa byte-level mode. Callers must
// only ever construct one of these per run (spec.md §4.3's single-worker
// restriction); Worker itself does not enforce that.
func NewByteLevel(id int, m *splice.ByteMutator, o *oracle.Oracle, t *triage.Triager, seed uint64) *Worker {
	return &Worker{ID: id, mutator: byteMutator{m}, oracle: o, triager: t, rng: rand.New(rand.NewSource(int64(seed)))}
}

// Run loops forever, mutating and checking candidates, until ctx is
// cancelled. It returns ctx.Err() on cancellation and a non-nil error only
// for conditions a caller should treat as fatal to the whole run (there
// currently are none — per-candidate failures are logged and skipped).
func (w *Worker) Run(ctx context.Context) error {
	var execs int
	lastReport := time.Now()

	for {
		params := splice.RandomBatchParams(w.rng)

		for i := 0; i < splice.Batch; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			candidate := w.mutator.next(w.rng, params)

			verdict, err := w.oracle.Check(ctx, candidate)
			if err != nil {
				logger.Warn("worker %d: interestingness check failed: %v", w.ID, err)
				continue
			}
			execs++

			if verdict.Interesting {
				artifact, err := w.triager.Persist(ctx, candidate, verdict)
				if err != nil {
					logger.Error("worker %d: failed to persist crash: %v", w.ID, err)
				} else {
					logger.Info("worker %d: crash %s", w.ID, artifact.ID)
				}
			}

			if execs%reportEvery == 0 {
				elapsed := time.Since(lastReport)
				rate := float64(reportEvery) / elapsed.Seconds()
				logger.Info("worker %d: %d execs, %.1f execs/sec", w.ID, execs, rate)
				lastReport = time.Now()
			}
		}
	}
}
