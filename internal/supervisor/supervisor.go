// Package supervisor wires the fuzzer's components together and spawns the
// worker pool (spec.md §4.6): config already parsed, regexes already
// compiled into the oracle, corpus built, catalogue derived — supervisor's
// only job is resolving the worker count and spawning + joining.
package supervisor

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/logger"
	"github.com/zjy-dev/tree-crasher/internal/oracle"
	"github.com/zjy-dev/tree-crasher/internal/seed"
	"github.com/zjy-dev/tree-crasher/internal/splice"
	"github.com/zjy-dev/tree-crasher/internal/triage"
	"github.com/zjy-dev/tree-crasher/internal/worker"
)

// Options configures a Run. Jobs <= 0 resolves to runtime.NumCPU(), except
// that Debug or Radamsa force a single worker (spec.md §4.6/§4.3).
type Options struct {
	Jobs      int
	Debug     bool
	Radamsa   bool
	MaxSize   int
	Seed      uint64
	OutputDir string
}

// ResolveJobs applies the worker-count rule from spec.md §4.6: debug mode
// and byte-level mode are always single-worker; otherwise Jobs, defaulting
// to the number of CPUs when unset.
func ResolveJobs(opts Options) int {
	if opts.Debug || opts.Radamsa {
		return 1
	}
	if opts.Jobs > 0 {
		return opts.Jobs
	}
	return runtime.NumCPU()
}

// Run builds one worker per resolved job and runs them until ctx is
// cancelled, then returns. A worker's own errors are already logged and
// swallowed (see internal/worker), so context cancellation or deadline is
// a clean shutdown and Run returns nil for it; any other error a worker
// returns is passed back wrapped.
func Run(ctx context.Context, opts Options, cat *grammar.Catalogue, corpus *seed.Corpus, o *oracle.Oracle) error {
	if corpus.Len() == 0 {
		logger.Warn("seed corpus is empty, nothing to fuzz")
		return nil
	}

	jobs := ResolveJobs(opts)
	logger.Info("starting %d worker(s)", jobs)

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < jobs; i++ {
		id := i
		workerSeed := opts.Seed + uint64(id)
		oracleClone := o.Clone()
		triager := triage.New(cat, oracleClone, opts.OutputDir)

		var w *worker.Worker
		if opts.Radamsa {
			w = worker.NewByteLevel(id, splice.NewByteMutator(corpus), oracleClone, triager, workerSeed)
		} else {
			w = worker.NewGrammarAware(id, splice.NewMutator(cat, corpus, opts.MaxSize), oracleClone, triager, workerSeed)
		}

		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	err := g.Wait()
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return fmt.Errorf("worker pool exited with error: %w", err)
	}
	return nil
}
