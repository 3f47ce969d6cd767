// Package triage persists a crash and its minimized witness (spec.md §4.5)
// once a worker's oracle reports an interesting verdict.
package triage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/logger"
	"github.com/zjy-dev/tree-crasher/internal/oracle"
	"github.com/zjy-dev/tree-crasher/internal/reduce"
)

// Artifact names the files written for one crash. ID is a 128-bit random
// identifier (spec.md §3's crash artefact triple), used as a filename
// suffix so concurrent workers never collide.
type Artifact struct {
	ID         string
	Candidate  string // crash-<id>.out
	Stdout     string // crash-<id>.stdout
	Stderr     string // crash-<id>.stderr
	ReducedOut string // crash-<id>.reduced.out, empty if reduction made no progress
}

// Triager persists interesting candidates and drives the reducer against
// them using a clone of the oracle that already caught them.
type Triager struct {
	cat       *grammar.Catalogue
	oracle    *oracle.Oracle
	outputDir string
}

// New builds a Triager writing artifacts under outputDir.
func New(cat *grammar.Catalogue, o *oracle.Oracle, outputDir string) *Triager {
	return &Triager{cat: cat, oracle: o, outputDir: outputDir}
}

// Persist writes the crash input and captured output, then attempts
// reduction, applying the fixed contract from spec.md §4.5:
// delete-non-optional, single-threaded, min-reduction 2, pass cap 8, empty
// replacement table.
func (t *Triager) Persist(ctx context.Context, input []byte, verdict oracle.Verdict) (Artifact, error) {
	id := uuid.New().String()
	base := filepath.Join(t.outputDir, "crash-"+id)

	artifact := Artifact{
		ID:        id,
		Candidate: base + ".out",
		Stdout:    base + ".stdout",
		Stderr:    base + ".stderr",
	}

	if err := os.WriteFile(artifact.Candidate, input, 0644); err != nil {
		return artifact, fmt.Errorf("failed to write crash artifact: %w", err)
	}
	if err := os.WriteFile(artifact.Stdout, []byte(verdict.Stdout), 0644); err != nil {
		return artifact, fmt.Errorf("failed to write crash stdout: %w", err)
	}
	if err := os.WriteFile(artifact.Stderr, []byte(verdict.Stderr), 0644); err != nil {
		return artifact, fmt.Errorf("failed to write crash stderr: %w", err)
	}

	reduced, err := t.reduce(ctx, input)
	if err != nil {
		logger.Warn("reduction failed for %s: %v", artifact.ID, err)
		return artifact, nil
	}
	if reduced == nil {
		return artifact, nil
	}

	reducedPath := base + ".reduced.out"
	if err := os.WriteFile(reducedPath, reduced, 0644); err != nil {
		return artifact, fmt.Errorf("failed to write reduced witness: %w", err)
	}
	artifact.ReducedOut = reducedPath
	return artifact, nil
}

// reduce re-parses input as lossy UTF-8 and runs the multi-pass reducer
// against a clone of the triager's oracle. Returns nil, nil if the
// reducer made no progress — a byte-identical .reduced.out would only
// duplicate the .out artifact already on disk.
func (t *Triager) reduce(ctx context.Context, input []byte) ([]byte, error) {
	valid := []byte(strings.ToValidUTF8(string(input), "�"))
	check := t.oracle.Clone()

	isInteresting := func(candidate []byte) bool {
		v, err := check.Check(ctx, candidate)
		return err == nil && v.Interesting
	}

	result, err := reduce.Reduce(t.cat, reduce.Config{
		DeleteNonOptional: true,
		MinReduction:      2,
		MaxPasses:         8,
		Replacements:      map[string][]byte{},
	}, valid, isInteresting)
	if err != nil {
		return nil, err
	}

	if xxhash.Sum64(result.Bytes) == xxhash.Sum64(valid) {
		return nil, nil
	}
	return result.Bytes, nil
}
