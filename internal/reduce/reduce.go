// Package reduce implements the multi-pass tree reducer used by
// internal/triage to turn a raw crash input into a minimized witness
// (spec.md §4.5): repeatedly delete or replace subtrees and keep the
// change only if the candidate is still interesting and meaningfully
// smaller.
package reduce

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
)

// Config is the reduction contract. The triage package always constructs
// this with DeleteNonOptional true, single-threaded execution, MinReduction
// 2 and an empty Replacements table, per the fixed contract in spec.md §4.5
// — it is a struct (not hardcoded constants) so tests can exercise other
// corners of the algorithm directly.
type Config struct {
	// DeleteNonOptional allows deleting a node even when it sits in a
	// required field slot. The reducer doesn't care whether the result
	// still parses — only whether the oracle still finds it interesting.
	DeleteNonOptional bool
	MinReduction      int
	MaxPasses         int
	// Replacements maps a node kind to a smaller byte sequence to try in
	// place of deletion. Empty by default (triage always passes an empty
	// table); present for parity with the tool this was ported from.
	Replacements map[string][]byte
}

// IsInteresting re-runs the oracle (or whatever predicate the caller
// wraps it in) against a candidate byte slice.
type IsInteresting func(candidate []byte) bool

// Result is the outcome of a reduction run.
type Result struct {
	Bytes      []byte
	Passes     int
	Reductions int // number of accepted shrinking edits across all passes
}

type candidateSpan struct {
	start, end uint
}

// Reduce repeatedly shrinks original while isInteresting(candidate) keeps
// returning true, stopping after cfg.MaxPasses passes or when a full pass
// makes no further progress.
func Reduce(cat *grammar.Catalogue, cfg Config, original []byte, isInteresting IsInteresting) (Result, error) {
	current := append([]byte(nil), original...)
	result := Result{Bytes: current}

	maxPasses := cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 8
	}

	for pass := 0; pass < maxPasses; pass++ {
		tree, err := cat.Parse(current)
		if err != nil {
			break
		}

		spans := collectSpans(cat, tree, cfg.DeleteNonOptional)
		// Try the largest spans first: a single big deletion that still
		// reproduces is worth more than many small ones.
		sort.Slice(spans, func(i, j int) bool {
			return (spans[i].end - spans[i].start) > (spans[j].end - spans[j].start)
		})

		reducedThisPass := false
		for _, s := range spans {
			if s.end <= s.start {
				continue
			}

			replacement := cfg.Replacements[kindAt(cat, tree, s)]
			candidate := rewrite(current, s.start, s.end, replacement)

			shrinkBy := len(current) - len(candidate)
			if shrinkBy < cfg.MinReduction {
				continue
			}
			if !isInteresting(candidate) {
				continue
			}

			current = candidate
			result.Reductions++
			reducedThisPass = true
			break // tree offsets are now stale; restart the pass
		}

		result.Passes = pass + 1
		if !reducedThisPass {
			break
		}
	}

	result.Bytes = current
	return result, nil
}

// collectSpans walks tree collecting every named node's byte range; unless
// deleteNonOptional is set, only nodes whose kind the catalogue marks
// optional are collected.
func collectSpans(cat *grammar.Catalogue, tree *tree_sitter.Tree, deleteNonOptional bool) []candidateSpan {
	var spans []candidateSpan
	stack := []*tree_sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if cat.IsNamed(n.Kind()) && (deleteNonOptional || cat.IsOptional(n.Kind())) {
			spans = append(spans, candidateSpan{start: n.StartByte(), end: n.EndByte()})
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			stack = append(stack, n.Child(i))
		}
	}
	return spans
}

// kindAt finds the kind of the smallest named node exactly covering span s,
// used to look up a configured replacement. Returns "" if none matches
// exactly (deletion is then used instead).
func kindAt(cat *grammar.Catalogue, tree *tree_sitter.Tree, s candidateSpan) string {
	var best *tree_sitter.Node
	stack := []*tree_sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		// Descendants are visited after their ancestors, so the last exact
		// match is the smallest.
		if n.StartByte() == s.start && n.EndByte() == s.end && cat.IsNamed(n.Kind()) {
			best = n
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			stack = append(stack, n.Child(i))
		}
	}
	if best == nil {
		return ""
	}
	return best.Kind()
}

// rewrite returns a copy of src with [start,end) replaced by replacement.
func rewrite(src []byte, start, end uint, replacement []byte) []byte {
	out := make([]byte, 0, len(src))
	out = append(out, src[:start]...)
	out = append(out, replacement...)
	out = append(out, src[end:]...)
	return out
}
