// Package splice implements the grammar-aware and byte-level mutators
// described in spec.md §4.3: deletion, chaos and splice operations over
// parsed seed syntax trees, plus a feature-gated byte-level fallback mode.
package splice

import (
	"math/rand"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/seed"
)

// Mutator produces mutated candidate byte slices from a read-only corpus,
// guided by a node-type catalogue. One Mutator is owned per worker; it
// holds no mutable state of its own beyond what each call receives, so a
// single instance can be shared if a caller wants to (none do today).
type Mutator struct {
	cat     *grammar.Catalogue
	corpus  *seed.Corpus
	maxSize int
}

// NewMutator builds a Mutator bound to a catalogue, corpus and the
// --max-size output ceiling.
func NewMutator(cat *grammar.Catalogue, corpus *seed.Corpus, maxSize int) *Mutator {
	return &Mutator{cat: cat, corpus: corpus, maxSize: maxSize}
}

// span is a byte range tagged with its node kind, used both as a splice
// site and as a donor candidate.
type span struct {
	start, end uint
	kind       string
}

// namedSpans walks tree, collecting the byte range and kind of every named
// node reachable from root, depth-first with the last child of each node
// visited first.
func namedSpans(cat *grammar.Catalogue, tree *tree_sitter.Tree) []span {
	var spans []span
	stack := []*tree_sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if cat.IsNamed(n.Kind()) {
			spans = append(spans, span{start: n.StartByte(), end: n.EndByte(), kind: n.Kind()})
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			stack = append(stack, n.Child(i))
		}
	}
	return spans
}

// edit is a byte-range replacement to apply to a seed's source bytes.
type edit struct {
	start, end  uint
	replacement []byte
}

// Mutate produces one mutated candidate from the corpus. Per spec.md §4.3
// it runs a single loop of exactly params.InterSplices operations; each
// operation independently rolls a params.Deletions%/params.Chaos% chance to
// be a deletion/chaos op, otherwise it splices, then the result is
// truncated to the mutator's max-size ceiling.
func (m *Mutator) Mutate(rng *rand.Rand, params BatchParams) []byte {
	base := m.corpus.Pick(rng)
	spans := namedSpans(m.cat, base.Tree)
	if len(spans) == 0 {
		return capSize(base.Bytes, m.maxSize)
	}
	optionalSpans := filterOptional(m.cat, spans)

	var edits []edit

	for i := 0; i < params.InterSplices; i++ {
		roll := rng.Intn(100)
		switch {
		case roll < params.Deletions:
			if e, ok := m.deletionEdit(rng, optionalSpans); ok {
				edits = append(edits, e)
			}
		case roll < params.Deletions+params.Chaos:
			edits = append(edits, m.chaosEdit(rng, spans))
		default:
			if e, ok := m.spliceEdit(rng, base, spans); ok {
				edits = append(edits, e)
			}
		}
	}

	out := applyEdits(base.Bytes, edits)
	return capSize(out, m.maxSize)
}

// deletionEdit picks a span whose grammar kind is marked optional (spec.md
// §4.3) and returns the edit that removes it. Returns ok=false if there are
// no optional spans to delete in this seed.
func (m *Mutator) deletionEdit(rng *rand.Rand, optionalSpans []span) (edit, bool) {
	if len(optionalSpans) == 0 {
		return edit{}, false
	}
	target := optionalSpans[rng.Intn(len(optionalSpans))]
	if target.end <= target.start {
		return edit{}, false
	}
	return edit{start: target.start, end: target.end, replacement: nil}, true
}

// chaosEdit picks a random span and overwrites up to its first 64 bytes
// with random bytes.
func (m *Mutator) chaosEdit(rng *rand.Rand, spans []span) edit {
	target := spans[rng.Intn(len(spans))]
	length := target.end - target.start
	if length > 64 {
		length = 64
	}
	start := target.start
	end := start + length
	chaos := make([]byte, length)
	rng.Read(chaos)
	return edit{start: start, end: end, replacement: chaos}
}

// spliceEdit picks a random span in base and replaces it with a same-kind
// span donated by a different seed in the corpus.
func (m *Mutator) spliceEdit(rng *rand.Rand, base *seed.Seed, spans []span) (edit, bool) {
	target := spans[rng.Intn(len(spans))]
	donor := m.corpus.Pick(rng)
	if donor == base {
		return edit{}, false
	}
	donorSpans := namedSpans(m.cat, donor.Tree)
	match := pickSameKind(rng, donorSpans, target.kind)
	if match == nil {
		return edit{}, false
	}
	return edit{
		start:       target.start,
		end:         target.end,
		replacement: donor.Bytes[match.start:match.end],
	}, true
}

// filterOptional returns the subset of spans whose grammar kind the
// catalogue marks as optional (spec.md §3, §4.3).
func filterOptional(cat *grammar.Catalogue, spans []span) []span {
	var out []span
	for _, s := range spans {
		if cat.IsOptional(s.kind) {
			out = append(out, s)
		}
	}
	return out
}

// pickSameKind returns a uniformly random span of the given kind from
// candidates, or nil if none match.
func pickSameKind(rng *rand.Rand, candidates []span, kind string) *span {
	var matches []span
	for _, c := range candidates {
		if c.kind == kind {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	m := matches[rng.Intn(len(matches))]
	return &m
}

// applyEdits sorts edits by start offset, drops any that overlap an
// already-accepted edit, and rewrites src in one pass.
func applyEdits(src []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return append([]byte(nil), src...)
	}

	sortEdits(edits)

	out := make([]byte, 0, len(src))
	cursor := uint(0)
	for _, e := range edits {
		if e.start < cursor {
			continue // overlaps a previously applied edit; skip
		}
		out = append(out, src[cursor:e.start]...)
		out = append(out, e.replacement...)
		cursor = e.end
	}
	out = append(out, src[cursor:]...)
	return out
}

// sortEdits orders edits by start offset, ascending. Small slices only
// (bounded by InterSplices per call, at most 48), so insertion sort is
// plenty.
func sortEdits(edits []edit) {
	for i := 1; i < len(edits); i++ {
		for j := i; j > 0 && edits[j].start < edits[j-1].start; j-- {
			edits[j], edits[j-1] = edits[j-1], edits[j]
		}
	}
}

// capSize truncates out to maxSize bytes if maxSize > 0 and out exceeds it.
func capSize(out []byte, maxSize int) []byte {
	if maxSize > 0 && len(out) > maxSize {
		return out[:maxSize]
	}
	return out
}
