package splice

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/seed"
)

const mutatorNodeTypes = `[
  {"type": "program", "named": true, "children": {"multiple": true, "required": false, "types": [{"type": "expression_statement", "named": true}]}},
  {"type": "expression_statement", "named": true},
  {"type": "identifier", "named": true},
  {"type": "number", "named": true}
]`

func buildCorpus(t *testing.T, files map[string]string) *seed.Corpus {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	cat, err := grammar.Load(lang, []byte(mutatorNodeTypes))
	require.NoError(t, err)
	corpus, err := seed.Load(dir, "*", cat)
	require.NoError(t, err)
	return corpus
}

func TestMutateRespectsMaxSize(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{
		"a.js": "let x = 1; let y = 2; let z = x + y;",
		"b.js": "function f(a, b) { return a * b; }",
	})
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	cat, err := grammar.Load(lang, []byte(mutatorNodeTypes))
	require.NoError(t, err)

	m := NewMutator(cat, corpus, 8)
	rng := rand.New(rand.NewSource(42))
	out := m.Mutate(rng, RandomBatchParams(rng))
	assert.LessOrEqual(t, len(out), 8)
}

func TestMutateProducesNonEmptyOutputForNonEmptyCorpus(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{"a.js": "let x = 1;"})
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	cat, err := grammar.Load(lang, []byte(mutatorNodeTypes))
	require.NoError(t, err)

	m := NewMutator(cat, corpus, 0)
	rng := rand.New(rand.NewSource(7))
	out := m.Mutate(rng, BatchParams{})
	assert.NotEmpty(t, out)
}

func TestMutateOnlyDeletesOptionalSpans(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{"a.js": "x; y; z;"})
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	cat, err := grammar.Load(lang, []byte(mutatorNodeTypes))
	require.NoError(t, err)

	m := NewMutator(cat, corpus, 0)
	rng := rand.New(rand.NewSource(11))
	// Deletions=100 forces every operation down the deletion branch.
	out := m.Mutate(rng, BatchParams{InterSplices: 5, Deletions: 100, Chaos: 0})
	assert.NotNil(t, out)
	// Only whole expression_statement spans are optional, so every
	// statement left in the output is intact.
	for _, tok := range strings.Fields(string(out)) {
		assert.Contains(t, []string{"x;", "y;", "z;"}, tok)
	}
}

func TestDeletionEditSkipsWhenNoOptionalSpans(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{"a.js": "x;"})
	lang := tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	// The inline catalogue below declares no field or children slots, so no
	// kind is optional and no named span (identifier included) may be a
	// deletion target.
	cat, err := grammar.Load(lang, []byte(`[{"type": "program", "named": true}, {"type": "expression_statement", "named": true}, {"type": "identifier", "named": true}]`))
	require.NoError(t, err)

	m := NewMutator(cat, corpus, 0)
	rng := rand.New(rand.NewSource(5))
	_, ok := m.deletionEdit(rng, filterOptional(cat, namedSpans(cat, corpus.All()[0].Tree)))
	assert.False(t, ok)
}

func TestRandomBatchParamsWithinDocumentedRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		p := RandomBatchParams(rng)
		assert.GreaterOrEqual(t, p.InterSplices, 12)
		assert.Less(t, p.InterSplices, 48)
		assert.GreaterOrEqual(t, p.Chaos, 15)
		assert.Less(t, p.Chaos, 20)
		assert.GreaterOrEqual(t, p.Deletions, 10)
		assert.Less(t, p.Deletions, 20)
	}
}

func TestApplyEditsDropsOverlaps(t *testing.T) {
	src := []byte("abcdefgh")
	edits := []edit{
		{start: 2, end: 4, replacement: []byte("XX")},
		{start: 3, end: 5, replacement: []byte("YY")}, // overlaps the first, must be dropped
	}
	out := applyEdits(src, edits)
	assert.Equal(t, "abXXefgh", string(out))
}

func TestByteMutatorRespectsCeiling(t *testing.T) {
	corpus := buildCorpus(t, map[string]string{"a.js": "let x = 1;"})
	m := NewByteMutator(corpus)
	rng := rand.New(rand.NewSource(3))
	out := m.Mutate(rng)
	assert.LessOrEqual(t, len(out), MaxByteModeSize)
}
