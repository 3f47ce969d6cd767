package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/oracle"
	"github.com/zjy-dev/tree-crasher/internal/seed"
)

func TestResolveJobs(t *testing.T) {
	assert.Equal(t, 1, ResolveJobs(Options{Debug: true, Jobs: 8}))
	assert.Equal(t, 1, ResolveJobs(Options{Radamsa: true, Jobs: 8}))
	assert.Equal(t, 4, ResolveJobs(Options{Jobs: 4}))
	assert.Greater(t, ResolveJobs(Options{Jobs: 0}), 0)
}

func TestRunReturnsImmediatelyOnEmptyCorpus(t *testing.T) {
	cat, err := grammar.Load(tree_sitter.NewLanguage(tree_sitter_javascript.Language()), []byte(`[{"type":"program","named":true}]`))
	require.NoError(t, err)

	dir := t.TempDir()
	corpus, err := seed.Load(dir, "*", cat)
	require.NoError(t, err)
	require.Equal(t, 0, corpus.Len())

	o, err := oracle.New(oracle.Config{Path: "true"})
	require.NoError(t, err)

	err = Run(context.Background(), Options{Jobs: 2, OutputDir: dir}, cat, corpus, o)
	assert.NoError(t, err)
}

func TestRunStopsWorkersOnCancellation(t *testing.T) {
	cat, err := grammar.Load(tree_sitter.NewLanguage(tree_sitter_javascript.Language()), []byte(`[{"type":"program","named":true}]`))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte("let x = 1;"), 0644))

	corpus, err := seed.Load(dir, "*", cat)
	require.NoError(t, err)
	require.Equal(t, 1, corpus.Len())

	o, err := oracle.New(oracle.Config{Path: "true"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = Run(ctx, Options{Jobs: 2, MaxSize: 1024, OutputDir: dir}, cat, corpus, o)
	assert.NoError(t, err)
}
