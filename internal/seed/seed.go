// Package seed holds the parsed seed corpus a worker mutates from. A Corpus
// is built once at startup, never mutated afterward, and selected from with
// uniform probability — there is no coverage-driven priority scheduling
// (that is an explicit non-goal).
package seed

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/zjy-dev/tree-crasher/internal/grammar"
	"github.com/zjy-dev/tree-crasher/internal/logger"
)

// Seed is one parsed input file from the seed corpus.
type Seed struct {
	Name  string // original file path, for diagnostics only
	Bytes []byte
	Tree  *tree_sitter.Tree
}

// Corpus is an ordered, immutable set of parsed seeds.
type Corpus struct {
	seeds []*Seed
}

// Load walks dir non-recursively for files matching pattern ("*" by
// default), parses each with cat, and keeps only the ones that parse
// without error. A seed that fails to parse is dropped with a warning, not
// a fatal error — one malformed file must not abort the whole run.
func Load(dir, pattern string, cat *grammar.Catalogue) (*Corpus, error) {
	if pattern == "" {
		pattern = "*"
	}

	entries, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob seed directory %s: %w", dir, err)
	}
	sort.Strings(entries)

	seeds := make([]*Seed, 0, len(entries))
	for _, name := range entries {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}

		raw, err := os.ReadFile(full)
		if err != nil {
			logger.Warn("skipping seed %s: %v", full, err)
			continue
		}

		tree, err := cat.Parse(raw)
		if err != nil {
			logger.Warn("skipping seed %s: parse failed: %v", full, err)
			continue
		}

		seeds = append(seeds, &Seed{Name: full, Bytes: raw, Tree: tree})
	}

	return &Corpus{seeds: seeds}, nil
}

// Len returns the number of seeds in the corpus.
func (c *Corpus) Len() int {
	return len(c.seeds)
}

// All returns the corpus's seeds in load order. The slice must not be
// mutated by callers.
func (c *Corpus) All() []*Seed {
	return c.seeds
}

// Pick returns a uniformly random seed from the corpus. Callers must check
// Len() > 0 first; Pick panics on an empty corpus.
func (c *Corpus) Pick(rng *rand.Rand) *Seed {
	return c.seeds[rng.Intn(len(c.seeds))]
}
