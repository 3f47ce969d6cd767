// Package grammar unifies a compiled tree-sitter language with its JSON
// node-type catalogue into a single type, Catalogue, consumed by both
// internal/splice and internal/reduce. The original tool kept two
// independent node-type views (one per crate); this port collapses them
// into one, per the redesign note in the specification.
package grammar

import (
	"encoding/json"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// FieldType describes one admissible node kind for a field or child slot.
type FieldType struct {
	Type  string `json:"type"`
	Named bool   `json:"named"`
}

// Field describes a named field slot on a node type (node-types.json's
// "fields" entries).
type Field struct {
	Multiple bool        `json:"multiple"`
	Required bool        `json:"required"`
	Types    []FieldType `json:"types"`
}

// NodeType mirrors one entry of a tree-sitter node-types.json file.
type NodeType struct {
	Type     string           `json:"type"`
	Named    bool             `json:"named"`
	Fields   map[string]Field `json:"fields,omitempty"`
	Children *Field           `json:"children,omitempty"`
	Subtypes []FieldType      `json:"subtypes,omitempty"`
}

// Catalogue pairs a compiled tree-sitter Language with the parsed node-type
// descriptions for that grammar, and is the sole grammar-facing dependency
// of the mutator and reducer.
type Catalogue struct {
	Language  *tree_sitter.Language
	Types     []NodeType
	byName    map[string]*NodeType
	supertype map[string][]string // supertype kind -> concrete subtype kinds
	optional  map[string]bool     // kind -> may be deleted without violating the grammar
}

// Load parses a node-types.json payload against the given compiled
// language. language is produced by a grammar-specific cmd/ binary (e.g.
// tree_sitter.NewLanguage(tree_sitter_javascript.Language())).
func Load(language *tree_sitter.Language, nodeTypesJSON []byte) (*Catalogue, error) {
	var types []NodeType
	if err := json.Unmarshal(nodeTypesJSON, &types); err != nil {
		return nil, fmt.Errorf("failed to parse node-types JSON: %w", err)
	}

	c := &Catalogue{
		Language:  language,
		Types:     types,
		byName:    make(map[string]*NodeType, len(types)),
		supertype: make(map[string][]string),
		optional:  make(map[string]bool),
	}
	for i := range types {
		t := &types[i]
		c.byName[t.Type] = t
		for _, sub := range t.Subtypes {
			c.supertype[t.Type] = append(c.supertype[t.Type], sub.Type)
		}
	}
	// Optionality expansion runs after byName/supertype are fully populated:
	// a field's Types entry often names a supertype (e.g. "_statement"), but
	// a tree node's Kind() is always the concrete subtype, so marking the
	// supertype alone would never match anything namedSpans collects.
	for i := range types {
		t := &types[i]
		for _, f := range t.Fields {
			markOptional(c, f)
		}
		if t.Children != nil {
			markOptional(c, *t.Children)
		}
	}
	return c, nil
}

// markOptional records every type named in f.Types — and, transitively,
// every concrete subtype of a supertype named there — as optional, when f
// itself is not required or permits multiple occurrences. A slot that can
// hold several instances can always lose one without breaking the grammar,
// even if the slot as a whole is required.
func markOptional(c *Catalogue, f Field) {
	if f.Required && !f.Multiple {
		return
	}
	for _, ft := range f.Types {
		markOptionalKind(c, ft.Type)
	}
}

// markOptionalKind marks kind optional and recurses into its concrete
// subtypes, if any.
func markOptionalKind(c *Catalogue, kind string) {
	if c.optional[kind] {
		return
	}
	c.optional[kind] = true
	for _, sub := range c.supertype[kind] {
		markOptionalKind(c, sub)
	}
}

// Lookup returns the node-type descriptor for kind, if the catalogue knows
// about it.
func (c *Catalogue) Lookup(kind string) (*NodeType, bool) {
	t, ok := c.byName[kind]
	return t, ok
}

// IsNamed reports whether kind is a named (vs. anonymous/token) node type.
// Unknown kinds are treated as named so callers default to the safer,
// more conservative splice/delete behavior.
func (c *Catalogue) IsNamed(kind string) bool {
	t, ok := c.byName[kind]
	if !ok {
		return true
	}
	return t.Named
}

// IsOptional reports whether kind may be deleted from its parent without
// violating the grammar (spec.md §3's "which fields are optional", §4.3's
// deletion rule): it only ever fills a field or children slot that is not
// required, or one that permits multiple occurrences. Unknown kinds are
// treated as not optional, the conservative default — deletion should only
// target subtrees the grammar actually documents as droppable.
func (c *Catalogue) IsOptional(kind string) bool {
	return c.optional[kind]
}

// Subtypes returns the concrete node kinds a supertype kind (e.g.
// "_expression") can stand for. Returns nil if kind is not a supertype.
func (c *Catalogue) Subtypes(kind string) []string {
	return c.supertype[kind]
}

// NewParser builds a parser bound to the catalogue's language.
func (c *Catalogue) NewParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(c.Language); err != nil {
		return nil, fmt.Errorf("failed to set language on parser: %w", err)
	}
	return parser, nil
}

// Parse parses src with a fresh parser bound to the catalogue's language.
func (c *Catalogue) Parse(src []byte) (*tree_sitter.Tree, error) {
	parser, err := c.NewParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parser returned no tree")
	}
	return tree, nil
}
