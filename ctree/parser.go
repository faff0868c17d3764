package ctree

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Dialect selects the grammar used for parsing translation units.
type Dialect string

const (
	DialectC   Dialect = "c"
	DialectCPP Dialect = "cpp"
)

func (d Dialect) language() (*sitter.Language, error) {
	switch d {
	case DialectC:
		return c.GetLanguage(), nil
	case DialectCPP:
		return cpp.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", string(d))
	}
}

// Parser turns fully preprocessed source files into arena trees, going
// through the cache keyed by content fingerprint. ParseUnit is safe for
// concurrent use; each call runs its own tree-sitter parser instance.
type Parser struct {
	dialect Dialect
	lang    *sitter.Language
	cache   *Cache
	log     zerolog.Logger
}

// NewParser creates a parser for the given dialect. Cache may be nil to
// force a full parse of every unit.
func NewParser(dialect Dialect, cache *Cache, log zerolog.Logger) (*Parser, error) {
	lang, err := dialect.language()
	if err != nil {
		return nil, err
	}
	return &Parser{dialect: dialect, lang: lang, cache: cache, log: log}, nil
}

// ParseUnit parses one translation unit, reusing a cached tree when the
// file's fingerprint matches a stored entry. A returned error means no tree
// is available for this unit at all; recoverable syntax diagnostics inside
// the file are logged and the partial tree is still returned.
func (p *Parser) ParseUnit(ctx context.Context, path string) (*Unit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation unit: %w", err)
	}
	fp := FingerprintBytes(content)

	if p.cache != nil {
		tree, err := p.cache.Load(fp, p.dialect)
		switch {
		case err == nil:
			p.log.Debug().Str("unit", path).Stringer("fingerprint", fp).Msg("Loaded cached tree")
			return &Unit{Path: path, Fingerprint: fp, Tree: tree}, nil
		case errors.Is(err, ErrCacheCorrupt):
			p.log.Warn().Str("unit", path).Err(err).Msg("Discarding cache entry, reparsing")
		case !errors.Is(err, os.ErrNotExist):
			p.log.Warn().Str("unit", path).Err(err).Msg("Cache read failed, reparsing")
		}
	}

	p.log.Debug().Str("unit", path).Msg("Parsing")
	tree, err := p.parse(ctx, content)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Store(fp, p.dialect, tree); err != nil {
			// Cached content is reproducible from the fingerprint alone, so
			// a failed store only costs a reparse on the next run.
			p.log.Warn().Str("unit", path).Err(err).Msg("Failed to persist tree")
		}
	}
	return &Unit{Path: path, Fingerprint: fp, Tree: tree}, nil
}

func (p *Parser) parse(ctx context.Context, content []byte) (*Tree, error) {
	sp := sitter.NewParser()
	sp.SetLanguage(p.lang)

	st, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse translation unit: %w", err)
	}
	root := st.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parser produced no syntax tree")
	}
	if root.HasError() {
		p.log.Warn().Msg("Unit has syntax errors, collecting usage from the recovered tree")
	}
	return buildTree(root, content), nil
}

// buildTree copies the parser's node graph into an arena of immutable,
// index-addressed nodes. Only named grammar nodes survive; punctuation and
// comments carry no usage evidence.
func buildTree(root *sitter.Node, src []byte) *Tree {
	t := &Tree{Nodes: make([]Node, 0, 256)}

	var build func(n *sitter.Node, field string) int
	build = func(n *sitter.Node, field string) int {
		idx := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{
			Kind:  n.Type(),
			Field: field,
			Line:  n.StartPoint().Row + 1,
		})

		named := 0
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child == nil || !child.IsNamed() || child.Type() == "comment" {
				continue
			}
			ci := build(child, n.FieldNameForChild(i))
			t.Nodes[idx].Children = append(t.Nodes[idx].Children, ci)
			named++
		}
		if named == 0 {
			if text := n.Content(src); len(text) <= maxLeafText {
				t.Nodes[idx].Text = text
			}
		}
		return idx
	}
	build(root, "")

	return t
}
