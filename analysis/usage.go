package analysis

import (
	"github.com/arxeiss/deadelf/ctree"
)

// EvidenceKind says how a function was seen to be used.
type EvidenceKind string

const (
	// EvidenceCall is a direct call expression.
	EvidenceCall EvidenceKind = "call"
	// EvidencePointerRef is any other source mention: a pointer-valued
	// assignment, an aggregate initializer entry, a cast, an address-of.
	EvidencePointerRef EvidenceKind = "pointer-reference"
	// EvidenceDisassembly is a symbol mention in the binary's disassembly.
	EvidenceDisassembly EvidenceKind = "disassembly-mention"
)

// UsageRecord is one piece of evidence that a function symbol is used.
// Many records may name the same symbol.
type UsageRecord struct {
	Symbol string
	Kind   EvidenceKind
	Unit   string
	Line   uint32
}

// CollectUsages walks the unit's tree and returns a record for every
// identifier that resolves to a function in known. Resolution is scope-aware:
// a local declaration sharing a function's name shadows it for the rest of
// its block, the declarator of a function definition is the definition rather
// than a usage, and a file-scope prototype is neither. Traversal order does
// not matter to callers; records are deduplicated per symbol and kind.
func CollectUsages(unit *ctree.Unit, known map[string]struct{}) []UsageRecord {
	w := &usageWalker{
		tree:  unit.Tree,
		unit:  unit.Path,
		known: known,
		seen:  make(map[string]map[EvidenceKind]struct{}),
	}
	if w.tree != nil && len(w.tree.Nodes) > 0 {
		w.walk(0, false)
	}
	return w.records
}

type usageWalker struct {
	tree  *ctree.Tree
	unit  string
	known map[string]struct{}

	// scopes holds names bound by local declarations and parameters, one map
	// per open block. Empty slice means file scope, where nothing shadows.
	scopes  []map[string]struct{}
	seen    map[string]map[EvidenceKind]struct{}
	records []UsageRecord
}

// walk visits a subtree. callee is true while descending the called operand
// of a call expression, which turns an identifier match into call evidence.
func (w *usageWalker) walk(idx int, callee bool) {
	n := &w.tree.Nodes[idx]
	switch n.Kind {
	case "function_definition":
		w.push()
		for _, c := range n.Children {
			if w.tree.Nodes[c].Field == "declarator" {
				w.walkDefinitionDeclarator(c)
			} else {
				w.walk(c, false)
			}
		}
		w.pop()

	case "compound_statement", "for_statement":
		w.push()
		for _, c := range n.Children {
			w.walk(c, false)
		}
		w.pop()

	case "declaration":
		for _, c := range n.Children {
			if w.tree.Nodes[c].Field == "declarator" {
				w.walkDeclarator(c)
			} else {
				w.walk(c, false)
			}
		}

	case "parameter_declaration":
		for _, c := range n.Children {
			if w.tree.Nodes[c].Field == "declarator" {
				w.bindDeclarator(c)
			} else {
				w.walk(c, false)
			}
		}

	case "enumerator":
		// the enumerator name is a declaration, its value an expression
		for _, c := range n.Children {
			if w.tree.Nodes[c].Field != "name" {
				w.walk(c, false)
			}
		}

	case "call_expression":
		for _, c := range n.Children {
			w.walk(c, w.tree.Nodes[c].Field == "function")
		}

	case "parenthesized_expression":
		// (foo)(x) is still a direct call of foo
		for _, c := range n.Children {
			w.walk(c, callee)
		}

	case "identifier":
		w.emit(n, callee)

	default:
		for _, c := range n.Children {
			w.walk(c, false)
		}
	}
}

// walkDeclarator handles one declarator of a declaration statement: bind the
// declared name, then treat any initializer as ordinary expression territory.
func (w *usageWalker) walkDeclarator(idx int) {
	n := &w.tree.Nodes[idx]
	if n.Kind == "init_declarator" {
		if decl := w.childByField(idx, "declarator"); decl >= 0 {
			w.bindDeclarator(decl)
		}
		if value := w.childByField(idx, "value"); value >= 0 {
			w.walk(value, false)
		}
		return
	}
	w.bindDeclarator(idx)
}

// bindDeclarator records the declared name as a local binding. Prototypes
// re-declare the function itself, so they neither shadow nor count as usage.
func (w *usageWalker) bindDeclarator(idx int) {
	nameIdx, prototype := w.declaratorInfo(idx)
	if prototype || nameIdx < 0 {
		return
	}
	w.declare(w.tree.Nodes[nameIdx].Text)
	w.walkDeclaratorExprs(idx, nameIdx)
}

// declaratorInfo descends a declarator chain to the declared identifier.
// prototype is true when the chain declares a function rather than an
// object; `int f(void)` is a prototype, `int (*f)(void)` is a pointer
// variable.
func (w *usageWalker) declaratorInfo(idx int) (nameIdx int, prototype bool) {
	n := &w.tree.Nodes[idx]
	switch n.Kind {
	case "identifier":
		return idx, false
	case "function_declarator":
		inner := w.childByField(idx, "declarator")
		if inner < 0 {
			return -1, false
		}
		ni, _ := w.declaratorInfo(inner)
		return ni, w.tree.Nodes[inner].Kind == "identifier"
	case "pointer_declarator", "array_declarator", "parenthesized_declarator", "init_declarator":
		inner := w.childByField(idx, "declarator")
		if inner < 0 && len(n.Children) > 0 {
			inner = n.Children[0]
		}
		if inner < 0 {
			return -1, false
		}
		return w.declaratorInfo(inner)
	default:
		if len(n.Children) > 0 {
			return w.declaratorInfo(n.Children[0])
		}
		return -1, false
	}
}

// walkDeclaratorExprs visits expressions embedded in a declarator chain,
// e.g. array sizes, without re-reporting the declared name itself.
func (w *usageWalker) walkDeclaratorExprs(idx, nameIdx int) {
	n := &w.tree.Nodes[idx]
	for _, c := range n.Children {
		if c == nameIdx {
			continue
		}
		switch w.tree.Nodes[c].Kind {
		case "pointer_declarator", "array_declarator", "parenthesized_declarator",
			"function_declarator", "identifier":
			w.walkDeclaratorExprs(c, nameIdx)
		case "parameter_list":
			// parameter names inside a pointer declarator bind nothing here
		default:
			w.walk(c, false)
		}
	}
}

// walkDefinitionDeclarator handles the declarator of a function definition:
// the function's own name is the definition, not a usage, while parameter
// declarations bind into the freshly opened function scope.
func (w *usageWalker) walkDefinitionDeclarator(idx int) {
	n := &w.tree.Nodes[idx]
	switch n.Kind {
	case "function_declarator":
		for _, c := range n.Children {
			if w.tree.Nodes[c].Field == "declarator" {
				continue
			}
			w.walk(c, false)
		}
	case "pointer_declarator", "parenthesized_declarator":
		for _, c := range n.Children {
			w.walkDefinitionDeclarator(c)
		}
	default:
		w.walk(idx, false)
	}
}

func (w *usageWalker) childByField(idx int, field string) int {
	for _, c := range w.tree.Nodes[idx].Children {
		if w.tree.Nodes[c].Field == field {
			return c
		}
	}
	return -1
}

func (w *usageWalker) push() {
	w.scopes = append(w.scopes, nil)
}

func (w *usageWalker) pop() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *usageWalker) declare(name string) {
	if name == "" || len(w.scopes) == 0 {
		return
	}
	top := len(w.scopes) - 1
	if w.scopes[top] == nil {
		w.scopes[top] = make(map[string]struct{})
	}
	w.scopes[top][name] = struct{}{}
}

func (w *usageWalker) shadowed(name string) bool {
	for _, scope := range w.scopes {
		if _, ok := scope[name]; ok {
			return true
		}
	}
	return false
}

func (w *usageWalker) emit(n *ctree.Node, callee bool) {
	name := n.Text
	if name == "" {
		return
	}
	if _, ok := w.known[name]; !ok {
		return
	}
	if w.shadowed(name) {
		return
	}

	kind := EvidencePointerRef
	if callee {
		kind = EvidenceCall
	}
	if kinds := w.seen[name]; kinds != nil {
		if _, dup := kinds[kind]; dup {
			return
		}
	} else {
		w.seen[name] = make(map[EvidenceKind]struct{})
	}
	w.seen[name][kind] = struct{}{}
	w.records = append(w.records, UsageRecord{Symbol: name, Kind: kind, Unit: w.unit, Line: n.Line})
}
