package ctree

// maxLeafText caps how much leaf content is copied into the arena. Identifiers
// and literals are far below this; anything longer is never matched against a
// symbol name anyway.
const maxLeafText = 256

type (
	// Tree is an immutable, arena-backed syntax tree of one translation unit.
	// Nodes are addressed by index into Nodes; index 0 is the root. The arena
	// holds only named grammar nodes, in pre-order, with explicit child index
	// slices instead of live parent/child pointers into the parser's own
	// object graph. Once built (or decoded from cache) a Tree is never
	// mutated.
	Tree struct {
		Nodes []Node
	}

	// Node is a single syntax node. Text is set only for leaves (nodes
	// without named children), which is where identifier spellings live.
	Node struct {
		// Kind is the grammar node type, e.g. "call_expression".
		Kind string `json:"k"`
		// Field is the field name this node occupies in its parent, if any.
		Field string `json:"f,omitempty"`
		// Text is the source text of a leaf node.
		Text string `json:"t,omitempty"`
		// Line is the 1-based source line of the node start.
		Line uint32 `json:"l"`
		// Children are arena indices of named child nodes, in source order.
		Children []int `json:"n,omitempty"`
	}

	// Unit ties a parsed translation unit to the file it came from and the
	// fingerprint its cache entry is keyed by.
	Unit struct {
		Path        string
		Fingerprint Fingerprint
		Tree        *Tree
	}
)

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node {
	if len(t.Nodes) == 0 {
		return nil
	}
	return &t.Nodes[0]
}

// Walk calls fn for every node in pre-order, starting at the root.
func (t *Tree) Walk(fn func(idx int, n *Node)) {
	if len(t.Nodes) == 0 {
		return
	}
	t.walk(0, fn)
}

func (t *Tree) walk(idx int, fn func(idx int, n *Node)) {
	n := &t.Nodes[idx]
	fn(idx, n)
	for _, c := range n.Children {
		t.walk(c, fn)
	}
}
