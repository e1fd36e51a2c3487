package rdfimport

// PendingNode is a resource touched by the current batch. It is keyed by
// uri; blank nodes use the bnode:// scheme.
type PendingNode struct {
	URI    string
	Labels []string
	// Properties hold scalars for overwrite properties and []any for
	// multivalued ones.
	Properties map[string]any

	labelSet map[string]struct{}
}

func (n *PendingNode) addLabel(label string) {
	if _, ok := n.labelSet[label]; ok {
		return
	}
	n.labelSet[label] = struct{}{}
	n.Labels = append(n.Labels, label)
}

// RelKey identifies a relationship: at most one per (start, type, end).
type RelKey struct {
	Start string
	Type  string
	End   string
}

// PendingRelationship is a relationship registered in the current batch.
// Properties are only set through RDF-star annotations.
type PendingRelationship struct {
	Key        RelKey
	Properties map[string]any
}

// Buffer holds the pending mutations of one batch. Nodes and relationships
// are referenced by uri and RelKey only; store handles are resolved when the
// batch is materialized. Iteration follows first-reference order.
type Buffer struct {
	nodes     map[string]*PendingNode
	nodeOrder []string
	rels      map[RelKey]*PendingRelationship
	relOrder  []RelKey
}

func newBuffer() *Buffer {
	return &Buffer{
		nodes: make(map[string]*PendingNode),
		rels:  make(map[RelKey]*PendingRelationship),
	}
}

// node returns the pending node for uri, creating it on first reference.
func (b *Buffer) node(uri string) *PendingNode {
	if n, ok := b.nodes[uri]; ok {
		return n
	}
	n := &PendingNode{
		URI:        uri,
		Properties: make(map[string]any),
		labelSet:   make(map[string]struct{}),
	}
	b.nodes[uri] = n
	b.nodeOrder = append(b.nodeOrder, uri)
	return n
}

// relationship registers key; repeated registrations return the same entry.
func (b *Buffer) relationship(key RelKey) *PendingRelationship {
	if r, ok := b.rels[key]; ok {
		return r
	}
	r := &PendingRelationship{Key: key}
	b.rels[key] = r
	b.relOrder = append(b.relOrder, key)
	return r
}

// Nodes returns the pending nodes in first-reference order.
func (b *Buffer) Nodes() []*PendingNode {
	out := make([]*PendingNode, len(b.nodeOrder))
	for i, uri := range b.nodeOrder {
		out[i] = b.nodes[uri]
	}
	return out
}

// Relationships returns the pending relationships in registration order.
func (b *Buffer) Relationships() []*PendingRelationship {
	out := make([]*PendingRelationship, len(b.relOrder))
	for i, k := range b.relOrder {
		out[i] = b.rels[k]
	}
	return out
}

// Empty reports whether the batch holds nothing.
func (b *Buffer) Empty() bool {
	return len(b.nodes) == 0 && len(b.rels) == 0
}

func (b *Buffer) reset() {
	b.nodes = make(map[string]*PendingNode)
	b.nodeOrder = nil
	b.rels = make(map[RelKey]*PendingRelationship)
	b.relOrder = nil
}
