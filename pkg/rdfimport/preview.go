package rdfimport

import (
	"context"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// VirtualGraph is the graph a preview would produce. Nodes are keyed by uri
// and use the uri as id; relationships are keyed by (start, type, end).
type VirtualGraph struct {
	Nodes         []*storage.Node
	Relationships []*storage.Edge
}

// Preview is the sink of Preview. It merges batches into an in-memory graph
// with the same semantics as DirectLoader and persists nothing.
type Preview struct {
	strict   bool
	warnings *Warnings

	nodes     map[string]*storage.Node
	nodeOrder []string
	edges     map[RelKey]*storage.Edge
	edgeOrder []RelKey
	dropped   int
}

// NewPreview creates an empty preview sink.
func NewPreview(strict bool, warnings *Warnings) *Preview {
	if warnings == nil {
		warnings = newWarnings()
	}
	return &Preview{
		strict:   strict,
		warnings: warnings,
		nodes:    make(map[string]*storage.Node),
		edges:    make(map[RelKey]*storage.Edge),
	}
}

func (p *Preview) node(uri string) *storage.Node {
	if n, ok := p.nodes[uri]; ok {
		return n
	}
	n := newResource(storage.NodeID(uri), uri)
	p.nodes[uri] = n
	p.nodeOrder = append(p.nodeOrder, uri)
	return n
}

func (p *Preview) OnNodeReady(pn *PendingNode) error {
	n := p.node(pn.URI)
	for _, label := range pn.Labels {
		n.AddLabel(label)
	}
	p.dropped += mergeProperties(n.Properties, pn.Properties, p.strict, "node "+pn.URI, p.warnings)
	return nil
}

func (p *Preview) OnRelationshipReady(r *PendingRelationship) error {
	e, ok := p.edges[r.Key]
	if !ok {
		start, end := p.node(r.Key.Start).ID, p.node(r.Key.End).ID
		e = &storage.Edge{
			ID:         storage.EdgeIDFor(start, r.Key.Type, end),
			StartNode:  start,
			EndNode:    end,
			Type:       r.Key.Type,
			Properties: make(map[string]any),
		}
		p.edges[r.Key] = e
		p.edgeOrder = append(p.edgeOrder, r.Key)
	}
	p.dropped += mergeProperties(e.Properties, r.Properties, p.strict, "relationship "+r.Key.Type, p.warnings)
	return nil
}

// OnFlush keeps everything in memory; no statement is ever loaded.
func (p *Preview) OnFlush(context.Context, bool) (FlushResult, error) {
	res := FlushResult{Dropped: p.dropped}
	p.dropped = 0
	return res, nil
}

// Graph returns the previewed graph in first-reference order.
func (p *Preview) Graph() *VirtualGraph {
	g := &VirtualGraph{
		Nodes:         make([]*storage.Node, 0, len(p.nodeOrder)),
		Relationships: make([]*storage.Edge, 0, len(p.edgeOrder)),
	}
	for _, uri := range p.nodeOrder {
		g.Nodes = append(g.Nodes, p.nodes[uri])
	}
	for _, k := range p.edgeOrder {
		g.Relationships = append(g.Relationships, p.edges[k])
	}
	return g
}
