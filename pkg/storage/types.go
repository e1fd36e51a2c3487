// Package storage provides the labeled property graph store that RDF imports
// are materialized into.
//
// The storage layer follows the Neo4j data model: nodes carry a set of labels
// and a property map, relationships are directed, typed and may carry their
// own properties. Two engines implement the same contract:
//   - MemoryEngine: in-memory storage for tests, previews and small graphs
//   - BadgerEngine: persistent storage on top of BadgerDB
//
// Both engines expose transactions (Tx) with read-your-writes semantics so a
// batch of upserts can be applied atomically and rolled back on failure.
//
// Example Usage:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	// Resource nodes are identified by their uri property
//	_ = engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri")
//
//	tx, _ := engine.BeginTx()
//	alice := &storage.Node{
//		ID:         storage.NewNodeID(),
//		Labels:     []string{"Resource", "Person"},
//		Properties: map[string]any{"uri": "http://example.org/alice"},
//	}
//	_ = tx.CreateNode(alice)
//	_ = tx.Commit()
//
//	found, _ := engine.FindNode("Resource", "uri", "http://example.org/alice")
//	fmt.Println(found.Labels)
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Common errors
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidData         = errors.New("invalid data")
	ErrInvalidEdge         = errors.New("invalid edge: start or end node not found")
	ErrStorageClosed       = errors.New("storage closed")
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrIterationStopped is returned by a stream callback to end iteration
	// early without an error.
	ErrIterationStopped = errors.New("iteration stopped")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph relationships.
type EdgeID string

// NewNodeID returns a fresh random node identifier.
func NewNodeID() NodeID {
	return NodeID("n-" + uuid.NewString())
}

// EdgeIDFor derives the identifier of the relationship of the given type
// between two nodes.
//
// The id is a 128-bit BLAKE2b digest of the ordered triple (start, type, end),
// so at most one relationship of a type can exist between an ordered pair of
// nodes when ids are produced with this function: a second create of the same
// relationship fails with ErrAlreadyExists instead of duplicating it.
//
// Example:
//
//	id := storage.EdgeIDFor(alice.ID, "KNOWS", bob.ID)
//	edge := &storage.Edge{ID: id, StartNode: alice.ID, EndNode: bob.ID, Type: "KNOWS"}
func EdgeIDFor(start NodeID, edgeType string, end NodeID) EdgeID {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// only reachable with an invalid size or key
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write([]byte(start))
	h.Write([]byte{0})
	h.Write([]byte(edgeType))
	h.Write([]byte{0})
	h.Write([]byte(end))
	return EdgeID("e-" + hex.EncodeToString(h.Sum(nil)))
}

// Node represents a graph node (vertex) in the labeled property graph.
//
// Property values are restricted to the types the property codec understands:
// string, int64, float64, bool, time.Time, Date and []any of those scalars.
// Other integer and float widths are normalized on write.
//
// Thread Safety:
//
//	Node structs are NOT thread-safe. The storage engine handles concurrency
//	and always hands out copies.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// HasLabel reports whether the node carries the label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AddLabel adds the label if missing and reports whether the node changed.
func (n *Node) AddLabel(label string) bool {
	if n.HasLabel(label) {
		return false
	}
	n.Labels = append(n.Labels, label)
	return true
}

// Edge represents a directed, typed relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"startNode"`
	EndNode    NodeID         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Direction selects which side of a node a relationship query looks at.
type Direction int

const (
	// Outgoing selects relationships that start at the node.
	Outgoing Direction = iota
	// Incoming selects relationships that end at the node.
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Date is a calendar date without time of day or zone, the property-graph
// counterpart of xsd:date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO-8601 calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String formats the date as 2006-01-02.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Engine defines the storage engine interface used by the importer.
//
// All Engine implementations MUST be thread-safe. Single-operation methods
// are atomic; multi-operation atomicity is obtained through BeginTx.
//
// Implementations:
//   - MemoryEngine: In-memory storage for testing and previews
//   - BadgerEngine: Persistent disk storage
type Engine interface {
	// Node operations
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error
	DeleteNode(id NodeID) error

	// Edge operations
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	UpdateEdge(edge *Edge) error

	// Query operations
	FindNode(label, property string, value any) (*Node, error)
	GetNodesByLabel(label string) ([]*Node, error)
	CountNodesByLabel(label string) (int64, error)
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)
	GetEdgeBetween(startID, endID NodeID, edgeType string) *Edge
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)

	// Degree counts relationships of edgeType on one side of a node.
	// An empty edgeType counts every relationship on that side.
	Degree(nodeID NodeID, edgeType string, dir Direction) int

	// Schema operations
	GetSchema() *SchemaManager
	AddUniqueConstraint(name, label, property string) error

	// Transactions
	BeginTx() (Tx, error)

	// Lifecycle
	Close() error

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)
}

// Tx is a write transaction against an Engine.
//
// Reads through a Tx observe the transaction's own pending writes. Nothing is
// visible to other readers until Commit returns nil; Rollback discards every
// pending write. A Tx is finished after Commit or Rollback and all further
// calls return ErrTransactionClosed.
type Tx interface {
	GetNode(id NodeID) (*Node, error)
	FindNode(label, property string, value any) (*Node, error)
	CreateNode(node *Node) error
	UpdateNode(node *Node) error

	GetEdge(id EdgeID) (*Edge, error)
	CreateEdge(edge *Edge) error
	UpdateEdge(edge *Edge) error
	EdgesOfType(nodeID NodeID, edgeType string, dir Direction) ([]*Edge, error)
	Degree(nodeID NodeID, edgeType string, dir Direction) int

	SetMetadata(metadata map[string]any) error
	OperationCount() int

	Commit() error
	Rollback() error
}

// StreamingEngine is implemented by engines that can iterate the graph without
// materializing it.
type StreamingEngine interface {
	StreamNodes(ctx context.Context, fn func(node *Node) error) error
	StreamEdges(ctx context.Context, fn func(edge *Edge) error) error
}

// StreamNodes iterates every node of engine, streaming when the engine
// supports it.
func StreamNodes(ctx context.Context, engine Engine, fn func(node *Node) error) error {
	if se, ok := engine.(StreamingEngine); ok {
		return se.StreamNodes(ctx, fn)
	}
	nodes, err := engine.AllNodes()
	if err != nil {
		return err
	}
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(node); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

// StreamEdges iterates every relationship of engine.
func StreamEdges(ctx context.Context, engine Engine, fn func(edge *Edge) error) error {
	if se, ok := engine.(StreamingEngine); ok {
		return se.StreamEdges(ctx, fn)
	}
	edges, err := engine.AllEdges()
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(edge); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}
