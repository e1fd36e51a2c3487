// Package storage provides storage engine implementations.
//
// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface with serializable transactions.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode          = byte(0x01) // nodes:nodeID -> Node
	prefixEdge          = byte(0x02) // edges:edgeID -> Edge
	prefixLabelIndex    = byte(0x03) // label:labelName:nodeID -> []byte{}
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:type:edgeID -> []byte{}
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:type:edgeID -> []byte{}
	prefixUniqueIndex   = byte(0x06) // unique:label:property:valueKey -> nodeID
	prefixConstraint    = byte(0x07) // constraint:name -> JSON(UniqueConstraint)
)

const sep = byte(0x00)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//   - Label Index: 0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + type + 0x00 + edgeID -> empty
//   - Incoming Index: 0x05 + nodeID + 0x00 + type + 0x00 + edgeID -> empty
//   - Unique Index: 0x06 + label + 0x00 + property + 0x00 + valueKey -> nodeID
//   - Constraints: 0x07 + name -> JSON(UniqueConstraint)
//
// Unique constraints are enforced through the unique index inside the same
// Badger transaction as the write, so two concurrent importers racing on the
// same uri conflict at commit instead of both creating a node.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	_ = engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri")
type BadgerEngine struct {
	db     *badger.DB
	schema *SchemaManager
	mu     sync.RWMutex // Protects closed
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Logger for BadgerDB internal logging. A *logrus.Logger satisfies it.
	// If nil, BadgerDB logging is disabled.
	Logger badger.Logger

	// LowMemory shrinks memtables and caches. Large single-transaction imports
	// hit badger.ErrTxnTooBig sooner with it.
	LowMemory bool
}

// NewBadgerEngine creates a new persistent storage engine with default settings.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("./data/n10s")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration
// and loads the persisted constraint definitions.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	// nil keeps Badger quiet
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(16 << 20).
			WithValueLogFileSize(64 << 20).
			WithNumMemtables(2).
			WithNumLevelZeroTables(2).
			WithNumLevelZeroTablesStall(4).
			WithBlockCacheSize(32 << 20).
			WithIndexCacheSize(16 << 20)
	} else {
		// transaction size limits derive from the memtable size
		badgerOpts = badgerOpts.WithMemTableSize(64 << 20)
	}
	badgerOpts = badgerOpts.WithValueThreshold(1024)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	engine := &BadgerEngine{
		db:     db,
		schema: NewSchemaManager(),
	}
	if err := engine.loadConstraints(); err != nil {
		db.Close()
		return nil, err
	}
	return engine, nil
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
//
// Data is not persisted and is lost when the engine is closed.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		InMemory: true,
	})
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func joinKey(prefix byte, parts ...string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(prefix)
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(sep)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

func labelIndexKey(label string, nodeID NodeID) []byte {
	return joinKey(prefixLabelIndex, label, string(nodeID))
}

func labelIndexPrefix(label string) []byte {
	return append(joinKey(prefixLabelIndex, label), sep)
}

func adjacencyPrefixByte(dir Direction) byte {
	if dir == Incoming {
		return prefixIncomingIndex
	}
	return prefixOutgoingIndex
}

func adjacencyKey(dir Direction, nodeID NodeID, edgeType string, edgeID EdgeID) []byte {
	return joinKey(adjacencyPrefixByte(dir), string(nodeID), edgeType, string(edgeID))
}

// adjacencyPrefix covers every relationship on one side of the node, or only
// those of edgeType when it is set.
func adjacencyPrefix(dir Direction, nodeID NodeID, edgeType string) []byte {
	if edgeType == "" {
		return append(joinKey(adjacencyPrefixByte(dir), string(nodeID)), sep)
	}
	return append(joinKey(adjacencyPrefixByte(dir), string(nodeID), edgeType), sep)
}

func uniqueIndexKey(label, property string, value any) []byte {
	return joinKey(prefixUniqueIndex, label, property, valueKey(value))
}

func constraintDefKey(name string) []byte {
	return joinKey(prefixConstraint, name)
}

// lastSegment returns the bytes after the final separator of an index key.
func lastSegment(key []byte) string {
	i := bytes.LastIndexByte(key, sep)
	return string(key[i+1:])
}

// ============================================================================
// Serialization
// ============================================================================

type storedNode struct {
	ID         NodeID                 `json:"id"`
	Labels     []string               `json:"labels"`
	Properties map[string]taggedValue `json:"properties,omitempty"`
	CreatedAt  int64                  `json:"createdAt"`
	UpdatedAt  int64                  `json:"updatedAt"`
}

type storedEdge struct {
	ID         EdgeID                 `json:"id"`
	StartNode  NodeID                 `json:"startNode"`
	EndNode    NodeID                 `json:"endNode"`
	Type       string                 `json:"type"`
	Properties map[string]taggedValue `json:"properties,omitempty"`
	CreatedAt  int64                  `json:"createdAt"`
	UpdatedAt  int64                  `json:"updatedAt"`
}

func encodeNode(n *Node) ([]byte, error) {
	props, err := encodeProperties(n.Properties)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storedNode{
		ID:         n.ID,
		Labels:     n.Labels,
		Properties: props,
		CreatedAt:  n.CreatedAt.UnixNano(),
		UpdatedAt:  n.UpdatedAt.UnixNano(),
	})
}

func decodeNode(data []byte) (*Node, error) {
	var sn storedNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, err
	}
	props, err := decodeProperties(sn.Properties)
	if err != nil {
		return nil, err
	}
	return &Node{
		ID:         sn.ID,
		Labels:     sn.Labels,
		Properties: props,
		CreatedAt:  time.Unix(0, sn.CreatedAt),
		UpdatedAt:  time.Unix(0, sn.UpdatedAt),
	}, nil
}

func encodeEdge(e *Edge) ([]byte, error) {
	props, err := encodeProperties(e.Properties)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storedEdge{
		ID:         e.ID,
		StartNode:  e.StartNode,
		EndNode:    e.EndNode,
		Type:       e.Type,
		Properties: props,
		CreatedAt:  e.CreatedAt.UnixNano(),
		UpdatedAt:  e.UpdatedAt.UnixNano(),
	})
}

func decodeEdge(data []byte) (*Edge, error) {
	var se storedEdge
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, err
	}
	props, err := decodeProperties(se.Properties)
	if err != nil {
		return nil, err
	}
	return &Edge{
		ID:         se.ID,
		StartNode:  se.StartNode,
		EndNode:    se.EndNode,
		Type:       se.Type,
		Properties: props,
		CreatedAt:  time.Unix(0, se.CreatedAt),
		UpdatedAt:  time.Unix(0, se.UpdatedAt),
	}, nil
}

// ============================================================================
// Txn-level helpers shared by the engine and BadgerTransaction
// ============================================================================

func getNodeTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		var decErr error
		node, decErr = decodeNode(val)
		return decErr
	})
	return node, err
}

func getEdgeTxn(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decErr error
		edge, decErr = decodeEdge(val)
		return decErr
	})
	return edge, err
}

// putNodeTxn writes node, replacing previous (nil for a create). Unique index
// entries owned by previous are released and those of node are claimed.
func putNodeTxn(txn *badger.Txn, schema *SchemaManager, node, previous *Node) error {
	for _, label := range node.Labels {
		for prop, value := range node.Properties {
			if !schema.HasUniqueConstraint(label, prop) {
				continue
			}
			item, err := txn.Get(uniqueIndexKey(label, prop, value))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			owner, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if NodeID(owner) != node.ID {
				return fmt.Errorf("%w: Node(%s) already exists with %s = %v", ErrConstraintViolation, label, prop, value)
			}
		}
	}

	if previous != nil {
		if err := unindexNodeTxn(txn, schema, previous); err != nil {
			return err
		}
	}

	data, err := encodeNode(node)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	for _, label := range node.Labels {
		if err := txn.Set(labelIndexKey(label, node.ID), []byte{}); err != nil {
			return err
		}
		for prop, value := range node.Properties {
			if schema.HasUniqueConstraint(label, prop) {
				if err := txn.Set(uniqueIndexKey(label, prop, value), []byte(node.ID)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func unindexNodeTxn(txn *badger.Txn, schema *SchemaManager, node *Node) error {
	for _, label := range node.Labels {
		if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
			return err
		}
		for prop, value := range node.Properties {
			if !schema.HasUniqueConstraint(label, prop) {
				continue
			}
			if err := txn.Delete(uniqueIndexKey(label, prop, value)); err != nil {
				return err
			}
		}
	}
	return nil
}

func putEdgeTxn(txn *badger.Txn, edge *Edge) error {
	data, err := encodeEdge(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	if err := txn.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(Outgoing, edge.StartNode, edge.Type, edge.ID), []byte{}); err != nil {
		return err
	}
	return txn.Set(adjacencyKey(Incoming, edge.EndNode, edge.Type, edge.ID), []byte{})
}

func createEdgeTxn(txn *badger.Txn, edge *Edge) error {
	if _, err := getEdgeTxn(txn, edge.ID); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := getNodeTxn(txn, edge.StartNode); err != nil {
		return ErrInvalidEdge
	}
	if _, err := getNodeTxn(txn, edge.EndNode); err != nil {
		return ErrInvalidEdge
	}
	return putEdgeTxn(txn, edge)
}

func updateEdgeTxn(txn *badger.Txn, edge *Edge) error {
	existing, err := getEdgeTxn(txn, edge.ID)
	if err != nil {
		return err
	}
	if existing.StartNode != edge.StartNode || existing.EndNode != edge.EndNode || existing.Type != edge.Type {
		return fmt.Errorf("%w: relationship endpoints and type cannot change", ErrInvalidData)
	}
	edge.CreatedAt = existing.CreatedAt
	data, err := encodeEdge(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	return txn.Set(edgeKey(edge.ID), data)
}

func deleteEdgeTxn(txn *badger.Txn, id EdgeID) error {
	edge, err := getEdgeTxn(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(Outgoing, edge.StartNode, edge.Type, id)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(Incoming, edge.EndNode, edge.Type, id)); err != nil {
		return err
	}
	return txn.Delete(edgeKey(id))
}

// keysWithPrefix collects the keys under prefix without fetching values.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}

func edgesOfTypeTxn(txn *badger.Txn, nodeID NodeID, edgeType string, dir Direction) ([]*Edge, error) {
	keys := keysWithPrefix(txn, adjacencyPrefix(dir, nodeID, edgeType))
	edges := make([]*Edge, 0, len(keys))
	for _, key := range keys {
		edge, err := getEdgeTxn(txn, EdgeID(lastSegment(key)))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func findNodeTxn(txn *badger.Txn, schema *SchemaManager, label, property string, value any) (*Node, error) {
	if schema.HasUniqueConstraint(label, property) {
		item, err := txn.Get(uniqueIndexKey(label, property, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		return getNodeTxn(txn, NodeID(owner))
	}

	want := valueKey(value)
	for _, key := range keysWithPrefix(txn, labelIndexPrefix(label)) {
		node, err := getNodeTxn(txn, NodeID(lastSegment(key)))
		if err != nil {
			continue
		}
		if v, ok := node.Properties[property]; ok && valueKey(v) == want {
			return node, nil
		}
	}
	return nil, ErrNotFound
}

// ============================================================================
// Engine implementation
// ============================================================================

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) loadConstraints() error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte{prefixConstraint}
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c UniqueConstraint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("failed to load constraint: %w", err)
			}
			if err := b.schema.AddUniqueConstraint(c.Name, c.Label, c.Property); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateNode creates a new node in persistent storage.
func (b *BadgerEngine) CreateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := getNodeTxn(txn, stored.ID); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return putNodeTxn(txn, b.schema, stored, nil)
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNodeTxn(txn, id)
		return err
	})
	return node, err
}

// UpdateNode replaces an existing node.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		existing, err := getNodeTxn(txn, stored.ID)
		if err != nil {
			return err
		}
		stored.CreatedAt = existing.CreatedAt
		return putNodeTxn(txn, b.schema, stored, existing)
	})
}

// DeleteNode removes a node and all its relationships.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		node, err := getNodeTxn(txn, id)
		if err != nil {
			return err
		}
		for _, dir := range []Direction{Outgoing, Incoming} {
			for _, key := range keysWithPrefix(txn, adjacencyPrefix(dir, id, "")) {
				if err := deleteEdgeTxn(txn, EdgeID(lastSegment(key))); err != nil && !errors.Is(err, ErrNotFound) {
					return err
				}
			}
		}
		if err := unindexNodeTxn(txn, b.schema, node); err != nil {
			return err
		}
		return txn.Delete(nodeKey(id))
	})
}

// CreateEdge creates a new relationship between two existing nodes.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return createEdgeTxn(txn, stored)
	})
}

// GetEdge retrieves a relationship by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edge *Edge
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		edge, err = getEdgeTxn(txn, id)
		return err
	})
	return edge, err
}

// UpdateEdge replaces the properties of an existing relationship.
func (b *BadgerEngine) UpdateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return updateEdgeTxn(txn, stored)
	})
}

// FindNode returns the node with the label whose property equals value.
func (b *BadgerEngine) FindNode(label, property string, value any) (*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = findNodeTxn(txn, b.schema, label, property, value)
		return err
	})
	return node, err
}

// GetNodesByLabel returns all nodes with the label.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var nodes []*Node
	err := b.db.View(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, labelIndexPrefix(label)) {
			node, err := getNodeTxn(txn, NodeID(lastSegment(key)))
			if err != nil {
				continue // index entry without node
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

// CountNodesByLabel counts label index entries.
func (b *BadgerEngine) CountNodesByLabel(label string) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int
	err := b.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, labelIndexPrefix(label))
		return nil
	})
	return int64(count), err
}

// GetOutgoingEdges returns relationships starting at the node.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var edges []*Edge
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		edges, err = edgesOfTypeTxn(txn, nodeID, "", Outgoing)
		return err
	})
	return edges, err
}

// GetEdgeBetween returns the relationship of edgeType from source to target,
// or nil. An empty edgeType matches any type.
func (b *BadgerEngine) GetEdgeBetween(source, target NodeID, edgeType string) *Edge {
	if b.checkOpen() != nil {
		return nil
	}

	var found *Edge
	_ = b.db.View(func(txn *badger.Txn) error {
		edges, err := edgesOfTypeTxn(txn, source, edgeType, Outgoing)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.EndNode == target {
				found = e
				return nil
			}
		}
		return nil
	})
	return found
}

// Degree counts relationships of edgeType on one side of the node using the
// adjacency index only.
func (b *BadgerEngine) Degree(nodeID NodeID, edgeType string, dir Direction) int {
	if b.checkOpen() != nil {
		return 0
	}

	count := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, adjacencyPrefix(dir, nodeID, edgeType))
		return nil
	})
	return count
}

// AllNodes returns all nodes in the database.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	var nodes []*Node
	err := b.StreamNodes(context.Background(), func(node *Node) error {
		nodes = append(nodes, node)
		return nil
	})
	return nodes, err
}

// AllEdges returns all relationships in the database.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	var edges []*Edge
	err := b.StreamEdges(context.Background(), func(edge *Edge) error {
		edges = append(edges, edge)
		return nil
	})
	return edges, err
}

// StreamNodes calls fn for every node without loading them all into memory.
// Returning ErrIterationStopped from fn ends the iteration without error.
func (b *BadgerEngine) StreamNodes(ctx context.Context, fn func(node *Node) error) error {
	return b.stream(ctx, prefixNode, func(val []byte) error {
		node, err := decodeNode(val)
		if err != nil {
			return err
		}
		return fn(node)
	})
}

// StreamEdges calls fn for every relationship.
func (b *BadgerEngine) StreamEdges(ctx context.Context, fn func(edge *Edge) error) error {
	return b.stream(ctx, prefixEdge, func(val []byte) error {
		edge, err := decodeEdge(val)
		if err != nil {
			return err
		}
		return fn(edge)
	})
}

func (b *BadgerEngine) stream(ctx context.Context, prefixByte byte, fn func(val []byte) error) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = 10
		prefix := []byte{prefixByte}
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := it.Item().Value(fn)
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSchema returns the schema manager.
func (b *BadgerEngine) GetSchema() *SchemaManager {
	return b.schema
}

// AddUniqueConstraint persists a unique constraint and builds its index from
// the nodes already stored. Existing duplicates make it fail.
func (b *BadgerEngine) AddUniqueConstraint(name, label, property string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if b.schema.HasUniqueConstraint(label, property) {
		return nil
	}

	def := UniqueConstraint{Name: name, Label: label, Property: property}
	err := b.db.Update(func(txn *badger.Txn) error {
		seen := make(map[string]NodeID)
		for _, key := range keysWithPrefix(txn, labelIndexPrefix(label)) {
			node, err := getNodeTxn(txn, NodeID(lastSegment(key)))
			if err != nil {
				continue
			}
			v, ok := node.Properties[property]
			if !ok {
				continue
			}
			vk := valueKey(v)
			if other, dup := seen[vk]; dup {
				return fmt.Errorf("%w: nodes %s and %s share %s.%s = %v", ErrConstraintViolation, other, node.ID, label, property, v)
			}
			seen[vk] = node.ID
			if err := txn.Set(uniqueIndexKey(label, property, v), []byte(node.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(&def)
		if err != nil {
			return err
		}
		return txn.Set(constraintDefKey(name), data)
	})
	if err != nil {
		return err
	}
	return b.schema.AddUniqueConstraint(name, label, property)
}

// BeginTx starts a read-write Badger transaction.
func (b *BadgerEngine) BeginTx() (Tx, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return newBadgerTransaction(b), nil
}

// Close closes the BadgerDB database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.db.Close()
}

// Sync forces a sync of all data to disk.
func (b *BadgerEngine) Sync() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Sync()
}

// RunGC rewrites value log files that are at least half garbage. Having
// nothing to rewrite, or running in memory, is not an error.
func (b *BadgerEngine) RunGC() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// NodeCount returns the total number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countAll(prefixNode)
}

// EdgeCount returns the total number of relationships.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countAll(prefixEdge)
}

func (b *BadgerEngine) countAll(prefixByte byte) (int64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	var count int
	err := b.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, []byte{prefixByte})
		return nil
	})
	return int64(count), err
}

// Verify BadgerEngine implements Engine and StreamingEngine
var (
	_ Engine          = (*BadgerEngine)(nil)
	_ StreamingEngine = (*BadgerEngine)(nil)
)
