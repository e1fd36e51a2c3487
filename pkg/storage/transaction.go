// Package storage - Transaction support for atomic batch writes.
//
// A Transaction buffers node and relationship writes against a MemoryEngine.
// Reads through the transaction see its own pending writes (read-your-writes),
// while other readers keep seeing the committed graph until Commit applies
// the whole buffer under the engine lock.
//
// # Commit protocol
//
//  1. Validate every pending write against the committed graph
//     (identity clashes, unique constraints, relationship endpoints)
//  2. Apply node writes, then relationship writes
//
// Validation runs before anything is applied, so a failing commit leaves the
// engine untouched.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Transaction errors
var (
	ErrTransactionClosed = errors.New("transaction already closed")
)

// TransactionStatus represents the current state of a transaction.
type TransactionStatus string

const (
	TxStatusActive     TransactionStatus = "active"
	TxStatusCommitted  TransactionStatus = "committed"
	TxStatusRolledBack TransactionStatus = "rolled_back"
)

// OperationType represents the type of operation in a transaction.
type OperationType string

const (
	OpCreateNode OperationType = "create_node"
	OpUpdateNode OperationType = "update_node"
	OpCreateEdge OperationType = "create_edge"
	OpUpdateEdge OperationType = "update_edge"
)

// Operation is one buffered write.
type Operation struct {
	Type      OperationType
	Timestamp time.Time
	NodeID    NodeID
	EdgeID    EdgeID
}

// maxMetadataSize bounds the rendered size of transaction metadata.
const maxMetadataSize = 2048

// Transaction is a buffered write transaction on a MemoryEngine.
type Transaction struct {
	mu sync.Mutex

	ID        string
	StartTime time.Time
	Status    TransactionStatus

	operations []Operation
	engine     *MemoryEngine

	// final state of every node/edge written in this transaction
	pendingNodes map[NodeID]*Node
	pendingEdges map[EdgeID]*Edge
	createdNodes map[NodeID]struct{}
	createdEdges map[EdgeID]struct{}

	// constrained values claimed by pending nodes, keyed by uniqueKey
	pendingUnique map[string]NodeID

	Metadata map[string]any
}

// NewTransaction creates a transaction bound to engine.
//
// Example:
//
//	tx := storage.NewTransaction(engine)
//	_ = tx.CreateNode(&storage.Node{ID: "a", Labels: []string{"Resource"},
//		Properties: map[string]any{"uri": "http://example.org/a"}})
//	if err := tx.Commit(); err != nil {
//		log.Fatal(err)
//	}
func NewTransaction(engine *MemoryEngine) *Transaction {
	return &Transaction{
		ID:            "tx-" + uuid.NewString(),
		StartTime:     time.Now(),
		Status:        TxStatusActive,
		engine:        engine,
		pendingNodes:  make(map[NodeID]*Node),
		pendingEdges:  make(map[EdgeID]*Edge),
		createdNodes:  make(map[NodeID]struct{}),
		createdEdges:  make(map[EdgeID]struct{}),
		pendingUnique: make(map[string]NodeID),
	}
}

func uniqueKey(label, property string, value any) string {
	return label + "\x00" + property + "\x00" + valueKey(value)
}

// IsActive reports whether the transaction accepts more work.
func (tx *Transaction) IsActive() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.Status == TxStatusActive
}

func (tx *Transaction) record(op OperationType, nodeID NodeID, edgeID EdgeID) {
	tx.operations = append(tx.operations, Operation{
		Type:      op,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		EdgeID:    edgeID,
	})
}

// nodeUnlocked returns the node as seen by this transaction.
func (tx *Transaction) nodeUnlocked(id NodeID) (*Node, error) {
	if node, ok := tx.pendingNodes[id]; ok {
		return node, nil
	}
	tx.engine.mu.RLock()
	defer tx.engine.mu.RUnlock()
	if tx.engine.closed {
		return nil, ErrStorageClosed
	}
	node, ok := tx.engine.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return node, nil
}

// claimUnique checks the constrained values of node against the committed
// graph and the other pending nodes, then claims them for node.
func (tx *Transaction) claimUnique(node *Node, previous *Node) error {
	schema := tx.engine.schema
	for _, label := range node.Labels {
		for prop, value := range node.Properties {
			if !schema.HasUniqueConstraint(label, prop) {
				continue
			}
			key := uniqueKey(label, prop, value)
			if owner, ok := tx.pendingUnique[key]; ok && owner != node.ID {
				return fmt.Errorf("%w: Node(%s) already exists with %s = %v", ErrConstraintViolation, label, prop, value)
			}
			if owner, ok := schema.LookupUnique(label, prop, value); ok && owner != node.ID {
				// the committed owner may have released the value in this tx
				if pending, moved := tx.pendingNodes[owner]; !moved || pendingHolds(pending, label, prop, value) {
					return fmt.Errorf("%w: Node(%s) already exists with %s = %v", ErrConstraintViolation, label, prop, value)
				}
			}
		}
	}

	if previous != nil {
		for _, label := range previous.Labels {
			for prop, value := range previous.Properties {
				key := uniqueKey(label, prop, value)
				if tx.pendingUnique[key] == node.ID {
					delete(tx.pendingUnique, key)
				}
			}
		}
	}
	for _, label := range node.Labels {
		for prop, value := range node.Properties {
			if schema.HasUniqueConstraint(label, prop) {
				tx.pendingUnique[uniqueKey(label, prop, value)] = node.ID
			}
		}
	}
	return nil
}

func pendingHolds(node *Node, label, prop string, value any) bool {
	if !node.HasLabel(label) {
		return false
	}
	v, ok := node.Properties[prop]
	return ok && valueKey(v) == valueKey(value)
}

// CreateNode buffers a node creation.
func (tx *Transaction) CreateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	if _, err := tx.nodeUnlocked(stored.ID); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := tx.claimUnique(stored, nil); err != nil {
		return err
	}

	tx.pendingNodes[stored.ID] = stored
	tx.createdNodes[stored.ID] = struct{}{}
	tx.record(OpCreateNode, stored.ID, "")
	return nil
}

// UpdateNode buffers a node replacement.
func (tx *Transaction) UpdateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	previous, err := tx.nodeUnlocked(stored.ID)
	if err != nil {
		return err
	}
	stored.CreatedAt = previous.CreatedAt
	if err := tx.claimUnique(stored, previous); err != nil {
		return err
	}

	tx.pendingNodes[stored.ID] = stored
	tx.record(OpUpdateNode, stored.ID, "")
	return nil
}

// GetNode returns the node as seen by this transaction.
func (tx *Transaction) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	node, err := tx.nodeUnlocked(id)
	if err != nil {
		return nil, err
	}
	return copyNode(node), nil
}

// FindNode looks a node up by label and property value, pending writes first.
func (tx *Transaction) FindNode(label, property string, value any) (*Node, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}

	if tx.engine.schema.HasUniqueConstraint(label, property) {
		if id, ok := tx.pendingUnique[uniqueKey(label, property, value)]; ok {
			return copyNode(tx.pendingNodes[id]), nil
		}
	} else {
		for _, node := range tx.pendingNodes {
			if pendingHolds(node, label, property, value) {
				return copyNode(node), nil
			}
		}
	}

	tx.engine.mu.RLock()
	committed := tx.engine.findNodeUnlocked(label, property, value)
	tx.engine.mu.RUnlock()
	if committed == nil {
		return nil, ErrNotFound
	}
	if pending, ok := tx.pendingNodes[committed.ID]; ok {
		if !pendingHolds(pending, label, property, value) {
			return nil, ErrNotFound
		}
		return copyNode(pending), nil
	}
	return copyNode(committed), nil
}

func (tx *Transaction) edgeUnlocked(id EdgeID) (*Edge, error) {
	if edge, ok := tx.pendingEdges[id]; ok {
		return edge, nil
	}
	tx.engine.mu.RLock()
	defer tx.engine.mu.RUnlock()
	if tx.engine.closed {
		return nil, ErrStorageClosed
	}
	edge, ok := tx.engine.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return edge, nil
}

// CreateEdge buffers a relationship creation. Endpoints may be pending nodes.
func (tx *Transaction) CreateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	if _, err := tx.edgeUnlocked(stored.ID); err == nil {
		return ErrAlreadyExists
	}
	if _, err := tx.nodeUnlocked(stored.StartNode); err != nil {
		return ErrInvalidEdge
	}
	if _, err := tx.nodeUnlocked(stored.EndNode); err != nil {
		return ErrInvalidEdge
	}

	tx.pendingEdges[stored.ID] = stored
	tx.createdEdges[stored.ID] = struct{}{}
	tx.record(OpCreateEdge, "", stored.ID)
	return nil
}

// GetEdge returns the relationship as seen by this transaction.
func (tx *Transaction) GetEdge(id EdgeID) (*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	edge, err := tx.edgeUnlocked(id)
	if err != nil {
		return nil, err
	}
	return copyEdge(edge), nil
}

// UpdateEdge buffers a relationship property replacement.
func (tx *Transaction) UpdateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	previous, err := tx.edgeUnlocked(stored.ID)
	if err != nil {
		return err
	}
	if previous.StartNode != stored.StartNode || previous.EndNode != stored.EndNode || previous.Type != stored.Type {
		return fmt.Errorf("%w: relationship endpoints and type cannot change", ErrInvalidData)
	}
	stored.CreatedAt = previous.CreatedAt

	tx.pendingEdges[stored.ID] = stored
	tx.record(OpUpdateEdge, "", stored.ID)
	return nil
}

// EdgesOfType returns the relationships of edgeType on one side of a node,
// committed and pending. An empty edgeType matches every type.
func (tx *Transaction) EdgesOfType(nodeID NodeID, edgeType string, dir Direction) ([]*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	return tx.edgesOfTypeUnlocked(nodeID, edgeType, dir), nil
}

func (tx *Transaction) edgesOfTypeUnlocked(nodeID NodeID, edgeType string, dir Direction) []*Edge {
	matches := func(e *Edge) bool {
		if edgeType != "" && e.Type != edgeType {
			return false
		}
		if dir == Incoming {
			return e.EndNode == nodeID
		}
		return e.StartNode == nodeID
	}

	var result []*Edge
	tx.engine.mu.RLock()
	index := tx.engine.outgoingEdges
	if dir == Incoming {
		index = tx.engine.incomingEdges
	}
	for id := range index[nodeID] {
		if _, overlaid := tx.pendingEdges[id]; overlaid {
			continue
		}
		if e := tx.engine.edges[id]; e != nil && matches(e) {
			result = append(result, copyEdge(e))
		}
	}
	tx.engine.mu.RUnlock()

	for _, e := range tx.pendingEdges {
		if matches(e) {
			result = append(result, copyEdge(e))
		}
	}
	return result
}

// Degree counts relationships of edgeType on one side of the node, including
// pending ones.
func (tx *Transaction) Degree(nodeID NodeID, edgeType string, dir Direction) int {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return 0
	}
	return len(tx.edgesOfTypeUnlocked(nodeID, edgeType, dir))
}

// Commit validates the buffered writes and applies them atomically.
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}

	m := tx.engine
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if err := tx.validateUnlocked(); err != nil {
		tx.Status = TxStatusRolledBack
		return err
	}

	if len(tx.Metadata) > 0 {
		log.WithField("tx", tx.ID).WithFields(log.Fields(tx.Metadata)).Debug("committing transaction")
	}

	for id, node := range tx.pendingNodes {
		if _, created := tx.createdNodes[id]; created {
			m.createNodeUnlocked(node)
		} else {
			m.updateNodeUnlocked(node)
		}
	}
	for id, edge := range tx.pendingEdges {
		if _, created := tx.createdEdges[id]; created {
			m.createEdgeUnlocked(edge)
		} else {
			m.edges[id] = edge
		}
	}

	tx.Status = TxStatusCommitted
	return nil
}

// validateUnlocked re-checks the buffer against the committed graph, which
// may have changed since the writes were buffered. Caller holds engine.mu.
func (tx *Transaction) validateUnlocked() error {
	m := tx.engine
	for id, node := range tx.pendingNodes {
		_, exists := m.nodes[id]
		if _, created := tx.createdNodes[id]; created == exists {
			if exists {
				return fmt.Errorf("node %s: %w", id, ErrAlreadyExists)
			}
			return fmt.Errorf("node %s: %w", id, ErrNotFound)
		}
		for _, label := range node.Labels {
			for prop, value := range node.Properties {
				owner, ok := m.schema.LookupUnique(label, prop, value)
				if !ok || owner == id {
					continue
				}
				if pending, moved := tx.pendingNodes[owner]; moved && !pendingHolds(pending, label, prop, value) {
					continue
				}
				return fmt.Errorf("%w: Node(%s) already exists with %s = %v", ErrConstraintViolation, label, prop, value)
			}
		}
	}
	for id, edge := range tx.pendingEdges {
		_, exists := m.edges[id]
		if _, created := tx.createdEdges[id]; created == exists {
			if exists {
				return fmt.Errorf("relationship %s: %w", id, ErrAlreadyExists)
			}
			return fmt.Errorf("relationship %s: %w", id, ErrNotFound)
		}
		for _, end := range []NodeID{edge.StartNode, edge.EndNode} {
			if _, ok := m.nodes[end]; ok {
				continue
			}
			if _, ok := tx.pendingNodes[end]; ok {
				continue
			}
			return fmt.Errorf("relationship %s: %w", id, ErrInvalidEdge)
		}
	}
	return nil
}

// Rollback discards every buffered write.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	tx.discardUnlocked()
	tx.Status = TxStatusRolledBack
	return nil
}

func (tx *Transaction) discardUnlocked() {
	tx.operations = nil
	tx.pendingNodes = make(map[NodeID]*Node)
	tx.pendingEdges = make(map[EdgeID]*Edge)
	tx.createdNodes = make(map[NodeID]struct{})
	tx.createdEdges = make(map[EdgeID]struct{})
	tx.pendingUnique = make(map[string]NodeID)
}

// OperationCount returns the number of buffered writes.
func (tx *Transaction) OperationCount() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.operations)
}

// SetMetadata attaches metadata that is logged when the transaction commits.
// The rendered keys and values may not exceed 2048 characters in total.
func (tx *Transaction) SetMetadata(metadata map[string]any) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}

	merged, err := mergeMetadata(tx.Metadata, metadata)
	if err != nil {
		return err
	}
	tx.Metadata = merged
	return nil
}

func mergeMetadata(dst, src map[string]any) (map[string]any, error) {
	totalSize := 0
	for k, v := range src {
		totalSize += len(k)
		if v != nil {
			totalSize += len(fmt.Sprint(v))
		}
	}
	if totalSize > maxMetadataSize {
		return nil, fmt.Errorf("transaction metadata too large: %d chars (max %d)", totalSize, maxMetadataSize)
	}

	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst, nil
}

// GetMetadata returns a copy of the transaction metadata.
func (tx *Transaction) GetMetadata() map[string]any {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	out := make(map[string]any, len(tx.Metadata))
	for k, v := range tx.Metadata {
		out[k] = v
	}
	return out
}

var _ Tx = (*Transaction)(nil)
