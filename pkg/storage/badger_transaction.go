// Package storage - BadgerDB transaction wrapper.
//
// BadgerTransaction maps the Tx contract onto a native read-write Badger
// transaction. Badger already provides read-your-writes and serializable
// conflict detection, so the wrapper only adds identity checks, unique index
// maintenance and translation of Badger errors.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrTransactionTooLarge is returned when a single transaction exceeds what
// the engine can hold before commit.
var ErrTransactionTooLarge = errors.New("transaction too large")

// BadgerTransaction wraps Badger's native transaction.
type BadgerTransaction struct {
	mu sync.Mutex

	ID        string
	StartTime time.Time
	Status    TransactionStatus

	badgerTx *badger.Txn
	engine   *BadgerEngine

	operations []Operation
	Metadata   map[string]any
}

func newBadgerTransaction(b *BadgerEngine) *BadgerTransaction {
	return &BadgerTransaction{
		ID:        "tx-" + uuid.NewString(),
		StartTime: time.Now(),
		Status:    TxStatusActive,
		badgerTx:  b.db.NewTransaction(true),
		engine:    b,
	}
}

// IsActive returns true if the transaction is still active.
func (tx *BadgerTransaction) IsActive() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.Status == TxStatusActive
}

func (tx *BadgerTransaction) record(op OperationType, nodeID NodeID, edgeID EdgeID) {
	tx.operations = append(tx.operations, Operation{
		Type:      op,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		EdgeID:    edgeID,
	})
}

func translateBadgerErr(err error) error {
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("%w: %v", ErrTransactionTooLarge, err)
	}
	return err
}

// CreateNode adds a node to the transaction.
func (tx *BadgerTransaction) CreateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	if _, err := getNodeTxn(tx.badgerTx, stored.ID); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := putNodeTxn(tx.badgerTx, tx.engine.schema, stored, nil); err != nil {
		return translateBadgerErr(err)
	}
	tx.record(OpCreateNode, stored.ID, "")
	return nil
}

// UpdateNode replaces a node within the transaction.
func (tx *BadgerTransaction) UpdateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	existing, err := getNodeTxn(tx.badgerTx, stored.ID)
	if err != nil {
		return err
	}
	stored.CreatedAt = existing.CreatedAt
	if err := putNodeTxn(tx.badgerTx, tx.engine.schema, stored, existing); err != nil {
		return translateBadgerErr(err)
	}
	tx.record(OpUpdateNode, stored.ID, "")
	return nil
}

// GetNode reads a node, including writes made in this transaction.
func (tx *BadgerTransaction) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	return getNodeTxn(tx.badgerTx, id)
}

// FindNode looks a node up by label and property value.
func (tx *BadgerTransaction) FindNode(label, property string, value any) (*Node, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	return findNodeTxn(tx.badgerTx, tx.engine.schema, label, property, value)
}

// CreateEdge adds a relationship to the transaction.
func (tx *BadgerTransaction) CreateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	if err := createEdgeTxn(tx.badgerTx, stored); err != nil {
		return translateBadgerErr(err)
	}
	tx.record(OpCreateEdge, "", stored.ID)
	return nil
}

// GetEdge reads a relationship.
func (tx *BadgerTransaction) GetEdge(id EdgeID) (*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	return getEdgeTxn(tx.badgerTx, id)
}

// UpdateEdge replaces relationship properties.
func (tx *BadgerTransaction) UpdateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	if err := updateEdgeTxn(tx.badgerTx, stored); err != nil {
		return translateBadgerErr(err)
	}
	tx.record(OpUpdateEdge, "", stored.ID)
	return nil
}

// EdgesOfType returns relationships of edgeType on one side of a node.
func (tx *BadgerTransaction) EdgesOfType(nodeID NodeID, edgeType string, dir Direction) ([]*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return nil, ErrTransactionClosed
	}
	return edgesOfTypeTxn(tx.badgerTx, nodeID, edgeType, dir)
}

// Degree counts relationships of edgeType on one side of a node.
func (tx *BadgerTransaction) Degree(nodeID NodeID, edgeType string, dir Direction) int {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return 0
	}
	return countPrefix(tx.badgerTx, adjacencyPrefix(dir, nodeID, edgeType))
}

// SetMetadata attaches metadata that is logged at commit.
func (tx *BadgerTransaction) SetMetadata(metadata map[string]any) error {
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

// OperationCount returns the number of writes in the transaction.
func (tx *BadgerTransaction) OperationCount() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.operations)
}

// Commit applies the transaction. A conflicting concurrent writer surfaces as
// badger.ErrConflict and nothing is applied.
func (tx *BadgerTransaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	if err := tx.engine.checkOpen(); err != nil {
		tx.badgerTx.Discard()
		tx.Status = TxStatusRolledBack
		return err
	}

	if len(tx.Metadata) > 0 {
		log.WithField("tx", tx.ID).WithFields(log.Fields(tx.Metadata)).Debug("committing transaction")
	}

	if err := tx.badgerTx.Commit(); err != nil {
		tx.Status = TxStatusRolledBack
		return fmt.Errorf("commit %s: %w", tx.ID, translateBadgerErr(err))
	}
	tx.Status = TxStatusCommitted
	return nil
}

// Rollback discards every write of the transaction.
func (tx *BadgerTransaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.Status != TxStatusActive {
		return ErrTransactionClosed
	}
	tx.badgerTx.Discard()
	tx.operations = nil
	tx.Status = TxStatusRolledBack
	return nil
}

var _ Tx = (*BadgerTransaction)(nil)
