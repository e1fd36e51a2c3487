package namespace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// DefinitionLabel and DefinitionNodeID identify the node holding the
// persisted prefix table. Each property of the node is one prefix binding.
const (
	DefinitionLabel                 = "_NsPrefDef"
	DefinitionNodeID storage.NodeID = "_NsPrefDef"
)

// Store is the subset of storage.Engine and storage.Tx the table needs.
type Store interface {
	GetNode(id storage.NodeID) (*storage.Node, error)
	CreateNode(node *storage.Node) error
	UpdateNode(node *storage.Node) error
}

// Load replaces the table contents with the persisted bindings. A store
// without a definition node yields an empty table. Loaded bindings are not
// pending.
func (t *PrefixTable) Load(s Store) error {
	node, err := s.GetNode(DefinitionNodeID)
	if errors.Is(err, storage.ErrNotFound) {
		t.RemoveAll()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading namespace prefixes: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.byPrefix = make(map[string]string, len(node.Properties))
	t.byNS = make(map[string]string, len(node.Properties))
	t.pending = make(map[string]struct{})
	t.next = 0
	for prefix, v := range node.Properties {
		ns, ok := v.(string)
		if !ok {
			return fmt.Errorf("loading namespace prefixes: prefix %q has non-string namespace %T", prefix, v)
		}
		if err := t.addLocked(prefix, ns); err != nil {
			return fmt.Errorf("loading namespace prefixes: %w", err)
		}
		if n, ok := allocatedIndex(prefix); ok && n >= t.next {
			t.next = n + 1
		}
	}
	t.pending = make(map[string]struct{})
	return nil
}

// allocatedIndex parses N out of an allocated "nsN" prefix.
func allocatedIndex(prefix string) (int, bool) {
	if !strings.HasPrefix(prefix, "ns") {
		return 0, false
	}
	n, err := strconv.Atoi(prefix[2:])
	return n, err == nil && n >= 0
}

// Save writes the whole table as the definition node. Pending bindings stay
// pending until MarkSynced, which the caller invokes once the write is
// durable.
func (t *PrefixTable) Save(s Store) error {
	props := make(map[string]any)
	for p, ns := range t.All() {
		props[p] = ns
	}

	node := &storage.Node{
		ID:         DefinitionNodeID,
		Labels:     []string{DefinitionLabel},
		Properties: props,
	}
	_, err := s.GetNode(DefinitionNodeID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = s.CreateNode(node)
	case err == nil:
		err = s.UpdateNode(node)
	}
	if err != nil {
		return fmt.Errorf("saving namespace prefixes: %w", err)
	}
	return nil
}
