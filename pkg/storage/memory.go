package storage

import (
	"fmt"
	"sync"
	"time"
)

// MemoryEngine is a thread-safe in-memory graph storage implementation.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Import previews that must not touch the persistent store
//   - Small graphs that fit entirely in RAM
//
// Features:
//   - Thread-safe: All operations use RWMutex for concurrent access
//   - Indexed: label, outgoing and incoming indexes plus unique-value lookups
//   - Deep copies: Returns copies to prevent external mutation
//   - Transactions: BeginTx buffers writes and applies them atomically
//
// Performance Characteristics:
//   - Node lookup by ID or unique property: O(1)
//   - Node lookup by label: O(k) where k = nodes with that label
//   - Degree by type: O(degree)
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//	defer engine.Close()
//
//	_ = engine.CreateNode(&storage.Node{ID: "n1", Labels: []string{"Resource"},
//		Properties: map[string]any{"uri": "http://example.org/a"}})
//	_ = engine.CreateNode(&storage.Node{ID: "n2", Labels: []string{"Resource"},
//		Properties: map[string]any{"uri": "http://example.org/b"}})
//	_ = engine.CreateEdge(&storage.Edge{ID: storage.EdgeIDFor("n1", "knows", "n2"),
//		StartNode: "n1", EndNode: "n2", Type: "knows"})
//
//	fmt.Println(engine.Degree("n1", "knows", storage.Outgoing)) // 1
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByLabel  map[string]map[NodeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	schema *SchemaManager

	closed bool
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByLabel:  make(map[string]map[NodeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
		schema:        NewSchemaManager(),
	}
}

// normalizeProperties applies NormalizeValue to every property.
func normalizeProperties(props map[string]any) (map[string]any, error) {
	if props == nil {
		return nil, nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		n, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func prepareNode(node *Node) (*Node, error) {
	if node == nil {
		return nil, ErrInvalidData
	}
	if node.ID == "" {
		return nil, ErrInvalidID
	}
	props, err := normalizeProperties(node.Properties)
	if err != nil {
		return nil, err
	}
	stored := copyNode(node)
	stored.Properties = props
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	return stored, nil
}

func prepareEdge(edge *Edge) (*Edge, error) {
	if edge == nil {
		return nil, ErrInvalidData
	}
	if edge.ID == "" {
		return nil, ErrInvalidID
	}
	if edge.Type == "" {
		return nil, fmt.Errorf("%w: relationship type is required", ErrInvalidData)
	}
	props, err := normalizeProperties(edge.Properties)
	if err != nil {
		return nil, err
	}
	stored := copyEdge(edge)
	stored.Properties = props
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	return stored, nil
}

// CreateNode stores a new node. Unique constraints are checked for every
// label/property pair of the node.
func (m *MemoryEngine) CreateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[stored.ID]; exists {
		return ErrAlreadyExists
	}
	if err := m.schema.checkNodeConstraints(stored, ""); err != nil {
		return err
	}

	m.createNodeUnlocked(stored)
	return nil
}

// GetNode retrieves a node by ID.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// UpdateNode replaces an existing node's labels and properties.
func (m *MemoryEngine) UpdateNode(node *Node) error {
	stored, err := prepareNode(node)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	existing, exists := m.nodes[stored.ID]
	if !exists {
		return ErrNotFound
	}
	stored.CreatedAt = existing.CreatedAt
	if err := m.schema.checkNodeConstraints(stored, stored.ID); err != nil {
		return err
	}

	m.updateNodeUnlocked(stored)
	return nil
}

// DeleteNode removes a node and every relationship attached to it.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.nodes[id]; !exists {
		return ErrNotFound
	}
	m.deleteNodeUnlocked(id)
	return nil
}

// CreateEdge stores a new relationship. Both endpoints must exist.
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if _, exists := m.edges[stored.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.nodes[stored.StartNode]; !exists {
		return ErrInvalidEdge
	}
	if _, exists := m.nodes[stored.EndNode]; !exists {
		return ErrInvalidEdge
	}

	m.createEdgeUnlocked(stored)
	return nil
}

// GetEdge retrieves a relationship by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// UpdateEdge replaces the properties of an existing relationship. Endpoints
// and type are immutable.
func (m *MemoryEngine) UpdateEdge(edge *Edge) error {
	stored, err := prepareEdge(edge)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	existing, exists := m.edges[stored.ID]
	if !exists {
		return ErrNotFound
	}
	if existing.StartNode != stored.StartNode || existing.EndNode != stored.EndNode || existing.Type != stored.Type {
		return fmt.Errorf("%w: relationship endpoints and type cannot change", ErrInvalidData)
	}
	stored.CreatedAt = existing.CreatedAt
	m.edges[stored.ID] = stored
	return nil
}

// FindNode returns the node with the given label whose property equals value.
// Constrained pairs are answered from the unique registry; other pairs scan
// the label index.
func (m *MemoryEngine) FindNode(label, property string, value any) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	node := m.findNodeUnlocked(label, property, value)
	if node == nil {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

func (m *MemoryEngine) findNodeUnlocked(label, property string, value any) *Node {
	if m.schema.HasUniqueConstraint(label, property) {
		id, ok := m.schema.LookupUnique(label, property, value)
		if !ok {
			return nil
		}
		return m.nodes[id]
	}

	want := valueKey(value)
	for id := range m.nodesByLabel[label] {
		node := m.nodes[id]
		if v, ok := node.Properties[property]; ok && valueKey(v) == want {
			return node
		}
	}
	return nil
}

// GetNodesByLabel returns all nodes carrying the label.
func (m *MemoryEngine) GetNodesByLabel(label string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	ids := m.nodesByLabel[label]
	nodes := make([]*Node, 0, len(ids))
	for id := range ids {
		if node := m.nodes[id]; node != nil {
			nodes = append(nodes, copyNode(node))
		}
	}
	return nodes, nil
}

// CountNodesByLabel returns the number of nodes carrying the label.
func (m *MemoryEngine) CountNodesByLabel(label string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodesByLabel[label])), nil
}

// GetOutgoingEdges returns relationships starting at the node.
func (m *MemoryEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return m.edgesFrom(m.outgoingEdges, nodeID)
}

func (m *MemoryEngine) edgesFrom(index map[NodeID]map[EdgeID]struct{}, nodeID NodeID) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	ids := index[nodeID]
	edges := make([]*Edge, 0, len(ids))
	for id := range ids {
		if edge := m.edges[id]; edge != nil {
			edges = append(edges, copyEdge(edge))
		}
	}
	return edges, nil
}

// GetEdgeBetween returns the relationship of edgeType from source to target,
// or nil. An empty edgeType matches any type.
func (m *MemoryEngine) GetEdgeBetween(source, target NodeID, edgeType string) *Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil
	}
	for id := range m.outgoingEdges[source] {
		edge := m.edges[id]
		if edge != nil && edge.EndNode == target && (edgeType == "" || edge.Type == edgeType) {
			return copyEdge(edge)
		}
	}
	return nil
}

// Degree counts relationships of edgeType on one side of the node.
func (m *MemoryEngine) Degree(nodeID NodeID, edgeType string, dir Direction) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0
	}
	return m.degreeUnlocked(nodeID, edgeType, dir)
}

func (m *MemoryEngine) degreeUnlocked(nodeID NodeID, edgeType string, dir Direction) int {
	index := m.outgoingEdges
	if dir == Incoming {
		index = m.incomingEdges
	}
	if edgeType == "" {
		return len(index[nodeID])
	}
	count := 0
	for id := range index[nodeID] {
		if edge := m.edges[id]; edge != nil && edge.Type == edgeType {
			count++
		}
	}
	return count
}

// AllNodes returns every node.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	nodes := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, copyNode(node))
	}
	return nodes, nil
}

// AllEdges returns every relationship.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	edges := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		edges = append(edges, copyEdge(edge))
	}
	return edges, nil
}

// GetSchema returns the schema manager.
func (m *MemoryEngine) GetSchema() *SchemaManager {
	return m.schema
}

// AddUniqueConstraint creates a unique constraint and indexes the values
// already present. It fails if existing nodes already violate it.
func (m *MemoryEngine) AddUniqueConstraint(name, label, property string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}
	if m.schema.HasUniqueConstraint(label, property) {
		return nil
	}

	seen := make(map[string]NodeID)
	for id := range m.nodesByLabel[label] {
		v, ok := m.nodes[id].Properties[property]
		if !ok {
			continue
		}
		key := valueKey(v)
		if other, dup := seen[key]; dup {
			return fmt.Errorf("%w: nodes %s and %s share %s.%s = %v", ErrConstraintViolation, other, id, label, property, v)
		}
		seen[key] = id
	}

	if err := m.schema.AddUniqueConstraint(name, label, property); err != nil {
		return err
	}
	for id := range m.nodesByLabel[label] {
		if v, ok := m.nodes[id].Properties[property]; ok {
			m.schema.RegisterUniqueValue(label, property, v, id)
		}
	}
	return nil
}

// BeginTx starts a buffered transaction.
func (m *MemoryEngine) BeginTx() (Tx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	return NewTransaction(m), nil
}

// Close marks the engine closed and releases its maps.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nodes = nil
	m.edges = nil
	m.nodesByLabel = nil
	m.outgoingEdges = nil
	m.incomingEdges = nil
	return nil
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of relationships.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// ============================================================================
// Unlocked helpers (caller holds m.mu)
// ============================================================================

func (m *MemoryEngine) createNodeUnlocked(node *Node) {
	m.nodes[node.ID] = node
	for _, label := range node.Labels {
		if m.nodesByLabel[label] == nil {
			m.nodesByLabel[label] = make(map[NodeID]struct{})
		}
		m.nodesByLabel[label][node.ID] = struct{}{}
	}
	m.schema.registerNode(node)
}

func (m *MemoryEngine) updateNodeUnlocked(node *Node) {
	if existing, ok := m.nodes[node.ID]; ok {
		for _, label := range existing.Labels {
			delete(m.nodesByLabel[label], node.ID)
		}
		m.schema.unregisterNode(existing)
	}
	m.createNodeUnlocked(node)
}

func (m *MemoryEngine) deleteNodeUnlocked(id NodeID) {
	node, ok := m.nodes[id]
	if !ok {
		return
	}
	for _, label := range node.Labels {
		delete(m.nodesByLabel[label], id)
	}
	m.schema.unregisterNode(node)

	for edgeID := range m.outgoingEdges[id] {
		m.deleteEdgeUnlocked(edgeID)
	}
	for edgeID := range m.incomingEdges[id] {
		m.deleteEdgeUnlocked(edgeID)
	}
	delete(m.outgoingEdges, id)
	delete(m.incomingEdges, id)
	delete(m.nodes, id)
}

func (m *MemoryEngine) createEdgeUnlocked(edge *Edge) {
	m.edges[edge.ID] = edge
	if m.outgoingEdges[edge.StartNode] == nil {
		m.outgoingEdges[edge.StartNode] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[edge.StartNode][edge.ID] = struct{}{}
	if m.incomingEdges[edge.EndNode] == nil {
		m.incomingEdges[edge.EndNode] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[edge.EndNode][edge.ID] = struct{}{}
}

func (m *MemoryEngine) deleteEdgeUnlocked(id EdgeID) {
	edge, ok := m.edges[id]
	if !ok {
		return
	}
	delete(m.outgoingEdges[edge.StartNode], id)
	delete(m.incomingEdges[edge.EndNode], id)
	delete(m.edges, id)
}

// Verify MemoryEngine implements Engine interface
var _ Engine = (*MemoryEngine)(nil)
