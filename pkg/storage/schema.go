// Package storage schema management for uniqueness constraints.
//
// The importer identifies every Resource node by its uri property, so the one
// schema feature it depends on is a unique constraint on (label, property).
// The SchemaManager keeps constraint definitions and, for engines without a
// persistent index, the registry of constrained values.
package storage

import (
	"fmt"
	"sort"
	"sync"
)

// UniqueConstraint represents a unique constraint on a label and property.
type UniqueConstraint struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Property string `json:"property"`

	values map[string]NodeID // value key -> owning node
	mu     sync.RWMutex
}

// SchemaManager manages the unique constraints of an engine.
//
// Thread Safety:
//
//	All methods are thread-safe for concurrent access.
type SchemaManager struct {
	mu                sync.RWMutex
	uniqueConstraints map[string]*UniqueConstraint // key: "Label:property"
}

// NewSchemaManager creates a schema manager with no constraints.
func NewSchemaManager() *SchemaManager {
	return &SchemaManager{
		uniqueConstraints: make(map[string]*UniqueConstraint),
	}
}

func constraintKey(label, property string) string {
	return label + ":" + property
}

// AddUniqueConstraint registers a unique constraint. Adding a constraint that
// already exists for the same label and property is a no-op, like
// CREATE CONSTRAINT ... IF NOT EXISTS.
func (sm *SchemaManager) AddUniqueConstraint(name, label, property string) error {
	if label == "" || property == "" {
		return fmt.Errorf("%w: constraint needs a label and a property", ErrInvalidData)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := constraintKey(label, property)
	if _, exists := sm.uniqueConstraints[key]; exists {
		return nil
	}

	sm.uniqueConstraints[key] = &UniqueConstraint{
		Name:     name,
		Label:    label,
		Property: property,
		values:   make(map[string]NodeID),
	}
	return nil
}

// HasUniqueConstraint reports whether (label, property) is constrained.
func (sm *SchemaManager) HasUniqueConstraint(label, property string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.uniqueConstraints[constraintKey(label, property)]
	return ok
}

func (sm *SchemaManager) constraint(label, property string) *UniqueConstraint {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.uniqueConstraints[constraintKey(label, property)]
}

// CheckUniqueConstraint returns an error if value is already owned by a node
// other than excludeNode.
func (sm *SchemaManager) CheckUniqueConstraint(label, property string, value any, excludeNode NodeID) error {
	c := sm.constraint(label, property)
	if c == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if existing, found := c.values[valueKey(value)]; found && existing != excludeNode {
		return fmt.Errorf("Node(%s) already exists with %s = %v", label, property, value)
	}
	return nil
}

// RegisterUniqueValue records that nodeID owns value.
func (sm *SchemaManager) RegisterUniqueValue(label, property string, value any, nodeID NodeID) {
	c := sm.constraint(label, property)
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values[valueKey(value)] = nodeID
	c.mu.Unlock()
}

// UnregisterUniqueValue releases value.
func (sm *SchemaManager) UnregisterUniqueValue(label, property string, value any) {
	c := sm.constraint(label, property)
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.values, valueKey(value))
	c.mu.Unlock()
}

// LookupUnique returns the node owning value under a unique constraint.
func (sm *SchemaManager) LookupUnique(label, property string, value any) (NodeID, bool) {
	c := sm.constraint(label, property)
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.values[valueKey(value)]
	return id, ok
}

// GetConstraints returns the constraint definitions sorted by name.
func (sm *SchemaManager) GetConstraints() []UniqueConstraint {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	constraints := make([]UniqueConstraint, 0, len(sm.uniqueConstraints))
	for _, c := range sm.uniqueConstraints {
		constraints = append(constraints, UniqueConstraint{
			Name:     c.Name,
			Label:    c.Label,
			Property: c.Property,
		})
	}
	sort.Slice(constraints, func(i, j int) bool { return constraints[i].Name < constraints[j].Name })
	return constraints
}

// checkNodeConstraints validates every constrained property of node against
// the registry.
func (sm *SchemaManager) checkNodeConstraints(node *Node, exclude NodeID) error {
	for _, label := range node.Labels {
		for prop, value := range node.Properties {
			if err := sm.CheckUniqueConstraint(label, prop, value, exclude); err != nil {
				return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
			}
		}
	}
	return nil
}

func (sm *SchemaManager) registerNode(node *Node) {
	for _, label := range node.Labels {
		for prop, value := range node.Properties {
			sm.RegisterUniqueValue(label, prop, value, node.ID)
		}
	}
}

func (sm *SchemaManager) unregisterNode(node *Node) {
	for _, label := range node.Labels {
		for prop, value := range node.Properties {
			if owner, ok := sm.LookupUnique(label, prop, value); ok && owner == node.ID {
				sm.UnregisterUniqueValue(label, prop, value)
			}
		}
	}
}
