package iri

import (
	"errors"
	"fmt"
	"sort"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// MappingLabel and MappingNodeID identify the node holding MAP mode
// mappings. Each property is one IRI to element name binding.
const (
	MappingLabel                 = "_MapDef"
	MappingNodeID storage.NodeID = "_MapDef"
)

// Mapping is one persisted binding.
type Mapping struct {
	IRI  string
	Name string
}

// LoadMappings reads the persisted mappings. A store without the node has
// none.
func LoadMappings(s namespace.Store) (map[string]string, error) {
	node, err := s.GetNode(MappingNodeID)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading mappings: %w", err)
	}
	out := make(map[string]string, len(node.Properties))
	for iri, v := range node.Properties {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("loading mappings: %s maps to non-string %T", iri, v)
		}
		out[iri] = name
	}
	return out, nil
}

// SaveMappings replaces the persisted mappings.
func SaveMappings(s namespace.Store, mappings map[string]string) error {
	if err := config.ValidateMappings(mappings); err != nil {
		return err
	}
	props := make(map[string]any, len(mappings))
	for iri, name := range mappings {
		props[iri] = name
	}
	node := &storage.Node{
		ID:         MappingNodeID,
		Labels:     []string{MappingLabel},
		Properties: props,
	}
	_, err := s.GetNode(MappingNodeID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = s.CreateNode(node)
	case err == nil:
		err = s.UpdateNode(node)
	}
	if err != nil {
		return fmt.Errorf("saving mappings: %w", err)
	}
	return nil
}

// AddMapping binds iri to name, replacing any earlier binding of iri.
func AddMapping(s namespace.Store, iri, name string) error {
	mappings, err := LoadMappings(s)
	if err != nil {
		return err
	}
	mappings[iri] = name
	return SaveMappings(s, mappings)
}

// DropMapping removes the binding of iri and reports whether it existed.
func DropMapping(s namespace.Store, iri string) (bool, error) {
	mappings, err := LoadMappings(s)
	if err != nil {
		return false, err
	}
	if _, ok := mappings[iri]; !ok {
		return false, nil
	}
	delete(mappings, iri)
	return true, SaveMappings(s, mappings)
}

// DropAllMappings removes every binding and returns how many were removed.
func DropAllMappings(s namespace.Store) (int, error) {
	mappings, err := LoadMappings(s)
	if err != nil {
		return 0, err
	}
	if len(mappings) == 0 {
		return 0, nil
	}
	return len(mappings), SaveMappings(s, map[string]string{})
}

// ListMappings returns the bindings sorted by IRI.
func ListMappings(s namespace.Store) ([]Mapping, error) {
	mappings, err := LoadMappings(s)
	if err != nil {
		return nil, err
	}
	out := make([]Mapping, 0, len(mappings))
	for iri, name := range mappings {
		out = append(out, Mapping{IRI: iri, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IRI < out[j].IRI })
	return out, nil
}

// MergeMappings overlays file-supplied mappings on the persisted ones; file
// entries win.
func MergeMappings(stored, file map[string]string) map[string]string {
	out := make(map[string]string, len(stored)+len(file))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range file {
		out[k] = v
	}
	return out
}
