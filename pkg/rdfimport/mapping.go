package rdfimport

import (
	"fmt"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// AddMapping binds an IRI to an element name for MAP mode. Mapping rdf:type
// or leaving either side empty is BadParams.
func AddMapping(engine storage.Engine, iriValue, name string) ([]iri.Mapping, error) {
	if err := config.ValidateMappings(map[string]string{iriValue: name}); err != nil {
		return nil, newError(KindBadParams, "add mapping", err)
	}
	if err := iri.AddMapping(engine, iriValue, name); err != nil {
		return nil, err
	}
	return iri.ListMappings(engine)
}

// DropMapping removes the binding of an IRI. An unknown IRI is BadParams.
func DropMapping(engine storage.Engine, iriValue string) error {
	found, err := iri.DropMapping(engine, iriValue)
	if err != nil {
		return err
	}
	if !found {
		return newError(KindBadParams, "drop mapping", fmt.Errorf("no mapping for %s", iriValue))
	}
	return nil
}

// DropAllMappings removes every binding and returns how many there were.
func DropAllMappings(engine storage.Engine) (int, error) {
	return iri.DropAllMappings(engine)
}

// ListMappings returns the persisted bindings sorted by IRI.
func ListMappings(engine storage.Engine) ([]iri.Mapping, error) {
	return iri.ListMappings(engine)
}
