package rdfimport

import (
	"errors"
	"fmt"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// Reserved graph names.
const (
	// ResourceLabel marks every node created from an RDF resource.
	ResourceLabel = "Resource"
	// URIProperty holds the resource IRI, or bnode://id for blank nodes.
	URIProperty = "uri"
	// UniqueURIConstraint is the constraint InitConstraint creates.
	UniqueURIConstraint = "n10s_unique_uri"
)

// InitConstraint creates the Resource.uri uniqueness constraint. It is
// idempotent.
func InitConstraint(engine storage.Engine) error {
	if err := engine.AddUniqueConstraint(UniqueURIConstraint, ResourceLabel, URIProperty); err != nil {
		return fmt.Errorf("creating %s: %w", UniqueURIConstraint, err)
	}
	return nil
}

// CheckPrerequisites verifies the store can take an import: the uri
// constraint exists and a graph config has been initialised.
func CheckPrerequisites(engine storage.Engine) error {
	if !engine.GetSchema().HasUniqueConstraint(ResourceLabel, URIProperty) {
		return newError(KindPrerequisiteNotMet, "check prerequisites",
			fmt.Errorf("unique constraint on :%s(%s) not found, run init first", ResourceLabel, URIProperty))
	}
	if _, err := LoadGraphConfig(engine); err != nil {
		return err
	}
	return nil
}

// HasResources reports whether any Resource node exists.
func HasResources(engine storage.Engine) (bool, error) {
	n, err := engine.CountNodesByLabel(ResourceLabel)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// requireEmpty fails with PrerequisiteNotMet once data has been imported.
func requireEmpty(engine storage.Engine, op string) error {
	has, err := HasResources(engine)
	if err != nil {
		return newError(KindUnknown, op, err)
	}
	if has {
		return newError(KindPrerequisiteNotMet, op,
			errors.New("the graph already contains imported resources"))
	}
	return nil
}
