package rdfimport

import (
	"errors"
	"fmt"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// The graph config is stored as the properties of a single node.
const (
	GraphConfigLabel                 = "_GraphConfig"
	GraphConfigNodeID storage.NodeID = "_GraphConfig"
)

// LoadGraphConfig returns the stored graph config. A store without one
// fails with PrerequisiteNotMet.
func LoadGraphConfig(engine storage.Engine) (config.GraphConfig, error) {
	node, err := engine.GetNode(GraphConfigNodeID)
	if errors.Is(err, storage.ErrNotFound) {
		return config.GraphConfig{}, newError(KindPrerequisiteNotMet, "load graph config",
			errors.New("graph config not initialised, run graphconfig init first"))
	}
	if err != nil {
		return config.GraphConfig{}, fmt.Errorf("loading graph config: %w", err)
	}
	g, err := config.GraphConfigFromMap(node.Properties)
	if err != nil {
		return config.GraphConfig{}, newError(KindBadParams, "load graph config", err)
	}
	return g, nil
}

// InitGraphConfig stores g, replacing any existing config. It is refused
// once the graph holds imported resources.
func InitGraphConfig(engine storage.Engine, g config.GraphConfig) error {
	if err := g.Validate(); err != nil {
		return newError(KindBadParams, "init graph config", err)
	}
	if err := requireEmpty(engine, "init graph config"); err != nil {
		return err
	}
	return saveGraphConfig(engine, g)
}

// SetGraphConfig changes the named parameters of the stored config, or of
// the defaults when none is stored yet.
func SetGraphConfig(engine storage.Engine, params map[string]any) (config.GraphConfig, error) {
	g, err := LoadGraphConfig(engine)
	if errors.Is(err, ErrPrerequisiteNotMet) {
		g, err = config.DefaultGraphConfig(), nil
	}
	if err != nil {
		return config.GraphConfig{}, err
	}
	for k, v := range params {
		if err := g.Set(k, v); err != nil {
			return config.GraphConfig{}, newError(KindBadParams, "set graph config", err)
		}
	}
	if err := g.Validate(); err != nil {
		return config.GraphConfig{}, newError(KindBadParams, "set graph config", err)
	}
	if err := requireEmpty(engine, "set graph config"); err != nil {
		return config.GraphConfig{}, err
	}
	return g, saveGraphConfig(engine, g)
}

// ShowGraphConfig returns the stored config in display order.
func ShowGraphConfig(engine storage.Engine) ([]config.Param, error) {
	g, err := LoadGraphConfig(engine)
	if err != nil {
		return nil, err
	}
	return g.Params(), nil
}

// DropGraphConfig removes the stored config. Dropping a missing config is
// not an error.
func DropGraphConfig(engine storage.Engine) error {
	if err := requireEmpty(engine, "drop graph config"); err != nil {
		return err
	}
	err := engine.DeleteNode(GraphConfigNodeID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("dropping graph config: %w", err)
	}
	return nil
}

func saveGraphConfig(engine storage.Engine, g config.GraphConfig) error {
	node := &storage.Node{
		ID:         GraphConfigNodeID,
		Labels:     []string{GraphConfigLabel},
		Properties: g.ToMap(),
	}
	_, err := engine.GetNode(GraphConfigNodeID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = engine.CreateNode(node)
	case err == nil:
		err = engine.UpdateNode(node)
	}
	if err != nil {
		return fmt.Errorf("saving graph config: %w", err)
	}
	return nil
}
