package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// Neo4jExport is the combined Neo4j JSON export document.
type Neo4jExport struct {
	Nodes         []Neo4jNode         `json:"nodes"`
	Relationships []Neo4jRelationship `json:"relationships"`
}

// Neo4jNode is a node in Neo4j JSON export format.
type Neo4jNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Neo4jRelationship is a relationship in the flat (neo4j-admin) export
// format.
type Neo4jRelationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	StartNode  string         `json:"startNode"`
	EndNode    string         `json:"endNode"`
	Properties map[string]any `json:"properties"`
}

// ToNeo4jExport converts nodes and edges to the export document. Dates and
// date-times become ISO-8601 strings.
//
// Example:
//
//	nodes, _ := engine.AllNodes()
//	edges, _ := engine.AllEdges()
//	doc := export.ToNeo4jExport(nodes, edges)
//	json.NewEncoder(os.Stdout).Encode(doc)
func ToNeo4jExport(nodes []*storage.Node, edges []*storage.Edge) *Neo4jExport {
	doc := &Neo4jExport{
		Nodes:         make([]Neo4jNode, len(nodes)),
		Relationships: make([]Neo4jRelationship, len(edges)),
	}
	for i, n := range nodes {
		doc.Nodes[i] = Neo4jNode{
			ID:         string(n.ID),
			Labels:     n.Labels,
			Properties: jsonProperties(n.Properties),
		}
	}
	for i, e := range edges {
		doc.Relationships[i] = Neo4jRelationship{
			ID:         string(e.ID),
			Type:       e.Type,
			StartNode:  string(e.StartNode),
			EndNode:    string(e.EndNode),
			Properties: jsonProperties(e.Properties),
		}
	}
	return doc
}

// Neo4jJSON writes the whole store, system nodes included, as one indented
// Neo4j JSON document.
func Neo4jJSON(ctx context.Context, engine storage.Engine, w io.Writer) (Stats, error) {
	var nodes []*storage.Node
	if err := storage.StreamNodes(ctx, engine, func(n *storage.Node) error {
		nodes = append(nodes, n)
		return nil
	}); err != nil {
		return Stats{}, fmt.Errorf("reading nodes: %w", err)
	}
	var edges []*storage.Edge
	if err := storage.StreamEdges(ctx, engine, func(e *storage.Edge) error {
		edges = append(edges, e)
		return nil
	}); err != nil {
		return Stats{}, fmt.Errorf("reading relationships: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ToNeo4jExport(nodes, edges)); err != nil {
		return Stats{}, fmt.Errorf("encoding JSON: %w", err)
	}
	return Stats{Nodes: len(nodes), Relationships: len(edges)}, nil
}

func jsonProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = jsonValue(v)
	}
	return out
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case storage.Date:
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}
