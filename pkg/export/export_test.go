package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfimport"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

const xsd = "http://www.w3.org/2001/XMLSchema#"

func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return l
}

func loaded(t *testing.T, g config.GraphConfig, p config.ParserConfig, doc string) storage.Engine {
	t.Helper()
	engine := storage.NewMemoryEngine()
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, rdfimport.InitConstraint(engine))
	require.NoError(t, rdfimport.InitGraphConfig(engine, g))

	im := rdfimport.NewImporter(engine, rdfimport.Options{Logger: quietLogger()})
	res, err := im.Import(context.Background(), strings.NewReader(doc), rdfio.NTriples, p)
	require.NoError(t, err)
	require.True(t, res.OK(), "error: %v", res.Error)
	return engine
}

// triples parses N-Triples output into sorted "s p o" lines. Plain strings
// print without a datatype and blank nodes as "_:".
func triples(t *testing.T, text string) []string {
	t.Helper()
	var out []string
	err := rdfio.Parse(context.Background(), strings.NewReader(text), rdfio.NTriples, rdfio.ParseOptions{}, func(s rdfio.Statement) error {
		out = append(out, fmt.Sprintf("%s %s %s", render(s.Subject), s.Predicate, render(s.Object)))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func render(term rdfio.Term) string {
	switch {
	case term.IsBlank():
		return "_:"
	case !term.IsLiteral():
		return term.Value
	case term.Lang != "":
		return fmt.Sprintf("%q@%s", term.Value, term.Lang)
	case term.Datatype == "" || term.Datatype == xsd+"string":
		return fmt.Sprintf("%q", term.Value)
	}
	return fmt.Sprintf("%q^^%s", term.Value, term.Datatype)
}

func TestNTriples_Shorten(t *testing.T) {
	g := config.DefaultGraphConfig()
	g.KeepLangTag = true
	g.KeepCustomDataTypes = true
	g.HandleMultival = config.MultivalArray

	engine := loaded(t, g, config.DefaultParserConfig(), `<http://ex/a> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex/Person> .
<http://ex/a> <http://ex/name> "Alice"@en .
<http://ex/a> <http://ex/age> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://ex/a> <http://ex/price> "10"^^<http://ex/dt/usd> .
<http://ex/a> <http://ex/tag> "x" .
<http://ex/a> <http://ex/tag> "y" .
<http://ex/a> <http://ex/knows> <http://ex/b> .
<http://ex/b> <http://ex/born> "2001-02-03"^^<http://www.w3.org/2001/XMLSchema#date> .
_:anon <http://ex/knows> <http://ex/a> .
`)

	var out bytes.Buffer
	stats, err := NTriples(context.Background(), engine, &out, Options{Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`_: http://ex/knows http://ex/a`,
		`http://ex/a http://ex/age "42"^^` + xsd + "long",
		`http://ex/a http://ex/knows http://ex/b`,
		`http://ex/a http://ex/name "Alice"@en`,
		`http://ex/a http://ex/price "10"^^http://ex/dt/usd`,
		`http://ex/a http://ex/tag "x"`,
		`http://ex/a http://ex/tag "y"`,
		`http://ex/a ` + namespace.RDFType + ` http://ex/Person`,
		`http://ex/b http://ex/born "2001-02-03"^^` + xsd + "date",
	}, triples(t, out.String()))

	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 2, stats.Relationships)
	assert.Equal(t, 9, stats.Triples)
	assert.Equal(t, 0, stats.Skipped)
}

func TestNTriples_IgnoreSkipsNames(t *testing.T) {
	g := config.DefaultGraphConfig()
	g.HandleVocabURIs = config.VocabIgnore

	engine := loaded(t, g, config.DefaultParserConfig(), `<http://ex/a> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex/Person> .
<http://ex/a> <http://ex/name> "Alice" .
<http://ex/a> <http://ex/knows> <http://ex/b> .
`)

	var out bytes.Buffer
	stats, err := NTriples(context.Background(), engine, &out, Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 0, stats.Triples)
	// label, property and relationship type
	assert.Equal(t, 3, stats.Skipped)
}

func TestNTriples_RoundTrip(t *testing.T) {
	g := config.DefaultGraphConfig()
	g.HandleVocabURIs = config.VocabKeep
	g.HandleMultival = config.MultivalArray

	doc := `<http://ex/a> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex/Person> .
<http://ex/a> <http://ex/name> "Alice" .
<http://ex/a> <http://ex/score> "1.5"^^<http://www.w3.org/2001/XMLSchema#double> .
<http://ex/a> <http://ex/active> "true"^^<http://www.w3.org/2001/XMLSchema#boolean> .
<http://ex/a> <http://ex/seen> "2024-05-06T07:08:09Z"^^<http://www.w3.org/2001/XMLSchema#dateTime> .
<http://ex/a> <http://ex/tag> "x" .
<http://ex/a> <http://ex/tag> "y" .
<http://ex/a> <http://ex/knows> <http://ex/b> .
<http://ex/b> <http://ex/age> "7"^^<http://www.w3.org/2001/XMLSchema#integer> .
`
	first := loaded(t, g, config.DefaultParserConfig(), doc)
	var out bytes.Buffer
	_, err := NTriples(context.Background(), first, &out, Options{Logger: quietLogger()})
	require.NoError(t, err)

	second := loaded(t, g, config.DefaultParserConfig(), out.String())
	assert.Equal(t, snapshot(t, first), snapshot(t, second))
}

func TestNTriples_RequiresGraphConfig(t *testing.T) {
	engine := storage.NewMemoryEngine()
	defer engine.Close()

	_, err := NTriples(context.Background(), engine, &bytes.Buffer{}, Options{Logger: quietLogger()})
	assert.ErrorIs(t, err, rdfimport.ErrPrerequisiteNotMet)
}

func TestNeo4jJSON(t *testing.T) {
	g := config.DefaultGraphConfig()
	g.HandleVocabURIs = config.VocabIgnore
	engine := loaded(t, g, config.DefaultParserConfig(), `<http://ex/a> <http://ex/name> "Alice" .
<http://ex/a> <http://ex/born> "2001-02-03"^^<http://www.w3.org/2001/XMLSchema#date> .
<http://ex/a> <http://ex/knows> <http://ex/b> .
`)

	var out bytes.Buffer
	stats, err := Neo4jJSON(context.Background(), engine, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Relationships)

	var doc Neo4jExport
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Len(t, doc.Nodes, stats.Nodes)
	require.Len(t, doc.Relationships, 1)

	byURI := make(map[string]Neo4jNode)
	for _, n := range doc.Nodes {
		if uri, ok := n.Properties["uri"].(string); ok {
			byURI[uri] = n
		}
	}
	alice := byURI["http://ex/a"]
	assert.Equal(t, []string{"Resource"}, alice.Labels)
	assert.Equal(t, "Alice", alice.Properties["name"])
	assert.Equal(t, "2001-02-03", alice.Properties["born"])

	rel := doc.Relationships[0]
	assert.Equal(t, "knows", rel.Type)
	assert.Equal(t, alice.ID, rel.StartNode)
	assert.Equal(t, byURI["http://ex/b"].ID, rel.EndNode)
}

func TestToNeo4jExport_Values(t *testing.T) {
	seen := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	doc := ToNeo4jExport([]*storage.Node{{
		ID:     "n1",
		Labels: []string{"Resource"},
		Properties: map[string]any{
			"seen":  seen,
			"dates": []any{storage.Date{Year: 2020, Month: time.January, Day: 2}},
			"n":     int64(3),
		},
	}}, nil)

	require.Len(t, doc.Nodes, 1)
	props := doc.Nodes[0].Properties
	assert.Equal(t, "2024-05-06T07:08:09Z", props["seen"])
	assert.Equal(t, []any{"2020-01-02"}, props["dates"])
	assert.Equal(t, int64(3), props["n"])
	assert.Empty(t, doc.Relationships)
}

// snapshot renders the Resource graph independently of node ids.
func snapshot(t *testing.T, engine storage.Engine) []string {
	t.Helper()
	nodes, err := engine.GetNodesByLabel(rdfimport.ResourceLabel)
	require.NoError(t, err)
	uris := make(map[storage.NodeID]string, len(nodes))
	var out []string
	for _, n := range nodes {
		uris[n.ID] = n.Properties[rdfimport.URIProperty].(string)
		labels := append([]string(nil), n.Labels...)
		sort.Strings(labels)
		var props []string
		for k, v := range n.Properties {
			props = append(props, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(props)
		out = append(out, fmt.Sprintf("node %v %v", labels, props))
	}
	edges, err := engine.AllEdges()
	require.NoError(t, err)
	for _, e := range edges {
		out = append(out, fmt.Sprintf("rel %s -%s-> %s", uris[e.StartNode], e.Type, uris[e.EndNode]))
	}
	sort.Strings(out)
	return out
}
