// Package export writes an imported property graph back out, either as RDF
// (N-Triples) or in the Neo4j JSON export format.
//
// The RDF export is the inverse of the import mapping. It reads the stored
// graph config, namespace prefixes and mappings, and expands every label,
// property key and relationship type back to an IRI:
//
//	labels          -> rdf:type triples
//	property values -> literal triples, one per list element
//	relationships   -> IRI (or blank node) triples
//
// Names that cannot be expanded, which is the norm for IGNORE graphs, are
// skipped and counted in Stats.Skipped.
//
// Example Usage:
//
//	f, _ := os.Create("graph.nt")
//	defer f.Close()
//	stats, err := export.NTriples(ctx, engine, f, export.Options{})
//	if err != nil {
//		return err
//	}
//	fmt.Printf("%d triples, %d skipped\n", stats.Triples, stats.Skipped)
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/literal"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfimport"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// Options configures an export.
type Options struct {
	// Logger receives skipped-name reports at Debug and a summary at Info.
	Logger log.FieldLogger
}

func (o Options) logger() log.FieldLogger {
	if o.Logger == nil {
		return log.StandardLogger()
	}
	return o.Logger
}

// Stats summarizes an export.
type Stats struct {
	Nodes         int
	Relationships int
	Triples       int
	Skipped       int
}

var langTag = regexp.MustCompile(`^[A-Za-z]{1,8}(-[A-Za-z0-9]{1,8})*$`)

type tripleWriter struct {
	g        config.GraphConfig
	resolver *iri.Resolver
	enc      *rdfio.Encoder
	log      log.FieldLogger
	stats    Stats
	uris     map[storage.NodeID]string
}

// NTriples writes every Resource node and the relationships between them as
// N-Triples. The store must hold a graph config.
func NTriples(ctx context.Context, engine storage.Engine, w io.Writer, opts Options) (Stats, error) {
	g, err := rdfimport.LoadGraphConfig(engine)
	if err != nil {
		return Stats{}, err
	}
	prefixes, err := rdfimport.LoadPrefixes(engine)
	if err != nil {
		return Stats{}, err
	}
	mappings, err := iri.LoadMappings(engine)
	if err != nil {
		return Stats{}, fmt.Errorf("loading mappings: %w", err)
	}

	tw := &tripleWriter{
		g:        g,
		resolver: iri.NewResolver(g, prefixes, mappings),
		enc:      rdfio.NewEncoder(w),
		log:      opts.logger().WithField("format", "ntriples"),
		uris:     make(map[storage.NodeID]string),
	}

	err = storage.StreamNodes(ctx, engine, tw.node)
	if err == nil {
		err = storage.StreamEdges(ctx, engine, tw.edge)
	}
	if cerr := tw.enc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return tw.stats, err
	}

	tw.log.WithFields(log.Fields{
		"nodes":   tw.stats.Nodes,
		"triples": tw.stats.Triples,
		"skipped": tw.stats.Skipped,
	}).Info("Export finished")
	return tw.stats, nil
}

func (tw *tripleWriter) node(n *storage.Node) error {
	if !n.HasLabel(rdfimport.ResourceLabel) {
		return nil
	}
	uri, ok := n.Properties[rdfimport.URIProperty].(string)
	if !ok {
		return nil
	}
	tw.uris[n.ID] = uri
	tw.stats.Nodes++
	subject := term(uri)

	for _, label := range n.Labels {
		if label == rdfimport.ResourceLabel {
			continue
		}
		class, ok := tw.resolver.Expand(label)
		if !ok {
			tw.skip("label", label)
			continue
		}
		if err := tw.emit(rdfio.Statement{Subject: subject, Predicate: namespace.RDFType, Object: rdfio.IRI(class)}); err != nil {
			return err
		}
	}

	for key, value := range n.Properties {
		if key == rdfimport.URIProperty {
			continue
		}
		predicate, ok := tw.resolver.Expand(key)
		if !ok {
			tw.skip("property", key)
			continue
		}
		for _, v := range values(value) {
			if err := tw.emit(rdfio.Statement{Subject: subject, Predicate: predicate, Object: tw.literal(v)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tw *tripleWriter) edge(e *storage.Edge) error {
	start, ok := tw.uris[e.StartNode]
	if !ok {
		return nil
	}
	end, ok := tw.uris[e.EndNode]
	if !ok {
		return nil
	}
	tw.stats.Relationships++
	predicate, ok := tw.resolver.Expand(e.Type)
	if !ok {
		tw.skip("relationship type", e.Type)
		return nil
	}
	// relationship properties come from RDF-star annotations, which
	// N-Triples cannot carry
	if len(e.Properties) > 0 {
		tw.stats.Skipped += len(e.Properties)
	}
	return tw.emit(rdfio.Statement{Subject: term(start), Predicate: predicate, Object: term(end)})
}

func (tw *tripleWriter) emit(s rdfio.Statement) error {
	if err := tw.enc.Encode(s); err != nil {
		if !errors.Is(err, rdfio.ErrNotEncodable) {
			return err
		}
		tw.stats.Skipped++
		tw.log.WithError(err).Debug("Statement not encodable")
		return nil
	}
	tw.stats.Triples++
	return nil
}

func (tw *tripleWriter) skip(what, name string) {
	tw.stats.Skipped++
	tw.log.WithField(what, name).Debug("Name does not expand to an IRI")
}

// literal turns a stored value back into an RDF literal, splitting the
// suffixes the importer appends for language tags and custom datatypes.
func (tw *tripleWriter) literal(v any) rdfio.Term {
	s, isString := v.(string)
	if !isString {
		lexical, datatype := literal.Lexical(v)
		return rdfio.Literal(lexical, datatype, "")
	}
	if tw.g.KeepCustomDataTypes {
		if value, name, ok := literal.SplitCustom(s); ok {
			if datatype, ok := tw.resolver.Expand(name); ok {
				return rdfio.Literal(value, datatype, "")
			}
		}
	}
	if tw.g.KeepLangTag {
		if i := strings.LastIndexByte(s, '@'); i > 0 && langTag.MatchString(s[i+1:]) {
			return rdfio.Literal(s[:i], "", s[i+1:])
		}
	}
	return rdfio.Literal(s, "", "")
}

func term(uri string) rdfio.Term {
	if id, ok := strings.CutPrefix(uri, rdfimport.BlankNodeScheme); ok {
		return rdfio.Blank(id)
	}
	return rdfio.IRI(uri)
}

func values(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
