package rdfio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	rdf "github.com/geoknoesis/rdf-go/rdf"
)

var (
	// ErrUnsupportedFormat is returned for serialization names we cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported RDF format")
	// ErrSyntax wraps every error raised by the parser itself.
	ErrSyntax = errors.New("RDF syntax error")
)

// Format is an RDF serialization.
type Format string

const (
	Turtle   Format = "Turtle"
	TriG     Format = "TriG"
	NTriples Format = "N-Triples"
	NQuads   Format = "N-Quads"
	RDFXML   Format = "RDF/XML"
	JSONLD   Format = "JSON-LD"
)

var formats = map[Format]rdf.Format{
	Turtle:   rdf.FormatTurtle,
	TriG:     rdf.FormatTriG,
	NTriples: rdf.FormatNTriples,
	NQuads:   rdf.FormatNQuads,
	RDFXML:   rdf.FormatRDFXML,
	JSONLD:   rdf.FormatJSONLD,
}

// ParseFormat accepts the n10s names (Turtle, N-Triples, RDF/XML, JSON-LD,
// TriG, N-Quads, Turtle-star) and common short forms (ttl, nt, xml, jsonld).
func ParseFormat(name string) (Format, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "turtle", "ttl", "turtle-star", "ttls":
		return Turtle, nil
	case "n-triples", "ntriples", "nt":
		return NTriples, nil
	case "n-quads", "nquads", "nq":
		return NQuads, nil
	case "trig", "trig-star":
		return TriG, nil
	case "rdf/xml", "rdfxml", "rdf", "xml", "owl":
		return RDFXML, nil
	case "json-ld", "jsonld", "json":
		return JSONLD, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// FormatForPath guesses the format from a file name or URL path.
func FormatForPath(path string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", false
	}
	f, err := ParseFormat(ext)
	return f, err == nil
}

// ParseOptions tunes the underlying parser.
type ParseOptions struct {
	// MaxStatementBytes bounds a single statement. Zero keeps the parser default.
	MaxStatementBytes int
	// StrictIRIs makes the parser itself reject malformed IRIs.
	StrictIRIs bool
}

// Parse reads r and calls fn for each statement in document order. Errors
// returned by fn are passed through unchanged; parser failures wrap ErrSyntax.
func Parse(ctx context.Context, r io.Reader, format Format, opts ParseOptions, fn func(Statement) error) error {
	rf, ok := formats[format]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	options := []rdf.Option{
		func(o *rdf.Options) { o.AllowQuotedTripleStatement = true },
	}
	if opts.MaxStatementBytes > 0 {
		options = append(options, rdf.OptMaxStatementBytes(opts.MaxStatementBytes))
	}
	if opts.StrictIRIs {
		options = append(options, rdf.OptStrictIRIValidation())
	}

	var handlerErr error
	err := rdf.Parse(ctx, r, rf, func(s rdf.Statement) error {
		stmt, err := fromRDF(s.S, s.P, s.O)
		if err != nil {
			return err
		}
		if err := fn(stmt); err != nil {
			handlerErr = err
			return err
		}
		return nil
	}, options...)

	switch {
	case err == nil:
		return nil
	case handlerErr != nil && errors.Is(err, handlerErr):
		return handlerErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", ErrSyntax, err)
}

func fromRDF(s rdf.Term, p rdf.IRI, o rdf.Term) (Statement, error) {
	subject, err := termFromRDF(s)
	if err != nil {
		return Statement{}, err
	}
	object, err := termFromRDF(o)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Subject: subject, Predicate: p.Value, Object: object}, nil
}

func termFromRDF(t rdf.Term) (Term, error) {
	switch v := t.(type) {
	case rdf.IRI:
		return IRI(v.Value), nil
	case rdf.BlankNode:
		return Blank(v.ID), nil
	case rdf.Literal:
		return Literal(v.Lexical, v.Datatype.Value, v.Lang), nil
	case rdf.TripleTerm:
		quoted, err := fromRDF(v.S, v.P, v.O)
		if err != nil {
			return Term{}, err
		}
		return Quoted(quoted), nil
	case nil:
		return Term{}, errors.New("missing term")
	}
	return Term{}, fmt.Errorf("unsupported term %T", t)
}
