package rdfio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, doc string, format Format) []Statement {
	t.Helper()
	var out []Statement
	err := Parse(context.Background(), strings.NewReader(doc), format, ParseOptions{}, func(s Statement) error {
		out = append(out, s)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestParse_NTriples(t *testing.T) {
	doc := `<http://ex/a> <http://ex/name> "Alice" .
<http://ex/a> <http://ex/age> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://ex/a> <http://ex/greeting> "bonjour"@fr .
_:b1 <http://ex/knows> <http://ex/a> .
`
	stmts := collect(t, doc, NTriples)
	require.Len(t, stmts, 4)

	assert.Equal(t, IRI("http://ex/a"), stmts[0].Subject)
	assert.Equal(t, "http://ex/name", stmts[0].Predicate)
	assert.True(t, stmts[0].Object.IsLiteral())
	assert.Equal(t, "Alice", stmts[0].Object.Value)

	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#integer", stmts[1].Object.Datatype)
	assert.Equal(t, "fr", stmts[2].Object.Lang)

	assert.True(t, stmts[3].Subject.IsBlank())
	assert.Equal(t, "b1", stmts[3].Subject.Value)
	assert.True(t, stmts[3].Object.IsIRI())
}

func TestParse_Turtle(t *testing.T) {
	doc := `@prefix ex: <http://ex/> .
ex:a a ex:Person ;
     ex:knows ex:b .
`
	stmts := collect(t, doc, Turtle)
	require.Len(t, stmts, 2)
	assert.Equal(t, "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", stmts[0].Predicate)
	assert.Equal(t, IRI("http://ex/Person"), stmts[0].Object)
	assert.Equal(t, IRI("http://ex/b"), stmts[1].Object)
}

func TestParse_QuotedTriple(t *testing.T) {
	t.Run("turtle_subject", func(t *testing.T) {
		doc := `@prefix ex: <http://ex/> .
<< ex:a ex:knows ex:b >> ex:since 2020 .
`
		stmts := collect(t, doc, Turtle)
		require.Len(t, stmts, 1)
		require.True(t, stmts[0].Subject.IsTriple())
		quoted := stmts[0].Subject.Quoted
		assert.Equal(t, IRI("http://ex/a"), quoted.Subject)
		assert.Equal(t, "http://ex/knows", quoted.Predicate)
		assert.Equal(t, IRI("http://ex/b"), quoted.Object)
		assert.Equal(t, "http://ex/since", stmts[0].Predicate)
		assert.Equal(t, "2020", stmts[0].Object.Value)
	})

	t.Run("ntriples_object", func(t *testing.T) {
		// N-Triples only carries triple terms as objects, in <<( )>> form
		doc := `<http://ex/r> <http://www.w3.org/1999/02/22-rdf-syntax-ns#reifies> <<( <http://ex/a> <http://ex/knows> <http://ex/b> )>> .
`
		stmts := collect(t, doc, NTriples)
		require.Len(t, stmts, 1)
		require.True(t, stmts[0].Object.IsTriple())
		assert.Equal(t, "http://ex/knows", stmts[0].Object.Quoted.Predicate)
	})

	t.Run("ntriples_subject_rejected", func(t *testing.T) {
		doc := `<< <http://ex/a> <http://ex/knows> <http://ex/b> >> <http://ex/since> "2020" .
`
		err := Parse(context.Background(), strings.NewReader(doc), NTriples, ParseOptions{},
			func(Statement) error { return nil })
		assert.ErrorIs(t, err, ErrSyntax)
	})
}

func TestParse_Errors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		err := Parse(context.Background(), strings.NewReader("<http://ex/a> <http://ex/p> .\n"), NTriples, ParseOptions{},
			func(Statement) error { return nil })
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("handler_error_passes_through", func(t *testing.T) {
		stop := errors.New("stop")
		err := Parse(context.Background(), strings.NewReader("<http://ex/a> <http://ex/p> <http://ex/b> .\n"), NTriples, ParseOptions{},
			func(Statement) error { return stop })
		assert.ErrorIs(t, err, stop)
		assert.NotErrorIs(t, err, ErrSyntax)
	})

	t.Run("unknown_format", func(t *testing.T) {
		err := Parse(context.Background(), strings.NewReader(""), Format("N3"), ParseOptions{},
			func(Statement) error { return nil })
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"Turtle":    Turtle,
		"ttl":       Turtle,
		"N-Triples": NTriples,
		"RDF/XML":   RDFXML,
		"JSON-LD":   JSONLD,
		"TriG":      TriG,
		"nq":        NQuads,
	}
	for name, want := range tests {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseFormat("n3")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f, ok := FormatForPath("/data/dump.nt")
	assert.True(t, ok)
	assert.Equal(t, NTriples, f)
	_, ok = FormatForPath("/data/dump")
	assert.False(t, ok)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.ttl")
	content := []byte("@prefix ex: <http://ex/> .\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	src, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, Turtle, src.Format)
	assert.Equal(t, int64(len(content)), src.Size)

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing.ttl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(Statement{
		Subject: IRI("http://ex/a"), Predicate: "http://ex/knows", Object: IRI("http://ex/b"),
	}))
	require.NoError(t, enc.Encode(Statement{
		Subject: Blank("x"), Predicate: "http://ex/name", Object: Literal("hi", "", "en"),
	}))

	err := enc.Encode(Statement{
		Subject:   Quoted(Statement{Subject: IRI("http://ex/a"), Predicate: "http://ex/p", Object: IRI("http://ex/b")}),
		Predicate: "http://ex/since",
		Object:    Literal("2020", "", ""),
	})
	assert.ErrorIs(t, err, ErrNotEncodable)
	require.NoError(t, enc.Close())

	out := buf.String()
	assert.Contains(t, out, "<http://ex/a> <http://ex/knows> <http://ex/b> .")
	assert.Contains(t, out, "_:x <http://ex/name> \"hi\"@en .")
	assert.Equal(t, 2, enc.Count())
}

func TestStatementString(t *testing.T) {
	s := Statement{Subject: IRI("http://ex/a"), Predicate: "http://ex/p", Object: Literal("1", "http://ex/dt", "")}
	assert.Equal(t, `<http://ex/a> <http://ex/p> "1"^^<http://ex/dt> .`, s.String())
}
