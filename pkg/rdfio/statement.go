// Package rdfio reads RDF into the statement records the import core
// consumes, and writes statements back out as N-Triples.
//
// Parsing is delegated to github.com/geoknoesis/rdf-go (Turtle, TriG,
// N-Triples, N-Quads, RDF/XML, JSON-LD, RDF-star); encoding uses
// github.com/knakk/rdf.
package rdfio

import (
	"strconv"
	"strings"
)

// TermKind tags a statement term.
type TermKind uint8

const (
	KindIRI TermKind = iota
	KindBlank
	KindLiteral
	KindTriple
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	case KindTriple:
		return "triple"
	}
	return "TermKind(" + strconv.Itoa(int(k)) + ")"
}

// Term is one position of a statement.
type Term struct {
	Kind TermKind
	// Value is the IRI, the blank node id (without "_:"), or the literal's
	// lexical form.
	Value    string
	Datatype string
	Lang     string
	// Quoted is set for KindTriple.
	Quoted *Statement
}

// IRI returns an IRI term.
func IRI(iri string) Term { return Term{Kind: KindIRI, Value: iri} }

// Blank returns a blank node term.
func Blank(id string) Term { return Term{Kind: KindBlank, Value: id} }

// Literal returns a literal term.
func Literal(lexical, datatype, lang string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Datatype: datatype, Lang: lang}
}

// Quoted returns an RDF-star triple term.
func Quoted(s Statement) Term { return Term{Kind: KindTriple, Quoted: &s} }

func (t Term) IsIRI() bool     { return t.Kind == KindIRI }
func (t Term) IsBlank() bool   { return t.Kind == KindBlank }
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }
func (t Term) IsTriple() bool  { return t.Kind == KindTriple && t.Quoted != nil }

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := strconv.Quote(t.Value)
		switch {
		case t.Lang != "":
			return s + "@" + t.Lang
		case t.Datatype != "":
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	case KindTriple:
		if t.Quoted != nil {
			return "<< " + t.Quoted.triple() + " >>"
		}
	}
	return ""
}

// Statement is one parsed RDF statement. Named graphs are not kept.
type Statement struct {
	Subject   Term
	Predicate string
	Object    Term
}

func (s Statement) triple() string {
	var b strings.Builder
	b.WriteString(s.Subject.String())
	b.WriteString(" <")
	b.WriteString(s.Predicate)
	b.WriteString("> ")
	b.WriteString(s.Object.String())
	return b.String()
}

// String renders the statement as an N-Triples line without the newline.
func (s Statement) String() string {
	return s.triple() + " ."
}
