package rdfio

import (
	"errors"
	"fmt"
	"io"

	"github.com/knakk/rdf"
)

// ErrNotEncodable is returned for statements N-Triples cannot express, such
// as RDF-star triple terms.
var ErrNotEncodable = errors.New("statement cannot be encoded as N-Triples")

const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// Encoder writes statements as N-Triples.
type Encoder struct {
	enc   *rdf.TripleEncoder
	count int
}

// NewEncoder returns an encoder writing to w. Close flushes it.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: rdf.NewTripleEncoder(w, rdf.NTriples)}
}

// Encode writes one statement.
func (e *Encoder) Encode(s Statement) error {
	t, err := toKnakk(s)
	if err != nil {
		return err
	}
	if err := e.enc.Encode(t); err != nil {
		return err
	}
	e.count++
	return nil
}

// Count returns how many statements were written.
func (e *Encoder) Count() int { return e.count }

// Close flushes buffered output.
func (e *Encoder) Close() error {
	return e.enc.Close()
}

func toKnakk(s Statement) (rdf.Triple, error) {
	var err error
	var subj rdf.Subject
	switch s.Subject.Kind {
	case KindIRI:
		subj, err = knakkIRI(s.Subject.Value)
	case KindBlank:
		subj, err = knakkBlank(s.Subject.Value)
	default:
		err = fmt.Errorf("%w: %s subject %s", ErrNotEncodable, s.Subject.Kind, s.Subject)
	}
	if err != nil {
		return rdf.Triple{}, err
	}
	pred, err := rdf.NewIRI(s.Predicate)
	if err != nil {
		return rdf.Triple{}, fmt.Errorf("%w: predicate %q: %v", ErrNotEncodable, s.Predicate, err)
	}

	var obj rdf.Object
	switch s.Object.Kind {
	case KindIRI:
		obj, err = knakkIRI(s.Object.Value)
	case KindBlank:
		obj, err = knakkBlank(s.Object.Value)
	case KindLiteral:
		obj, err = knakkLiteral(s.Object)
	default:
		err = fmt.Errorf("%w: %s object %s", ErrNotEncodable, s.Object.Kind, s.Object)
	}
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.Triple{Subj: subj, Pred: pred, Obj: obj}, nil
}

func knakkIRI(v string) (rdf.IRI, error) {
	iri, err := rdf.NewIRI(v)
	if err != nil {
		return rdf.IRI{}, fmt.Errorf("%w: %q: %v", ErrNotEncodable, v, err)
	}
	return iri, nil
}

func knakkBlank(id string) (rdf.Blank, error) {
	b, err := rdf.NewBlank(id)
	if err != nil {
		return rdf.Blank{}, fmt.Errorf("%w: blank node %q: %v", ErrNotEncodable, id, err)
	}
	return b, nil
}

func knakkLiteral(t Term) (rdf.Literal, error) {
	if t.Lang != "" {
		lit, err := rdf.NewLangLiteral(t.Value, t.Lang)
		if err != nil {
			return rdf.Literal{}, fmt.Errorf("%w: %v", ErrNotEncodable, err)
		}
		return lit, nil
	}
	dt := t.Datatype
	if dt == "" {
		dt = xsdString
	}
	iri, err := rdf.NewIRI(dt)
	if err != nil {
		return rdf.Literal{}, fmt.Errorf("%w: datatype %q: %v", ErrNotEncodable, dt, err)
	}
	return rdf.NewTypedLiteral(t.Value, iri), nil
}
