package rdfimport

import (
	"errors"
	"fmt"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
)

// ErrorKind classifies import failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindPrerequisiteNotMet: uniqueness constraint missing, or a structural
	// change attempted on a graph that already holds data.
	KindPrerequisiteNotMet
	// KindBadParams: unknown serialization or invalid config value.
	KindBadParams
	// KindParseError: malformed input.
	KindParseError
	// KindHeterogeneousDataTyping: conflicting native types for one property.
	KindHeterogeneousDataTyping
	// KindNamespacePrefixConflict: prefix bijection violated.
	KindNamespacePrefixConflict
	// KindPartialCommit: a flush failed after earlier batches committed.
	KindPartialCommit
	// KindCancelled: the statement limit was reached.
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrerequisiteNotMet:
		return "PrerequisiteNotMet"
	case KindBadParams:
		return "BadParams"
	case KindParseError:
		return "ParseError"
	case KindHeterogeneousDataTyping:
		return "HeterogeneousDataTyping"
	case KindNamespacePrefixConflict:
		return "NamespacePrefixConflict"
	case KindPartialCommit:
		return "PartialCommit"
	case KindCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Sentinels, one per kind. errors.Is(err, ErrBadParams) holds for any
// *ImportError of that kind.
var (
	ErrPrerequisiteNotMet      = errors.New("prerequisite not met")
	ErrBadParams               = errors.New("bad parameters")
	ErrParse                   = errors.New("parse error")
	ErrHeterogeneousDataTyping = errors.New("heterogeneous data typing")
	ErrNamespacePrefixConflict = errors.New("namespace prefix conflict")
	ErrPartialCommit           = errors.New("partial commit")

	// ErrCancelled is returned by Accumulator.Handle once the statement
	// limit is reached. Callers stop feeding statements; it is not a failure.
	ErrCancelled = errors.New("statement limit reached")
)

var kindSentinels = map[ErrorKind]error{
	KindPrerequisiteNotMet:      ErrPrerequisiteNotMet,
	KindBadParams:               ErrBadParams,
	KindParseError:              ErrParse,
	KindHeterogeneousDataTyping: ErrHeterogeneousDataTyping,
	KindNamespacePrefixConflict: ErrNamespacePrefixConflict,
	KindPartialCommit:           ErrPartialCommit,
	KindCancelled:               ErrCancelled,
}

// ImportError wraps an error with its kind and the operation that failed.
type ImportError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ImportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *ImportError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// newError classifies err under kind. An error that is already an
// *ImportError keeps its original kind.
func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return err
	}
	return &ImportError{Kind: kind, Op: op, Err: err}
}

// KindOf classifies arbitrary errors, including component sentinels.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	switch {
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, rdfio.ErrUnsupportedFormat):
		return KindBadParams
	case errors.Is(err, namespace.ErrPrefixConflict),
		errors.Is(err, namespace.ErrInvalidPrefix),
		errors.Is(err, iri.ErrNoPrefix):
		return KindNamespacePrefixConflict
	case errors.Is(err, rdfio.ErrSyntax),
		errors.Is(err, rdfio.ErrFetch):
		return KindParseError
	}
	return KindUnknown
}

// IsFatal reports whether err stops an import before any statement is read.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindPrerequisiteNotMet, KindBadParams:
		return true
	}
	return false
}
