// Package iri turns vocabulary IRIs into property graph element names.
//
// The naming policy comes from config.GraphConfig.HandleVocabURIs:
//
//	KEEP            http://schema.org/name -> http://schema.org/name
//	SHORTEN         http://schema.org/name -> sch__name (prefix allocated on demand)
//	SHORTEN_STRICT  same, but fails with ErrNoPrefix for undeclared namespaces
//	IGNORE          http://schema.org/name -> name
//	MAP             explicit mapping, else IGNORE
//
// Under IGNORE and MAP, ApplyNeo4jNaming case-adjusts the local name per
// element kind (see LabelName, RelationshipName, PropertyName).
package iri

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
)

// Separator joins prefix and local name under SHORTEN.
const Separator = "__"

// ErrNoPrefix is returned under SHORTEN_STRICT when a namespace has no prefix.
var ErrNoPrefix = errors.New("no namespace prefix defined")

// ElementKind is the graph element an IRI is resolved for.
type ElementKind int

const (
	Label ElementKind = iota
	RelationshipType
	PropertyKey
	Datatype
)

func (k ElementKind) String() string {
	switch k {
	case Label:
		return "label"
	case RelationshipType:
		return "relationship type"
	case PropertyKey:
		return "property key"
	case Datatype:
		return "datatype"
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// Resolver resolves IRIs under one naming policy. It is used by a single
// import at a time.
type Resolver struct {
	mode     config.VocabURIHandling
	naming   bool
	prefixes *namespace.PrefixTable
	mappings map[string]string
	reverse  map[string]string
}

// NewResolver creates a resolver for the graph config. prefixes is required
// for the SHORTEN modes; mappings is only consulted under MAP.
func NewResolver(g config.GraphConfig, prefixes *namespace.PrefixTable, mappings map[string]string) *Resolver {
	if prefixes == nil {
		prefixes = namespace.NewPrefixTable()
	}
	r := &Resolver{
		mode:     g.HandleVocabURIs,
		naming:   g.ApplyNeo4jNaming,
		prefixes: prefixes,
		mappings: make(map[string]string, len(mappings)),
		reverse:  make(map[string]string, len(mappings)),
	}
	for iri, name := range mappings {
		r.mappings[iri] = name
		r.reverse[name] = iri
	}
	return r
}

// Mode returns the naming policy.
func (r *Resolver) Mode() config.VocabURIHandling { return r.mode }

// Prefixes returns the namespace table the resolver allocates into.
func (r *Resolver) Prefixes() *namespace.PrefixTable { return r.prefixes }

// Resolve returns the element name for iri.
func (r *Resolver) Resolve(iri string, kind ElementKind) (string, error) {
	switch r.mode {
	case config.VocabKeep:
		return iri, nil
	case config.VocabShorten, config.VocabShortenStrict:
		return r.shorten(iri)
	case config.VocabMap:
		if name, ok := r.mappings[iri]; ok {
			return name, nil
		}
		return r.ignore(iri, kind), nil
	case config.VocabIgnore:
		return r.ignore(iri, kind), nil
	}
	return "", fmt.Errorf("%w: handleVocabUris %q", config.ErrInvalidConfig, r.mode)
}

func (r *Resolver) shorten(iri string) (string, error) {
	ns, local := namespace.SplitIRI(iri)
	if ns == "" {
		if r.mode == config.VocabShortenStrict {
			return "", fmt.Errorf("%w: %s has no namespace", ErrNoPrefix, iri)
		}
		// nothing to shorten
		return iri, nil
	}
	if r.mode == config.VocabShortenStrict {
		prefix, ok := r.prefixes.Prefix(ns)
		if !ok {
			return "", fmt.Errorf("%w: %s (in %s)", ErrNoPrefix, ns, iri)
		}
		return prefix + Separator + local, nil
	}
	prefix, err := r.prefixes.GetOrAllocate(ns)
	if err != nil {
		return "", err
	}
	return prefix + Separator + local, nil
}

func (r *Resolver) ignore(iri string, kind ElementKind) string {
	local := namespace.LocalName(iri)
	if !r.naming {
		return local
	}
	switch kind {
	case Label:
		return LabelName(local)
	case RelationshipType:
		return RelationshipName(local)
	case PropertyKey:
		return PropertyName(local)
	}
	return local
}

// Expand maps an element name back to an IRI. It succeeds for KEEP names,
// SHORTEN names whose prefix is bound, and mapped names under MAP.
func (r *Resolver) Expand(name string) (string, bool) {
	switch r.mode {
	case config.VocabKeep:
		return name, looksAbsolute(name)
	case config.VocabShorten, config.VocabShortenStrict:
		prefix, local, ok := strings.Cut(name, Separator)
		if !ok {
			return name, looksAbsolute(name)
		}
		ns, bound := r.prefixes.Namespace(prefix)
		if !bound {
			return "", false
		}
		return ns + local, true
	case config.VocabMap:
		if iri, ok := r.reverse[name]; ok {
			return iri, true
		}
	}
	return "", false
}

// looksAbsolute reports whether s carries a scheme.
func looksAbsolute(s string) bool {
	i := strings.IndexByte(s, ':')
	return i > 0 && !strings.ContainsAny(s[:i], "/#?")
}
