// Package namespace maintains the bijection between namespace prefixes and
// namespace IRIs used to shorten vocabulary IRIs into graph element names.
//
// A PrefixTable is loaded from the store when an import starts, grows as new
// namespaces are met, and is written back at commit boundaries as the single
// _NsPrefDef node:
//
//	table := namespace.NewPrefixTable()
//	if err := table.Load(engine); err != nil {
//		return err
//	}
//	prefix, _ := table.GetOrAllocate("http://example.org/vocab#") // "ns0"
//	_ = table.Save(tx)
package namespace

import "strings"

// Well-known vocabulary namespaces.
const (
	RDF   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS  = "http://www.w3.org/2000/01/rdf-schema#"
	OWL   = "http://www.w3.org/2002/07/owl#"
	SKOS  = "http://www.w3.org/2004/02/skos/core#"
	XSD   = "http://www.w3.org/2001/XMLSchema#"
	SHACL = "http://www.w3.org/ns/shacl#"

	// RDFType is the predicate that drives label assignment.
	RDFType = RDF + "type"
)

// wellKnown maps vocabulary namespaces to their canonical prefix.
var wellKnown = map[string]string{
	RDF:                                     "rdf",
	RDFS:                                    "rdfs",
	OWL:                                     "owl",
	SKOS:                                    "skos",
	"http://schema.org/":                    "sch",
	SHACL:                                   "sh",
	"http://purl.org/dc/elements/1.1/":      "dc",
	"http://purl.org/dc/terms/":             "dct",
	XSD:                                     "xsd",
	"http://xmlns.com/foaf/0.1/":            "foaf",
	"http://www.w3.org/2006/vcard/ns#":      "vcard",
	"http://www.w3.org/ns/prov#":            "prov",
	"http://www.w3.org/ns/dcat#":            "dcat",
	"http://www.opengis.net/ont/geosparql#": "geo",
	"http://www.w3.org/2003/01/geo/wgs84_pos#": "wgs",
	"http://rdfs.org/ns/void#":                 "void",
}

// WellKnownPrefix returns the canonical prefix of a well-known namespace.
func WellKnownPrefix(ns string) (string, bool) {
	p, ok := wellKnown[ns]
	return p, ok
}

// SplitIRI splits an IRI into namespace and local name. The local name starts
// after the last '#', else after the last '/', else after the last ':'. An IRI
// with none of these has an empty namespace.
func SplitIRI(iri string) (ns, local string) {
	i := strings.LastIndexByte(iri, '#')
	if i < 0 {
		i = strings.LastIndexByte(iri, '/')
	}
	if i < 0 {
		i = strings.LastIndexByte(iri, ':')
	}
	if i < 0 {
		return "", iri
	}
	return iri[:i+1], iri[i+1:]
}

// LocalName returns the local part of iri.
func LocalName(iri string) string {
	_, local := SplitIRI(iri)
	return local
}
