package namespace

import "regexp"

var (
	// @prefix p: <ns> . (Turtle) and PREFIX p: <ns> (SPARQL, Turtle 1.1)
	turtlePrefixRe = regexp.MustCompile(`(?i)@?prefix\s+([A-Za-z][\w\-]*)?\s*:\s*<([^>\s]+)>`)
	// xmlns:p="ns" (RDF/XML)
	xmlnsPrefixRe = regexp.MustCompile(`xmlns:([A-Za-z][\w\-]*)\s*=\s*["']([^"'\s]+)["']`)
)

// Declaration is one prefix declaration found in a document.
type Declaration struct {
	Prefix    string
	Namespace string
}

// ParseDeclarations extracts prefix declarations from Turtle, SPARQL or
// RDF/XML text in document order. Default-namespace declarations (empty
// prefix) are ignored.
func ParseDeclarations(text string) []Declaration {
	var out []Declaration
	for _, re := range []*regexp.Regexp{turtlePrefixRe, xmlnsPrefixRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if m[1] == "" {
				continue
			}
			out = append(out, Declaration{Prefix: m[1], Namespace: m[2]})
		}
	}
	return out
}

// AddResult reports the outcome of adding one declaration.
type AddResult struct {
	Declaration
	Err error
}

// AddFromText adds every declaration found in text. A conflicting declaration
// is reported in its result and does not stop the others.
func (t *PrefixTable) AddFromText(text string) []AddResult {
	decls := ParseDeclarations(text)
	results := make([]AddResult, 0, len(decls))
	for _, d := range decls {
		results = append(results, AddResult{Declaration: d, Err: t.Add(d.Prefix, d.Namespace)})
	}
	return results
}
