// Package literal coerces RDF literals into native property values.
//
//	xsd:integer family         -> int64
//	xsd:decimal/float/double   -> float64
//	xsd:boolean                -> bool
//	xsd:date                   -> storage.Date
//	xsd:dateTime               -> time.Time
//	xsd:string, rdf:langString -> string (optionally "value@lang")
//	anything else              -> string (optionally "value^^datatype")
//
// Lexical forms that do not parse for their datatype fall back to the raw
// string. Coercion never fails for data reasons.
package literal

import (
	"strconv"
	"strings"
	"time"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// CustomDataTypeSeparator joins a value and its datatype name.
const CustomDataTypeSeparator = "^^"

// RDFLangString is the datatype of language-tagged literals.
const RDFLangString = namespace.RDF + "langString"

type kind int

const (
	kindString kind = iota
	kindInteger
	kindFloat
	kindBoolean
	kindDate
	kindDateTime
)

var xsdKinds = map[string]kind{
	"string":             kindString,
	"normalizedString":   kindString,
	"token":              kindString,
	"integer":            kindInteger,
	"int":                kindInteger,
	"long":               kindInteger,
	"short":              kindInteger,
	"byte":               kindInteger,
	"nonNegativeInteger": kindInteger,
	"nonPositiveInteger": kindInteger,
	"positiveInteger":    kindInteger,
	"negativeInteger":    kindInteger,
	"unsignedLong":       kindInteger,
	"unsignedInt":        kindInteger,
	"unsignedShort":      kindInteger,
	"unsignedByte":       kindInteger,
	"decimal":            kindFloat,
	"float":              kindFloat,
	"double":             kindFloat,
	"boolean":            kindBoolean,
	"date":               kindDate,
	"dateTime":           kindDateTime,
	"dateTimeStamp":      kindDateTime,
}

// builtin returns the kind of a datatype the coercer understands natively.
func builtin(datatype string) (kind, bool) {
	switch {
	case datatype == "", datatype == RDFLangString:
		return kindString, true
	case strings.HasPrefix(datatype, namespace.XSD):
		k, ok := xsdKinds[datatype[len(namespace.XSD):]]
		return k, ok
	}
	return 0, false
}

// Coercer converts literals for one import.
type Coercer struct {
	keepLangTag         bool
	keepCustomDataTypes bool
	languageFilter      string
	customProps         map[string]struct{}
	resolver            *iri.Resolver
}

// New creates a coercer. resolver names custom datatypes; it may be nil when
// custom datatypes are not kept.
func New(g config.GraphConfig, p config.ParserConfig, resolver *iri.Resolver) *Coercer {
	keepCustom := g.KeepCustomDataTypes &&
		g.HandleVocabURIs != config.VocabIgnore &&
		g.HandleVocabURIs != config.VocabMap
	return &Coercer{
		keepLangTag:         g.KeepLangTag,
		keepCustomDataTypes: keepCustom && resolver != nil,
		languageFilter:      p.LanguageFilter,
		customProps:         config.StringSet(p.CustomDataTypePropList),
		resolver:            resolver,
	}
}

// Accepts reports whether a literal with this language tag passes the
// language filter. Untagged literals always pass.
func (c *Coercer) Accepts(lang string) bool {
	return lang == "" || c.languageFilter == "" || strings.EqualFold(lang, c.languageFilter)
}

// Coerce converts one literal of property. ok is false when the literal is
// filtered out by language. err is only returned when naming a custom
// datatype fails (SHORTEN_STRICT without a prefix).
func (c *Coercer) Coerce(property, lexical, datatype, lang string) (value any, ok bool, err error) {
	if lang != "" {
		if !c.Accepts(lang) {
			return nil, false, nil
		}
		if c.keepLangTag {
			return lexical + "@" + lang, true, nil
		}
		return lexical, true, nil
	}

	k, known := builtin(datatype)
	if !known {
		return c.custom(property, lexical, datatype)
	}
	switch k {
	case kindInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(lexical), 10, 64); err == nil {
			return n, true, nil
		}
	case kindFloat:
		if f, err := strconv.ParseFloat(strings.TrimSpace(lexical), 64); err == nil {
			return f, true, nil
		}
	case kindBoolean:
		switch strings.TrimSpace(lexical) {
		case "true", "1":
			return true, true, nil
		case "false", "0":
			return false, true, nil
		}
	case kindDate:
		if d, ok := parseDate(lexical); ok {
			return d, true, nil
		}
	case kindDateTime:
		if t, ok := parseDateTime(lexical); ok {
			return t, true, nil
		}
	}
	return lexical, true, nil
}

func (c *Coercer) custom(property, lexical, datatype string) (any, bool, error) {
	if !c.keepCustomDataTypes {
		return lexical, true, nil
	}
	if c.customProps != nil {
		if _, allowed := c.customProps[property]; !allowed {
			return lexical, true, nil
		}
	}
	name, err := c.resolver.Resolve(datatype, iri.Datatype)
	if err != nil {
		return nil, false, err
	}
	return lexical + CustomDataTypeSeparator + name, true, nil
}

// SplitCustom splits a "value^^datatype" string.
func SplitCustom(s string) (value, datatype string, ok bool) {
	i := strings.LastIndex(s, CustomDataTypeSeparator)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(CustomDataTypeSeparator):], true
}

// parseDate tries a plain calendar date, then a date with a zone suffix.
func parseDate(s string) (storage.Date, bool) {
	s = strings.TrimSpace(s)
	if d, err := storage.ParseDate(s); err == nil {
		return d, true
	}
	if t, err := time.Parse("2006-01-02Z07:00", s); err == nil {
		return storage.DateOf(t), true
	}
	return storage.Date{}, false
}

// parseDateTime tries RFC 3339, then a local date-time without zone (taken
// as UTC).
func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}
