package iri

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// LabelName converts a local name to a label: UpperCamelCase.
//
//	LabelName("person_type") => "PersonType"
//	LabelName("person")      => "Person"
func LabelName(local string) string {
	var b strings.Builder
	for _, w := range splitWords(local) {
		b.WriteString(upperFirst(w))
	}
	return b.String()
}

// RelationshipName converts a local name to a relationship type: UPPER_SNAKE.
//
//	RelationshipName("knowsWell") => "KNOWS_WELL"
func RelationshipName(local string) string {
	words := splitWords(local)
	for i := range words {
		words[i] = strings.ToUpper(words[i])
	}
	return strings.Join(words, "_")
}

// PropertyName converts a local name to a property key: lowerCamelCase.
//
//	PropertyName("First_name") => "firstName"
func PropertyName(local string) string {
	words := splitWords(local)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(lowerFirst(words[0]))
	for _, w := range words[1:] {
		b.WriteString(upperFirst(w))
	}
	return b.String()
}

// splitWords splits on spaces, underscores, hyphens, dots and lower-to-upper
// camelCase boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder
	var prev rune

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || r == '_' || r == '-' || r == '.':
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
		prev = r
	}
	flush()
	return words
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
