package rdfimport

import (
	"fmt"
	"sync"
	"time"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/literal"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// valueType names the native type of a scalar property value.
func valueType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "boolean"
	case storage.Date:
		return "date"
	case time.Time:
		return "datetime"
	}
	return fmt.Sprintf("%T", v)
}

// asList views a stored property value as a list.
func asList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	}
	return []any{v}
}

func stringify(v any) any {
	if s, ok := v.(string); ok {
		return s
	}
	lex, _ := literal.Lexical(v)
	return lex
}

// unionOutcome reports what unionValues had to do about mixed types.
type unionOutcome int

const (
	unionClean unionOutcome = iota
	// unionStringified: mixed types, the whole list was converted to strings.
	unionStringified
	// unionDropped: mixed types, the offending additions were dropped.
	unionDropped
)

// unionValues adds additions to existing with set semantics. Lists stay
// homogeneous: on a type clash the list is converted to strings, or under
// strict checking the clashing additions are dropped. It also returns how
// many additions were dropped.
func unionValues(existing, additions []any, strict bool) ([]any, unionOutcome, int) {
	out := make([]any, 0, len(existing)+len(additions))
	seen := make(map[string]struct{}, len(existing)+len(additions))
	add := func(v any) {
		k := storage.ValueKey(v)
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	for _, v := range existing {
		add(v)
	}

	outcome := unionClean
	dropped := 0
	for _, v := range additions {
		if len(out) == 0 || valueType(out[0]) == valueType(v) {
			add(v)
			continue
		}
		if strict {
			outcome = unionDropped
			dropped++
			continue
		}
		outcome = unionStringified
		converted := out
		out = make([]any, 0, len(converted)+1)
		seen = make(map[string]struct{}, len(converted)+1)
		for _, c := range converted {
			add(stringify(c))
		}
		add(stringify(v))
	}
	return out, outcome, dropped
}

// mergeProperty applies one pending value to a property map. List values
// are unioned with what is there; scalars overwrite. It reports the union
// outcome for list values and how many list values were dropped.
func mergeProperty(props map[string]any, key string, value any, strict bool) (unionOutcome, int) {
	list, isList := value.([]any)
	if !isList {
		props[key] = value
		return unionClean, 0
	}
	merged, outcome, dropped := unionValues(asList(props[key]), list, strict)
	props[key] = merged
	return outcome, dropped
}

// mergeProperties merges every pending property into props, recording
// warnings, and returns how many values strict checking dropped.
func mergeProperties(props, pending map[string]any, strict bool, where string, warnings *Warnings) int {
	dropped := 0
	for key, value := range pending {
		outcome, n := mergeProperty(props, key, value, strict)
		warnings.heterogeneous(where, key, outcome)
		dropped += n
	}
	return dropped
}

// maxWarnings bounds the warnings kept in a Result.
const maxWarnings = 100

// Warnings collects distinct free-text warnings for the import result.
type Warnings struct {
	mu      sync.Mutex
	list    []string
	seen    map[string]struct{}
	dropped int
}

func newWarnings() *Warnings {
	return &Warnings{seen: make(map[string]struct{})}
}

// Add records a warning once.
func (w *Warnings) Add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[msg]; ok {
		return
	}
	w.seen[msg] = struct{}{}
	if len(w.list) >= maxWarnings {
		w.dropped++
		return
	}
	w.list = append(w.list, msg)
}

// List returns the collected warnings, with a trailing note when some were
// dropped.
func (w *Warnings) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]string(nil), w.list...)
	if w.dropped > 0 {
		out = append(out, fmt.Sprintf("%d more warnings not shown", w.dropped))
	}
	return out
}

func (w *Warnings) heterogeneous(where, key string, outcome unionOutcome) {
	switch outcome {
	case unionStringified:
		w.Add("%s: values of property %q have mixed datatypes; stored as strings", where, key)
	case unionDropped:
		w.Add("%s: values of property %q have mixed datatypes; conflicting values dropped", where, key)
	}
}
