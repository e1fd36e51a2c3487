package rdfimport

import (
	"errors"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// LoadPrefixes reads the persisted namespace prefix table.
func LoadPrefixes(engine storage.Engine) (*namespace.PrefixTable, error) {
	t := namespace.NewPrefixTable()
	if err := t.Load(engine); err != nil {
		return nil, err
	}
	return t, nil
}

func savePrefixes(engine storage.Engine, t *namespace.PrefixTable) error {
	if err := t.Save(engine); err != nil {
		return err
	}
	t.MarkSynced()
	return nil
}

// AddPrefix binds prefix to ns and persists the table. It returns the
// resulting bindings.
func AddPrefix(engine storage.Engine, prefix, ns string) (map[string]string, error) {
	t, err := LoadPrefixes(engine)
	if err != nil {
		return nil, err
	}
	if err := t.Add(prefix, ns); err != nil {
		return nil, newError(KindNamespacePrefixConflict, "add prefix", err)
	}
	if err := savePrefixes(engine, t); err != nil {
		return nil, err
	}
	return t.All(), nil
}

// RemovePrefix unbinds prefix. It is refused once the graph holds imported
// resources, whose names may use it.
func RemovePrefix(engine storage.Engine, prefix string) (map[string]string, error) {
	if err := requireEmpty(engine, "remove prefix"); err != nil {
		return nil, err
	}
	t, err := LoadPrefixes(engine)
	if err != nil {
		return nil, err
	}
	if err := t.Remove(prefix); err != nil {
		if errors.Is(err, namespace.ErrUnknownPrefix) {
			return nil, newError(KindBadParams, "remove prefix", err)
		}
		return nil, err
	}
	if err := savePrefixes(engine, t); err != nil {
		return nil, err
	}
	return t.All(), nil
}

// RemoveAllPrefixes clears the table, with the same guard as RemovePrefix.
func RemoveAllPrefixes(engine storage.Engine) error {
	if err := requireEmpty(engine, "remove all prefixes"); err != nil {
		return err
	}
	return savePrefixes(engine, namespace.NewPrefixTable())
}

// ListPrefixes returns prefix -> namespace.
func ListPrefixes(engine storage.Engine) (map[string]string, error) {
	t, err := LoadPrefixes(engine)
	if err != nil {
		return nil, err
	}
	return t.All(), nil
}

// AddPrefixesFromText adds every prefix declaration found in a Turtle,
// SPARQL or RDF/XML fragment. Conflicts are reported per declaration; the
// rest are persisted.
func AddPrefixesFromText(engine storage.Engine, text string) ([]namespace.AddResult, error) {
	t, err := LoadPrefixes(engine)
	if err != nil {
		return nil, err
	}
	results := t.AddFromText(text)
	for i := range results {
		if results[i].Err != nil {
			results[i].Err = newError(KindNamespacePrefixConflict, "add prefix "+results[i].Prefix, results[i].Err)
		}
	}
	if t.PendingCount() == 0 {
		return results, nil
	}
	return results, savePrefixes(engine, t)
}
