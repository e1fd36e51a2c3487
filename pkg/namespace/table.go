package namespace

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

var (
	// ErrPrefixConflict is returned when an add would break the bijection.
	ErrPrefixConflict = errors.New("namespace prefix conflict")
	// ErrInvalidPrefix is returned for prefixes that are not valid names.
	ErrInvalidPrefix = errors.New("invalid namespace prefix")
	// ErrUnknownPrefix is returned when removing a prefix that is not bound.
	ErrUnknownPrefix = errors.New("unknown namespace prefix")
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_\-]*$`)

// PrefixTable is a bijection between prefixes and namespaces.
//
// Entries added since the last MarkSynced are tracked so the committer can
// report how many namespaces a flush persisted.
type PrefixTable struct {
	mu       sync.RWMutex
	byPrefix map[string]string
	byNS     map[string]string
	next     int
	pending  map[string]struct{}
}

// NewPrefixTable returns an empty table.
func NewPrefixTable() *PrefixTable {
	return &PrefixTable{
		byPrefix: make(map[string]string),
		byNS:     make(map[string]string),
		pending:  make(map[string]struct{}),
	}
}

// Add binds prefix to ns. Re-adding an existing pair is a no-op; any other
// overlap fails with ErrPrefixConflict and leaves the table unchanged.
func (t *PrefixTable) Add(prefix, ns string) error {
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	if ns == "" {
		return fmt.Errorf("%w: empty namespace for prefix %q", ErrInvalidPrefix, prefix)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(prefix, ns)
}

func (t *PrefixTable) addLocked(prefix, ns string) error {
	boundNS, prefixTaken := t.byPrefix[prefix]
	boundPrefix, nsTaken := t.byNS[ns]
	if prefixTaken && boundNS == ns {
		return nil
	}
	if prefixTaken {
		return fmt.Errorf("%w: prefix %q is already bound to %s", ErrPrefixConflict, prefix, boundNS)
	}
	if nsTaken {
		return fmt.Errorf("%w: namespace %s already has prefix %q", ErrPrefixConflict, ns, boundPrefix)
	}

	t.byPrefix[prefix] = ns
	t.byNS[ns] = prefix
	t.pending[prefix] = struct{}{}
	return nil
}

// Prefix returns the prefix bound to ns.
func (t *PrefixTable) Prefix(ns string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byNS[ns]
	return p, ok
}

// Namespace returns the namespace bound to prefix.
func (t *PrefixTable) Namespace(prefix string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ns, ok := t.byPrefix[prefix]
	return ns, ok
}

// GetOrAllocate returns the prefix of ns, binding a new one when missing.
// Well-known namespaces get their canonical prefix when it is free; all
// others get the next unused ns0, ns1, ... in order.
func (t *PrefixTable) GetOrAllocate(ns string) (string, error) {
	if ns == "" {
		return "", fmt.Errorf("%w: empty namespace", ErrInvalidPrefix)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.byNS[ns]; ok {
		return p, nil
	}
	if p, ok := wellKnown[ns]; ok {
		if _, taken := t.byPrefix[p]; !taken {
			return p, t.addLocked(p, ns)
		}
	}
	for {
		p := "ns" + strconv.Itoa(t.next)
		t.next++
		if _, taken := t.byPrefix[p]; !taken {
			return p, t.addLocked(p, ns)
		}
	}
}

// Remove unbinds prefix.
func (t *PrefixTable) Remove(prefix string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ns, ok := t.byPrefix[prefix]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}
	delete(t.byPrefix, prefix)
	delete(t.byNS, ns)
	delete(t.pending, prefix)
	return nil
}

// RemoveAll empties the table and restarts ns<N> allocation.
func (t *PrefixTable) RemoveAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byPrefix = make(map[string]string)
	t.byNS = make(map[string]string)
	t.pending = make(map[string]struct{})
	t.next = 0
}

// Len returns the number of bindings.
func (t *PrefixTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byPrefix)
}

// All returns a copy of the prefix to namespace map.
func (t *PrefixTable) All() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string, len(t.byPrefix))
	for p, ns := range t.byPrefix {
		out[p] = ns
	}
	return out
}

// Prefixes returns the bound prefixes in sorted order.
func (t *PrefixTable) Prefixes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.byPrefix))
	for p := range t.byPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PendingCount returns how many bindings were added since the last sync.
func (t *PrefixTable) PendingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}

// MarkSynced clears the pending set after the table was persisted.
func (t *PrefixTable) MarkSynced() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[string]struct{})
}

// Clone returns an independent copy, pending set included.
func (t *PrefixTable) Clone() *PrefixTable {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := NewPrefixTable()
	for p, ns := range t.byPrefix {
		c.byPrefix[p] = ns
		c.byNS[ns] = p
	}
	for p := range t.pending {
		c.pending[p] = struct{}{}
	}
	c.next = t.next
	return c
}
