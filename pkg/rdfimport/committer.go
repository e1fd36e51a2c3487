package rdfimport

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/cache"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// DirectLoaderOptions configures a DirectLoader.
type DirectLoaderOptions struct {
	Engine storage.Engine
	// Prefixes is the table the resolver allocates into. Pending bindings
	// are persisted with each commit when Shortens is set.
	Prefixes *namespace.PrefixTable
	Shortens bool

	// SingleTx keeps one transaction open for the whole import.
	SingleTx bool
	// Strict drops values that would make a stored list heterogeneous.
	Strict    bool
	CacheSize int

	RunID    string
	Warnings *Warnings
	Metrics  *Metrics
	Logger   log.FieldLogger
}

// DirectLoader is the sink of Import. It upserts each batch into the store
// inside one transaction and commits it on flush.
type DirectLoader struct {
	engine   storage.Engine
	prefixes *namespace.PrefixTable
	shortens bool
	singleTx bool
	strict   bool
	runID    string

	cache    *cache.NodeCache
	warnings *Warnings
	log      log.FieldLogger

	tx      storage.Tx
	commits int
	// dropped counts strict drops since the last OnFlush.
	dropped int
}

// NewDirectLoader creates a direct load sink.
func NewDirectLoader(opts DirectLoaderOptions) *DirectLoader {
	if opts.Prefixes == nil {
		opts.Prefixes = namespace.NewPrefixTable()
	}
	if opts.Warnings == nil {
		opts.Warnings = newWarnings()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = config.DefaultNodeCacheSize
	}
	return &DirectLoader{
		engine:   opts.Engine,
		prefixes: opts.Prefixes,
		shortens: opts.Shortens,
		singleTx: opts.SingleTx,
		strict:   opts.Strict,
		runID:    opts.RunID,
		cache:    cache.NewNodeCache(opts.CacheSize).WithMetrics(opts.Metrics.cacheCounters()),
		warnings: opts.Warnings,
		log:      opts.Logger,
	}
}

func (d *DirectLoader) begin() (storage.Tx, error) {
	if d.tx != nil {
		return d.tx, nil
	}
	tx, err := d.engine.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	d.tx = tx
	return tx, nil
}

// lookup finds the Resource node for uri through the cache, then the store.
func (d *DirectLoader) lookup(tx storage.Tx, uri string) (*storage.Node, error) {
	if id, ok := d.cache.Get(uri); ok {
		node, err := tx.GetNode(id)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		d.cache.Remove(uri)
	}
	node, err := tx.FindNode(ResourceLabel, URIProperty, uri)
	if err != nil {
		return nil, err
	}
	d.cache.Put(uri, node.ID)
	return node, nil
}

// OnNodeReady upserts the node by uri and merges its labels and properties.
func (d *DirectLoader) OnNodeReady(n *PendingNode) error {
	tx, err := d.begin()
	if err != nil {
		return err
	}

	node, err := d.lookup(tx, n.URI)
	created := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		node = newResource(storage.NewNodeID(), n.URI)
		created = true
	case err != nil:
		return fmt.Errorf("looking up %s: %w", n.URI, err)
	}
	if node.Properties == nil {
		node.Properties = make(map[string]any)
	}

	changed := created || len(n.Properties) > 0
	for _, label := range n.Labels {
		if node.AddLabel(label) {
			changed = true
		}
	}
	d.dropped += mergeProperties(node.Properties, n.Properties, d.strict, "node "+n.URI, d.warnings)

	switch {
	case created:
		err = tx.CreateNode(node)
	case changed:
		err = tx.UpdateNode(node)
	}
	if err != nil {
		return fmt.Errorf("writing node %s: %w", n.URI, err)
	}
	d.cache.Put(n.URI, node.ID)
	return nil
}

// OnRelationshipReady creates the relationship unless one of the same type
// already joins the two nodes, then merges its properties.
func (d *DirectLoader) OnRelationshipReady(r *PendingRelationship) error {
	tx, err := d.begin()
	if err != nil {
		return err
	}
	start, err := d.lookup(tx, r.Key.Start)
	if err != nil {
		return fmt.Errorf("relationship start %s: %w", r.Key.Start, err)
	}
	end, err := d.lookup(tx, r.Key.End)
	if err != nil {
		return fmt.Errorf("relationship end %s: %w", r.Key.End, err)
	}

	edge, err := existingEdge(tx, start.ID, r.Key.Type, end.ID)
	if err != nil {
		return err
	}
	if edge == nil {
		edge = &storage.Edge{
			ID:         storage.EdgeIDFor(start.ID, r.Key.Type, end.ID),
			StartNode:  start.ID,
			EndNode:    end.ID,
			Type:       r.Key.Type,
			Properties: make(map[string]any),
		}
		d.dropped += mergeProperties(edge.Properties, r.Properties, d.strict, "relationship "+r.Key.Type, d.warnings)
		if err := tx.CreateEdge(edge); err != nil {
			return fmt.Errorf("creating %s relationship: %w", r.Key.Type, err)
		}
		return nil
	}

	if len(r.Properties) == 0 {
		return nil
	}
	if edge.Properties == nil {
		edge.Properties = make(map[string]any)
	}
	d.dropped += mergeProperties(edge.Properties, r.Properties, d.strict, "relationship "+r.Key.Type, d.warnings)
	if err := tx.UpdateEdge(edge); err != nil {
		return fmt.Errorf("updating %s relationship: %w", r.Key.Type, err)
	}
	return nil
}

// existingEdge scans the side of the pair with fewer relationships of the
// type.
func existingEdge(tx storage.Tx, start storage.NodeID, relType string, end storage.NodeID) (*storage.Edge, error) {
	node, other, dir := start, end, storage.Outgoing
	if tx.Degree(end, relType, storage.Incoming) < tx.Degree(start, relType, storage.Outgoing) {
		node, other, dir = end, start, storage.Incoming
	}
	edges, err := tx.EdgesOfType(node, relType, dir)
	if err != nil {
		return nil, fmt.Errorf("probing %s relationships: %w", relType, err)
	}
	for _, e := range edges {
		if dir == storage.Outgoing && e.EndNode == other || dir == storage.Incoming && e.StartNode == other {
			return e, nil
		}
	}
	return nil, nil
}

// OnFlush commits the open transaction together with newly allocated
// prefixes. In single transaction mode only the final flush commits.
func (d *DirectLoader) OnFlush(ctx context.Context, final bool) (FlushResult, error) {
	if err := ctx.Err(); err != nil {
		return FlushResult{}, err
	}
	dropped := d.dropped
	d.dropped = 0
	if d.singleTx && !final {
		return FlushResult{Dropped: dropped}, nil
	}

	namespaces := 0
	if d.shortens && d.prefixes.PendingCount() > 0 {
		tx, err := d.begin()
		if err != nil {
			return FlushResult{}, err
		}
		namespaces = d.prefixes.PendingCount()
		if err := d.prefixes.Save(tx); err != nil {
			return FlushResult{}, err
		}
	}
	if d.tx == nil {
		return FlushResult{Durable: true, Dropped: dropped}, nil
	}

	d.commits++
	tx := d.tx
	d.tx = nil
	if err := tx.SetMetadata(map[string]any{"run": d.runID, "commit": d.commits}); err != nil {
		_ = tx.Rollback()
		return FlushResult{}, err
	}
	ops := tx.OperationCount()
	if err := tx.Commit(); err != nil {
		return FlushResult{}, fmt.Errorf("committing: %w", err)
	}
	d.prefixes.MarkSynced()
	d.log.WithFields(log.Fields{"commit": d.commits, "operations": ops}).Debug("Transaction committed")
	return FlushResult{Durable: true, Namespaces: namespaces, Dropped: dropped}, nil
}

// Abort rolls back the open transaction. Cached ids may point at nodes that
// were never committed, so the cache is cleared too.
func (d *DirectLoader) Abort() {
	if d.tx != nil {
		if err := d.tx.Rollback(); err != nil && !errors.Is(err, storage.ErrTransactionClosed) {
			d.log.WithError(err).Warn("Rollback failed")
		}
		d.tx = nil
	}
	d.dropped = 0
	d.cache.Clear()
}

// CacheStats returns the node identity cache statistics.
func (d *DirectLoader) CacheStats() cache.Stats {
	return d.cache.Stats()
}

func newResource(id storage.NodeID, uri string) *storage.Node {
	return &storage.Node{
		ID:         id,
		Labels:     []string{ResourceLabel},
		Properties: map[string]any{URIProperty: uri},
	}
}
