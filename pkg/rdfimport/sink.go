package rdfimport

import "context"

// FlushResult is what a sink reports for one flush.
type FlushResult struct {
	// Durable is true when the batch is now permanently stored; only then
	// do its statements count as loaded.
	Durable bool
	// Namespaces is the number of prefix bindings persisted by the flush.
	Namespaces int
	// Dropped counts the list values of the batch that strict type checking
	// rejected. Each one is a statement no longer counted as mapped.
	Dropped int
}

// Sink consumes the accumulator's batches. For each flush the accumulator
// hands over every pending node, then every pending relationship, then calls
// OnFlush. Endpoints of a relationship are always handed over before it.
type Sink interface {
	OnNodeReady(n *PendingNode) error
	OnRelationshipReady(r *PendingRelationship) error
	// OnFlush ends a batch. final is set for the end-of-stream flush, which
	// is made even when the batch is empty.
	OnFlush(ctx context.Context, final bool) (FlushResult, error)
}

// Aborter is implemented by sinks holding state that must be discarded
// when a batch fails.
type Aborter interface {
	Abort()
}

// NoopSink writes nothing. Validation runs use it. It keeps no graph, so
// under strict checking clashes are found within each batch only.
type NoopSink struct {
	strict   bool
	warnings *Warnings
	dropped  int
}

// NewNoopSink creates a sink that only checks list value types.
func NewNoopSink(strict bool, warnings *Warnings) *NoopSink {
	if warnings == nil {
		warnings = newWarnings()
	}
	return &NoopSink{strict: strict, warnings: warnings}
}

func (s *NoopSink) OnNodeReady(n *PendingNode) error {
	s.check("node "+n.URI, n.Properties)
	return nil
}

func (s *NoopSink) OnRelationshipReady(r *PendingRelationship) error {
	s.check("relationship "+r.Key.Type, r.Properties)
	return nil
}

func (s *NoopSink) check(where string, pending map[string]any) {
	if s.strict {
		s.dropped += mergeProperties(make(map[string]any, len(pending)), pending, true, where, s.warnings)
	}
}

func (s *NoopSink) OnFlush(context.Context, bool) (FlushResult, error) {
	res := FlushResult{Dropped: s.dropped}
	s.dropped = 0
	return res, nil
}
