package rdfimport

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/literal"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
)

// BlankNodeScheme prefixes blank node ids so they can be stored as uris.
// Importer runs add their run id, so a label reused by a later document
// names a different node.
const BlankNodeScheme = "bnode://"

// AccumulatorOptions configures an Accumulator.
type AccumulatorOptions struct {
	Graph    config.GraphConfig
	Parser   config.ParserConfig
	Resolver *iri.Resolver
	Sink     Sink
	// RunID scopes blank node labels to one run.
	RunID string

	// Warnings collects result warnings; one is created when nil.
	Warnings *Warnings
	Metrics  *Metrics
	Logger   log.FieldLogger
}

// Accumulator classifies statements into a pending batch and hands the batch
// to its sink every CommitSize mapped statements and at end of stream.
//
// It is driven by a single goroutine.
type Accumulator struct {
	types      config.RDFTypesHandling
	arrayMode  bool
	multival   map[string]struct{}
	excluded   map[string]struct{}
	commitSize int
	limit      int
	verifyURIs bool
	abortOnErr bool
	strict     bool

	bnodes   string
	resolver *iri.Resolver
	coercer  *literal.Coercer
	sink     Sink
	buf      *Buffer
	warnings *Warnings
	metrics  *Metrics
	log      log.FieldLogger

	parsed      int64
	mapped      int64
	loaded      int64
	uncommitted int64
	sinceFlush  int
	batch       int
	namespaces  int
}

// NewAccumulator creates an accumulator. Resolver and Sink are required.
func NewAccumulator(opts AccumulatorOptions) *Accumulator {
	if opts.Warnings == nil {
		opts.Warnings = newWarnings()
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	commitSize := opts.Parser.CommitSize
	if commitSize <= 0 {
		commitSize = config.DefaultCommitSize
	}
	bnodes := BlankNodeScheme
	if opts.RunID != "" {
		bnodes += opts.RunID + "-"
	}
	return &Accumulator{
		types:      opts.Graph.HandleRDFTypes,
		arrayMode:  opts.Graph.HandleMultival == config.MultivalArray,
		multival:   config.StringSet(opts.Parser.MultivalPropList),
		excluded:   config.StringSet(opts.Parser.PredicateExclusionList),
		commitSize: commitSize,
		limit:      opts.Parser.Limit,
		verifyURIs: opts.Parser.VerifyURISyntax,
		abortOnErr: opts.Parser.AbortOnError,
		strict:     opts.Parser.StrictDataTypeCheck,
		bnodes:     bnodes,
		resolver:   opts.Resolver,
		coercer:    literal.New(opts.Graph, opts.Parser, opts.Resolver),
		sink:       opts.Sink,
		buf:        newBuffer(),
		warnings:   opts.Warnings,
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}
}

// Handle classifies one statement. It returns ErrCancelled, without
// consuming the statement, once Limit statements have been handled.
func (a *Accumulator) Handle(ctx context.Context, s rdfio.Statement) error {
	if a.limit > 0 && a.parsed >= int64(a.limit) {
		return ErrCancelled
	}
	a.parsed++
	a.metrics.recordParsed()

	if a.verifyURIs {
		if bad, ok := invalidIRI(s); ok {
			err := fmt.Errorf("invalid IRI %q in statement %d", bad, a.parsed)
			if a.abortOnErr {
				return newError(KindParseError, "verify uri syntax", err)
			}
			a.skip(err)
			return nil
		}
	}
	if _, skip := a.excluded[s.Predicate]; skip {
		return nil
	}

	mapped, err := a.classify(s)
	if err != nil {
		err = newError(KindOf(err), "map statement", err)
		if a.abortOnErr {
			return err
		}
		a.skip(err)
		return nil
	}
	if !mapped {
		return nil
	}

	a.mapped++
	a.uncommitted++
	a.sinceFlush++
	a.metrics.recordMapped()
	if a.sinceFlush >= a.commitSize {
		return a.Flush(ctx, false)
	}
	return nil
}

func (a *Accumulator) skip(err error) {
	a.warnings.Add("statement skipped: %v", err)
	a.log.WithError(err).Warn("Skipping statement")
}

func (a *Accumulator) classify(s rdfio.Statement) (bool, error) {
	switch {
	case s.Subject.IsTriple():
		return a.annotation(s)
	case s.Object.IsLiteral():
		return a.datatypeProperty(s)
	case s.Predicate == namespace.RDFType && s.Object.IsIRI() && a.types.ProducesLabels():
		return a.typeAssertion(s)
	case s.Object.IsTriple():
		// a quoted triple in object position has no graph form
		return false, nil
	}
	return a.objectProperty(s.Subject, s.Predicate, s.Object)
}

// annotation maps << s p o >> q "v" onto a property of the (s, p, o)
// relationship.
func (a *Accumulator) annotation(s rdfio.Statement) (bool, error) {
	q := s.Subject.Quoted
	if !s.Object.IsLiteral() || q.Predicate == namespace.RDFType ||
		q.Subject.IsTriple() || q.Object.IsLiteral() || q.Object.IsTriple() {
		return false, nil
	}

	value, ok, err := a.coercer.Coerce(s.Predicate, s.Object.Value, s.Object.Datatype, s.Object.Lang)
	if err != nil || !ok {
		return false, err
	}
	relType, err := a.resolver.Resolve(q.Predicate, iri.RelationshipType)
	if err != nil {
		return false, err
	}
	key, err := a.resolver.Resolve(s.Predicate, iri.PropertyKey)
	if err != nil {
		return false, err
	}

	start, end := a.nodeURI(q.Subject), a.nodeURI(q.Object)
	a.buf.node(start)
	a.buf.node(end)
	rel := a.buf.relationship(RelKey{Start: start, Type: relType, End: end})
	if rel.Properties == nil {
		rel.Properties = make(map[string]any)
	}
	a.setProperty("relationship", rel.Properties, s.Predicate, key, value)
	return true, nil
}

func (a *Accumulator) datatypeProperty(s rdfio.Statement) (bool, error) {
	value, ok, err := a.coercer.Coerce(s.Predicate, s.Object.Value, s.Object.Datatype, s.Object.Lang)
	if err != nil || !ok {
		return false, err
	}
	key, err := a.resolver.Resolve(s.Predicate, iri.PropertyKey)
	if err != nil {
		return false, err
	}
	if key == URIProperty {
		a.warnings.Add("property %s resolves to the reserved key %q and was ignored", s.Predicate, URIProperty)
		return false, nil
	}

	n := a.buf.node(a.nodeURI(s.Subject))
	a.setProperty("node", n.Properties, s.Predicate, key, value)
	return true, nil
}

func (a *Accumulator) typeAssertion(s rdfio.Statement) (bool, error) {
	label, err := a.resolver.Resolve(s.Object.Value, iri.Label)
	if err != nil {
		return false, err
	}
	var relType string
	if a.types.ProducesNodes() {
		if relType, err = a.resolver.Resolve(namespace.RDFType, iri.RelationshipType); err != nil {
			return false, err
		}
	}

	subject := a.nodeURI(s.Subject)
	a.buf.node(subject).addLabel(label)
	if a.types.ProducesNodes() {
		a.buf.node(s.Object.Value)
		a.buf.relationship(RelKey{Start: subject, Type: relType, End: s.Object.Value})
	}
	return true, nil
}

func (a *Accumulator) objectProperty(subject rdfio.Term, predicate string, object rdfio.Term) (bool, error) {
	relType, err := a.resolver.Resolve(predicate, iri.RelationshipType)
	if err != nil {
		return false, err
	}
	start, end := a.nodeURI(subject), a.nodeURI(object)
	a.buf.node(start)
	a.buf.node(end)
	a.buf.relationship(RelKey{Start: start, Type: relType, End: end})
	return true, nil
}

// setProperty stores value under key.
//
// Under strict checking values are appended as they come, duplicates
// included: whether one clashes depends on what the store already holds, so
// the sink settles it and reports the drops from OnFlush.
func (a *Accumulator) setProperty(where string, props map[string]any, predicate, key string, value any) {
	switch {
	case !a.isMultivalued(predicate, key):
		props[key] = value
	case a.strict:
		props[key] = append(asList(props[key]), value)
	default:
		outcome, _ := mergeProperty(props, key, []any{value}, false)
		a.warnings.heterogeneous(where, key, outcome)
	}
}

func (a *Accumulator) isMultivalued(predicate, key string) bool {
	if !a.arrayMode {
		return false
	}
	if a.multival == nil {
		return true
	}
	_, byIRI := a.multival[predicate]
	_, byName := a.multival[key]
	return byIRI || byName
}

// Flush hands the pending batch to the sink. A non-final flush of an empty
// batch does nothing.
func (a *Accumulator) Flush(ctx context.Context, final bool) error {
	if !final && a.buf.Empty() {
		a.sinceFlush = 0
		return nil
	}
	a.batch++
	logger := a.log.WithFields(log.Fields{"batch": a.batch, "triplesMapped": a.mapped})
	logger.Debug("Flushing batch")

	start := time.Now()
	res, err := a.drain(ctx, final)
	elapsed := time.Since(start)
	a.metrics.recordFlush(elapsed, err)
	if err != nil {
		a.Discard()
		logger.WithError(err).Error("Flush failed")
		return newError(KindPartialCommit, fmt.Sprintf("flush batch %d", a.batch), err)
	}

	a.buf.reset()
	a.sinceFlush = 0
	a.namespaces += res.Namespaces
	if res.Dropped > 0 {
		a.mapped -= int64(res.Dropped)
		a.uncommitted -= int64(res.Dropped)
		a.metrics.recordDropped(res.Dropped)
	}
	if res.Durable {
		a.loaded += a.uncommitted
		a.uncommitted = 0
		logger.WithFields(log.Fields{"triplesLoaded": a.loaded, "duration": elapsed}).Info("Batch committed")
	}
	return nil
}

func (a *Accumulator) drain(ctx context.Context, final bool) (FlushResult, error) {
	for _, n := range a.buf.Nodes() {
		if err := a.sink.OnNodeReady(n); err != nil {
			return FlushResult{}, err
		}
	}
	for _, r := range a.buf.Relationships() {
		if err := a.sink.OnRelationshipReady(r); err != nil {
			return FlushResult{}, err
		}
	}
	return a.sink.OnFlush(ctx, final)
}

// Discard drops the pending batch and whatever the sink holds for it.
func (a *Accumulator) Discard() {
	a.buf.reset()
	a.sinceFlush = 0
	a.uncommitted = 0
	if ab, ok := a.sink.(Aborter); ok {
		ab.Abort()
	}
}

// Parsed returns the number of statements handled.
func (a *Accumulator) Parsed() int64 { return a.parsed }

// Mapped returns the number of statements mapped onto the graph.
func (a *Accumulator) Mapped() int64 { return a.mapped }

// Loaded returns the number of mapped statements durably stored.
func (a *Accumulator) Loaded() int64 { return a.loaded }

// NamespacesPersisted returns how many prefix bindings flushes persisted.
func (a *Accumulator) NamespacesPersisted() int { return a.namespaces }

// Warnings returns the warning collector.
func (a *Accumulator) Warnings() *Warnings { return a.warnings }

func (a *Accumulator) nodeURI(t rdfio.Term) string {
	if t.IsBlank() {
		return a.bnodes + t.Value
	}
	return t.Value
}

// invalidIRI returns the first IRI of s that is not an absolute IRI.
func invalidIRI(s rdfio.Statement) (string, bool) {
	if !validIRI(s.Predicate) {
		return s.Predicate, true
	}
	for _, t := range []rdfio.Term{s.Subject, s.Object} {
		switch {
		case t.IsIRI():
			if !validIRI(t.Value) {
				return t.Value, true
			}
		case t.IsTriple():
			if bad, ok := invalidIRI(*t.Quoted); ok {
				return bad, true
			}
		}
	}
	return "", false
}

// validIRI checks for a scheme and for characters IRIs may not contain.
func validIRI(s string) bool {
	colon := strings.IndexByte(s, ':')
	if colon < 1 {
		return false
	}
	for i := 0; i < colon; i++ {
		c := s[i]
		letter := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		if i == 0 && !letter {
			return false
		}
		if !letter && !(c >= '0' && c <= '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	for _, r := range s {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|\\^`", r) {
			return false
		}
	}
	return true
}
