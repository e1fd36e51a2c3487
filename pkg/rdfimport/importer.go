// Package rdfimport maps RDF statements onto the labeled property graph.
//
// An import reads statements from a parser goroutine, classifies each one
// into a pending batch (Accumulator) and hands every batch to a Sink:
//   - DirectLoader upserts it into a storage.Engine (Import)
//   - Preview builds an in-memory graph (Preview)
//   - NoopSink discards it, so only counts and warnings remain (Validate)
//
// Stream bypasses the accumulator and re-serializes statements.
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//	_ = rdfimport.InitConstraint(engine)
//	_ = rdfimport.InitGraphConfig(engine, config.DefaultGraphConfig())
//
//	im := rdfimport.NewImporter(engine, rdfimport.Options{})
//	res, err := im.Import(ctx, file, rdfio.Turtle, config.DefaultParserConfig())
//	fmt.Println(res) // OK parsed=... mapped=... loaded=...
package rdfimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

// pipelineBuffer is the capacity of the parser to accumulator channel.
const pipelineBuffer = 1024

// Options configures an Importer.
type Options struct {
	Logger  log.FieldLogger
	Metrics *Metrics
	// Mappings overlay the persisted MAP mappings; these entries win.
	Mappings map[string]string
	Parse    rdfio.ParseOptions
}

// Importer runs imports against one store. Calls are independent; the store
// serializes concurrent writers.
type Importer struct {
	engine storage.Engine
	opts   Options
}

// NewImporter creates an importer for engine.
func NewImporter(engine storage.Engine, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Importer{engine: engine, opts: opts}
}

// run is the per-call state shared by every entry point.
type run struct {
	op       string
	graph    config.GraphConfig
	parser   config.ParserConfig
	resolver *iri.Resolver
	warnings *Warnings
	log      log.FieldLogger
	result   *Result
	start    time.Time
}

// begin validates parameters and loads graph config, prefixes and mappings.
// requireStore selects the checks of a writing import; the other variants
// fall back to the default graph config when none is stored.
func (im *Importer) begin(op string, format rdfio.Format, p config.ParserConfig, requireStore bool) (*run, error) {
	r := &run{
		op:       op,
		parser:   p,
		warnings: newWarnings(),
		start:    time.Now(),
		result:   &Result{RunID: uuid.NewString(), Status: StatusOK},
	}
	r.log = im.opts.Logger.WithFields(log.Fields{"run": r.result.RunID, "op": op, "format": format})

	if _, err := rdfio.ParseFormat(string(format)); err != nil {
		return r, newError(KindBadParams, op, err)
	}
	if err := p.Validate(); err != nil {
		return r, newError(KindBadParams, op, err)
	}

	var err error
	if requireStore {
		if err = CheckPrerequisites(im.engine); err != nil {
			return r, err
		}
	}
	r.graph, err = LoadGraphConfig(im.engine)
	if err != nil {
		if requireStore || !errors.Is(err, ErrPrerequisiteNotMet) {
			return r, err
		}
		r.graph = config.DefaultGraphConfig()
	}

	prefixes, err := LoadPrefixes(im.engine)
	if err != nil {
		return r, err
	}
	stored, err := iri.LoadMappings(im.engine)
	if err != nil {
		return r, err
	}
	mappings := iri.MergeMappings(stored, im.opts.Mappings)
	if err := config.ValidateMappings(mappings); err != nil {
		return r, newError(KindBadParams, op, err)
	}
	r.resolver = iri.NewResolver(r.graph, prefixes, mappings)
	return r, nil
}

// abort turns a failed begin into a KO result.
func (im *Importer) abort(r *run, err error) (*Result, error) {
	r.log.WithError(err).Error("Import rejected")
	r.result.Duration = time.Since(r.start)
	r.result.fail(err)
	im.opts.Metrics.recordImport(r.result.Status)
	return r.result, err
}

func (im *Importer) accumulator(r *run, sink Sink) *Accumulator {
	return NewAccumulator(AccumulatorOptions{
		Graph:    r.graph,
		Parser:   r.parser,
		Resolver: r.resolver,
		Sink:     sink,
		RunID:    r.result.RunID,
		Warnings: r.warnings,
		Metrics:  im.opts.Metrics,
		Logger:   r.log,
	})
}

// Import loads RDF from src into the store.
//
// Data-level failures (parse errors, failed flushes) are reported through a
// KO Result with a nil error, with counts reflecting what was committed.
// Invalid parameters and missing prerequisites return both a KO Result and
// the error.
func (im *Importer) Import(ctx context.Context, src io.Reader, format rdfio.Format, p config.ParserConfig) (*Result, error) {
	r, err := im.begin("import", format, p, true)
	if err != nil {
		return im.abort(r, err)
	}
	sink := NewDirectLoader(DirectLoaderOptions{
		Engine:    im.engine,
		Prefixes:  r.resolver.Prefixes(),
		Shortens:  r.graph.HandleVocabURIs.Shortens(),
		SingleTx:  p.SingleTx,
		Strict:    p.StrictDataTypeCheck,
		CacheSize: p.NodeCacheSize,
		RunID:     r.result.RunID,
		Warnings:  r.warnings,
		Metrics:   im.opts.Metrics,
		Logger:    r.log,
	})
	acc := im.accumulator(r, sink)
	err = im.consume(ctx, r, src, format, acc)

	stats := sink.CacheStats()
	r.log.WithFields(log.Fields{"cacheHits": stats.Hits, "cacheMisses": stats.Misses}).Debug("Node cache")
	return im.finish(r, acc, err), nil
}

// Preview maps up to Limit statements (1000 when unset) into an in-memory
// graph without touching the store.
func (im *Importer) Preview(ctx context.Context, src io.Reader, format rdfio.Format, p config.ParserConfig) (*Result, *VirtualGraph, error) {
	if p.Limit == 0 {
		p.Limit = config.DefaultPreviewLimit
	}
	r, err := im.begin("preview", format, p, false)
	if err != nil {
		res, err := im.abort(r, err)
		return res, nil, err
	}
	sink := NewPreview(p.StrictDataTypeCheck, r.warnings)
	acc := im.accumulator(r, sink)
	err = im.consume(ctx, r, src, format, acc)
	return im.finish(r, acc, err), sink.Graph(), nil
}

// Validate classifies the whole input and reports counts and warnings,
// writing nothing.
func (im *Importer) Validate(ctx context.Context, src io.Reader, format rdfio.Format, p config.ParserConfig) (*Result, error) {
	r, err := im.begin("validate", format, p, false)
	if err != nil {
		return im.abort(r, err)
	}
	acc := im.accumulator(r, NewNoopSink(p.StrictDataTypeCheck, r.warnings))
	err = im.consume(ctx, r, src, format, acc)
	return im.finish(r, acc, err), nil
}

// pump parses src on one goroutine and calls handle for each statement on
// another. An error from handle stops the parser. Statements already parsed
// when the parser fails are still handled.
func (im *Importer) pump(ctx context.Context, src io.Reader, format rdfio.Format, handle func(rdfio.Statement) error) error {
	stmts := make(chan rdfio.Statement, pipelineBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(stmts)
		return rdfio.Parse(gctx, src, format, im.opts.Parse, func(s rdfio.Statement) error {
			select {
			case stmts <- s:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	g.Go(func() error {
		for s := range stmts {
			if err := handle(s); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// consume runs the pipeline into acc and settles the last batch.
func (im *Importer) consume(ctx context.Context, r *run, src io.Reader, format rdfio.Format, acc *Accumulator) error {
	r.log.WithFields(log.Fields{
		"commitSize":      r.parser.CommitSize,
		"handleVocabUris": r.graph.HandleVocabURIs,
		"singleTx":        r.parser.SingleTx,
	}).Info("Import started")

	err := im.pump(ctx, src, format, func(s rdfio.Statement) error {
		return acc.Handle(ctx, s)
	})

	switch {
	case err == nil, errors.Is(err, ErrCancelled):
		return acc.Flush(ctx, true)
	case KindOf(err) == KindParseError:
		err = newError(KindParseError, "parse", err)
		r.log.WithError(err).Error("Parse failed")
		if r.parser.AbortOnError {
			acc.Discard()
			return err
		}
		if ferr := acc.Flush(ctx, true); ferr != nil {
			r.warnings.Add("flush after parse failure: %v", ferr)
		}
		return err
	}
	acc.Discard()
	return err
}

func (im *Importer) finish(r *run, acc *Accumulator, err error) *Result {
	res := r.result
	res.TriplesParsed = acc.Parsed()
	res.TriplesMapped = acc.Mapped()
	res.TriplesLoaded = acc.Loaded()
	if r.graph.HandleVocabURIs.Shortens() {
		res.Namespaces = r.resolver.Prefixes().All()
	}
	res.Warnings = r.warnings.List()
	res.Duration = time.Since(r.start)
	if err != nil {
		res.fail(err)
	}
	im.opts.Metrics.recordImport(res.Status)

	entry := r.log.WithFields(log.Fields{
		"status":        res.Status,
		"triplesParsed": res.TriplesParsed,
		"triplesMapped": res.TriplesMapped,
		"triplesLoaded": res.TriplesLoaded,
		"duration":      res.Duration,
	})
	if err != nil {
		entry.WithError(err).Error("Import finished")
	} else {
		entry.Info("Import finished")
	}
	return res
}

// ParseFormatParam resolves a user-supplied format name, classifying an
// unknown one as BadParams.
func ParseFormatParam(name string) (rdfio.Format, error) {
	f, err := rdfio.ParseFormat(name)
	if err != nil {
		return "", newError(KindBadParams, "format", fmt.Errorf("%w (expected Turtle, N-Triples, N-Quads, TriG, RDF/XML or JSON-LD)", err))
	}
	return f, nil
}
