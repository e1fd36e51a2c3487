package rdfimport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/literal"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
)

// Stream re-serializes the input as N-Triples to w, after predicate
// exclusion and language filtering, stopping after Limit statements. Nothing
// is mapped or stored; TriplesMapped counts the statements written.
func (im *Importer) Stream(ctx context.Context, src io.Reader, format rdfio.Format, p config.ParserConfig, w io.Writer) (*Result, error) {
	r, err := im.begin("stream", format, p, false)
	if err != nil {
		return im.abort(r, err)
	}

	st := &streamer{
		limit:    int64(p.Limit),
		excluded: config.StringSet(p.PredicateExclusionList),
		coercer:  literal.New(r.graph, p, r.resolver),
		enc:      rdfio.NewEncoder(w),
		warnings: r.warnings,
		metrics:  im.opts.Metrics,
	}
	r.log.Info("Stream started")
	err = im.pump(ctx, src, format, st.handle)
	if errors.Is(err, ErrCancelled) {
		err = nil
	}
	if err != nil && KindOf(err) == KindParseError {
		err = newError(KindParseError, "parse", err)
	}
	if cerr := st.enc.Close(); err == nil && cerr != nil {
		err = cerr
	}

	res := r.result
	res.TriplesParsed = st.parsed
	res.TriplesMapped = int64(st.enc.Count())
	res.Warnings = r.warnings.List()
	res.Duration = time.Since(r.start)
	if err != nil {
		res.fail(err)
		r.log.WithError(err).Error("Stream finished")
	} else {
		r.log.WithField("triplesStreamed", res.TriplesMapped).Info("Stream finished")
	}
	im.opts.Metrics.recordImport(res.Status)
	return res, nil
}

type streamer struct {
	limit    int64
	parsed   int64
	excluded map[string]struct{}
	coercer  *literal.Coercer
	enc      *rdfio.Encoder
	warnings *Warnings
	metrics  *Metrics
}

func (s *streamer) handle(st rdfio.Statement) error {
	if s.limit > 0 && s.parsed >= s.limit {
		return ErrCancelled
	}
	s.parsed++
	s.metrics.recordParsed()

	if _, skip := s.excluded[st.Predicate]; skip {
		return nil
	}
	if st.Object.IsLiteral() && !s.coercer.Accepts(st.Object.Lang) {
		return nil
	}
	if err := s.enc.Encode(st); err != nil {
		if errors.Is(err, rdfio.ErrNotEncodable) {
			s.warnings.Add("statement %d not streamed: %v", s.parsed, err)
			return nil
		}
		return err
	}
	return nil
}
