package rdfimport

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfio"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

func TestMetrics_Import(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	engine := prepared(t, storage.NewMemoryEngine(), graphWith(config.VocabKeep))
	im := NewImporter(engine, Options{Logger: quietLogger(), Metrics: m})

	p := config.DefaultParserConfig()
	p.CommitSize = 4
	res, err := im.Import(context.Background(), strings.NewReader(sampleDoc), rdfio.NTriples, p)
	require.NoError(t, err)
	require.True(t, res.OK(), "error: %v", res.Error)

	assert.Equal(t, float64(10), testutil.ToFloat64(m.triplesParsed))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.triplesMapped))
	// two full batches and the final one
	assert.Equal(t, float64(3), testutil.ToFloat64(m.flushes.WithLabelValues("ok")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.flushes.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.imports.WithLabelValues("OK")))
	assert.Greater(t, testutil.ToFloat64(m.cacheHits), float64(0))

	_, err = im.Import(context.Background(), strings.NewReader("garbage"), rdfio.Format("nope"), p)
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.imports.WithLabelValues("KO")))

	count, err := testutil.GatherAndCount(reg, "n10s_import_triples_parsed_total", "n10s_import_flush_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordParsed()
		m.recordMapped()
		m.recordDropped(1)
		m.recordFlush(0, nil)
		m.recordImport(StatusOK)
		hits, misses := m.cacheCounters()
		assert.Nil(t, hits)
		assert.Nil(t, misses)
	})
}
