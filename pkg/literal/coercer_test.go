package literal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/iri"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

const xsd = namespace.XSD

func newCoercer(mutateGraph func(*config.GraphConfig), mutateParser func(*config.ParserConfig)) *Coercer {
	g := config.DefaultGraphConfig()
	p := config.DefaultParserConfig()
	if mutateGraph != nil {
		mutateGraph(&g)
	}
	if mutateParser != nil {
		mutateParser(&p)
	}
	return New(g, p, iri.NewResolver(g, namespace.NewPrefixTable(), nil))
}

func TestCoerce_NativeTypes(t *testing.T) {
	c := newCoercer(nil, nil)
	tests := []struct {
		name     string
		lexical  string
		datatype string
		want     any
	}{
		{"plain_string", "hello", "", "hello"},
		{"xsd_string", "hello", xsd + "string", "hello"},
		{"integer", "42", xsd + "integer", int64(42)},
		{"negative_int", "-7", xsd + "int", int64(-7)},
		{"unsigned_byte", "255", xsd + "unsignedByte", int64(255)},
		{"decimal", "3.25", xsd + "decimal", 3.25},
		{"double_exp", "1e3", xsd + "double", 1000.0},
		{"boolean_true", "true", xsd + "boolean", true},
		{"boolean_zero", "0", xsd + "boolean", false},
		{"date", "2024-02-29", xsd + "date", storage.Date{Year: 2024, Month: time.February, Day: 29}},
		{"date_with_zone", "2024-02-29Z", xsd + "date", storage.Date{Year: 2024, Month: time.February, Day: 29}},
		{"bad_integer_falls_back", "forty-two", xsd + "integer", "forty-two"},
		{"bad_boolean_falls_back", "yes", xsd + "boolean", "yes"},
		{"bad_date_falls_back", "29/02/2024", xsd + "date", "29/02/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, err := c.Coerce("http://ex/p", tt.lexical, tt.datatype, "")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestCoerce_DateTime(t *testing.T) {
	c := newCoercer(nil, nil)

	v, ok, err := c.Coerce("http://ex/p", "2024-01-02T03:04:05+02:00", xsd+"dateTime", "")
	require.NoError(t, err)
	require.True(t, ok)
	ts, isTime := v.(time.Time)
	require.True(t, isTime)
	assert.True(t, ts.Equal(time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)))

	// second strategy: no zone, read as UTC
	v, _, err = c.Coerce("http://ex/p", "2024-01-02T03:04:05", xsd+"dateTime", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), v)

	v, _, err = c.Coerce("http://ex/p", "yesterday", xsd+"dateTime", "")
	require.NoError(t, err)
	assert.Equal(t, "yesterday", v)
}

func TestCoerce_LanguageTags(t *testing.T) {
	t.Run("filter", func(t *testing.T) {
		c := newCoercer(nil, func(p *config.ParserConfig) { p.LanguageFilter = "en" })

		_, ok, err := c.Coerce("http://ex/p", "bonjour", RDFLangString, "fr")
		require.NoError(t, err)
		assert.False(t, ok)

		v, ok, err := c.Coerce("http://ex/p", "hello", RDFLangString, "EN")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "hello", v)

		// untagged always passes
		v, ok, err = c.Coerce("http://ex/p", "plain", "", "")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "plain", v)
	})

	t.Run("keep_lang_tag", func(t *testing.T) {
		c := newCoercer(func(g *config.GraphConfig) { g.KeepLangTag = true }, nil)
		v, ok, err := c.Coerce("http://ex/p", "hello", RDFLangString, "en")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "hello@en", v)
	})
}

func TestCoerce_CustomDataTypes(t *testing.T) {
	const dt = "http://ex/types#celsius"

	t.Run("dropped_by_default", func(t *testing.T) {
		c := newCoercer(nil, nil)
		v, _, err := c.Coerce("http://ex/temp", "21.5", dt, "")
		require.NoError(t, err)
		assert.Equal(t, "21.5", v)
	})

	t.Run("kept_and_shortened", func(t *testing.T) {
		c := newCoercer(func(g *config.GraphConfig) { g.KeepCustomDataTypes = true }, nil)
		v, _, err := c.Coerce("http://ex/temp", "21.5", dt, "")
		require.NoError(t, err)
		assert.Equal(t, "21.5^^ns0__celsius", v)
	})

	t.Run("kept_under_keep", func(t *testing.T) {
		c := newCoercer(func(g *config.GraphConfig) {
			g.KeepCustomDataTypes = true
			g.HandleVocabURIs = config.VocabKeep
		}, nil)
		v, _, err := c.Coerce("http://ex/temp", "21.5", dt, "")
		require.NoError(t, err)
		assert.Equal(t, "21.5^^"+dt, v)
	})

	t.Run("ignored_under_ignore", func(t *testing.T) {
		c := newCoercer(func(g *config.GraphConfig) {
			g.KeepCustomDataTypes = true
			g.HandleVocabURIs = config.VocabIgnore
		}, nil)
		v, _, err := c.Coerce("http://ex/temp", "21.5", dt, "")
		require.NoError(t, err)
		assert.Equal(t, "21.5", v)
	})

	t.Run("allow_list", func(t *testing.T) {
		c := newCoercer(
			func(g *config.GraphConfig) { g.KeepCustomDataTypes = true },
			func(p *config.ParserConfig) { p.CustomDataTypePropList = []string{"http://ex/temp"} },
		)
		v, _, err := c.Coerce("http://ex/temp", "21.5", dt, "")
		require.NoError(t, err)
		assert.Equal(t, "21.5^^ns0__celsius", v)

		v, _, err = c.Coerce("http://ex/other", "21.5", dt, "")
		require.NoError(t, err)
		assert.Equal(t, "21.5", v)
	})

	t.Run("strict_without_prefix", func(t *testing.T) {
		c := newCoercer(func(g *config.GraphConfig) {
			g.KeepCustomDataTypes = true
			g.HandleVocabURIs = config.VocabShortenStrict
		}, nil)
		_, _, err := c.Coerce("http://ex/temp", "21.5", dt, "")
		assert.ErrorIs(t, err, iri.ErrNoPrefix)
	})
}

func TestSplitCustom(t *testing.T) {
	v, dt, ok := SplitCustom("21.5^^ns0__celsius")
	assert.True(t, ok)
	assert.Equal(t, "21.5", v)
	assert.Equal(t, "ns0__celsius", dt)

	_, _, ok = SplitCustom("plain")
	assert.False(t, ok)
}

func TestLexical(t *testing.T) {
	lex, dt := Lexical(int64(5))
	assert.Equal(t, "5", lex)
	assert.Equal(t, xsd+"long", dt)

	lex, dt = Lexical(storage.Date{Year: 2024, Month: time.March, Day: 1})
	assert.Equal(t, "2024-03-01", lex)
	assert.Equal(t, xsd+"date", dt)

	lex, dt = Lexical(true)
	assert.Equal(t, "true", lex)
	assert.Equal(t, xsd+"boolean", dt)
}
