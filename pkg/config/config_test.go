package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, VocabShorten, cfg.Graph.HandleVocabURIs)
	assert.Equal(t, MultivalOverwrite, cfg.Graph.HandleMultival)
	assert.Equal(t, TypesAsLabels, cfg.Graph.HandleRDFTypes)
	assert.Equal(t, DefaultCommitSize, cfg.Parser.CommitSize)
	assert.True(t, cfg.Parser.VerifyURISyntax)
	assert.True(t, cfg.Parser.AbortOnError)
	assert.False(t, cfg.Parser.SingleTx)
	assert.NotNil(t, cfg.Mappings)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "n10s.yaml")
	content := `
store:
  backend: memory
graph:
  handle_vocab_uris: IGNORE
  handle_rdf_types: LABELS_AND_NODES
  keep_lang_tag: true
parser:
  commit_size: 500
  language_filter: en
  multival_prop_list:
    - http://example.org/tag
mappings:
  http://schema.org/name: name
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, VocabIgnore, cfg.Graph.HandleVocabURIs)
	assert.Equal(t, TypesAsLabelsAndNodes, cfg.Graph.HandleRDFTypes)
	assert.True(t, cfg.Graph.KeepLangTag)
	assert.Equal(t, 500, cfg.Parser.CommitSize)
	assert.Equal(t, "en", cfg.Parser.LanguageFilter)
	assert.Equal(t, []string{"http://example.org/tag"}, cfg.Parser.MultivalPropList)
	assert.Equal(t, "name", cfg.Mappings["http://schema.org/name"])

	// untouched keys keep defaults
	assert.Equal(t, MultivalOverwrite, cfg.Graph.HandleMultival)
	assert.Equal(t, "Class", cfg.Graph.ClassLabel)
	assert.Equal(t, DefaultNodeCacheSize, cfg.Parser.NodeCacheSize)
	assert.True(t, cfg.Parser.AbortOnError)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)

		cfg, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("graph: [unclosed"), 0o644))
		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("N10S_STORE_BACKEND", "memory")
	t.Setenv("N10S_GRAPH_HANDLE_VOCAB_URIS", "keep")
	t.Setenv("N10S_GRAPH_KEEP_LANG_TAG", "yes")
	t.Setenv("N10S_PARSER_COMMIT_SIZE", "42")
	t.Setenv("N10S_PARSER_PREDICATE_EXCLUSION_LIST", "http://a.example/p, http://b.example/q")
	t.Setenv("N10S_PARSER_ABORT_ON_ERROR", "false")
	t.Setenv("N10S_LOG_LEVEL", "debug")
	t.Setenv("N10S_METRICS_ADDR", ":9100")

	cfg, err := LoadFromEnvOrFile("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, VocabKeep, cfg.Graph.HandleVocabURIs)
	assert.True(t, cfg.Graph.KeepLangTag)
	assert.Equal(t, 42, cfg.Parser.CommitSize)
	assert.Equal(t, []string{"http://a.example/p", "http://b.example/q"}, cfg.Parser.PredicateExclusionList)
	assert.False(t, cfg.Parser.AbortOnError)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestApplyEnv_IgnoresUnparseable(t *testing.T) {
	t.Setenv("N10S_PARSER_COMMIT_SIZE", "lots")
	t.Setenv("N10S_PARSER_SINGLE_TX", "maybe")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, DefaultCommitSize, cfg.Parser.CommitSize)
	assert.False(t, cfg.Parser.SingleTx)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown_backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"badger_without_dir", func(c *Config) { c.Store.DataDir = "" }},
		{"bad_vocab_mode", func(c *Config) { c.Graph.HandleVocabURIs = "SQUASH" }},
		{"bad_multival", func(c *Config) { c.Graph.HandleMultival = "APPEND" }},
		{"bad_types", func(c *Config) { c.Graph.HandleRDFTypes = "TAGS" }},
		{"empty_class_label", func(c *Config) { c.Graph.ClassLabel = " " }},
		{"zero_commit_size", func(c *Config) { c.Parser.CommitSize = 0 }},
		{"negative_limit", func(c *Config) { c.Parser.Limit = -1 }},
		{"empty_list_entry", func(c *Config) { c.Parser.MultivalPropList = []string{""} }},
		{"mapped_rdf_type", func(c *Config) { c.Mappings[namespace.RDFType] = "type" }},
		{"empty_mapping", func(c *Config) { c.Mappings["http://example.org/p"] = "" }},
		{"bad_log_format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.HandleVocabURIs = VocabMap
	cfg.Mappings["http://schema.org/name"] = "name"

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "handle_vocab_uris: MAP")

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestGraphConfig_Set(t *testing.T) {
	g := DefaultGraphConfig()
	require.NoError(t, g.Set("handleVocabUris", "ignore"))
	require.NoError(t, g.Set("keepLangTag", "true"))
	require.NoError(t, g.Set("applyNeo4jNaming", true))
	require.NoError(t, g.Set("classLabel", "OwlClass"))

	assert.Equal(t, VocabIgnore, g.HandleVocabURIs)
	assert.True(t, g.KeepLangTag)
	assert.True(t, g.ApplyNeo4jNaming)
	assert.Equal(t, "OwlClass", g.ClassLabel)

	assert.ErrorIs(t, g.Set("noSuchParam", "x"), ErrInvalidConfig)
	assert.ErrorIs(t, g.Set("keepLangTag", "perhaps"), ErrInvalidConfig)
	assert.ErrorIs(t, g.Set("classLabel", 7), ErrInvalidConfig)
}

func TestGraphConfig_MapRoundTrip(t *testing.T) {
	g := DefaultGraphConfig()
	g.HandleMultival = MultivalArray
	g.KeepCustomDataTypes = true

	back, err := GraphConfigFromMap(g.ToMap())
	require.NoError(t, err)
	assert.Equal(t, g, back)

	params := g.Params()
	require.Len(t, params, len(graphParams))
	assert.Equal(t, "handleVocabUris", params[0].Key)
	assert.Equal(t, "ARRAY", params[1].Value)

	_, err = GraphConfigFromMap(map[string]any{"handleRDFTypes": "BOTH"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRDFTypesHandling(t *testing.T) {
	assert.True(t, TypesAsLabels.ProducesLabels())
	assert.False(t, TypesAsLabels.ProducesNodes())
	assert.True(t, TypesAsLabelsAndNodes.ProducesLabels())
	assert.True(t, TypesAsLabelsAndNodes.ProducesNodes())
	assert.False(t, TypesAsNodes.ProducesLabels())
	assert.True(t, TypesAsNodes.ProducesNodes())
}

func TestStringSet(t *testing.T) {
	assert.Nil(t, StringSet(nil))
	set := StringSet([]string{"a", "b", "a"})
	assert.Len(t, set, 2)
	_, ok := set["b"]
	assert.True(t, ok)
}
