package rdfimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

func TestGraphConfig_Lifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, newEngine func() storage.Engine) {
		engine := newEngine()

		_, err := ShowGraphConfig(engine)
		assert.ErrorIs(t, err, ErrPrerequisiteNotMet)

		g := config.DefaultGraphConfig()
		g.HandleVocabURIs = config.VocabIgnore
		require.NoError(t, InitGraphConfig(engine, g))

		loaded, err := LoadGraphConfig(engine)
		require.NoError(t, err)
		assert.Equal(t, g, loaded)

		updated, err := SetGraphConfig(engine, map[string]any{"handleMultival": "array", "keepLangTag": "true"})
		require.NoError(t, err)
		assert.Equal(t, config.MultivalArray, updated.HandleMultival)
		assert.True(t, updated.KeepLangTag)
		assert.Equal(t, config.VocabIgnore, updated.HandleVocabURIs)

		params, err := ShowGraphConfig(engine)
		require.NoError(t, err)
		require.NotEmpty(t, params)
		assert.Equal(t, "handleVocabUris", params[0].Key)
		assert.Equal(t, "IGNORE", params[0].Value)

		require.NoError(t, DropGraphConfig(engine))
		_, err = LoadGraphConfig(engine)
		assert.ErrorIs(t, err, ErrPrerequisiteNotMet)
		require.NoError(t, DropGraphConfig(engine))
	})
}

func TestGraphConfig_Validation(t *testing.T) {
	engine := storage.NewMemoryEngine()

	g := config.DefaultGraphConfig()
	g.HandleRDFTypes = "SOMETIMES"
	assert.ErrorIs(t, InitGraphConfig(engine, g), ErrBadParams)

	_, err := SetGraphConfig(engine, map[string]any{"colour": "blue"})
	assert.ErrorIs(t, err, ErrBadParams)

	// set without init starts from the defaults
	updated, err := SetGraphConfig(engine, map[string]any{"handleVocabUris": "KEEP"})
	require.NoError(t, err)
	assert.Equal(t, config.VocabKeep, updated.HandleVocabURIs)
	assert.Equal(t, "Class", updated.ClassLabel)
}

func TestGraphConfig_FrozenAfterImport(t *testing.T) {
	engine := prepared(t, storage.NewMemoryEngine(), graphWith(config.VocabKeep))
	require.True(t, importDoc(t, engine, `<http://ex/a> <http://ex/name> "Alice" .`+"\n", config.DefaultParserConfig()).OK())

	assert.ErrorIs(t, InitGraphConfig(engine, config.DefaultGraphConfig()), ErrPrerequisiteNotMet)
	_, err := SetGraphConfig(engine, map[string]any{"handleVocabUris": "SHORTEN"})
	assert.ErrorIs(t, err, ErrPrerequisiteNotMet)
	assert.ErrorIs(t, DropGraphConfig(engine), ErrPrerequisiteNotMet)

	loaded, err := LoadGraphConfig(engine)
	require.NoError(t, err)
	assert.Equal(t, config.VocabKeep, loaded.HandleVocabURIs)
}

func TestInitConstraint(t *testing.T) {
	engine := storage.NewMemoryEngine()
	require.NoError(t, InitGraphConfig(engine, config.DefaultGraphConfig()))
	assert.ErrorIs(t, CheckPrerequisites(engine), ErrPrerequisiteNotMet)

	require.NoError(t, InitConstraint(engine))
	require.NoError(t, InitConstraint(engine))
	assert.NoError(t, CheckPrerequisites(engine))
	assert.True(t, engine.GetSchema().HasUniqueConstraint(ResourceLabel, URIProperty))
}

func TestNamespacePrefixes(t *testing.T) {
	forEachStore(t, func(t *testing.T, newEngine func() storage.Engine) {
		engine := prepared(t, newEngine(), config.DefaultGraphConfig())

		all, err := AddPrefix(engine, "ex", "http://ex/")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"ex": "http://ex/"}, all)

		_, err = AddPrefix(engine, "ex", "http://other/")
		assert.ErrorIs(t, err, ErrNamespacePrefixConflict)
		_, err = AddPrefix(engine, "ex2", "http://ex/")
		assert.ErrorIs(t, err, ErrNamespacePrefixConflict)

		results, err := AddPrefixesFromText(engine, `@prefix foaf: <http://xmlns.com/foaf/0.1/> .
PREFIX ex: <http://clash/>
`)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.NoError(t, results[0].Err)
		assert.ErrorIs(t, results[1].Err, ErrNamespacePrefixConflict)

		listed, err := ListPrefixes(engine)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"ex": "http://ex/", "foaf": "http://xmlns.com/foaf/0.1/"}, listed)

		remaining, err := RemovePrefix(engine, "foaf")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"ex": "http://ex/"}, remaining)

		_, err = RemovePrefix(engine, "missing")
		assert.ErrorIs(t, err, ErrBadParams)

		require.NoError(t, RemoveAllPrefixes(engine))
		listed, err = ListPrefixes(engine)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})
}

func TestNamespacePrefixes_FrozenAfterImport(t *testing.T) {
	engine := prepared(t, storage.NewMemoryEngine(), config.DefaultGraphConfig())
	require.True(t, importDoc(t, engine, `<http://ex/a> <http://ex/name> "Alice" .`+"\n", config.DefaultParserConfig()).OK())

	_, err := RemovePrefix(engine, "ns0")
	assert.ErrorIs(t, err, ErrPrerequisiteNotMet)
	assert.ErrorIs(t, RemoveAllPrefixes(engine), ErrPrerequisiteNotMet)

	// adding stays allowed
	_, err = AddPrefix(engine, "ex", "http://example.org/")
	assert.NoError(t, err)
}
