// Package config handles import configuration from a YAML file with an
// environment overlay.
//
// Configuration is organized in sections mirroring the file layout:
//   - Store: which backing store to open and where
//   - Graph: the global mapping policy (GraphConfig)
//   - Parser: per-import options (ParserConfig)
//   - Mappings: IRI to element name table used by MAP mode
//   - Logging, Metrics: ambient settings for the CLI
//
// Example n10s.yaml:
//
//	store:
//	  backend: badger
//	  data_dir: ./data
//	graph:
//	  handle_vocab_uris: SHORTEN
//	  handle_rdf_types: LABELS_AND_NODES
//	parser:
//	  commit_size: 10000
//	  language_filter: en
//	mappings:
//	  http://schema.org/name: name
//
// Environment Variables (override the file):
//
//	N10S_STORE_BACKEND, N10S_STORE_DATA_DIR, N10S_STORE_SYNC_WRITES, N10S_STORE_LOW_MEMORY
//	N10S_GRAPH_HANDLE_VOCAB_URIS, N10S_GRAPH_HANDLE_MULTIVAL, N10S_GRAPH_HANDLE_RDF_TYPES
//	N10S_GRAPH_KEEP_LANG_TAG, N10S_GRAPH_KEEP_CUSTOM_DATA_TYPES, N10S_GRAPH_APPLY_NEO4J_NAMING
//	N10S_PARSER_COMMIT_SIZE, N10S_PARSER_NODE_CACHE_SIZE, N10S_PARSER_LANGUAGE_FILTER
//	N10S_PARSER_PREDICATE_EXCLUSION_LIST, N10S_PARSER_MULTIVAL_PROP_LIST (comma separated)
//	N10S_PARSER_CUSTOM_DATA_TYPE_PROP_LIST, N10S_PARSER_VERIFY_URI_SYNTAX
//	N10S_PARSER_ABORT_ON_ERROR, N10S_PARSER_STRICT_DATA_TYPE_CHECK, N10S_PARSER_SINGLE_TX
//	N10S_PARSER_LIMIT, N10S_LOG_LEVEL, N10S_LOG_FORMAT, N10S_METRICS_ADDR
//
// Usage:
//
//	cfg, err := config.LoadFromEnvOrFile("n10s.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/namespace"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full contents of an n10s.yaml file.
type Config struct {
	Store    StoreConfig       `yaml:"store"`
	Graph    GraphConfig       `yaml:"graph"`
	Parser   ParserConfig      `yaml:"parser"`
	Mappings map[string]string `yaml:"mappings"`
	Logging  LoggingConfig     `yaml:"logging"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	// Backend is "badger" or "memory".
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	SyncWrites bool   `yaml:"sync_writes"`
	LowMemory  bool   `yaml:"low_memory"`
}

// Store backends
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendBadger,
			DataDir: "./data",
		},
		Graph:    DefaultGraphConfig(),
		Parser:   DefaultParserConfig(),
		Mappings: make(map[string]string),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if cfg.Mappings == nil {
		cfg.Mappings = make(map[string]string)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads config from file, or returns the defaults if the
// file doesn't exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFromEnvOrFile loads the file at path when present and applies the
// environment overlay on top.
func LoadFromEnvOrFile(path string) (*Config, error) {
	cfg, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from N10S_* environment variables. Enum values are
// upper-cased but not checked; Validate reports bad ones.
func (c *Config) ApplyEnv() {
	c.Store.Backend = getEnv("N10S_STORE_BACKEND", c.Store.Backend)
	c.Store.DataDir = getEnv("N10S_STORE_DATA_DIR", c.Store.DataDir)
	c.Store.SyncWrites = getEnvBool("N10S_STORE_SYNC_WRITES", c.Store.SyncWrites)
	c.Store.LowMemory = getEnvBool("N10S_STORE_LOW_MEMORY", c.Store.LowMemory)

	c.Graph.HandleVocabURIs = VocabURIHandling(strings.ToUpper(getEnv("N10S_GRAPH_HANDLE_VOCAB_URIS", string(c.Graph.HandleVocabURIs))))
	c.Graph.HandleMultival = MultivalHandling(strings.ToUpper(getEnv("N10S_GRAPH_HANDLE_MULTIVAL", string(c.Graph.HandleMultival))))
	c.Graph.HandleRDFTypes = RDFTypesHandling(strings.ToUpper(getEnv("N10S_GRAPH_HANDLE_RDF_TYPES", string(c.Graph.HandleRDFTypes))))
	c.Graph.KeepLangTag = getEnvBool("N10S_GRAPH_KEEP_LANG_TAG", c.Graph.KeepLangTag)
	c.Graph.KeepCustomDataTypes = getEnvBool("N10S_GRAPH_KEEP_CUSTOM_DATA_TYPES", c.Graph.KeepCustomDataTypes)
	c.Graph.ApplyNeo4jNaming = getEnvBool("N10S_GRAPH_APPLY_NEO4J_NAMING", c.Graph.ApplyNeo4jNaming)

	c.Parser.CommitSize = getEnvInt("N10S_PARSER_COMMIT_SIZE", c.Parser.CommitSize)
	c.Parser.NodeCacheSize = getEnvInt("N10S_PARSER_NODE_CACHE_SIZE", c.Parser.NodeCacheSize)
	c.Parser.LanguageFilter = getEnv("N10S_PARSER_LANGUAGE_FILTER", c.Parser.LanguageFilter)
	c.Parser.PredicateExclusionList = getEnvStringSlice("N10S_PARSER_PREDICATE_EXCLUSION_LIST", c.Parser.PredicateExclusionList)
	c.Parser.MultivalPropList = getEnvStringSlice("N10S_PARSER_MULTIVAL_PROP_LIST", c.Parser.MultivalPropList)
	c.Parser.CustomDataTypePropList = getEnvStringSlice("N10S_PARSER_CUSTOM_DATA_TYPE_PROP_LIST", c.Parser.CustomDataTypePropList)
	c.Parser.VerifyURISyntax = getEnvBool("N10S_PARSER_VERIFY_URI_SYNTAX", c.Parser.VerifyURISyntax)
	c.Parser.AbortOnError = getEnvBool("N10S_PARSER_ABORT_ON_ERROR", c.Parser.AbortOnError)
	c.Parser.StrictDataTypeCheck = getEnvBool("N10S_PARSER_STRICT_DATA_TYPE_CHECK", c.Parser.StrictDataTypeCheck)
	c.Parser.SingleTx = getEnvBool("N10S_PARSER_SINGLE_TX", c.Parser.SingleTx)
	c.Parser.Limit = getEnvInt("N10S_PARSER_LIMIT", c.Parser.Limit)

	c.Logging.Level = getEnv("N10S_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("N10S_LOG_FORMAT", c.Logging.Format)
	c.Metrics.Addr = getEnv("N10S_METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks every section. All failures wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBadger:
		if c.Store.DataDir == "" {
			return fmt.Errorf("%w: store.data_dir is required for the badger backend", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Parser.Validate(); err != nil {
		return err
	}
	if err := ValidateMappings(c.Mappings); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ValidateMappings rejects empty entries and any mapping of rdf:type, which
// drives label assignment and cannot be renamed.
func ValidateMappings(mappings map[string]string) error {
	for iri, name := range mappings {
		if iri == namespace.RDFType {
			return fmt.Errorf("%w: rdf:type cannot be mapped", ErrInvalidConfig)
		}
		if strings.TrimSpace(iri) == "" || strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: mapping %q -> %q has an empty side", ErrInvalidConfig, iri, name)
		}
	}
	return nil
}

// WriteYAML writes the configuration in file form.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// String returns a human-readable summary (for logging).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: %s@%s, Vocab: %s, Multival: %s, Types: %s, CommitSize: %d}",
		c.Store.Backend, c.Store.DataDir, c.Graph.HandleVocabURIs, c.Graph.HandleMultival,
		c.Graph.HandleRDFTypes, c.Parser.CommitSize)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		// Split by comma, trim whitespace
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
