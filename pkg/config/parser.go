package config

import (
	"fmt"
	"strings"
)

// ParserConfig holds per-import options. It is built once per call and not
// modified afterwards.
type ParserConfig struct {
	// CommitSize is the number of mapped triples between automatic flushes.
	CommitSize int `yaml:"commit_size"`
	// NodeCacheSize bounds the uri to node id cache.
	NodeCacheSize int `yaml:"node_cache_size"`

	LanguageFilter         string   `yaml:"language_filter"`
	PredicateExclusionList []string `yaml:"predicate_exclusion_list,omitempty"`
	// MultivalPropList restricts ARRAY handling to these properties (IRI or
	// resolved name). Empty means every property.
	MultivalPropList       []string `yaml:"multival_prop_list,omitempty"`
	CustomDataTypePropList []string `yaml:"custom_data_type_prop_list,omitempty"`

	VerifyURISyntax     bool `yaml:"verify_uri_syntax"`
	AbortOnError        bool `yaml:"abort_on_error"`
	StrictDataTypeCheck bool `yaml:"strict_data_type_check"`
	SingleTx            bool `yaml:"single_tx"`

	// Limit stops the stream after this many statements. 0 means unlimited.
	Limit int `yaml:"limit"`
}

// Defaults
const (
	DefaultCommitSize    = 25000
	DefaultNodeCacheSize = 10000
	DefaultPreviewLimit  = 1000
)

// DefaultParserConfig returns the per-call defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		CommitSize:      DefaultCommitSize,
		NodeCacheSize:   DefaultNodeCacheSize,
		VerifyURISyntax: true,
		AbortOnError:    true,
	}
}

// Validate checks sizes and list entries.
func (p ParserConfig) Validate() error {
	if p.CommitSize <= 0 {
		return fmt.Errorf("%w: commitSize must be positive, got %d", ErrInvalidConfig, p.CommitSize)
	}
	if p.NodeCacheSize <= 0 {
		return fmt.Errorf("%w: nodeCacheSize must be positive, got %d", ErrInvalidConfig, p.NodeCacheSize)
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidConfig, p.Limit)
	}
	for name, list := range map[string][]string{
		"predicateExclusionList": p.PredicateExclusionList,
		"multivalPropList":       p.MultivalPropList,
		"customDataTypePropList": p.CustomDataTypePropList,
	} {
		for _, entry := range list {
			if strings.TrimSpace(entry) == "" {
				return fmt.Errorf("%w: %s contains an empty entry", ErrInvalidConfig, name)
			}
		}
	}
	return nil
}

// StringSet converts a list option into a set.
func StringSet(list []string) map[string]struct{} {
	if len(list) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}
