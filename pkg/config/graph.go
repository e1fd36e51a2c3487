package config

import (
	"fmt"
	"sort"
	"strings"
)

// VocabURIHandling selects how vocabulary IRIs become element names.
type VocabURIHandling string

const (
	VocabShorten       VocabURIHandling = "SHORTEN"
	VocabShortenStrict VocabURIHandling = "SHORTEN_STRICT"
	VocabIgnore        VocabURIHandling = "IGNORE"
	VocabMap           VocabURIHandling = "MAP"
	VocabKeep          VocabURIHandling = "KEEP"
)

// Valid reports whether h is a known mode.
func (h VocabURIHandling) Valid() bool {
	switch h {
	case VocabShorten, VocabShortenStrict, VocabIgnore, VocabMap, VocabKeep:
		return true
	}
	return false
}

// Shortens reports whether names are prefix-qualified.
func (h VocabURIHandling) Shortens() bool {
	return h == VocabShorten || h == VocabShortenStrict
}

// MultivalHandling selects how repeated property values are stored.
type MultivalHandling string

const (
	MultivalOverwrite MultivalHandling = "OVERWRITE"
	MultivalArray     MultivalHandling = "ARRAY"
)

// Valid reports whether h is a known mode.
func (h MultivalHandling) Valid() bool {
	return h == MultivalOverwrite || h == MultivalArray
}

// RDFTypesHandling selects how rdf:type statements are represented.
type RDFTypesHandling string

const (
	TypesAsLabels         RDFTypesHandling = "LABELS"
	TypesAsLabelsAndNodes RDFTypesHandling = "LABELS_AND_NODES"
	TypesAsNodes          RDFTypesHandling = "NODES"
)

// Valid reports whether h is a known mode.
func (h RDFTypesHandling) Valid() bool {
	switch h {
	case TypesAsLabels, TypesAsLabelsAndNodes, TypesAsNodes:
		return true
	}
	return false
}

// ProducesLabels reports whether types become labels.
func (h RDFTypesHandling) ProducesLabels() bool {
	return h == TypesAsLabels || h == TypesAsLabelsAndNodes
}

// ProducesNodes reports whether types become nodes linked from the instance.
func (h RDFTypesHandling) ProducesNodes() bool {
	return h == TypesAsLabelsAndNodes || h == TypesAsNodes
}

// GraphConfig is the global mapping policy. It is stored once in the graph
// and cannot change after data has been imported.
type GraphConfig struct {
	HandleVocabURIs     VocabURIHandling `yaml:"handle_vocab_uris"`
	HandleMultival      MultivalHandling `yaml:"handle_multival"`
	HandleRDFTypes      RDFTypesHandling `yaml:"handle_rdf_types"`
	KeepLangTag         bool             `yaml:"keep_lang_tag"`
	KeepCustomDataTypes bool             `yaml:"keep_custom_data_types"`

	// ApplyNeo4jNaming case-adjusts local names under IGNORE and MAP:
	// labels UpperCamel, relationship types UPPER_SNAKE, properties lowerCamel.
	ApplyNeo4jNaming bool `yaml:"apply_neo4j_naming"`

	ClassLabel            string `yaml:"class_label"`
	SubClassOfRel         string `yaml:"sub_class_of_rel"`
	DataTypePropertyLabel string `yaml:"data_type_property_label"`
	ObjectPropertyLabel   string `yaml:"object_property_label"`
	SubPropertyOfRel      string `yaml:"sub_property_of_rel"`
	DomainRel             string `yaml:"domain_rel"`
	RangeRel              string `yaml:"range_rel"`
}

// DefaultGraphConfig returns the defaults used by `graphconfig init` without
// parameters.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		HandleVocabURIs:       VocabShorten,
		HandleMultival:        MultivalOverwrite,
		HandleRDFTypes:        TypesAsLabels,
		ClassLabel:            "Class",
		SubClassOfRel:         "SCO",
		DataTypePropertyLabel: "Property",
		ObjectPropertyLabel:   "Relationship",
		SubPropertyOfRel:      "SPO",
		DomainRel:             "DOMAIN",
		RangeRel:              "RANGE",
	}
}

// Validate checks enum values and naming fields.
func (g GraphConfig) Validate() error {
	if !g.HandleVocabURIs.Valid() {
		return fmt.Errorf("%w: handleVocabUris %q", ErrInvalidConfig, g.HandleVocabURIs)
	}
	if !g.HandleMultival.Valid() {
		return fmt.Errorf("%w: handleMultival %q", ErrInvalidConfig, g.HandleMultival)
	}
	if !g.HandleRDFTypes.Valid() {
		return fmt.Errorf("%w: handleRDFTypes %q", ErrInvalidConfig, g.HandleRDFTypes)
	}
	for key, v := range map[string]string{
		"classLabel":            g.ClassLabel,
		"subClassOfRel":         g.SubClassOfRel,
		"dataTypePropertyLabel": g.DataTypePropertyLabel,
		"objectPropertyLabel":   g.ObjectPropertyLabel,
		"subPropertyOfRel":      g.SubPropertyOfRel,
		"domainRel":             g.DomainRel,
		"rangeRel":              g.RangeRel,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, key)
		}
	}
	return nil
}

// graphParams lists the parameter names used in the persisted node and in
// `graphconfig set`, in display order.
var graphParams = []string{
	"handleVocabUris", "handleMultival", "handleRDFTypes", "keepLangTag", "keepCustomDataTypes",
	"applyNeo4jNaming", "classLabel", "subClassOfRel", "dataTypePropertyLabel",
	"objectPropertyLabel", "subPropertyOfRel", "domainRel", "rangeRel",
}

// ToMap renders the config as parameter name to value.
func (g GraphConfig) ToMap() map[string]any {
	return map[string]any{
		"handleVocabUris":       string(g.HandleVocabURIs),
		"handleMultival":        string(g.HandleMultival),
		"handleRDFTypes":        string(g.HandleRDFTypes),
		"keepLangTag":           g.KeepLangTag,
		"keepCustomDataTypes":   g.KeepCustomDataTypes,
		"applyNeo4jNaming":      g.ApplyNeo4jNaming,
		"classLabel":            g.ClassLabel,
		"subClassOfRel":         g.SubClassOfRel,
		"dataTypePropertyLabel": g.DataTypePropertyLabel,
		"objectPropertyLabel":   g.ObjectPropertyLabel,
		"subPropertyOfRel":      g.SubPropertyOfRel,
		"domainRel":             g.DomainRel,
		"rangeRel":              g.RangeRel,
	}
}

// Param is one rendered configuration entry.
type Param struct {
	Key   string
	Value any
}

// Params returns the config entries in display order.
func (g GraphConfig) Params() []Param {
	m := g.ToMap()
	out := make([]Param, 0, len(graphParams))
	for _, k := range graphParams {
		out = append(out, Param{Key: k, Value: m[k]})
	}
	return out
}

// Set assigns one parameter by name. String values are accepted for boolean
// parameters so CLI input can be passed through unchanged.
func (g *GraphConfig) Set(key string, value any) error {
	str := func() (string, error) {
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidConfig, key, value)
		}
		return s, nil
	}
	boolean := func() (bool, error) {
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes", "on":
				return true, nil
			case "false", "0", "no", "off":
				return false, nil
			}
		}
		return false, fmt.Errorf("%w: %s expects a boolean, got %v", ErrInvalidConfig, key, value)
	}

	var err error
	var s string
	switch key {
	case "handleVocabUris":
		if s, err = str(); err == nil {
			g.HandleVocabURIs = VocabURIHandling(strings.ToUpper(s))
		}
	case "handleMultival":
		if s, err = str(); err == nil {
			g.HandleMultival = MultivalHandling(strings.ToUpper(s))
		}
	case "handleRDFTypes":
		if s, err = str(); err == nil {
			g.HandleRDFTypes = RDFTypesHandling(strings.ToUpper(s))
		}
	case "keepLangTag":
		g.KeepLangTag, err = boolean()
	case "keepCustomDataTypes":
		g.KeepCustomDataTypes, err = boolean()
	case "applyNeo4jNaming":
		g.ApplyNeo4jNaming, err = boolean()
	case "classLabel":
		g.ClassLabel, err = str()
	case "subClassOfRel":
		g.SubClassOfRel, err = str()
	case "dataTypePropertyLabel":
		g.DataTypePropertyLabel, err = str()
	case "objectPropertyLabel":
		g.ObjectPropertyLabel, err = str()
	case "subPropertyOfRel":
		g.SubPropertyOfRel, err = str()
	case "domainRel":
		g.DomainRel, err = str()
	case "rangeRel":
		g.RangeRel, err = str()
	default:
		known := append([]string(nil), graphParams...)
		sort.Strings(known)
		return fmt.Errorf("%w: unknown graph config parameter %q (known: %s)", ErrInvalidConfig, key, strings.Join(known, ", "))
	}
	return err
}

// GraphConfigFromMap rebuilds a config from ToMap output, starting from the
// defaults for missing keys.
func GraphConfigFromMap(m map[string]any) (GraphConfig, error) {
	g := DefaultGraphConfig()
	for k, v := range m {
		if err := g.Set(k, v); err != nil {
			return GraphConfig{}, err
		}
	}
	return g, g.Validate()
}
