// internal/nlq/lexicon/load.go
package lexicon

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"

	"querydesk/internal/models"
)

// fileLexicon mirrors the on-disk lexicon document.
type fileLexicon struct {
	Tables           map[string]models.TableFieldTaxonomy `mapstructure:"tables"`
	Aliases          map[string]string                    `mapstructure:"aliases"`
	OwnerColumns     map[string]string                    `mapstructure:"owner_columns"`
	StatusSynonyms   map[string]string                    `mapstructure:"status_synonyms"`
	LocationTerms    map[string]string                    `mapstructure:"location_terms"`
	CategoryHome     map[string]string                    `mapstructure:"category_home"`
	CategoryDefaults map[string][]string                  `mapstructure:"category_defaults"`
	DefaultTables    []string                             `mapstructure:"default_tables"`
	DomainSources    []DomainSource                       `mapstructure:"domain_sources"`
}

// lexiconSchema validates the shape of the lexicon document before it is
// trusted. A malformed file fails startup, never an individual request.
var lexiconSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"tables"},
	"properties": map[string]interface{}{
		"tables": map[string]interface{}{
			"type":          "object",
			"minProperties": 1,
			"additionalProperties": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"user_fields":     stringArraySchema(),
					"product_fields":  stringArraySchema(),
					"customer_fields": stringArraySchema(),
					"status_fields":   stringArraySchema(),
					"date_fields":     stringArraySchema(),
					"location_fields": stringArraySchema(),
					"numeric_fields":  stringArraySchema(),
					"numeric_hints":   stringMapSchema(),
					"relationships": map[string]interface{}{
						"type": "object",
						"additionalProperties": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"foreign_key", "target_key"},
						},
					},
				},
			},
		},
		"aliases":           stringMapSchema(),
		"owner_columns":     stringMapSchema(),
		"status_synonyms":   stringMapSchema(),
		"location_terms":    stringMapSchema(),
		"category_home":     stringMapSchema(),
		"default_tables":    stringArraySchema(),
		"category_defaults": map[string]interface{}{"type": "object"},
		"domain_sources": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"table", "id_column", "value_column", "category"},
			},
		},
	},
}

func stringArraySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
}

func stringMapSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": map[string]interface{}{"type": "string"},
	}
}

// Load reads and validates a lexicon document from path. The document fully
// replaces the compiled-in default; callers fall back to Default() when no
// path is configured.
func Load(path string) (*Lexicon, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}

	if err := validateDocument(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}

	var doc fileLexicon
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("unmarshal lexicon %s: %w", path, err)
	}

	return fromFile(&doc)
}

func validateDocument(settings map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(lexiconSchema),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return fmt.Errorf("invalid lexicon: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func fromFile(doc *fileLexicon) (*Lexicon, error) {
	lex := &Lexicon{
		Tables:           make(map[string]models.TableFieldTaxonomy, len(doc.Tables)),
		TableAliases:     make(map[string]string),
		OwnerColumns:     doc.OwnerColumns,
		StatusSynonyms:   lowerKeys(doc.StatusSynonyms),
		LocationTerms:    lowerKeys(doc.LocationTerms),
		CategoryHome:     doc.CategoryHome,
		CategoryDefaults: doc.CategoryDefaults,
		DefaultTables:    doc.DefaultTables,
		DomainSources:    doc.DomainSources,
	}
	if lex.OwnerColumns == nil {
		lex.OwnerColumns = map[string]string{}
	}

	for name, tax := range doc.Tables {
		name = strings.ToLower(name)
		tax.Table = name
		lex.Tables[name] = tax
		// every canonical table name matches itself
		lex.TableAliases[name] = name
	}
	for alias, table := range doc.Aliases {
		table = strings.ToLower(table)
		if _, ok := lex.Tables[table]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown table %q", alias, table)
		}
		lex.TableAliases[strings.ToLower(alias)] = table
	}
	for _, src := range lex.DomainSources {
		if _, ok := lex.Tables[src.Table]; !ok {
			return nil, fmt.Errorf("domain source references unknown table %q", src.Table)
		}
	}
	for table := range lex.OwnerColumns {
		if _, ok := lex.Tables[table]; !ok {
			return nil, fmt.Errorf("owner column references unknown table %q", table)
		}
	}
	return lex, nil
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
