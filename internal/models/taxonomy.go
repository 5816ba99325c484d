// internal/models/taxonomy.go
package models

// Relationship links two tables through a foreign key pair.
type Relationship struct {
	ForeignKey string `json:"foreignKey" mapstructure:"foreign_key"`
	TargetKey  string `json:"targetKey" mapstructure:"target_key"`
}

// TableFieldTaxonomy is the static description of which columns of a table
// play which semantic role. Loaded once at startup and never mutated.
type TableFieldTaxonomy struct {
	Table          string                  `json:"table" mapstructure:"table"`
	UserFields     []string                `json:"userFields" mapstructure:"user_fields"`
	ProductFields  []string                `json:"productFields" mapstructure:"product_fields"`
	CustomerFields []string                `json:"customerFields" mapstructure:"customer_fields"`
	StatusFields   []string                `json:"statusFields" mapstructure:"status_fields"`
	DateFields     []string                `json:"dateFields" mapstructure:"date_fields"`
	LocationFields []string                `json:"locationFields" mapstructure:"location_fields"`
	NumericFields  []string                `json:"numericFields" mapstructure:"numeric_fields"`
	Relationships  map[string]Relationship `json:"relationships" mapstructure:"relationships"`

	// NumericHints maps a context keyword seen in the query ("stock",
	// "revenue") to the numeric column a bare comparison should target.
	NumericHints map[string]string `json:"numericHints" mapstructure:"numeric_hints"`
}

// FieldsForCategory returns the role columns a domain-value category maps to.
func (t TableFieldTaxonomy) FieldsForCategory(category string) []string {
	switch category {
	case "product":
		return t.ProductFields
	case "user":
		return t.UserFields
	case "customer":
		return t.CustomerFields
	}
	return nil
}

// RelatedTo reports whether the taxonomy declares a relationship with other.
func (t TableFieldTaxonomy) RelatedTo(other string) bool {
	_, ok := t.Relationships[other]
	return ok
}

// AllColumns returns every column the taxonomy names, deduplicated.
func (t TableFieldTaxonomy) AllColumns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{
		t.UserFields, t.ProductFields, t.CustomerFields,
		t.StatusFields, t.DateFields, t.LocationFields, t.NumericFields,
	} {
		for _, col := range group {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}
