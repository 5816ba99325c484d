// internal/nlq/lexicon/lexicon.go

// Package lexicon holds the immutable vocabulary the query pipeline matches
// against: table names and aliases, per-table field taxonomies, the synonym
// dictionary, and the table-relationship graph. All of it is process-wide
// configuration loaded once at startup; behavioral differences between
// deployments live in the lexicon file, not in code.
package lexicon

import (
	"sort"
	"strings"

	"querydesk/internal/models"
)

// DomainSource describes one table the domain value cache loads live values
// from, and the category those values resolve to.
type DomainSource struct {
	Table       string `mapstructure:"table"`
	IDColumn    string `mapstructure:"id_column"`
	ValueColumn string `mapstructure:"value_column"`
	Category    string `mapstructure:"category"`
}

// SynonymPhrase is a multi-word synonym dictionary entry ("in progress",
// "high priority") with the entity kind it resolves to.
type SynonymPhrase struct {
	Text      string
	Kind      models.EntityKind
	Canonical string
}

// Lexicon is the full static vocabulary. Fields are never mutated after
// construction, so it is safe for concurrent readers without locking.
type Lexicon struct {
	Tables           map[string]models.TableFieldTaxonomy
	TableAliases     map[string]string // lowercased alias -> canonical table
	OwnerColumns     map[string]string // table -> owning-user column for pronouns
	StatusSynonyms   map[string]string // lowercased term -> canonical status code
	LocationTerms    map[string]string // lowercased term -> canonical location
	CategoryHome     map[string]string // domain category -> its home table
	CategoryDefaults map[string][]string
	DefaultTables    []string
	DomainSources    []DomainSource
}

// CanonicalTable resolves a word to a table name, case-insensitively.
// The second return is false when the word names no table.
func (l *Lexicon) CanonicalTable(word string) (string, bool) {
	t, ok := l.TableAliases[strings.ToLower(word)]
	return t, ok
}

// IsTable reports whether name is one of the known canonical tables.
func (l *Lexicon) IsTable(name string) bool {
	_, ok := l.Tables[name]
	return ok
}

// Taxonomy returns the field taxonomy for a canonical table name.
func (l *Lexicon) Taxonomy(table string) (models.TableFieldTaxonomy, bool) {
	t, ok := l.Tables[table]
	return t, ok
}

// OwnerColumn returns the column that represents "owning user" for a table,
// or "" when the table has no user ownership concept.
func (l *Lexicon) OwnerColumn(table string) string {
	return l.OwnerColumns[table]
}

// Related reports whether two tables are linked in the relationship graph,
// in either direction.
func (l *Lexicon) Related(a, b string) bool {
	if ta, ok := l.Tables[a]; ok && ta.RelatedTo(b) {
		return true
	}
	if tb, ok := l.Tables[b]; ok && tb.RelatedTo(a) {
		return true
	}
	return false
}

// SynonymPhrases returns every multi-word synonym dictionary entry, used by
// the tagger's phrase pass. Single-word synonyms are matched token-wise.
func (l *Lexicon) SynonymPhrases() []SynonymPhrase {
	var out []SynonymPhrase
	for term, canonical := range l.StatusSynonyms {
		if strings.Contains(term, " ") {
			out = append(out, SynonymPhrase{Text: term, Kind: models.EntityStatusFilter, Canonical: canonical})
		}
	}
	for term, canonical := range l.LocationTerms {
		if strings.Contains(term, " ") {
			out = append(out, SynonymPhrase{Text: term, Kind: models.EntityLocationFilter, Canonical: canonical})
		}
	}
	// source maps iterate in random order; callers sort by length and rely
	// on a stable base order for equal-length ties
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// Default returns the compiled-in lexicon for the fixed business schema.
// Deployments override it with configs/lexicon.yaml; tests run against this.
func Default() *Lexicon {
	tables := map[string]models.TableFieldTaxonomy{
		"customers": {
			Table:          "customers",
			CustomerFields: []string{"name", "email"},
			LocationFields: []string{"city"},
			DateFields:     []string{"created_at"},
		},
		"products": {
			Table:         "products",
			ProductFields: []string{"name", "category"},
			NumericFields: []string{"price"},
			DateFields:    []string{"created_at"},
			NumericHints:  map[string]string{"price": "price", "cost": "price"},
		},
		"sales": {
			Table:          "sales",
			UserFields:     []string{"sales_rep"},
			ProductFields:  []string{"product_name"},
			CustomerFields: []string{"customer_name"},
			StatusFields:   []string{"status"},
			DateFields:     []string{"sale_date"},
			NumericFields:  []string{"total_amount", "quantity"},
			NumericHints: map[string]string{
				"sales": "total_amount", "revenue": "total_amount", "amount": "total_amount",
				"quantity": "quantity", "units": "quantity",
			},
			Relationships: map[string]models.Relationship{
				"products":  {ForeignKey: "product_id", TargetKey: "id"},
				"customers": {ForeignKey: "customer_id", TargetKey: "id"},
				"users":     {ForeignKey: "sales_rep", TargetKey: "id"},
			},
		},
		"tasks": {
			Table:        "tasks",
			UserFields:   []string{"assigned_to"},
			StatusFields: []string{"status", "priority"},
			DateFields:   []string{"due_date", "created_at"},
			Relationships: map[string]models.Relationship{
				"users": {ForeignKey: "assigned_to", TargetKey: "id"},
			},
		},
		"users": {
			Table:          "users",
			UserFields:     []string{"name", "email"},
			LocationFields: []string{"city"},
			DateFields:     []string{"created_at"},
		},
		"stock": {
			Table:          "stock",
			ProductFields:  []string{"product_name"},
			LocationFields: []string{"warehouse"},
			NumericFields:  []string{"quantity"},
			DateFields:     []string{"updated_at"},
			NumericHints:   map[string]string{"stock": "quantity", "quantity": "quantity", "units": "quantity"},
			Relationships: map[string]models.Relationship{
				"products": {ForeignKey: "product_id", TargetKey: "id"},
			},
		},
		"shifts": {
			Table:          "shifts",
			UserFields:     []string{"user_name"},
			StatusFields:   []string{"status"},
			DateFields:     []string{"shift_date"},
			LocationFields: []string{"location"},
			Relationships: map[string]models.Relationship{
				"users": {ForeignKey: "user_id", TargetKey: "id"},
			},
		},
		"attendance": {
			Table:        "attendance",
			UserFields:   []string{"user_name"},
			StatusFields: []string{"status"},
			DateFields:   []string{"date"},
			Relationships: map[string]models.Relationship{
				"users": {ForeignKey: "user_id", TargetKey: "id"},
			},
		},
	}

	aliases := map[string]string{
		"customer": "customers", "customers": "customers", "clients": "customers", "client": "customers",
		"product": "products", "products": "products", "item": "products", "items": "products",
		"sale": "sales", "sales": "sales", "orders": "sales", "order": "sales",
		"task": "tasks", "tasks": "tasks", "todo": "tasks", "todos": "tasks",
		"user": "users", "users": "users", "employee": "users", "employees": "users", "staff": "users",
		"stock": "stock", "inventory": "stock",
		"shift": "shifts", "shifts": "shifts",
		"attendance": "attendance",
	}

	statusSynonyms := map[string]string{
		"pending": "pending", "open": "pending", "waiting": "pending",
		"unfinished": "pending", "incomplete": "pending",
		"completed": "completed", "complete": "completed", "done": "completed",
		"finished": "completed", "closed": "completed",
		"in progress": "in-progress", "in-progress": "in-progress",
		"ongoing": "in-progress", "active": "in-progress", "started": "in-progress",
		"cancelled": "cancelled", "canceled": "cancelled", "aborted": "cancelled",
		"high priority": "high", "urgent": "high",
		"low priority": "low",
	}

	locationTerms := map[string]string{
		"new york": "New York", "chicago": "Chicago", "boston": "Boston",
		"dallas": "Dallas", "seattle": "Seattle", "austin": "Austin",
		"main warehouse": "Main Warehouse", "east warehouse": "East Warehouse",
		"west warehouse": "West Warehouse",
	}

	return &Lexicon{
		Tables:       tables,
		TableAliases: aliases,
		OwnerColumns: map[string]string{
			"tasks": "assigned_to", "sales": "sales_rep",
			"shifts": "user_id", "attendance": "user_id", "users": "id",
		},
		StatusSynonyms: statusSynonyms,
		LocationTerms:  locationTerms,
		CategoryHome: map[string]string{
			"product": "products", "customer": "customers", "user": "users",
		},
		CategoryDefaults: map[string][]string{
			"product":  {"products", "sales", "stock"},
			"customer": {"customers", "sales"},
			"user":     {"users", "tasks", "attendance", "shifts"},
		},
		DefaultTables: []string{"tasks", "sales", "customers"},
		DomainSources: []DomainSource{
			{Table: "products", IDColumn: "id", ValueColumn: "name", Category: "product"},
			{Table: "users", IDColumn: "id", ValueColumn: "name", Category: "user"},
			{Table: "customers", IDColumn: "id", ValueColumn: "name", Category: "customer"},
		},
	}
}
