// internal/nlq/predicate/compiler.go

// Package predicate turns tagged entities into column-level filters for one
// target table, guided by the table's field taxonomy. Compilation is a pure
// function of entities + taxonomy: predicates from different entities are
// combined with AND, a single entity's column alternatives with OR.
package predicate

import (
	"strings"

	"querydesk/internal/models"
	"querydesk/internal/nlq/lexicon"
)

// Compile emits the filter predicates for table from the entity list.
// Entities that have no matching role columns on this table contribute
// nothing; that is the normal degradation path, not an error.
func Compile(lex *lexicon.Lexicon, table string, entities []models.EntityMatch) []models.FilterPredicate {
	tax, ok := lex.Taxonomy(table)
	if !ok {
		return nil
	}

	hints := contextHints(entities)
	var out []models.FilterPredicate
	orGroup := 0

	for _, e := range entities {
		if !e.IsFilterCandidate {
			continue
		}

		preds := compileEntity(lex, table, tax, e, hints, orGroup)
		if len(preds) > 0 {
			out = append(out, preds...)
			orGroup++
		}
	}
	return out
}

func compileEntity(lex *lexicon.Lexicon, table string, tax models.TableFieldTaxonomy, e models.EntityMatch, hints []string, orGroup int) []models.FilterPredicate {
	switch e.Kind {
	case models.EntityDomainValue:
		return spread(table, tax.FieldsForCategory(e.Category), models.OpContains, e.Text, orGroup, e.Text)

	case models.EntityPronoun:
		owner := lex.OwnerColumn(table)
		if owner == "" || e.CanonicalValue == "" {
			return nil
		}
		return []models.FilterPredicate{{
			Table: table, Column: owner, Operator: models.OpEquals,
			Value: e.CanonicalValue, OrGroup: orGroup, EntityText: e.Text,
		}}

	case models.EntityTemporal:
		if len(tax.DateFields) == 0 || e.TimeRange == nil {
			return nil
		}
		col := tax.DateFields[0]
		if e.TimeRange.OpenEnded {
			return []models.FilterPredicate{{
				Table: table, Column: col, Operator: models.OpGTE,
				Value: e.TimeRange.Start, OrGroup: orGroup, EntityText: e.Text,
			}}
		}
		return []models.FilterPredicate{{
			Table: table, Column: col, Operator: models.OpRange,
			Value: e.TimeRange.Start, Value2: e.TimeRange.End,
			OrGroup: orGroup, EntityText: e.Text,
		}}

	case models.EntityNumericFilter:
		if e.Compare == nil {
			return nil
		}
		col := numericColumn(tax, hints)
		if col == "" {
			return nil
		}
		return []models.FilterPredicate{{
			Table: table, Column: col, Operator: e.Compare.Operator,
			Value: e.Compare.Value, OrGroup: orGroup, EntityText: e.Text,
		}}

	case models.EntityStatusFilter:
		return spread(table, tax.StatusFields, models.OpEquals, e.CanonicalValue, orGroup, e.Text)

	case models.EntityLocationFilter:
		return spread(table, tax.LocationFields, models.OpContains, e.CanonicalValue, orGroup, e.Text)
	}
	return nil
}

// spread fans one value across every role column as an OR-group.
func spread(table string, columns []string, op models.Operator, value string, orGroup int, entityText string) []models.FilterPredicate {
	if value == "" {
		return nil
	}
	var out []models.FilterPredicate
	for _, col := range columns {
		out = append(out, models.FilterPredicate{
			Table: table, Column: col, Operator: op,
			Value: value, OrGroup: orGroup, EntityText: entityText,
		})
	}
	return out
}

// contextHints collects the lowercased words of every tagged span; a bare
// numeric comparison targets whichever numeric column those words hint at.
func contextHints(entities []models.EntityMatch) []string {
	var hints []string
	for _, e := range entities {
		for _, w := range strings.Fields(strings.ToLower(e.Text)) {
			hints = append(hints, w)
		}
	}
	return hints
}

func numericColumn(tax models.TableFieldTaxonomy, hints []string) string {
	for _, h := range hints {
		if col, ok := tax.NumericHints[h]; ok {
			return col
		}
	}
	if len(tax.NumericFields) > 0 {
		return tax.NumericFields[0]
	}
	return ""
}
