// internal/nlq/resolver/resolver.go

// Package resolver expands the tagged entities into the ordered set of
// tables that must be queried, using the lexicon's relationship graph.
// Resolution is a pure function of its inputs: explicitly named tables come
// first, graph-inferred tables after, in order of discovery. The first table
// in the result is the primary table the response summary leads with.
package resolver

import (
	"querydesk/internal/models"
	"querydesk/internal/nlq/lexicon"
)

// Resolve returns the ordered target-table set for the entity list. An empty
// entity set falls back to the lexicon's default tables rather than failing.
func Resolve(lex *lexicon.Lexicon, entities []models.EntityMatch) []string {
	set := newOrderedSet()

	// rule 1: every explicitly named table
	for _, e := range entities {
		if e.Kind == models.EntityTable && e.Table != "" {
			set.add(e.Table)
		}
	}

	// rules 2-3: expand domain values through the relationship graph
	for _, e := range entities {
		if e.Kind != models.EntityDomainValue || e.Category == "" {
			continue
		}
		home, ok := lex.CategoryHome[e.Category]
		if !ok {
			continue
		}

		related := false
		for _, t := range set.items {
			if t == home || lex.Related(t, home) {
				related = true
				break
			}
		}
		if related {
			set.add(home)
			continue
		}

		// no explicit table to anchor on: bring in the category defaults
		for _, t := range lex.CategoryDefaults[e.Category] {
			set.add(t)
		}
	}

	// rule 4: nothing recognizable at all
	if set.len() == 0 {
		for _, t := range lex.DefaultTables {
			set.add(t)
		}
	}

	return set.items
}

type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(item string) {
	if item == "" || s.seen[item] {
		return
	}
	s.seen[item] = true
	s.items = append(s.items, item)
}

func (s *orderedSet) len() int {
	return len(s.items)
}
