// internal/datastore/store.go

// Package datastore defines the relational data access capability the query
// pipeline consumes, and its PostgreSQL implementation. The pipeline never
// builds SQL itself; it hands compiled FilterPredicates to this collaborator.
package datastore

import (
	"context"

	"querydesk/internal/models"
)

// Store is the relational data access contract. Implementations must support
// case-insensitive substring match, equality, comparisons, and OR/AND
// composition of predicates, plus a row limit.
type Store interface {
	SelectAll(ctx context.Context, table string, limit int) ([]models.Row, error)
	SelectFiltered(ctx context.Context, table string, predicates []models.FilterPredicate, limit int) ([]models.Row, error)
	Count(ctx context.Context, table string, predicates []models.FilterPredicate) (int, error)
}
