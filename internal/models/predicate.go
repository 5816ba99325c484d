// internal/models/predicate.go
package models

import "fmt"

// Operator is a column-level comparison operator supported by the datastore.
type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpGT       Operator = "gt"
	OpGTE      Operator = "gte"
	OpLT       Operator = "lt"
	OpRange    Operator = "range"
)

// FilterPredicate is one column-level constraint compiled from an entity for
// a specific table. Predicates sharing an OrGroup came from the same entity
// and are combined with OR; distinct groups are combined with AND.
type FilterPredicate struct {
	Table    string      `json:"table"`
	Column   string      `json:"column"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
	Value2   interface{} `json:"value2,omitempty"` // range upper bound
	OrGroup  int         `json:"orGroup"`

	// EntityText is the verbatim span the predicate came from, kept for
	// applied-filter display and the homogeneity self-check.
	EntityText string `json:"entityText,omitempty"`
}

// Display renders the predicate for UI consumption.
func (p FilterPredicate) Display() string {
	switch p.Operator {
	case OpEquals:
		return fmt.Sprintf("%s.%s = %v", p.Table, p.Column, p.Value)
	case OpContains:
		return fmt.Sprintf("%s.%s contains %v", p.Table, p.Column, p.Value)
	case OpGT:
		return fmt.Sprintf("%s.%s > %v", p.Table, p.Column, p.Value)
	case OpGTE:
		return fmt.Sprintf("%s.%s >= %v", p.Table, p.Column, p.Value)
	case OpLT:
		return fmt.Sprintf("%s.%s < %v", p.Table, p.Column, p.Value)
	case OpRange:
		return fmt.Sprintf("%s.%s in [%v, %v)", p.Table, p.Column, p.Value, p.Value2)
	}
	return fmt.Sprintf("%s.%s %s %v", p.Table, p.Column, p.Operator, p.Value)
}
