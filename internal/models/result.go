// internal/models/result.go
package models

// Row is one record returned by the datastore collaborator.
type Row map[string]interface{}

// QueryResult is the aggregated outcome of executing the per-table lookups.
type QueryResult struct {
	RowsByTable    map[string][]Row `json:"rowsByTable"`
	MergedRows     []Row            `json:"mergedRows"`
	TotalRows      int              `json:"totalRows"`
	Homogeneity    float64          `json:"homogeneity"`
	Summary        string           `json:"summary"`
	AppliedFilters []string         `json:"appliedFilters"`
	FailedTables   []string         `json:"failedTables,omitempty"`
	FromCache      bool             `json:"fromCache,omitempty"`
}

// QueryResponse is the full pipeline output for one request.
type QueryResponse struct {
	RequestID    string                       `json:"requestId"`
	Query        string                       `json:"query"`
	Entities     []EntityMatch                `json:"entities"`
	TargetTables []string                     `json:"targetTables"`
	Predicates   map[string][]FilterPredicate `json:"predicates,omitempty"`
	Result       *QueryResult                 `json:"result"`
}
