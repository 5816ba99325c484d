// internal/models/entity.go
package models

import "time"

// EntityKind classifies a recognized span of query text.
type EntityKind string

const (
	EntityTable          EntityKind = "table"
	EntityDomainValue    EntityKind = "domain_value"
	EntityPronoun        EntityKind = "pronoun"
	EntityTemporal       EntityKind = "temporal"
	EntityNumericFilter  EntityKind = "numeric_filter"
	EntityStatusFilter   EntityKind = "status_filter"
	EntityLocationFilter EntityKind = "location_filter"
)

// Span is a half-open character range [Start, End) in the original input.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share any character index.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// TimeRange is a resolved temporal filter. End is exclusive. OpenEnded means
// only the lower bound applies ("last month" style phrases).
type TimeRange struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end,omitempty"`
	OpenEnded bool      `json:"openEnded,omitempty"`
}

// NumericCompare is a resolved numeric comparison ("above 1000").
type NumericCompare struct {
	Operator Operator `json:"operator"`
	Value    int64    `json:"value"`
}

// Alternative is a disambiguation candidate for a domain value that matched
// more than one live record with similar confidence.
type Alternative struct {
	ID         string  `json:"id"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// EntityMatch is one recognized span in the input text. Instances are
// request-scoped and never mutated after the tagger emits them.
type EntityMatch struct {
	Text              string        `json:"text"`
	Kind              EntityKind    `json:"kind"`
	Table             string        `json:"table,omitempty"`
	Category          string        `json:"category,omitempty"`
	CanonicalValue    string        `json:"canonicalValue,omitempty"`
	CanonicalID       string        `json:"canonicalId,omitempty"`
	Span              Span          `json:"span"`
	Confidence        float64       `json:"confidence"`
	IsFilterCandidate bool          `json:"isFilterCandidate"`
	Alternatives      []Alternative `json:"alternatives,omitempty"`

	// Set only for the kinds that carry a typed resolution.
	TimeRange *TimeRange      `json:"timeRange,omitempty"`
	Compare   *NumericCompare `json:"compare,omitempty"`
}
