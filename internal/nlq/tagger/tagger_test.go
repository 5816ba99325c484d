package tagger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
	"querydesk/internal/nlq/domaincache"
	"querydesk/internal/nlq/lexicon"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeStore serves the canned domain rows the cache loads at startup.
type fakeStore struct {
	rows map[string][]models.Row
}

func (f *fakeStore) SelectAll(_ context.Context, table string, _ int) ([]models.Row, error) {
	return f.rows[table], nil
}

func (f *fakeStore) SelectFiltered(_ context.Context, table string, _ []models.FilterPredicate, _ int) ([]models.Row, error) {
	return f.rows[table], nil
}

func (f *fakeStore) Count(_ context.Context, table string, _ []models.FilterPredicate) (int, error) {
	return len(f.rows[table]), nil
}

func testDomainRows() map[string][]models.Row {
	return map[string][]models.Row{
		"products": {
			{"id": 1, "name": "Laptop Pro 15"},
			{"id": 2, "name": "Monitor"},
		},
		"users": {
			{"id": 7, "name": "Priya Sharma"},
		},
		"customers": {
			{"id": 3, "name": "Acme Corp"},
		},
	}
}

func newTestTagger(t *testing.T) *Tagger {
	t.Helper()
	return newTestTaggerWithRows(t, testDomainRows())
}

func newTestTaggerWithRows(t *testing.T, rows map[string][]models.Row) *Tagger {
	t.Helper()
	log := logger.NewTestLogger(t)
	lex := lexicon.Default()
	cache := domaincache.New(&fakeStore{rows: rows}, lex, 500, log)
	cache.EnsureLoaded(context.Background())
	return New(lex, cache, log)
}

var testNow = time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC) // a Wednesday

func tagText(t *testing.T, text string) []models.EntityMatch {
	t.Helper()
	return newTestTagger(t).Tag(text, Context{UserID: "user-42", Now: testNow})
}

func findKind(entities []models.EntityMatch, kind models.EntityKind) []models.EntityMatch {
	var out []models.EntityMatch
	for _, e := range entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ==========================
// Core Functionality Tests
// ==========================

func TestTag_TableNames(t *testing.T) {
	entities := tagText(t, "show customers and orders")

	tables := findKind(entities, models.EntityTable)
	require.Len(t, tables, 2)

	assert.Equal(t, "customers", tables[0].Table)
	assert.Equal(t, 0.95, tables[0].Confidence) // canonical name
	assert.False(t, tables[0].IsFilterCandidate)

	assert.Equal(t, "sales", tables[1].Table) // alias "orders"
	assert.Equal(t, "orders", tables[1].Text)
	assert.Equal(t, 0.9, tables[1].Confidence)
}

func TestTag_DomainValueSingleWord(t *testing.T) {
	entities := tagText(t, "laptop sales")

	values := findKind(entities, models.EntityDomainValue)
	require.Len(t, values, 1)

	v := values[0]
	assert.Equal(t, "laptop", v.Text)
	assert.Equal(t, "product", v.Category)
	assert.Equal(t, "products", v.Table)
	assert.Equal(t, "Laptop Pro 15", v.CanonicalValue)
	assert.Equal(t, "1", v.CanonicalID)
	assert.Equal(t, 0.85, v.Confidence) // word match, not the full value
	assert.True(t, v.IsFilterCandidate)

	tables := findKind(entities, models.EntityTable)
	require.Len(t, tables, 1)
	assert.Equal(t, "sales", tables[0].Table)
}

func TestTag_DomainValuePhrase(t *testing.T) {
	entities := tagText(t, "sales for Laptop Pro 15 this month")

	values := findKind(entities, models.EntityDomainValue)
	require.Len(t, values, 1)

	v := values[0]
	assert.Equal(t, "Laptop Pro 15", v.Text)
	assert.Equal(t, "Laptop Pro 15", v.CanonicalValue)
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, "product", v.Category)
}

func TestTag_DomainValueFuzzy(t *testing.T) {
	entities := tagText(t, "laptops in stock")

	values := findKind(entities, models.EntityDomainValue)
	require.Len(t, values, 1)
	assert.Equal(t, "laptops", values[0].Text)
	assert.Equal(t, "Laptop Pro 15", values[0].CanonicalValue)
	assert.Equal(t, 0.8, values[0].Confidence)

	tables := findKind(entities, models.EntityTable)
	require.Len(t, tables, 1)
	assert.Equal(t, "stock", tables[0].Table)
}

func TestTag_DomainValueExactFullValue(t *testing.T) {
	entities := tagText(t, "monitor sales")

	values := findKind(entities, models.EntityDomainValue)
	require.Len(t, values, 1)
	assert.Equal(t, "Monitor", values[0].CanonicalValue)
	assert.Equal(t, 0.95, values[0].Confidence) // token equals the full value
}

func TestTag_Pronoun(t *testing.T) {
	entities := tagText(t, "show my tasks")

	pronouns := findKind(entities, models.EntityPronoun)
	require.Len(t, pronouns, 1)
	assert.Equal(t, "my", pronouns[0].Text)
	assert.Equal(t, "user-42", pronouns[0].CanonicalValue)
	assert.True(t, pronouns[0].IsFilterCandidate)
}

func TestTag_PronounWithoutIdentity(t *testing.T) {
	tagger := newTestTagger(t)
	entities := tagger.Tag("show my tasks", Context{Now: testNow})

	assert.Empty(t, findKind(entities, models.EntityPronoun))
	// the table is still recognized
	assert.Len(t, findKind(entities, models.EntityTable), 1)
}

func TestTag_Temporal(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		text      string
		canonical string
		start     time.Time
		end       time.Time
		openEnded bool
	}{
		{
			name:      "today",
			text:      "tasks due today",
			canonical: "2025-03-12",
			start:     time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "yesterday",
			text:      "sales yesterday",
			canonical: "2025-03-11",
			start:     time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "this week",
			text:      "shifts this week",
			canonical: "this-week",
			start:     monday,
			end:       monday.AddDate(0, 0, 7),
		},
		{
			name:      "last week",
			text:      "tasks due last week",
			canonical: "last-week",
			start:     monday.AddDate(0, 0, -7),
			openEnded: true,
		},
		{
			name:      "this month",
			text:      "sales this month",
			canonical: "this-month",
			start:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "last month",
			text:      "attendance last month",
			canonical: "last-month",
			start:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			openEnded: true,
		},
		{
			name:      "this year",
			text:      "sales this year",
			canonical: "this-year",
			start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "last year",
			text:      "sales last year",
			canonical: "last-year",
			start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			openEnded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities := tagText(t, tt.text)

			temporal := findKind(entities, models.EntityTemporal)
			require.Len(t, temporal, 1, "expected exactly one temporal entity")

			e := temporal[0]
			assert.Equal(t, tt.canonical, e.CanonicalValue)
			require.NotNil(t, e.TimeRange)
			assert.True(t, tt.start.Equal(e.TimeRange.Start), "start: want %v got %v", tt.start, e.TimeRange.Start)
			assert.Equal(t, tt.openEnded, e.TimeRange.OpenEnded)
			if !tt.openEnded {
				assert.True(t, tt.end.Equal(e.TimeRange.End), "end: want %v got %v", tt.end, e.TimeRange.End)
			}
		})
	}
}

func TestTag_TemporalPhraseIsSingleEntity(t *testing.T) {
	entities := tagText(t, "tasks due last week")

	temporal := findKind(entities, models.EntityTemporal)
	require.Len(t, temporal, 1)
	assert.Equal(t, "last week", temporal[0].Text)

	// neither "last" nor "week" shows up as anything else
	for _, e := range entities {
		if e.Kind != models.EntityTemporal {
			assert.NotContains(t, []string{"last", "week"}, e.Text)
		}
	}
}

func TestTag_Numeric(t *testing.T) {
	tests := []struct {
		text  string
		op    models.Operator
		value int64
		span  string
	}{
		{"sales above 1000", models.OpGT, 1000, "above 1000"},
		{"sales over 500", models.OpGT, 500, "over 500"},
		{"revenue greater than 250", models.OpGT, 250, "greater than 250"},
		{"quantity more than 10", models.OpGT, 10, "more than 10"},
		{"stock below 50", models.OpLT, 50, "below 50"},
		{"stock under 20", models.OpLT, 20, "under 20"},
		{"price less than 300", models.OpLT, 300, "less than 300"},
	}

	for _, tt := range tests {
		t.Run(tt.span, func(t *testing.T) {
			entities := tagText(t, tt.text)

			numeric := findKind(entities, models.EntityNumericFilter)
			require.Len(t, numeric, 1)

			e := numeric[0]
			assert.Equal(t, tt.span, e.Text)
			require.NotNil(t, e.Compare)
			assert.Equal(t, tt.op, e.Compare.Operator)
			assert.Equal(t, tt.value, e.Compare.Value)
		})
	}
}

func TestTag_StatusKeywords(t *testing.T) {
	tests := []struct {
		word      string
		canonical string
	}{
		{"pending", "pending"},
		{"done", "completed"},
		{"urgent", "high"},
		{"cancelled", "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			entities := tagText(t, tt.word+" tasks")

			status := findKind(entities, models.EntityStatusFilter)
			require.Len(t, status, 1)
			assert.Equal(t, tt.canonical, status[0].CanonicalValue)
			assert.True(t, status[0].IsFilterCandidate)
		})
	}
}

func TestTag_StatusPhrase(t *testing.T) {
	entities := tagText(t, "tasks in progress")

	status := findKind(entities, models.EntityStatusFilter)
	require.Len(t, status, 1)
	assert.Equal(t, "in progress", status[0].Text)
	assert.Equal(t, "in-progress", status[0].CanonicalValue)
}

func TestTag_LocationKeyword(t *testing.T) {
	entities := tagText(t, "customers in chicago")

	locations := findKind(entities, models.EntityLocationFilter)
	require.Len(t, locations, 1)
	assert.Equal(t, "Chicago", locations[0].CanonicalValue)
}

func TestTag_LocationPhrase(t *testing.T) {
	entities := tagText(t, "stock in the main warehouse")

	locations := findKind(entities, models.EntityLocationFilter)
	require.Len(t, locations, 1)
	assert.Equal(t, "main warehouse", locations[0].Text)
	assert.Equal(t, "Main Warehouse", locations[0].CanonicalValue)
}

// ==========================
// Invariant Tests
// ==========================

func TestTag_SpansNeverOverlap(t *testing.T) {
	queries := []string{
		"show my pending tasks due last week",
		"laptop sales above 1000 this month",
		"sales for Laptop Pro 15 by Priya Sharma yesterday",
		"urgent tasks in progress assigned to me",
		"stock below 50 in the main warehouse",
		"customers in new york and acme orders",
	}

	tagger := newTestTagger(t)
	for _, q := range queries {
		entities := tagger.Tag(q, Context{UserID: "user-42", Now: testNow})
		for i := range entities {
			for j := i + 1; j < len(entities); j++ {
				assert.False(t, entities[i].Span.Overlaps(entities[j].Span),
					"query %q: %q at %v overlaps %q at %v",
					q, entities[i].Text, entities[i].Span, entities[j].Text, entities[j].Span)
			}
		}
	}
}

func TestTag_SpansMatchText(t *testing.T) {
	text := "show my pending tasks due last week"
	for _, e := range tagText(t, text) {
		assert.Equal(t, text[e.Span.Start:e.Span.End], e.Text)
	}
}

func TestTag_Deterministic(t *testing.T) {
	tagger := newTestTagger(t)
	rc := Context{UserID: "user-42", Now: testNow}
	text := "laptop sales above 1000 for acme this month"

	first := tagger.Tag(text, rc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, tagger.Tag(text, rc))
	}
}

func TestTag_FuzzyCanonicalValueIsStable(t *testing.T) {
	// two products reachable through the shared "prin" variation; the
	// canonical pick must not drift between identical calls
	rows := testDomainRows()
	rows["products"] = []models.Row{
		{"id": 1, "name": "Printer"},
		{"id": 2, "name": "Printex"},
	}
	tagger := newTestTaggerWithRows(t, rows)
	rc := Context{UserID: "user-42", Now: testNow}

	first := tagger.Tag("print sales", rc)
	values := findKind(first, models.EntityDomainValue)
	require.Len(t, values, 1)
	assert.Equal(t, "Printer", values[0].CanonicalValue)
	require.Len(t, values[0].Alternatives, 1)
	assert.Equal(t, "Printex", values[0].Alternatives[0].Value)

	for i := 0; i < 50; i++ {
		assert.Equal(t, first, tagger.Tag("print sales", rc))
	}
}

func TestTag_TableNameWinsOverDomainValue(t *testing.T) {
	// a customer literally named after a table: the table pass outranks
	// both the phrase pass and the domain-value passes on the same span
	rows := testDomainRows()
	rows["customers"] = []models.Row{{"id": 3, "name": "Sales Corp"}}
	tagger := newTestTaggerWithRows(t, rows)
	rc := Context{UserID: "user-42", Now: testNow}

	entities := tagger.Tag("sales", rc)
	require.Len(t, entities, 1)
	assert.Equal(t, models.EntityTable, entities[0].Kind)
	assert.Equal(t, "sales", entities[0].Table)

	entities = tagger.Tag("show sales corp", rc)
	tables := findKind(entities, models.EntityTable)
	require.Len(t, tables, 1)
	assert.Equal(t, "sales", tables[0].Table)
	for _, e := range entities {
		assert.NotEqual(t, "sales corp", e.Text)
	}

	// the leftover word still resolves to the customer on its own
	values := findKind(entities, models.EntityDomainValue)
	require.Len(t, values, 1)
	assert.Equal(t, "corp", values[0].Text)
	assert.Equal(t, "Sales Corp", values[0].CanonicalValue)
}

func TestTag_SortedBySpanStart(t *testing.T) {
	entities := tagText(t, "urgent laptop sales above 1000 this month")
	for i := 1; i < len(entities); i++ {
		assert.LessOrEqual(t, entities[i-1].Span.Start, entities[i].Span.Start)
	}
}

// ==========================
// Edge Cases
// ==========================

func TestTag_EmptyText(t *testing.T) {
	assert.Empty(t, tagText(t, ""))
}

func TestTag_NoRecognizableEntities(t *testing.T) {
	assert.Empty(t, tagText(t, "hello there friend"))
}

func TestTag_TableInsideLargerWordIgnored(t *testing.T) {
	// "wholesale" must not match the "sale" alias
	entities := tagText(t, "wholesale figures")
	assert.Empty(t, findKind(entities, models.EntityTable))
}

func TestTag_ColdCacheStillTagsStaticVocabulary(t *testing.T) {
	log := logger.NewTestLogger(t)
	lex := lexicon.Default()
	cache := domaincache.New(&fakeStore{rows: nil}, lex, 500, log)
	tagger := New(lex, cache, log)

	entities := tagger.Tag("my pending tasks due today", Context{UserID: "user-42", Now: testNow})

	assert.Len(t, findKind(entities, models.EntityTable), 1)
	assert.Len(t, findKind(entities, models.EntityPronoun), 1)
	assert.Len(t, findKind(entities, models.EntityStatusFilter), 1)
	assert.Len(t, findKind(entities, models.EntityTemporal), 1)
	assert.Empty(t, findKind(entities, models.EntityDomainValue))
}
