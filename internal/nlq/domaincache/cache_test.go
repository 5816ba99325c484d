package domaincache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
	"querydesk/internal/nlq/lexicon"
)

// ==========================
// Test Helper Functions
// ==========================

// countingStore records SelectAll calls and can fail selected tables.
type countingStore struct {
	mu       sync.Mutex
	calls    map[string]int
	rows     map[string][]models.Row
	failing  map[string]bool
	loadTime time.Duration
}

func newCountingStore(rows map[string][]models.Row) *countingStore {
	return &countingStore{
		calls:   make(map[string]int),
		rows:    rows,
		failing: make(map[string]bool),
	}
}

func (s *countingStore) SelectAll(_ context.Context, table string, _ int) ([]models.Row, error) {
	s.mu.Lock()
	s.calls[table]++
	failing := s.failing[table]
	s.mu.Unlock()

	if s.loadTime > 0 {
		time.Sleep(s.loadTime)
	}
	if failing {
		return nil, errors.New("connection refused")
	}
	return s.rows[table], nil
}

func (s *countingStore) SelectFiltered(ctx context.Context, table string, _ []models.FilterPredicate, limit int) ([]models.Row, error) {
	return s.SelectAll(ctx, table, limit)
}

func (s *countingStore) Count(_ context.Context, table string, _ []models.FilterPredicate) (int, error) {
	return len(s.rows[table]), nil
}

func (s *countingStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func defaultRows() map[string][]models.Row {
	return map[string][]models.Row{
		"products":  {{"id": 1, "name": "Laptop Pro 15"}},
		"users":     {{"id": 7, "name": "Priya Sharma"}},
		"customers": {{"id": 3, "name": "Acme Corp"}},
	}
}

func newTestCache(t *testing.T, store *countingStore) *Cache {
	t.Helper()
	return New(store, lexicon.Default(), 500, logger.NewTestLogger(t))
}

// ==========================
// Variation Index Tests
// ==========================

func TestCache_ExactLookupVariations(t *testing.T) {
	cache := newTestCache(t, newCountingStore(defaultRows()))
	cache.EnsureLoaded(context.Background())

	tests := []struct {
		key   string
		value string
	}{
		{"laptop pro 15", "Laptop Pro 15"}, // full value
		{"laptoppro15", "Laptop Pro 15"},   // whitespace stripped
		{"laptop", "Laptop Pro 15"},        // single word
		{"lapt", "Laptop Pro 15"},          // word prefix
		{"sharma", "Priya Sharma"},
		{"acme", "Acme Corp"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			entries := cache.Lookup(tt.key)
			require.NotEmpty(t, entries)
			assert.Equal(t, tt.value, entries[0].Value)
		})
	}
}

func TestCache_LookupIsCaseInsensitive(t *testing.T) {
	cache := newTestCache(t, newCountingStore(defaultRows()))
	cache.EnsureLoaded(context.Background())

	assert.NotEmpty(t, cache.Lookup("LAPTOP"))
	assert.NotEmpty(t, cache.Lookup("Acme Corp"))
}

func TestCache_LookupMiss(t *testing.T) {
	cache := newTestCache(t, newCountingStore(defaultRows()))
	cache.EnsureLoaded(context.Background())

	assert.Empty(t, cache.Lookup("typewriter"))
}

func TestCache_FuzzyCandidates(t *testing.T) {
	cache := newTestCache(t, newCountingStore(defaultRows()))
	cache.EnsureLoaded(context.Background())

	// token contains a variation
	entries := cache.FuzzyCandidates("laptops")
	require.Len(t, entries, 1)
	assert.Equal(t, "Laptop Pro 15", entries[0].Value)

	// variation contains the token
	entries = cache.FuzzyCandidates("shar")
	require.NotEmpty(t, entries)
	assert.Equal(t, "Priya Sharma", entries[0].Value)

	// short tokens never fuzzy-match
	assert.Empty(t, cache.FuzzyCandidates("la"))
}

func TestCache_FuzzyCandidatesDeterministic(t *testing.T) {
	// both values share the word-prefix variation "prin", and the token
	// matches the full values too, so entries are reachable through several
	// index keys at once
	rows := defaultRows()
	rows["products"] = []models.Row{
		{"id": 1, "name": "Printer"},
		{"id": 2, "name": "Printex"},
	}
	cache := newTestCache(t, newCountingStore(rows))
	cache.EnsureLoaded(context.Background())

	first := cache.FuzzyCandidates("print")
	require.Len(t, first, 2)
	assert.Equal(t, "Printer", first[0].Value)
	assert.Equal(t, "Printex", first[1].Value)

	for i := 0; i < 50; i++ {
		entries := cache.FuzzyCandidates("print")
		require.Len(t, entries, 2)
		assert.Equal(t, first[0].Value, entries[0].Value)
		assert.Equal(t, first[1].Value, entries[1].Value)
	}
}

func TestCache_PhrasesLongestFirst(t *testing.T) {
	cache := newTestCache(t, newCountingStore(defaultRows()))
	cache.EnsureLoaded(context.Background())

	phrases := cache.Phrases()
	require.Len(t, phrases, 3)
	for i := 1; i < len(phrases); i++ {
		assert.GreaterOrEqual(t, len(phrases[i-1]), len(phrases[i]))
	}
	assert.Contains(t, phrases, "laptop pro 15")
	assert.Contains(t, phrases, "priya sharma")
	assert.Contains(t, phrases, "acme corp")
}

func TestCache_EntryMetadata(t *testing.T) {
	cache := newTestCache(t, newCountingStore(defaultRows()))
	cache.EnsureLoaded(context.Background())

	entries := cache.Lookup("priya")
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0].ID)
	assert.Equal(t, "user", entries[0].Category)
	assert.Equal(t, "users", entries[0].Table)
}

func TestCache_SkipsEmptyValues(t *testing.T) {
	rows := defaultRows()
	rows["products"] = append(rows["products"], models.Row{"id": 9, "name": ""})
	cache := newTestCache(t, newCountingStore(rows))
	cache.EnsureLoaded(context.Background())

	for _, entries := range [][]*Entry{cache.Lookup(""), cache.FuzzyCandidates("")} {
		assert.Empty(t, entries)
	}
}

// ==========================
// Loading Behavior Tests
// ==========================

func TestCache_LoadHappensOnce(t *testing.T) {
	store := newCountingStore(defaultRows())
	cache := newTestCache(t, store)

	for i := 0; i < 5; i++ {
		cache.EnsureLoaded(context.Background())
	}

	// one SelectAll per domain source, ever
	assert.Equal(t, 3, store.totalCalls())
}

func TestCache_ConcurrentLoadIsSingleFlight(t *testing.T) {
	store := newCountingStore(defaultRows())
	store.loadTime = 10 * time.Millisecond
	cache := newTestCache(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.EnsureLoaded(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, store.totalCalls())
	assert.NotEmpty(t, cache.Lookup("laptop"))
}

func TestCache_PartialSourceFailureKeepsRest(t *testing.T) {
	store := newCountingStore(defaultRows())
	store.failing["products"] = true
	cache := newTestCache(t, store)

	cache.EnsureLoaded(context.Background())

	assert.Empty(t, cache.Lookup("laptop"))
	assert.NotEmpty(t, cache.Lookup("priya"))
	assert.NotEmpty(t, cache.Lookup("acme"))

	// a partial load still counts as loaded; no retry storm per request
	calls := store.totalCalls()
	cache.EnsureLoaded(context.Background())
	assert.Equal(t, calls, store.totalCalls())
}

func TestCache_AllSourcesFailing(t *testing.T) {
	store := newCountingStore(defaultRows())
	for table := range defaultRows() {
		store.failing[table] = true
	}
	cache := newTestCache(t, store)

	cache.EnsureLoaded(context.Background())
	assert.Empty(t, cache.Lookup("laptop"))

	err := cache.Refresh(context.Background())
	assert.Error(t, err)
}

func TestCache_RefreshPicksUpNewRows(t *testing.T) {
	store := newCountingStore(defaultRows())
	cache := newTestCache(t, store)
	cache.EnsureLoaded(context.Background())

	assert.Empty(t, cache.Lookup("tablet"))

	store.mu.Lock()
	store.rows["products"] = append(store.rows["products"], models.Row{"id": 11, "name": "Tablet X"})
	store.mu.Unlock()

	require.NoError(t, cache.Refresh(context.Background()))
	assert.NotEmpty(t, cache.Lookup("tablet"))
}

func TestBuildVariations(t *testing.T) {
	variations := buildVariations("Laptop Pro 15")

	assert.Contains(t, variations, "laptop pro 15")
	assert.Contains(t, variations, "laptoppro15")
	assert.Contains(t, variations, "laptop")
	assert.Contains(t, variations, "pro")
	assert.Contains(t, variations, "15")
	assert.Contains(t, variations, "lapt") // prefix of a word longer than 4
	assert.NotContains(t, variations, "")

	assert.Empty(t, buildVariations("   "))
}
