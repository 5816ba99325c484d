// internal/nlq/domaincache/cache.go

// Package domaincache loads live domain values (product, user, and customer
// names) into an in-process lookup structure supporting exact and fuzzy
// substring matching. The cache is shared, read-mostly state; the first load
// is guarded so concurrent callers await one in-flight load instead of
// issuing duplicates.
package domaincache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"querydesk/internal/common/errors"
	"querydesk/internal/common/logger"
	"querydesk/internal/common/metrics"
	"querydesk/internal/datastore"
	"querydesk/internal/nlq/lexicon"
)

const minPrefixLen = 4

// Entry is one canonical live record all of whose variations map back to it.
type Entry struct {
	ID       string
	Value    string // display value, original case
	Category string // product | user | customer
	Table    string
}

// Cache holds the variation index. Safe for concurrent use.
type Cache struct {
	store  datastore.Store
	lex    *lexicon.Lexicon
	logger logger.Logger
	limit  int

	mu      sync.Mutex
	loaded  bool
	loading chan struct{} // non-nil while a load is in flight

	index atomicIndex
}

// atomicIndex is swapped wholesale on load so readers never see a partial
// index. Guarded by Cache.mu for writes; reads take the read path below.
type atomicIndex struct {
	mu         sync.RWMutex
	variations map[string][]*Entry
	phrases    []string // multi-word full values, longest first
}

func New(store datastore.Store, lex *lexicon.Lexicon, limit int, log logger.Logger) *Cache {
	return &Cache{
		store:  store,
		lex:    lex,
		limit:  limit,
		logger: log.With(map[string]interface{}{"component": "domaincache"}),
	}
}

// EnsureLoaded performs the one-time load. Idempotent and safe to call
// concurrently: a second caller blocks on the in-flight load and observes
// its completed state. Load failure is non-fatal — the cache simply stays
// in its previous (possibly empty) state.
func (c *Cache) EnsureLoaded(ctx context.Context) {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return
	}
	if c.loading != nil {
		ch := c.loading
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
		}
		return
	}
	ch := make(chan struct{})
	c.loading = ch
	c.mu.Unlock()

	ok := c.load(ctx)

	c.mu.Lock()
	c.loaded = ok
	c.loading = nil
	c.mu.Unlock()
	close(ch)
}

// Refresh forces a reload regardless of current state.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()

	c.EnsureLoaded(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return errors.New(errors.ErrCodeCacheLoadFailed, "domain value cache refresh failed")
	}
	return nil
}

func (c *Cache) load(ctx context.Context) bool {
	variations := make(map[string][]*Entry)
	var phrases []string
	failures := 0

	for _, src := range c.lex.DomainSources {
		rows, err := c.store.SelectAll(ctx, src.Table, c.limit)
		if err != nil {
			failures++
			qe := errors.NewCacheLoadError(src.Table, err)
			c.logger.WithError(qe).Warn("domain value load failed", map[string]interface{}{
				"table": src.Table,
			})
			continue
		}

		for _, row := range rows {
			id := fmt.Sprint(row[src.IDColumn])
			value, _ := row[src.ValueColumn].(string)
			if value == "" {
				continue
			}
			entry := &Entry{ID: id, Value: value, Category: src.Category, Table: src.Table}
			for _, v := range buildVariations(value) {
				variations[v] = appendUnique(variations[v], entry)
			}
			lower := strings.ToLower(value)
			if strings.Contains(lower, " ") {
				phrases = append(phrases, lower)
			}
		}
	}

	if failures == len(c.lex.DomainSources) && failures > 0 {
		metrics.DomainCacheRefreshes.WithLabelValues("failure").Inc()
		return false
	}

	// longest-first so longer phrases win ties in the tagger's phrase pass
	sortByLengthDesc(phrases)

	c.index.mu.Lock()
	c.index.variations = variations
	c.index.phrases = phrases
	c.index.mu.Unlock()

	entries := countEntries(variations)
	metrics.DomainCacheRefreshes.WithLabelValues("success").Inc()
	metrics.DomainCacheEntries.Set(float64(entries))
	c.logger.Info("domain value cache loaded", map[string]interface{}{
		"variations": len(variations),
		"entries":    entries,
	})
	return true
}

// Lookup returns the entries registered under an exact variation key.
func (c *Cache) Lookup(key string) []*Entry {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return c.index.variations[strings.ToLower(key)]
}

// FuzzyCandidates tests substring containment in both directions between the
// token and every cached variation, per the tagger's fuzzy pass. Matched
// variation keys are sorted before entries are collected: the first entry
// becomes the tagger's canonical resolution, and map iteration order must
// never leak into it.
func (c *Cache) FuzzyCandidates(token string) []*Entry {
	token = strings.ToLower(token)
	if len(token) < 3 {
		return nil
	}

	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	var matched []string
	for variation := range c.index.variations {
		if strings.Contains(token, variation) || strings.Contains(variation, token) {
			matched = append(matched, variation)
		}
	}
	sort.Strings(matched)

	var out []*Entry
	for _, variation := range matched {
		for _, e := range c.index.variations[variation] {
			out = appendUnique(out, e)
		}
	}
	return out
}

// Phrases returns every cached multi-word value, longest first.
func (c *Cache) Phrases() []string {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return c.index.phrases
}

// buildVariations derives the matchable forms of one value: the lowercased
// full value, the whitespace-stripped form, each word, and short word
// prefixes.
func buildVariations(value string) []string {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return nil
	}

	seen := map[string]bool{lower: true}
	out := []string{lower}

	if stripped := strings.Join(strings.Fields(lower), ""); !seen[stripped] {
		seen[stripped] = true
		out = append(out, stripped)
	}

	for _, word := range strings.Fields(lower) {
		if !seen[word] {
			seen[word] = true
			out = append(out, word)
		}
		if len(word) > minPrefixLen {
			prefix := word[:minPrefixLen]
			if !seen[prefix] {
				seen[prefix] = true
				out = append(out, prefix)
			}
		}
	}
	return out
}

func appendUnique(entries []*Entry, e *Entry) []*Entry {
	for _, existing := range entries {
		if existing == e {
			return entries
		}
	}
	return append(entries, e)
}

func countEntries(variations map[string][]*Entry) int {
	seen := make(map[*Entry]bool)
	for _, entries := range variations {
		for _, e := range entries {
			seen[e] = true
		}
	}
	return len(seen)
}

func sortByLengthDesc(phrases []string) {
	sort.SliceStable(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
}
