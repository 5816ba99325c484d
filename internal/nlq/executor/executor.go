// internal/nlq/executor/executor.go

// Package executor runs the per-table lookups and aggregates them into one
// response. Table queries have no data dependency on each other, so they fan
// out concurrently with a bounded per-call timeout; a failed or timed-out
// table contributes zero rows and never aborts its siblings.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"querydesk/internal/common/logger"
	"querydesk/internal/common/metrics"
	"querydesk/internal/datastore"
	"querydesk/internal/models"
)

type Executor struct {
	store  datastore.Store
	cache  *ResultCache // nil when result caching is disabled
	logger logger.Logger

	rowLimit        int
	perTableTimeout time.Duration
}

type Options struct {
	RowLimit        int
	PerTableTimeout time.Duration
}

func New(store datastore.Store, cache *ResultCache, log logger.Logger, opts Options) *Executor {
	if opts.RowLimit <= 0 {
		opts.RowLimit = 50
	}
	if opts.PerTableTimeout <= 0 {
		opts.PerTableTimeout = 3 * time.Second
	}
	return &Executor{
		store:           store,
		cache:           cache,
		logger:          log.With(map[string]interface{}{"component": "executor"}),
		rowLimit:        opts.RowLimit,
		perTableTimeout: opts.PerTableTimeout,
	}
}

// Execute queries every target table concurrently and aggregates the rows.
// The error return covers only total infrastructure failure; per-table
// failures are folded into the result as empty row sets.
func (e *Executor) Execute(ctx context.Context, targets []string, predicates map[string][]models.FilterPredicate) *models.QueryResult {
	if cached, ok := e.cache.get(ctx, targets, predicates); ok {
		cached.FromCache = true
		return cached
	}

	rowsByTable := make(map[string][]models.Row, len(targets))
	var failed []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, table := range targets {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			// a panicking store must not take down sibling queries
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					defer mu.Unlock()
					metrics.TableQueries.WithLabelValues(table, "panic").Inc()
					e.logger.Error("table query panicked, recording zero rows", map[string]interface{}{
						"table": table,
						"panic": fmt.Sprint(r),
					})
					rowsByTable[table] = nil
					failed = append(failed, table)
				}
			}()

			tctx, cancel := context.WithTimeout(ctx, e.perTableTimeout)
			defer cancel()

			rows, err := e.store.SelectFiltered(tctx, table, predicates[table], e.rowLimit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.TableQueries.WithLabelValues(table, "error").Inc()
				e.logger.WithError(err).Warn("table query failed, recording zero rows", map[string]interface{}{
					"table": table,
				})
				rowsByTable[table] = nil
				failed = append(failed, table)
				return
			}
			metrics.TableQueries.WithLabelValues(table, "success").Inc()
			rowsByTable[table] = rows
		}(table)
	}
	wg.Wait()

	result := aggregate(targets, rowsByTable, predicates, failed)
	e.cache.put(ctx, targets, predicates, result)
	return result
}

// aggregate merges per-table rows, computes counts and the homogeneity
// score, and renders the summary text.
func aggregate(targets []string, rowsByTable map[string][]models.Row, predicates map[string][]models.FilterPredicate, failed []string) *models.QueryResult {
	var merged []models.Row
	total := 0
	var parts []string
	for _, table := range targets {
		rows := rowsByTable[table]
		total += len(rows)
		parts = append(parts, fmt.Sprintf("%s — %d", table, len(rows)))
		for _, row := range rows {
			annotated := make(models.Row, len(row)+1)
			for k, v := range row {
				annotated[k] = v
			}
			annotated["_table"] = table
			merged = append(merged, annotated)
		}
	}

	filterValues := collectFilterValues(predicates)

	return &models.QueryResult{
		RowsByTable:    rowsByTable,
		MergedRows:     merged,
		TotalRows:      total,
		Homogeneity:    homogeneity(merged, filterValues),
		Summary:        fmt.Sprintf("Found %d records across %d tables: %s", total, len(targets), strings.Join(parts, ", ")),
		AppliedFilters: appliedFilters(targets, predicates),
		FailedTables:   failed,
	}
}

// homogeneity is the fraction of rows that contain, in any column, the
// literal value of at least one filter. It is a coarse self-check that the
// filters explain the results; with no filters every row counts as
// explained.
func homogeneity(rows []models.Row, filterValues []string) float64 {
	if len(rows) == 0 {
		return 0
	}
	if len(filterValues) == 0 {
		return 1
	}

	matched := 0
	for _, row := range rows {
		if rowContainsAny(row, filterValues) {
			matched++
		}
	}
	return float64(matched) / float64(len(rows))
}

func rowContainsAny(row models.Row, values []string) bool {
	for col, v := range row {
		if col == "_table" || v == nil {
			continue
		}
		cell := strings.ToLower(fmt.Sprint(v))
		for _, fv := range values {
			if strings.Contains(cell, fv) {
				return true
			}
		}
	}
	return false
}

func collectFilterValues(predicates map[string][]models.FilterPredicate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, preds := range predicates {
		for _, p := range preds {
			switch v := p.Value.(type) {
			case string:
				lower := strings.ToLower(v)
				if lower != "" && !seen[lower] {
					seen[lower] = true
					out = append(out, lower)
				}
			case int, int64, float64:
				s := fmt.Sprint(v)
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func appliedFilters(targets []string, predicates map[string][]models.FilterPredicate) []string {
	seen := make(map[string]bool)
	var out []string
	for _, table := range targets {
		for _, p := range predicates[table] {
			d := p.Display()
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}
