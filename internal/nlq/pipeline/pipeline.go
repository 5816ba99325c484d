// internal/nlq/pipeline/pipeline.go

// Package pipeline is the facade over the query understanding stages. It
// wires tagging, table resolution, predicate compilation and execution into
// two entry points and owns the top-level panic guard: a request that blows
// up anywhere inside the stages still produces a well-formed empty response.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"querydesk/internal/common/logger"
	"querydesk/internal/common/metrics"
	"querydesk/internal/common/observability"
	"querydesk/internal/models"
	"querydesk/internal/nlq/domaincache"
	"querydesk/internal/nlq/executor"
	"querydesk/internal/nlq/lexicon"
	"querydesk/internal/nlq/predicate"
	"querydesk/internal/nlq/resolver"
	"querydesk/internal/nlq/tagger"
)

// Clock abstracts "now" so temporal phrases resolve deterministically in
// tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

type Pipeline struct {
	lex    *lexicon.Lexicon
	cache  *domaincache.Cache
	tagger *tagger.Tagger
	exec   *executor.Executor
	clock  Clock
	obs    *observability.Observability
	logger logger.Logger
}

func New(lex *lexicon.Lexicon, cache *domaincache.Cache, tag *tagger.Tagger, exec *executor.Executor, clock Clock, obs *observability.Observability, log logger.Logger) *Pipeline {
	if clock == nil {
		clock = SystemClock()
	}
	return &Pipeline{
		lex:    lex,
		cache:  cache,
		tagger: tag,
		exec:   exec,
		clock:  clock,
		obs:    obs,
		logger: log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// ExtractEntities runs only the tagging stage. It is the diagnostic
// endpoint's backend and never touches the datastore beyond the domain
// cache.
func (p *Pipeline) ExtractEntities(ctx context.Context, text, userID string) []models.EntityMatch {
	p.cache.EnsureLoaded(ctx)
	return p.tagger.Tag(text, tagger.Context{UserID: userID, Now: p.clock.Now()})
}

// ProcessQuery runs the full pipeline for one request.
func (p *Pipeline) ProcessQuery(ctx context.Context, text, userID string) (resp *models.QueryResponse) {
	requestID := uuid.New().String()
	log := p.logger.With(map[string]interface{}{"request_id": requestID})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic recovered", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"query": text,
			})
			metrics.QueriesProcessed.WithLabelValues("panic").Inc()
			p.obs.RecordQuery(ctx, "panic")
			resp = &models.QueryResponse{
				RequestID: requestID,
				Query:     text,
				Entities:  []models.EntityMatch{},
				Result: &models.QueryResult{
					Summary: "Query could not be processed; no results returned",
				},
			}
		}
	}()

	p.cache.EnsureLoaded(ctx)

	entities := p.stageTag(ctx, text, userID)
	targets := p.stageResolve(ctx, entities)
	predicates := p.stageCompile(ctx, targets, entities)
	result := p.stageExecute(ctx, targets, predicates)

	metrics.QueriesProcessed.WithLabelValues("success").Inc()
	p.obs.RecordQuery(ctx, "success")
	log.Info("query processed", map[string]interface{}{
		"entities":    len(entities),
		"tables":      targets,
		"total_rows":  result.TotalRows,
		"homogeneity": result.Homogeneity,
		"from_cache":  result.FromCache,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &models.QueryResponse{
		RequestID:    requestID,
		Query:        text,
		Entities:     entities,
		TargetTables: targets,
		Predicates:   predicates,
		Result:       result,
	}
}

// RefreshDomainCache drops and rebuilds the cached domain values.
func (p *Pipeline) RefreshDomainCache(ctx context.Context) error {
	return p.cache.Refresh(ctx)
}

func (p *Pipeline) stageTag(ctx context.Context, text, userID string) []models.EntityMatch {
	start := time.Now()
	entities := p.tagger.Tag(text, tagger.Context{UserID: userID, Now: p.clock.Now()})
	p.recordStage(ctx, "tag", start)
	for _, e := range entities {
		metrics.EntitiesTagged.WithLabelValues(string(e.Kind)).Inc()
	}
	return entities
}

func (p *Pipeline) stageResolve(ctx context.Context, entities []models.EntityMatch) []string {
	start := time.Now()
	targets := resolver.Resolve(p.lex, entities)
	p.recordStage(ctx, "resolve", start)
	return targets
}

func (p *Pipeline) stageCompile(ctx context.Context, targets []string, entities []models.EntityMatch) map[string][]models.FilterPredicate {
	start := time.Now()
	predicates := make(map[string][]models.FilterPredicate, len(targets))
	for _, table := range targets {
		if preds := predicate.Compile(p.lex, table, entities); len(preds) > 0 {
			predicates[table] = preds
		}
	}
	p.recordStage(ctx, "compile", start)
	return predicates
}

func (p *Pipeline) stageExecute(ctx context.Context, targets []string, predicates map[string][]models.FilterPredicate) *models.QueryResult {
	start := time.Now()
	result := p.exec.Execute(ctx, targets, predicates)
	p.recordStage(ctx, "execute", start)
	return result
}

func (p *Pipeline) recordStage(ctx context.Context, stage string, start time.Time) {
	elapsed := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	p.obs.RecordStage(ctx, stage, elapsed)
}
