// cmd/querydesk/server.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"querydesk/internal/common/config"
	"querydesk/internal/common/logger"
	"querydesk/internal/nlq/pipeline"
)

type queryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId,omitempty"`
}

// newServer builds the JSON surface over the pipeline plus the usual health
// and metrics endpoints.
func newServer(pipe *pipeline.Pipeline, cfg *config.Config, log logger.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	requestTimeout := config.GetDuration(cfg.Query.RequestTimeout)

	mux.HandleFunc("/v1/entities", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQueryRequest(w, r)
		if !ok {
			return
		}
		ctx, cancel := contextWithTimeout(r, requestTimeout)
		defer cancel()

		entities := pipe.ExtractEntities(ctx, req.Query, req.UserID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"query":    req.Query,
			"entities": entities,
		})
	})

	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeQueryRequest(w, r)
		if !ok {
			return
		}
		ctx, cancel := contextWithTimeout(r, requestTimeout)
		defer cancel()

		writeJSON(w, http.StatusOK, pipe.ProcessQuery(ctx, req.Query, req.UserID))
	})

	mux.HandleFunc("/v1/cache/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		ctx, cancel := contextWithTimeout(r, requestTimeout)
		defer cancel()

		if err := pipe.RefreshDomainCache(ctx); err != nil {
			log.WithError(err).Error("domain cache refresh failed", nil)
			writeError(w, http.StatusInternalServerError, "refresh failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
	})

	return &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
	}
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return queryRequest{}, false
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return queryRequest{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return queryRequest{}, false
	}
	return req, true
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
