package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRouter(a *API) http.Handler {
	mux := http.NewServeMux()

	// Swagger documentation - must be registered first
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Health check (for Railway, k8s, etc.)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	// Matching
	mux.HandleFunc("POST /api/match", a.MatchHandler)
	mux.HandleFunc("GET /api/search", a.SearchHandler)

	// Ingestion
	mux.HandleFunc("POST /api/resumes", a.IngestHandler)

	// Index maintenance
	mux.HandleFunc("POST /api/reindex", a.ReindexHandler)
	mux.HandleFunc("POST /api/candidates/{id}/index", a.BuildIndexHandler)

	// Identity
	mux.HandleFunc("GET /api/candidates/{id}", a.CandidateHandler)
	mux.HandleFunc("GET /api/candidates/{id}/lineage", a.LineageHandler)
	mux.HandleFunc("GET /api/candidates/{id}/merge-suggestions", a.SuggestMergesHandler)
	mux.HandleFunc("POST /api/candidates/merge", a.ManualMergeHandler)

	return mux
}
