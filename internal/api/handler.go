// Package api exposes the matching core over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"talent-match/internal/identity"
	"talent-match/internal/index"
	"talent-match/internal/ingest"
	"talent-match/internal/match"
	"talent-match/internal/storage"
)

type API struct {
	db       *storage.DB
	engine   *match.Engine
	builder  *index.Builder
	ingester *ingest.Service
	resolver *identity.Resolver
	log      *zap.Logger
}

func NewAPI(db *storage.DB, engine *match.Engine, builder *index.Builder,
	ingester *ingest.Service, resolver *identity.Resolver, log *zap.Logger) *API {

	return &API{
		db:       db,
		engine:   engine,
		builder:  builder,
		ingester: ingester,
		resolver: resolver,
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// MatchHandler ranks indexed candidates against a job description
// @Summary Match candidates against a JD
// @Description Parses the JD, runs lexical and vector recall in parallel and returns fused, ranked candidates
// @Tags match
// @Accept json
// @Produce json
// @Param request body match.MatchRequest true "Job description and options"
// @Success 200 {object} match.MatchResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /match [post]
func (a *API) MatchHandler(w http.ResponseWriter, r *http.Request) {
	var req match.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.JDText == "" {
		writeError(w, http.StatusBadRequest, "jd_text is required")
		return
	}

	resp, err := a.engine.Match(r.Context(), req)
	if err != nil {
		a.log.Error("match failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "match failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchHandler runs the plain keyword search
// @Summary Keyword candidate search
// @Description Full-text search over indexed candidates with highlighted snippets, no LLM involved
// @Tags match
// @Produce json
// @Param q query string true "Search query"
// @Param top_k query int false "Result limit"
// @Success 200 {array} storage.SearchResult
// @Failure 400 {object} map[string]string
// @Router /search [get]
func (a *API) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("top_k"))

	results, err := a.engine.SearchCandidates(r.Context(), query, topK)
	if err != nil {
		a.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []storage.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// IngestHandler accepts a resume upload
// @Summary Ingest a resume
// @Description Extracts the resume, resolves the candidate's identity, creates or merges the candidate and schedules a reindex
// @Tags ingest
// @Accept mpfd
// @Produce json
// @Param file formData file false "Resume file (pdf, docx, txt)"
// @Param text formData string false "Pre-extracted resume text"
// @Param source formData string false "Submission source"
// @Param strategy formData string false "Merge strategy" Enums(new_priority, non_empty_priority, source_priority)
// @Success 200 {object} ingest.IngestResult
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /resumes [post]
func (a *API) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := ingest.IngestRequest{
		Text:     r.FormValue("text"),
		Source:   r.FormValue("source"),
		Strategy: identity.Strategy(r.FormValue("strategy")),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		req.FileName = header.Filename
		req.Reader = file
	} else if req.Text == "" {
		writeError(w, http.StatusBadRequest, "either file or text is required")
		return
	}

	result, err := a.ingester.IngestResume(r.Context(), req)
	if err != nil {
		a.log.Error("ingest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type reindexRequest struct {
	CandidateIDs []int64    `json:"candidate_ids,omitempty"`
	UpdatedSince *time.Time `json:"updated_since,omitempty"`
}

type reindexResponse struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

// ReindexHandler force-rebuilds candidate indexes
// @Summary Bulk reindex
// @Description Rebuilds the search index for the given candidates, or for everyone updated since the cutoff
// @Tags index
// @Accept json
// @Produce json
// @Param request body reindexRequest false "Scope"
// @Success 200 {object} reindexResponse
// @Router /reindex [post]
func (a *API) ReindexHandler(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	success, failed := a.builder.ReindexAll(r.Context(), req.CandidateIDs, req.UpdatedSince)
	writeJSON(w, http.StatusOK, reindexResponse{SuccessCount: success, FailedCount: failed})
}

// BuildIndexHandler rebuilds one candidate's index
// @Summary Rebuild one index
// @Tags index
// @Produce json
// @Param id path int true "Candidate ID"
// @Param force query bool false "Bypass the staleness guard"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /candidates/{id}/index [post]
func (a *API) BuildIndexHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	ok := a.builder.BuildIndex(r.Context(), id, force)
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

// LineageHandler lists a candidate's merge audit trail
// @Summary Merge lineage
// @Tags identity
// @Produce json
// @Param id path int true "Candidate ID"
// @Success 200 {array} storage.MergeLineage
// @Failure 400 {object} map[string]string
// @Router /candidates/{id}/lineage [get]
func (a *API) LineageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}

	lineage, err := a.db.Store().ListLineage(r.Context(), id)
	if err != nil {
		a.log.Error("lineage load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lineage load failed")
		return
	}
	if lineage == nil {
		lineage = []storage.MergeLineage{}
	}
	writeJSON(w, http.StatusOK, lineage)
}

// SuggestMergesHandler lists potential duplicates of a candidate
// @Summary Merge suggestions
// @Description Scores same-name candidates by employer, title and skill-overlap similarity
// @Tags identity
// @Produce json
// @Param id path int true "Candidate ID"
// @Success 200 {array} identity.MergeSuggestion
// @Failure 400 {object} map[string]string
// @Router /candidates/{id}/merge-suggestions [get]
func (a *API) SuggestMergesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}

	suggestions, err := a.resolver.SuggestMerges(r.Context(), a.db.Store(), id)
	if err != nil {
		a.log.Error("merge suggestions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "merge suggestions failed")
		return
	}
	if suggestions == nil {
		suggestions = []identity.MergeSuggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

type manualMergeRequest struct {
	PrimaryID   int64  `json:"primary_id"`
	DuplicateID int64  `json:"duplicate_id"`
	DecidedBy   string `json:"decided_by"`
}

// ManualMergeHandler merges two candidates on an admin decision
// @Summary Manual merge
// @Description Merges the duplicate candidate into the primary one, re-points resumes and children and deactivates the duplicate
// @Tags identity
// @Accept json
// @Produce json
// @Param request body manualMergeRequest true "Merge decision"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /candidates/merge [post]
func (a *API) ManualMergeHandler(w http.ResponseWriter, r *http.Request) {
	var req manualMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PrimaryID == 0 || req.DuplicateID == 0 {
		writeError(w, http.StatusBadRequest, "primary_id and duplicate_id are required")
		return
	}
	if req.DecidedBy == "" {
		req.DecidedBy = "admin"
	}

	if err := a.resolver.ResolveManual(r.Context(), a.db, req.PrimaryID, req.DuplicateID, req.DecidedBy); err != nil {
		a.log.Error("manual merge failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "manual merge failed")
		return
	}

	// The primary's index is now stale; rebuild it right away.
	a.builder.BuildIndex(r.Context(), req.PrimaryID, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}

// CandidateHandler returns one candidate's profile
// @Summary Get candidate
// @Tags identity
// @Produce json
// @Param id path int true "Candidate ID"
// @Success 200 {object} storage.Candidate
// @Failure 404 {object} map[string]string
// @Router /candidates/{id} [get]
func (a *API) CandidateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}

	candidate, err := a.db.Store().GetCandidate(r.Context(), id)
	if err != nil {
		a.log.Error("candidate load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "candidate load failed")
		return
	}
	if candidate == nil {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}
