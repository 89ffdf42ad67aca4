// Package match runs the dual-channel recall and the fusion ranking on top of
// the candidate index.
package match

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/llm"
	"talent-match/internal/metrics"
	"talent-match/internal/storage"
)

// Store is the recall/feature slice of the persistence layer the engine
// reads. Implemented by *storage.Store; faked in tests.
type Store interface {
	LexicalSearch(ctx context.Context, terms []string, limit int) ([]storage.RecallHit, error)
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]storage.RecallHit, error)
	SkillRecencyFor(ctx context.Context, candidateID int64, skills []string) ([]storage.SkillRecency, error)
	ListExperiences(ctx context.Context, candidateID int64) ([]storage.Experience, error)
	SearchCandidates(ctx context.Context, query string, limit int) ([]storage.SearchResult, error)
}

// LLM is the external-collaborator slice used during a match.
type LLM interface {
	ParseJD(ctx context.Context, jdText string) (*llm.ParsedJD, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateEvidence(ctx context.Context, candidateText string, matchedSkills []string, jdText string, maxEvidences int) ([]llm.Evidence, error)
}

type Engine struct {
	store     Store
	llm       LLM
	ranking   config.RankingSettings
	recall    config.RecallSettings
	annotator *Annotator
	log       *zap.Logger
	now       func() time.Time
}

func NewEngine(store Store, svc LLM, cfg *config.Settings, log *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		llm:       svc,
		ranking:   cfg.Ranking,
		recall:    cfg.Recall,
		annotator: NewAnnotator(store, svc, log),
		log:       log,
		now:       time.Now,
	}
}

// Match parses the JD, runs both recall channels in parallel, fuses and ranks
// the union. A failing channel degrades to empty instead of failing the
// request; only JD parsing errors abort.
func (e *Engine) Match(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	metrics.MatchRequests.Inc()
	start := time.Now()
	defer func() { metrics.MatchDuration.Observe(time.Since(start).Seconds()) }()

	requestID := uuid.New().String()
	log := e.log.With(zap.String("request_id", requestID))

	parsed, err := e.llm.ParseJD(ctx, req.JDText)
	if err != nil {
		return nil, fmt.Errorf("parse jd: %w", err)
	}
	if req.Filters != nil {
		parsed.Filters = *req.Filters
	}

	terms := append(append([]string{}, parsed.MustSkills...), parsed.NiceSkills...)

	lexicalCh := make(chan RecallResult, 1)
	vectorCh := make(chan RecallResult, 1)

	go func() {
		hits, err := e.store.LexicalSearch(ctx, terms, e.recall.TopKLexical)
		lexicalCh <- RecallResult{Hits: hits, Err: err}
	}()
	go func() {
		// The raw JD text is embedded, not the parsed structure.
		emb, err := e.llm.Embed(ctx, req.JDText)
		if err != nil {
			vectorCh <- RecallResult{Err: err}
			return
		}
		hits, err := e.store.VectorSearch(ctx, emb, e.recall.TopKVector)
		vectorCh <- RecallResult{Hits: hits, Err: err}
	}()

	lexical := <-lexicalCh
	vector := <-vectorCh

	if !lexical.Ok() {
		log.Warn("lexical recall degraded", zap.Error(lexical.Err))
		metrics.RecallFailures.WithLabelValues("lexical").Inc()
		lexical.Hits = nil
	}
	if !vector.Ok() {
		log.Warn("vector recall degraded", zap.Error(vector.Err))
		metrics.RecallFailures.WithLabelValues("vector").Inc()
		vector.Hits = nil
	}

	candidates := e.rank(ctx, parsed, fuse(lexical.Hits, vector.Hits))

	topK := req.TopK
	if topK <= 0 || topK > e.recall.TopKFinal {
		topK = e.recall.TopKFinal
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	if req.Explain {
		e.annotator.Annotate(ctx, candidates, req.JDText)
	}

	log.Info("match completed",
		zap.Int("lexical_hits", len(lexical.Hits)),
		zap.Int("vector_hits", len(vector.Hits)),
		zap.Int("returned", len(candidates)))

	return &MatchResponse{
		RequestID:  requestID,
		ParsedJD:   parsed,
		Candidates: candidates,
		ChannelCounts: map[string]int{
			"lexical": len(lexical.Hits),
			"vector":  len(vector.Hits),
		},
	}, nil
}

// fusedHit accumulates per-channel scores for one candidate.
type fusedHit struct {
	hit     storage.RecallHit
	lexical float64
	vector  float64
	source  Source
}

// fuse unions the two result sets by candidate id. A candidate seen by only
// one channel keeps a zero score for the other.
func fuse(lexical, vector []storage.RecallHit) []*fusedHit {
	byID := make(map[int64]*fusedHit, len(lexical)+len(vector))
	var order []int64

	for _, h := range lexical {
		byID[h.CandidateID] = &fusedHit{hit: h, lexical: h.Score, source: SourceLexical}
		order = append(order, h.CandidateID)
	}
	for _, h := range vector {
		if f, ok := byID[h.CandidateID]; ok {
			f.vector = h.Score
			f.source = SourceBoth
			continue
		}
		byID[h.CandidateID] = &fusedHit{hit: h, vector: h.Score, source: SourceVector}
		order = append(order, h.CandidateID)
	}

	out := make([]*fusedHit, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// rank computes the fusion score for every fused hit and sorts descending.
// The sort is stable so equal scores keep their merge order.
func (e *Engine) rank(ctx context.Context, parsed *llm.ParsedJD, hits []*fusedHit) []ScoredCandidate {
	allSkills := append(append([]string{}, parsed.MustSkills...), parsed.NiceSkills...)

	out := make([]ScoredCandidate, 0, len(hits))
	for _, f := range hits {
		matched, missing := skillSets(parsed, f.hit.Skills)

		breakdown := ScoreBreakdown{
			Vector:        f.vector,
			Lexical:       math.Min(f.lexical/e.ranking.LexicalNorm, 1.0),
			SkillCoverage: coverage(parsed, f.hit.Skills),
			Recency:       e.recencyScore(ctx, f.hit.CandidateID, allSkills),
		}
		final := e.ranking.WeightVector*breakdown.Vector +
			e.ranking.WeightLexical*breakdown.Lexical +
			e.ranking.WeightSkillCoverage*breakdown.SkillCoverage +
			e.ranking.WeightRecency*breakdown.Recency

		out = append(out, ScoredCandidate{
			CandidateID:     f.hit.CandidateID,
			Name:            f.hit.Name,
			CurrentTitle:    f.hit.CurrentTitle,
			CurrentCompany:  f.hit.CurrentCompany,
			Location:        f.hit.Location,
			YearsExperience: f.hit.YearsExperience,
			Source:          f.source,
			FinalScore:      final,
			Breakdown:       breakdown,
			MatchedSkills:   matched,
			MissingSkills:   missing,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}

// coverage weights must-skill coverage at 0.7 and nice at 0.3. An empty must
// list counts as fully satisfied; an empty nice list contributes nothing.
func coverage(parsed *llm.ParsedJD, candidateSkills []string) float64 {
	have := skillSet(candidateSkills)

	mustCov := 1.0
	if len(parsed.MustSkills) > 0 {
		mustCov = float64(countIn(parsed.MustSkills, have)) / float64(len(parsed.MustSkills))
	}
	niceCov := 0.0
	if len(parsed.NiceSkills) > 0 {
		niceCov = float64(countIn(parsed.NiceSkills, have)) / float64(len(parsed.NiceSkills))
	}
	return 0.7*mustCov + 0.3*niceCov
}

// recencyScore averages exp(-days/decay) over the candidate's recency rows
// for the requested skills. No rows means unknown, scored neutrally at 0.5.
func (e *Engine) recencyScore(ctx context.Context, candidateID int64, skills []string) float64 {
	rows, err := e.store.SkillRecencyFor(ctx, candidateID, skills)
	if err != nil {
		e.log.Debug("skill recency lookup failed", zap.Error(err))
		return 0.5
	}
	if len(rows) == 0 {
		return 0.5
	}

	now := e.now()
	total := 0.0
	for _, r := range rows {
		days := now.Sub(r.LastUsed).Hours() / 24
		if days < 0 {
			days = 0
		}
		total += math.Exp(-days / e.ranking.RecencyDecayDays)
	}
	return math.Min(total/float64(len(rows)), 1.0)
}

// skillSets computes matched = (must ∪ nice) ∩ candidate and
// missing = must − candidate, preserving the JD's casing and order.
func skillSets(parsed *llm.ParsedJD, candidateSkills []string) (matched, missing []string) {
	have := skillSet(candidateSkills)
	seen := make(map[string]bool)

	for _, s := range parsed.MustSkills {
		key := strings.ToLower(strings.TrimSpace(s))
		if have[key] {
			if !seen[key] {
				seen[key] = true
				matched = append(matched, s)
			}
		} else {
			missing = append(missing, s)
		}
	}
	for _, s := range parsed.NiceSkills {
		key := strings.ToLower(strings.TrimSpace(s))
		if have[key] && !seen[key] {
			seen[key] = true
			matched = append(matched, s)
		}
	}
	return matched, missing
}

func skillSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return set
}

func countIn(skills []string, have map[string]bool) int {
	n := 0
	for _, s := range skills {
		if have[strings.ToLower(strings.TrimSpace(s))] {
			n++
		}
	}
	return n
}

// SearchCandidates is the plain keyword search path, no fusion or LLM calls.
func (e *Engine) SearchCandidates(ctx context.Context, query string, topK int) ([]storage.SearchResult, error) {
	if topK <= 0 {
		topK = e.recall.TopKFinal
	}
	return e.store.SearchCandidates(ctx, query, topK)
}
