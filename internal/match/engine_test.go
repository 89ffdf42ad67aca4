package match

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/llm"
	"talent-match/internal/storage"
)

type fakeStore struct {
	lexicalHits []storage.RecallHit
	lexicalErr  error
	vectorHits  []storage.RecallHit
	vectorErr   error
	recency     map[int64][]storage.SkillRecency
	experiences map[int64][]storage.Experience
	results     []storage.SearchResult
}

func (f *fakeStore) LexicalSearch(ctx context.Context, terms []string, limit int) ([]storage.RecallHit, error) {
	return f.lexicalHits, f.lexicalErr
}

func (f *fakeStore) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]storage.RecallHit, error) {
	return f.vectorHits, f.vectorErr
}

func (f *fakeStore) SkillRecencyFor(ctx context.Context, candidateID int64, skills []string) ([]storage.SkillRecency, error) {
	return f.recency[candidateID], nil
}

func (f *fakeStore) ListExperiences(ctx context.Context, candidateID int64) ([]storage.Experience, error) {
	return f.experiences[candidateID], nil
}

func (f *fakeStore) SearchCandidates(ctx context.Context, query string, limit int) ([]storage.SearchResult, error) {
	return f.results, nil
}

type fakeLLM struct {
	parsed      *llm.ParsedJD
	parseErr    error
	embedding   []float32
	embedErr    error
	evidences   []llm.Evidence
	evidenceErr error

	evidenceCalls int
	lastSkills    []string
}

func (f *fakeLLM) ParseJD(ctx context.Context, jdText string) (*llm.ParsedJD, error) {
	return f.parsed, f.parseErr
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, f.embedErr
}

func (f *fakeLLM) GenerateEvidence(ctx context.Context, candidateText string, matchedSkills []string, jdText string, maxEvidences int) ([]llm.Evidence, error) {
	f.evidenceCalls++
	f.lastSkills = matchedSkills
	return f.evidences, f.evidenceErr
}

func newTestEngine(store *fakeStore, svc *fakeLLM) *Engine {
	cfg := config.Default()
	return &Engine{
		store:     store,
		llm:       svc,
		ranking:   cfg.Ranking,
		recall:    cfg.Recall,
		annotator: NewAnnotator(store, svc, zap.NewNop()),
		log:       zap.NewNop(),
		now:       time.Now,
	}
}

func TestMatchSkillCoverageScenario(t *testing.T) {
	// Candidate knows Python and FastAPI; JD wants must=[Python, Django],
	// nice=[FastAPI]. Coverage must be 0.7*(1/2) + 0.3*(1/1) = 0.65.
	store := &fakeStore{
		lexicalHits: []storage.RecallHit{
			{CandidateID: 1, Name: "Jane", Skills: []string{"Python", "FastAPI"}, Score: 0.05},
		},
	}
	svc := &fakeLLM{
		parsed: &llm.ParsedJD{
			MustSkills: []string{"Python", "Django"},
			NiceSkills: []string{"FastAPI"},
		},
		embedding: []float32{0.1},
	}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "backend dev"})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)

	c := resp.Candidates[0]
	assert.InDelta(t, 0.65, c.Breakdown.SkillCoverage, 1e-9)
	assert.ElementsMatch(t, []string{"Python", "FastAPI"}, c.MatchedSkills)
	assert.Equal(t, []string{"Django"}, c.MissingSkills)
	assert.Equal(t, SourceLexical, c.Source)
	// Raw lexical 0.05 rescaled by the 0.1 norm.
	assert.InDelta(t, 0.5, c.Breakdown.Lexical, 1e-9)
}

func TestMatchRecencyDefaultsToNeutral(t *testing.T) {
	store := &fakeStore{
		vectorHits: []storage.RecallHit{{CandidateID: 1, Name: "Jane", Skills: []string{"Go"}, Score: 0.9}},
	}
	svc := &fakeLLM{
		parsed:    &llm.ParsedJD{MustSkills: []string{"Go"}},
		embedding: []float32{0.1},
	}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "go dev"})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, 0.5, resp.Candidates[0].Breakdown.Recency)
}

func TestMatchDegradesToVectorOnly(t *testing.T) {
	store := &fakeStore{
		lexicalErr: errors.New("tsquery syntax error"),
		vectorHits: []storage.RecallHit{
			{CandidateID: 1, Score: 0.9}, {CandidateID: 2, Score: 0.8},
			{CandidateID: 3, Score: 0.7}, {CandidateID: 4, Score: 0.6},
			{CandidateID: 5, Score: 0.5},
		},
	}
	svc := &fakeLLM{parsed: &llm.ParsedJD{MustSkills: []string{"Go"}}, embedding: []float32{0.1}}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "go dev"})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 5)
	for _, c := range resp.Candidates {
		assert.Equal(t, SourceVector, c.Source)
	}
	assert.Equal(t, 0, resp.ChannelCounts["lexical"])
	assert.Equal(t, 5, resp.ChannelCounts["vector"])
}

func TestMatchEmbedFailureDegradesToLexicalOnly(t *testing.T) {
	store := &fakeStore{
		lexicalHits: []storage.RecallHit{{CandidateID: 1, Score: 0.08}},
	}
	svc := &fakeLLM{parsed: &llm.ParsedJD{MustSkills: []string{"Go"}}, embedErr: errors.New("provider down")}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "go dev"})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, SourceLexical, resp.Candidates[0].Source)
	assert.Zero(t, resp.Candidates[0].Breakdown.Vector)
}

func TestMatchMergeTagsBoth(t *testing.T) {
	store := &fakeStore{
		lexicalHits: []storage.RecallHit{{CandidateID: 1, Score: 0.2}, {CandidateID: 2, Score: 0.1}},
		vectorHits:  []storage.RecallHit{{CandidateID: 1, Score: 0.95}, {CandidateID: 3, Score: 0.4}},
	}
	svc := &fakeLLM{parsed: &llm.ParsedJD{}, embedding: []float32{0.1}}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "jd"})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 3)

	sources := map[int64]Source{}
	for _, c := range resp.Candidates {
		sources[c.CandidateID] = c.Source
	}
	assert.Equal(t, SourceBoth, sources[1])
	assert.Equal(t, SourceLexical, sources[2])
	assert.Equal(t, SourceVector, sources[3])
}

func TestMatchScoreWithinBounds(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		lexicalHits: []storage.RecallHit{{CandidateID: 1, Skills: []string{"Go"}, Score: 5.0}},
		vectorHits:  []storage.RecallHit{{CandidateID: 1, Skills: []string{"Go"}, Score: 1.0}},
		recency: map[int64][]storage.SkillRecency{
			1: {{CandidateID: 1, Skill: "Go", LastUsed: now}},
		},
	}
	svc := &fakeLLM{
		parsed:    &llm.ParsedJD{MustSkills: []string{"Go"}, NiceSkills: []string{"Go"}},
		embedding: []float32{0.1},
	}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "jd"})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)

	score := resp.Candidates[0].FinalScore
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0+1e-9)
	// Lexical is clamped at 1.0 even though raw ts_rank was 5.0.
	assert.Equal(t, 1.0, resp.Candidates[0].Breakdown.Lexical)
}

func TestMatchSortsDescendingAndTruncates(t *testing.T) {
	store := &fakeStore{
		vectorHits: []storage.RecallHit{
			{CandidateID: 1, Score: 0.2},
			{CandidateID: 2, Score: 0.9},
			{CandidateID: 3, Score: 0.5},
		},
	}
	svc := &fakeLLM{parsed: &llm.ParsedJD{}, embedding: []float32{0.1}}

	resp, err := newTestEngine(store, svc).Match(context.Background(), MatchRequest{JDText: "jd", TopK: 2})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, int64(2), resp.Candidates[0].CandidateID)
	assert.Equal(t, int64(3), resp.Candidates[1].CandidateID)
}

func TestMatchParseJDFailureAborts(t *testing.T) {
	svc := &fakeLLM{parseErr: errors.New("provider down")}

	_, err := newTestEngine(&fakeStore{}, svc).Match(context.Background(), MatchRequest{JDText: "jd"})
	assert.Error(t, err)
}

func TestRecencyDecay(t *testing.T) {
	mkStore := func(daysAgo float64) *fakeStore {
		return &fakeStore{recency: map[int64][]storage.SkillRecency{
			1: {{CandidateID: 1, Skill: "Go", LastUsed: time.Now().Add(-time.Duration(daysAgo*24) * time.Hour)}},
		}}
	}

	fresh := newTestEngine(mkStore(0), &fakeLLM{}).recencyScore(context.Background(), 1, []string{"Go"})
	year := newTestEngine(mkStore(365), &fakeLLM{}).recencyScore(context.Background(), 1, []string{"Go"})
	twoYears := newTestEngine(mkStore(730), &fakeLLM{}).recencyScore(context.Background(), 1, []string{"Go"})

	assert.InDelta(t, 1.0, fresh, 1e-6)
	assert.Greater(t, fresh, year)
	assert.Greater(t, year, twoYears)
	assert.InDelta(t, math.Exp(-1), twoYears, 1e-3)
}

func TestAnnotateEvidenceFailureLeavesGaps(t *testing.T) {
	store := &fakeStore{
		experiences: map[int64][]storage.Experience{},
	}
	svc := &fakeLLM{evidenceErr: errors.New("provider down")}
	annotator := NewAnnotator(store, svc, zap.NewNop())

	candidates := []ScoredCandidate{{
		CandidateID:   1,
		MatchedSkills: []string{"Go"},
		MissingSkills: []string{"Rust"},
	}}
	annotator.Annotate(context.Background(), candidates, "jd")

	assert.Empty(t, candidates[0].Evidences)
	assert.Equal(t, []string{"Rust"}, candidates[0].Gaps)
}

func TestCandidateTextTruncatesOnRunes(t *testing.T) {
	desc := strings.Repeat("数", 300)
	store := &fakeStore{experiences: map[int64][]storage.Experience{
		1: {{Description: desc}},
	}}
	annotator := NewAnnotator(store, &fakeLLM{}, zap.NewNop())

	text := annotator.candidateText(context.Background(), &ScoredCandidate{CandidateID: 1})

	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, maxDescriptionChars, utf8.RuneCountInString(text))
}

func TestCandidateTextUsesMostRecentExperiences(t *testing.T) {
	// Rows are stored most-recent first; the oldest description must not be
	// quoted when more than three exist.
	store := &fakeStore{experiences: map[int64][]storage.Experience{
		1: {
			{Description: "newest role"},
			{Description: "second role"},
			{Description: "third role"},
			{Description: "oldest role"},
		},
	}}
	annotator := NewAnnotator(store, &fakeLLM{}, zap.NewNop())

	text := annotator.candidateText(context.Background(), &ScoredCandidate{
		CandidateID:  1,
		CurrentTitle: "Engineer",
	})

	assert.Contains(t, text, "newest role")
	assert.Contains(t, text, "second role")
	assert.Contains(t, text, "third role")
	assert.NotContains(t, text, "oldest role")
}

func TestAnnotateCapsSkills(t *testing.T) {
	store := &fakeStore{experiences: map[int64][]storage.Experience{}}
	svc := &fakeLLM{evidences: []llm.Evidence{{Skill: "Go", Snippet: "built services"}}}
	annotator := NewAnnotator(store, svc, zap.NewNop())

	candidates := []ScoredCandidate{{
		CandidateID:   1,
		MatchedSkills: []string{"a", "b", "c", "d", "e", "f", "g"},
	}}
	annotator.Annotate(context.Background(), candidates, "jd")

	assert.Equal(t, 1, svc.evidenceCalls)
	assert.Len(t, svc.lastSkills, 5)
	assert.Len(t, candidates[0].Evidences, 1)
}
