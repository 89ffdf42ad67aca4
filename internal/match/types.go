package match

import (
	"talent-match/internal/llm"
	"talent-match/internal/storage"
)

// Source tags which recall channel produced a candidate.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
	SourceBoth    Source = "both"
)

// MatchRequest is one ranking run over the indexed talent pool.
type MatchRequest struct {
	JDText  string         `json:"jd_text"`
	Filters *llm.JDFilters `json:"filters,omitempty"`
	TopK    int            `json:"top_k,omitempty"`
	Explain bool           `json:"explain,omitempty"`
}

// ScoreBreakdown exposes each fusion component alongside the final score.
type ScoreBreakdown struct {
	Vector        float64 `json:"vector"`
	Lexical       float64 `json:"lexical"`
	SkillCoverage float64 `json:"skill_coverage"`
	Recency       float64 `json:"recency"`
}

// ScoredCandidate is one ranked result.
type ScoredCandidate struct {
	CandidateID     int64          `json:"candidate_id"`
	Name            string         `json:"name"`
	CurrentTitle    string         `json:"current_title,omitempty"`
	CurrentCompany  string         `json:"current_company,omitempty"`
	Location        string         `json:"location,omitempty"`
	YearsExperience *int           `json:"years_experience,omitempty"`
	Source          Source         `json:"source"`
	FinalScore      float64        `json:"final_score"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	MatchedSkills   []string       `json:"matched_skills"`
	MissingSkills   []string       `json:"missing_skills"`
	Evidences       []llm.Evidence `json:"evidences,omitempty"`
	Gaps            []string       `json:"gaps,omitempty"`
}

// MatchResponse carries the ranked list plus what the JD parser understood.
type MatchResponse struct {
	RequestID  string            `json:"request_id"`
	ParsedJD   *llm.ParsedJD     `json:"parsed_jd"`
	Candidates []ScoredCandidate `json:"candidates"`
	// ChannelCounts reports how many hits each recall channel contributed;
	// a degraded channel shows 0.
	ChannelCounts map[string]int `json:"channel_counts"`
}

// RecallResult is the explicit outcome of one recall channel: either hits or
// an unavailability reason. Degrading to vector-only (or lexical-only) is a
// branch on this value, not an error swallowed somewhere below.
type RecallResult struct {
	Hits []storage.RecallHit
	Err  error
}

// Ok reports whether the channel produced a usable (possibly empty) result.
func (r RecallResult) Ok() bool { return r.Err == nil }
