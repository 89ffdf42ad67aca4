package match

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	maxEvidenceSkills      = 5
	maxEvidenceItems       = 3
	maxEvidenceExperiences = 3
	maxDescriptionChars    = 200
)

// Annotator attaches supporting evidence snippets to ranked candidates when
// the caller asks for an explanation.
type Annotator struct {
	store Store
	llm   LLM
	log   *zap.Logger
}

func NewAnnotator(store Store, svc LLM, log *zap.Logger) *Annotator {
	return &Annotator{store: store, llm: svc, log: log}
}

// Annotate fills Evidences and Gaps in place. Evidence failures leave the
// candidate with an empty evidence list; gaps always mirror the missing
// skills.
func (a *Annotator) Annotate(ctx context.Context, candidates []ScoredCandidate, jdText string) {
	for i := range candidates {
		c := &candidates[i]
		c.Gaps = c.MissingSkills

		if len(c.MatchedSkills) == 0 {
			continue
		}
		skills := c.MatchedSkills
		if len(skills) > maxEvidenceSkills {
			skills = skills[:maxEvidenceSkills]
		}

		text := a.candidateText(ctx, c)
		evidences, err := a.llm.GenerateEvidence(ctx, text, skills, jdText, maxEvidenceItems)
		if err != nil {
			a.log.Warn("evidence generation failed",
				zap.Int64("candidate_id", c.CandidateID), zap.Error(err))
			continue
		}
		c.Evidences = evidences
	}
}

// candidateText is the compact background blurb sent to the evidence
// generator: current role plus the most recent experience descriptions,
// each truncated.
func (a *Annotator) candidateText(ctx context.Context, c *ScoredCandidate) string {
	var parts []string
	if c.CurrentTitle != "" || c.CurrentCompany != "" {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%s @ %s", c.CurrentTitle, c.CurrentCompany)))
	}

	experiences, err := a.store.ListExperiences(ctx, c.CandidateID)
	if err != nil {
		a.log.Debug("experience load for evidence failed", zap.Error(err))
		return strings.Join(parts, "\n")
	}

	// Experiences are stored most-recent first, so the leading rows are the
	// ones worth quoting.
	n := 0
	for _, exp := range experiences {
		if n == maxEvidenceExperiences {
			break
		}
		desc := strings.TrimSpace(exp.Description)
		if desc == "" {
			continue
		}
		parts = append(parts, truncateRunes(desc, maxDescriptionChars))
		n++
	}
	return strings.Join(parts, "\n")
}

// truncateRunes cuts at a character boundary; a byte cut could split a
// multi-byte rune and hand the evidence generator invalid UTF-8.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
