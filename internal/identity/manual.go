package identity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"talent-match/internal/storage"
)

// MergeSuggestion scores a same-name candidate pair that a human may want to
// merge. Similarity combines employer, title and skill overlap; name equality
// is the precondition, not part of the score.
type MergeSuggestion struct {
	CandidateID int64    `json:"candidate_id"`
	OtherID     int64    `json:"other_id"`
	Name        string   `json:"name"`
	Similarity  float64  `json:"similarity"`
	Reasons     []string `json:"reasons"`
}

// SuggestMerges lists potential duplicates of the given candidate: other rows
// with the exact same name, scored by
// 0.5*company + 0.3*title + 0.2*skill-overlap. Only pairs at or above the
// weak threshold are returned.
func (r *Resolver) SuggestMerges(ctx context.Context, store *storage.Store, candidateID int64) ([]MergeSuggestion, error) {
	target, err := store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("candidate %d not found", candidateID)
	}

	sameName, err := store.FindCandidatesByName(ctx, target.Name)
	if err != nil {
		return nil, err
	}

	var out []MergeSuggestion
	for _, other := range sameName {
		if other.ID == target.ID || other.Status != storage.StatusActive {
			continue
		}

		companySim := Ratio(target.CurrentCompany, other.CurrentCompany)
		titleSim := Ratio(target.CurrentTitle, other.CurrentTitle)
		skillSim := skillOverlap(target.Skills, other.Skills)
		score := 0.5*companySim + 0.3*titleSim + 0.2*skillSim
		if score < r.weakThreshold {
			continue
		}

		var reasons []string
		if companySim >= r.weakThreshold {
			reasons = append(reasons, "same employer")
		}
		if titleSim >= r.weakThreshold {
			reasons = append(reasons, "same title")
		}
		if skillSim >= 0.5 {
			reasons = append(reasons, "overlapping skills")
		}

		out = append(out, MergeSuggestion{
			CandidateID: target.ID,
			OtherID:     other.ID,
			Name:        target.Name,
			Similarity:  score,
			Reasons:     reasons,
		})
	}
	return out, nil
}

// ResolveManual merges the duplicate candidate into the primary one on an
// admin's say-so: fields merge with non_empty_priority, all resumes and child
// rows are re-pointed, lineage records who decided, and the duplicate is
// deactivated rather than deleted.
func (r *Resolver) ResolveManual(ctx context.Context, db *storage.DB, primaryID, duplicateID int64, decidedBy string) error {
	if primaryID == duplicateID {
		return fmt.Errorf("cannot merge candidate %d into itself", primaryID)
	}

	return db.WithTx(ctx, func(s *storage.Store) error {
		primary, err := s.GetCandidate(ctx, primaryID)
		if err != nil {
			return err
		}
		if primary == nil {
			return fmt.Errorf("primary candidate %d not found", primaryID)
		}
		duplicate, err := s.GetCandidate(ctx, duplicateID)
		if err != nil {
			return err
		}
		if duplicate == nil {
			return fmt.Errorf("duplicate candidate %d not found", duplicateID)
		}

		lineage := Merge(primary, Incoming{
			Email:           duplicate.Email,
			Phone:           duplicate.Phone,
			Location:        duplicate.Location,
			YearsExperience: duplicate.YearsExperience,
			CurrentTitle:    duplicate.CurrentTitle,
			CurrentCompany:  duplicate.CurrentCompany,
			Skills:          duplicate.Skills,
			EducationLevel:  duplicate.EducationLevel,
		}, 0, StrategyNonEmptyPriority)
		for i := range lineage {
			lineage[i].DecidedBy = decidedBy
		}

		if err := s.UpdateCandidate(ctx, primary); err != nil {
			return err
		}
		if err := s.InsertLineage(ctx, lineage); err != nil {
			return err
		}
		if err := s.RepointCandidateChildren(ctx, duplicateID, primaryID); err != nil {
			return err
		}
		if err := s.DeleteIndex(ctx, duplicateID); err != nil {
			return err
		}
		if err := s.SetCandidateStatus(ctx, duplicateID, storage.StatusInactive); err != nil {
			return err
		}

		r.log.Info("manual merge applied",
			zap.Int64("primary_id", primaryID),
			zap.Int64("duplicate_id", duplicateID),
			zap.String("decided_by", decidedBy),
			zap.Int("fields_changed", len(lineage)))
		return nil
	})
}

// skillOverlap is the Jaccard index over case-insensitive skill sets.
func skillOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[strings.ToLower(strings.TrimSpace(s))] = true
	}
	inter, union := 0, len(setA)
	seenB := make(map[string]bool, len(b))
	for _, s := range b {
		key := strings.ToLower(strings.TrimSpace(s))
		if seenB[key] {
			continue
		}
		seenB[key] = true
		if setA[key] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
