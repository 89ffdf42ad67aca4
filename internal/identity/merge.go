package identity

import (
	"strconv"
	"strings"
	"time"

	"talent-match/internal/storage"
)

// Strategy selects the winner when both the target and the incoming record
// carry a non-empty value for the same field.
type Strategy string

const (
	// StrategyNewPriority adopts the incoming value.
	StrategyNewPriority Strategy = "new_priority"
	// StrategyNonEmptyPriority keeps the existing value.
	StrategyNonEmptyPriority Strategy = "non_empty_priority"
	// StrategySourcePriority is reserved for per-source ranking; with the
	// default configuration it behaves like new_priority.
	StrategySourcePriority Strategy = "source_priority"
)

// Incoming holds the mergeable fields extracted from a new resume.
type Incoming struct {
	Email           string
	Phone           string
	Location        string
	YearsExperience *int
	CurrentTitle    string
	CurrentCompany  string
	Skills          []string
	EducationLevel  string
}

// Merge reconciles incoming fields into the target candidate in place and
// returns one lineage row per field that actually changed. Empty incoming
// values never overwrite, non-empty always beats empty, and skills are
// unioned regardless of strategy. Callers persist both the candidate and the
// lineage rows in the same transaction.
func Merge(target *storage.Candidate, incoming Incoming, resumeID int64, strategy Strategy) []storage.MergeLineage {
	now := time.Now()
	var lineage []storage.MergeLineage

	record := func(field, oldVal, newVal string) {
		lineage = append(lineage, storage.MergeLineage{
			CandidateID:  target.ID,
			FromResumeID: resumeID,
			MergeRule:    string(strategy),
			FieldName:    field,
			OldValue:     oldVal,
			NewValue:     newVal,
			DecidedAt:    now,
		})
	}

	mergeStr := func(field string, current *string, in string) {
		next, changed := pick(*current, in, strategy)
		if changed {
			record(field, *current, next)
			*current = next
		}
	}

	mergeStr("email", &target.Email, incoming.Email)
	mergeStr("phone", &target.Phone, incoming.Phone)
	mergeStr("location", &target.Location, incoming.Location)

	if incoming.YearsExperience != nil {
		switch {
		case target.YearsExperience == nil:
			record("years_experience", "", strconv.Itoa(*incoming.YearsExperience))
			target.YearsExperience = incoming.YearsExperience
		case strategy != StrategyNonEmptyPriority && *target.YearsExperience != *incoming.YearsExperience:
			record("years_experience",
				strconv.Itoa(*target.YearsExperience), strconv.Itoa(*incoming.YearsExperience))
			target.YearsExperience = incoming.YearsExperience
		}
	}

	mergeStr("current_title", &target.CurrentTitle, incoming.CurrentTitle)
	mergeStr("current_company", &target.CurrentCompany, incoming.CurrentCompany)

	if len(incoming.Skills) > 0 {
		merged := unionSkills(target.Skills, incoming.Skills)
		if len(merged) != len(target.Skills) {
			record("skills", strings.Join(target.Skills, ","), strings.Join(merged, ","))
			target.Skills = merged
		}
	}

	mergeStr("education_level", &target.EducationLevel, incoming.EducationLevel)

	return lineage
}

// pick applies the per-field rules: empty incoming never wins, empty target
// always adopts, otherwise the strategy decides. The second return reports
// whether the value actually changed.
func pick(current, incoming string, strategy Strategy) (string, bool) {
	if incoming == "" {
		return current, false
	}
	if current == "" {
		return incoming, true
	}
	if strategy == StrategyNonEmptyPriority {
		return current, false
	}
	if current == incoming {
		return current, false
	}
	return incoming, true
}

// unionSkills appends the new skills that are not already present,
// preserving the existing order. Comparison is case-insensitive but the
// first-seen spelling is kept.
func unionSkills(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, s := range existing {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	for _, s := range incoming {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
