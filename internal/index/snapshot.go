package index

import (
	"strings"
	"time"

	"talent-match/internal/storage"
)

// lexicalBlob concatenates every searchable text fragment in a fixed order:
// candidate header, skills, then experiences, projects and education. Empty
// parts are dropped; order matters for relevance tuning, not correctness.
func lexicalBlob(c *storage.Candidate, experiences []storage.Experience,
	projects []storage.Project, education []storage.Education) string {

	parts := make([]string, 0, 16)
	add := func(vals ...string) {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
	}

	add(c.Name, c.CurrentTitle, c.CurrentCompany, c.Location)
	add(c.Skills...)

	for _, e := range experiences {
		add(e.Company, e.Title)
		add(e.Skills...)
		add(e.Description)
	}
	for _, p := range projects {
		add(p.Name, p.Role)
		add(p.Skills...)
	}
	for _, ed := range education {
		add(ed.School, ed.Degree, ed.Major)
	}

	return strings.Join(parts, " ")
}

// filterSnapshot is the structured-filter side of the index. Null fields are
// dropped entirely rather than stored as JSON nulls.
func filterSnapshot(c *storage.Candidate) map[string]interface{} {
	out := map[string]interface{}{"status": storage.StatusActive}
	if c.Location != "" {
		out["location"] = c.Location
	}
	if c.YearsExperience != nil {
		out["years_experience"] = *c.YearsExperience
	}
	if c.EducationLevel != "" {
		out["education_level"] = c.EducationLevel
	}
	if c.CurrentCompany != "" {
		out["current_company"] = c.CurrentCompany
	}
	return out
}

type employerFeature struct {
	Company string `json:"company"`
	Title   string `json:"title,omitempty"`
}

// featureSnapshot is the display/ranking side of the index: a capped skill
// list, the most recent employers and the schools.
func featureSnapshot(c *storage.Candidate, experiences []storage.Experience,
	education []storage.Education) map[string]interface{} {

	skills := c.Skills
	if len(skills) > maxFeatureSkills {
		skills = skills[:maxFeatureSkills]
	}

	employers := make([]employerFeature, 0, maxRecentEmployers)
	for _, e := range experiences {
		if len(employers) == maxRecentEmployers {
			break
		}
		if e.Company == "" {
			continue
		}
		employers = append(employers, employerFeature{Company: e.Company, Title: e.Title})
	}

	schools := make([]string, 0, len(education))
	for _, ed := range education {
		if ed.School != "" {
			schools = append(schools, ed.School)
		}
	}

	return map[string]interface{}{
		"top_skills":       skills,
		"recent_employers": employers,
		"schools":          schools,
	}
}

// recencyRows derives the skill-recency table: per skill, the most recent end
// date across every experience and project that lists it. Entries without an
// end date contribute nothing.
func recencyRows(candidateID int64, experiences []storage.Experience,
	projects []storage.Project) []storage.SkillRecency {

	byKey := make(map[string]*storage.SkillRecency)
	var order []string

	record := func(skills []string, end *time.Time, source string) {
		if end == nil {
			return
		}
		for _, skill := range skills {
			skill = strings.TrimSpace(skill)
			if skill == "" {
				continue
			}
			key := strings.ToLower(skill)
			if cur, ok := byKey[key]; ok {
				if end.After(cur.LastUsed) {
					cur.LastUsed = *end
					cur.Source = source
				}
				continue
			}
			byKey[key] = &storage.SkillRecency{
				CandidateID: candidateID,
				Skill:       skill,
				LastUsed:    *end,
				Source:      source,
			}
			order = append(order, key)
		}
	}

	for _, e := range experiences {
		record(e.Skills, e.EndDate, "experience")
	}
	for _, p := range projects {
		record(p.Skills, p.EndDate, "project")
	}

	out := make([]storage.SkillRecency, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}
