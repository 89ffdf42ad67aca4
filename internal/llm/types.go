package llm

// ParsedJD is the structured form of a job description returned by the JD
// parser.
type ParsedJD struct {
	MustSkills []string  `json:"must_skills"`
	NiceSkills []string  `json:"nice_skills"`
	Filters    JDFilters `json:"filters"`
	Notes      string    `json:"notes,omitempty"`
}

type JDFilters struct {
	Location       string `json:"location,omitempty"`
	MinYears       *int   `json:"min_years,omitempty"`
	MaxYears       *int   `json:"max_years,omitempty"`
	EducationLevel string `json:"education_level,omitempty"`
}

// Evidence is one supporting snippet extracted for a matched skill.
type Evidence struct {
	Skill   string `json:"skill"`
	Snippet string `json:"snippet"`
	Period  string `json:"period,omitempty"`
}

// CandidateProfile is the flat view of a candidate fed to the summarizer.
type CandidateProfile struct {
	Name            string   `json:"name"`
	CurrentTitle    string   `json:"current_title,omitempty"`
	CurrentCompany  string   `json:"current_company,omitempty"`
	Location        string   `json:"location,omitempty"`
	YearsExperience *int     `json:"years_experience,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	EducationLevel  string   `json:"education_level,omitempty"`
}

// ResumeExtraction is the structured result of parsing raw resume text.
type ResumeExtraction struct {
	Name            string                `json:"name"`
	Email           string                `json:"email,omitempty"`
	Phone           string                `json:"phone,omitempty"`
	Location        string                `json:"location,omitempty"`
	YearsExperience *int                  `json:"years_experience,omitempty"`
	CurrentTitle    string                `json:"current_title,omitempty"`
	CurrentCompany  string                `json:"current_company,omitempty"`
	Skills          []string              `json:"skills,omitempty"`
	EducationLevel  string                `json:"education_level,omitempty"`
	Experiences     []ExtractedExperience `json:"experiences,omitempty"`
	Projects        []ExtractedProject    `json:"projects,omitempty"`
	Education       []ExtractedEducation  `json:"education,omitempty"`
}

type ExtractedExperience struct {
	Company     string   `json:"company"`
	Title       string   `json:"title"`
	StartDate   string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string   `json:"end_date,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Description string   `json:"description,omitempty"`
}

type ExtractedProject struct {
	Name      string   `json:"project_name"`
	Role      string   `json:"role,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Skills    []string `json:"skills,omitempty"`
}

type ExtractedEducation struct {
	School    string `json:"school"`
	Degree    string `json:"degree,omitempty"`
	Major     string `json:"major,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}
