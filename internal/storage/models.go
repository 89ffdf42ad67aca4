package storage

import "time"

// Candidate is one real person in the talent pool. Writes go through the
// identity engine (create on first ingestion, update on merge); everything
// else only reads.
type Candidate struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Location        string    `json:"location,omitempty"`
	YearsExperience *int      `json:"years_experience,omitempty"`
	CurrentTitle    string    `json:"current_title,omitempty"`
	CurrentCompany  string    `json:"current_company,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	EducationLevel  string    `json:"education_level,omitempty"`
	Source          string    `json:"source,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Resume is one submitted document, tied to exactly one candidate at write
// time. TextHash is the sha256 of the extracted text, used for exact-duplicate
// detection.
type Resume struct {
	ID          int64     `json:"id"`
	CandidateID int64     `json:"candidate_id"`
	FileURI     string    `json:"file_uri"`
	FileType    string    `json:"file_type,omitempty"`
	TextContent string    `json:"-"`
	TextHash    string    `json:"text_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

type Experience struct {
	ID          int64      `json:"id"`
	CandidateID int64      `json:"candidate_id"`
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Skills      []string   `json:"skills,omitempty"`
	Description string     `json:"description,omitempty"`
}

type Project struct {
	ID          int64      `json:"id"`
	CandidateID int64      `json:"candidate_id"`
	Name        string     `json:"name"`
	Role        string     `json:"role,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Skills      []string   `json:"skills,omitempty"`
	Description string     `json:"description,omitempty"`
}

type Education struct {
	ID          int64      `json:"id"`
	CandidateID int64      `json:"candidate_id"`
	School      string     `json:"school"`
	Degree      string     `json:"degree,omitempty"`
	Major       string     `json:"major,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// IndexMeta is the part of a candidate's search index the staleness guard
// needs: nil means no index exists yet.
type IndexMeta struct {
	CandidateID      int64
	EmbeddingVersion int
	IndexUpdatedAt   time.Time
}

// MergeLineage is one field-level decision made during a merge. Rows are
// append-only and exist purely for explainability.
type MergeLineage struct {
	ID           int64     `json:"id"`
	CandidateID  int64     `json:"candidate_id"`
	FromResumeID int64     `json:"from_resume_id"`
	MergeRule    string    `json:"merge_rule"`
	FieldName    string    `json:"field_name"`
	OldValue     string    `json:"old_value,omitempty"`
	NewValue     string    `json:"new_value,omitempty"`
	DecidedBy    string    `json:"decided_by"`
	DecidedAt    time.Time `json:"decided_at"`
}

// SkillRecency maps (candidate, skill) to the most recent end date of any
// experience or project mentioning that skill. The table is derived: it is
// deleted and rebuilt wholesale on every index pass, never updated
// incrementally.
type SkillRecency struct {
	CandidateID int64     `json:"candidate_id"`
	Skill       string    `json:"skill"`
	LastUsed    time.Time `json:"last_used_date"`
	Source      string    `json:"source,omitempty"`
}

// RecallHit is one candidate returned by a single recall channel, with that
// channel's raw score.
type RecallHit struct {
	CandidateID     int64
	Name            string
	CurrentTitle    string
	CurrentCompany  string
	Location        string
	YearsExperience *int
	Skills          []string
	Score           float64
}

// SearchResult is one row of the plain keyword search, with a highlighted
// snippet.
type SearchResult struct {
	CandidateID    int64    `json:"candidate_id"`
	Name           string   `json:"name"`
	CurrentTitle   string   `json:"current_title,omitempty"`
	CurrentCompany string   `json:"current_company,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Score          float64  `json:"score"`
	Snippet        string   `json:"snippet,omitempty"`
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)
