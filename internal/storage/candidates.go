package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const candidateColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(location, ''),
	years_experience, COALESCE(current_title, ''), COALESCE(current_company, ''), skills,
	COALESCE(education_level, ''), COALESCE(source, ''), status, created_at, updated_at`

func scanCandidate(row interface{ Scan(...interface{}) error }) (*Candidate, error) {
	c := &Candidate{}
	var years sql.NullInt64
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Location,
		&years, &c.CurrentTitle, &c.CurrentCompany, pq.Array(&c.Skills),
		&c.EducationLevel, &c.Source, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if years.Valid {
		y := int(years.Int64)
		c.YearsExperience = &y
	}
	return c, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func (s *Store) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate %d: %w", id, err)
	}
	return c, nil
}

// FindCandidateByContact matches on email OR phone (either field hitting is
// enough). The row is locked for the rest of the transaction so a concurrent
// merge against the same person serializes behind us.
func (s *Store) FindCandidateByContact(ctx context.Context, email, phone string) (*Candidate, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE (email = $1 AND $1 <> '') OR (phone = $2 AND $2 <> '')
		 LIMIT 1 FOR UPDATE`, email, phone)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate by contact: %w", err)
	}
	return c, nil
}

// FindCandidateByTextHash returns the candidate owning a resume with an
// identical content hash, i.e. the exact-same-document-resubmitted case.
func (s *Store) FindCandidateByTextHash(ctx context.Context, textHash string) (*Candidate, error) {
	if textHash == "" {
		return nil, nil
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE id = (SELECT candidate_id FROM resumes WHERE text_hash = $1 LIMIT 1)
		 FOR UPDATE`, textHash)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate by text hash: %w", err)
	}
	return c, nil
}

func (s *Store) FindCandidatesByName(ctx context.Context, name string) ([]*Candidate, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("find candidates by name: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCandidate(ctx context.Context, c *Candidate) (int64, error) {
	if c.Status == "" {
		c.Status = StatusActive
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO candidates (name, email, phone, location, years_experience,
		                        current_title, current_company, skills, education_level,
		                        source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		c.Name, nullStr(c.Email), nullStr(c.Phone), nullStr(c.Location),
		nullInt(c.YearsExperience), nullStr(c.CurrentTitle), nullStr(c.CurrentCompany),
		pq.Array(c.Skills), nullStr(c.EducationLevel), nullStr(c.Source), c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("create candidate: %w", err)
	}
	return c.ID, nil
}

// UpdateCandidate writes back the mergeable fields and bumps updated_at.
func (s *Store) UpdateCandidate(ctx context.Context, c *Candidate) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE candidates
		SET email = $2, phone = $3, location = $4, years_experience = $5,
		    current_title = $6, current_company = $7, skills = $8,
		    education_level = $9, updated_at = now()
		WHERE id = $1`,
		c.ID, nullStr(c.Email), nullStr(c.Phone), nullStr(c.Location),
		nullInt(c.YearsExperience), nullStr(c.CurrentTitle), nullStr(c.CurrentCompany),
		pq.Array(c.Skills), nullStr(c.EducationLevel))
	if err != nil {
		return fmt.Errorf("update candidate %d: %w", c.ID, err)
	}
	return nil
}

// SetCandidateStatus flips the lifecycle flag, e.g. deactivating the losing
// row of a manual merge so it drops out of recall.
func (s *Store) SetCandidateStatus(ctx context.Context, id int64, status string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE candidates SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set candidate %d status: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteCandidate(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM candidates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete candidate %d: %w", id, err)
	}
	return nil
}

func (s *Store) InsertResume(ctx context.Context, r *Resume) (int64, error) {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO resumes (candidate_id, file_uri, file_type, text_content, text_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		r.CandidateID, r.FileURI, nullStr(r.FileType), r.TextContent, nullStr(r.TextHash),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert resume: %w", err)
	}
	return r.ID, nil
}

func (s *Store) InsertExperience(ctx context.Context, e *Experience) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO experiences (candidate_id, company, title, start_date, end_date, skills, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.CandidateID, e.Company, e.Title, e.StartDate, e.EndDate,
		pq.Array(e.Skills), nullStr(e.Description),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert experience: %w", err)
	}
	return nil
}

func (s *Store) InsertProject(ctx context.Context, p *Project) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO projects (candidate_id, project_name, role, start_date, end_date, skills, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.CandidateID, nullStr(p.Name), nullStr(p.Role), p.StartDate, p.EndDate,
		pq.Array(p.Skills), nullStr(p.Description),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) InsertEducation(ctx context.Context, e *Education) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO education (candidate_id, school, degree, major, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.CandidateID, nullStr(e.School), nullStr(e.Degree), nullStr(e.Major),
		e.StartDate, e.EndDate,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert education: %w", err)
	}
	return nil
}

func (s *Store) ListExperiences(ctx context.Context, candidateID int64) ([]Experience, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, candidate_id, company, title, start_date, end_date, skills, COALESCE(description, '')
		FROM experiences WHERE candidate_id = $1 ORDER BY id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer rows.Close()

	var out []Experience
	for rows.Next() {
		var e Experience
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.Company, &e.Title,
			&e.StartDate, &e.EndDate, pq.Array(&e.Skills), &e.Description); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListProjects(ctx context.Context, candidateID int64) ([]Project, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, candidate_id, COALESCE(project_name, ''), COALESCE(role, ''),
		       start_date, end_date, skills, COALESCE(description, '')
		FROM projects WHERE candidate_id = $1 ORDER BY id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.CandidateID, &p.Name, &p.Role,
			&p.StartDate, &p.EndDate, pq.Array(&p.Skills), &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListEducation(ctx context.Context, candidateID int64) ([]Education, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, candidate_id, COALESCE(school, ''), COALESCE(degree, ''), COALESCE(major, ''),
		       start_date, end_date
		FROM education WHERE candidate_id = $1 ORDER BY id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list education: %w", err)
	}
	defer rows.Close()

	var out []Education
	for rows.Next() {
		var e Education
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.School, &e.Degree, &e.Major,
			&e.StartDate, &e.EndDate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) InsertLineage(ctx context.Context, entries []MergeLineage) error {
	for i := range entries {
		e := &entries[i]
		if e.DecidedBy == "" {
			e.DecidedBy = "system"
		}
		if e.DecidedAt.IsZero() {
			e.DecidedAt = time.Now().UTC()
		}
		err := s.q.QueryRowContext(ctx, `
			INSERT INTO merge_lineage (candidate_id, from_resume_id, merge_rule, field_name,
			                           old_value, new_value, decided_by, decided_at)
			VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			e.CandidateID, e.FromResumeID, e.MergeRule, e.FieldName,
			nullStr(e.OldValue), nullStr(e.NewValue), e.DecidedBy, e.DecidedAt,
		).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("insert lineage for field %s: %w", e.FieldName, err)
		}
	}
	return nil
}

func (s *Store) ListLineage(ctx context.Context, candidateID int64) ([]MergeLineage, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, candidate_id, COALESCE(from_resume_id, 0), COALESCE(merge_rule, ''),
		       COALESCE(field_name, ''), COALESCE(old_value, ''), COALESCE(new_value, ''),
		       decided_by, decided_at
		FROM merge_lineage WHERE candidate_id = $1 ORDER BY id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}
	defer rows.Close()

	var out []MergeLineage
	for rows.Next() {
		var e MergeLineage
		if err := rows.Scan(&e.ID, &e.CandidateID, &e.FromResumeID, &e.MergeRule,
			&e.FieldName, &e.OldValue, &e.NewValue, &e.DecidedBy, &e.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RepointCandidateChildren moves resumes and all child records from one
// candidate to another. Used by the manual merge path.
func (s *Store) RepointCandidateChildren(ctx context.Context, fromID, toID int64) error {
	for _, table := range []string{"resumes", "experiences", "projects", "education"} {
		q := fmt.Sprintf(`UPDATE %s SET candidate_id = $1 WHERE candidate_id = $2`, table)
		if _, err := s.q.ExecContext(ctx, q, toID, fromID); err != nil {
			return fmt.Errorf("repoint %s: %w", table, err)
		}
	}
	return nil
}

// ListCandidateIDs returns candidate ids filtered by an optional explicit set
// and an optional updated-since cutoff.
func (s *Store) ListCandidateIDs(ctx context.Context, ids []int64, updatedSince *time.Time) ([]int64, error) {
	query := `SELECT id FROM candidates WHERE 1=1`
	var args []interface{}
	if len(ids) > 0 {
		args = append(args, pq.Array(ids))
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	if updatedSince != nil {
		args = append(args, *updatedSince)
		query += fmt.Sprintf(" AND updated_at >= $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidate ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
