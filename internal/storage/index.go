package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

func (s *Store) GetIndexMeta(ctx context.Context, candidateID int64) (*IndexMeta, error) {
	m := &IndexMeta{CandidateID: candidateID}
	err := s.q.QueryRowContext(ctx, `
		SELECT embedding_version, index_updated_at
		FROM candidate_index WHERE candidate_id = $1`, candidateID,
	).Scan(&m.EmbeddingVersion, &m.IndexUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get index meta: %w", err)
	}
	return m, nil
}

// UpsertIndex writes the full searchable representation in one statement. The
// lexical blob is tokenized by Postgres into a tsvector; the embedding is
// passed in pgvector's text format.
func (s *Store) UpsertIndex(ctx context.Context, candidateID int64, lexicalText string,
	embedding []float32, filtersJSON, featuresJSON []byte, version int, at time.Time) error {

	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO candidate_index
			(candidate_id, lexical_tsv, embedding, filters_json, features_json, embedding_version, index_updated_at)
		VALUES ($1, to_tsvector('simple', $2), $3::vector, $4::jsonb, $5::jsonb, $6, $7)
		ON CONFLICT (candidate_id) DO UPDATE
			SET lexical_tsv = to_tsvector('simple', $2),
			    embedding = $3::vector,
			    filters_json = $4::jsonb,
			    features_json = $5::jsonb,
			    embedding_version = $6,
			    index_updated_at = $7`,
		candidateID, lexicalText, string(embJSON), string(filtersJSON), string(featuresJSON), version, at)
	if err != nil {
		return fmt.Errorf("upsert index for candidate %d: %w", candidateID, err)
	}
	return nil
}

func (s *Store) DeleteIndex(ctx context.Context, candidateID int64) error {
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM candidate_index WHERE candidate_id = $1`, candidateID); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM skill_recency WHERE candidate_id = $1`, candidateID); err != nil {
		return fmt.Errorf("delete skill recency: %w", err)
	}
	return nil
}

// ReplaceSkillRecency rebuilds the derived table wholesale: delete everything
// for the candidate, then insert the fresh rows. Never updated incrementally.
func (s *Store) ReplaceSkillRecency(ctx context.Context, candidateID int64, rows []SkillRecency) error {
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM skill_recency WHERE candidate_id = $1`, candidateID); err != nil {
		return fmt.Errorf("clear skill recency: %w", err)
	}
	for _, r := range rows {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO skill_recency (candidate_id, skill, last_used_date, source)
			VALUES ($1, $2, $3, $4)`,
			candidateID, r.Skill, r.LastUsed, nullStr(r.Source))
		if err != nil {
			return fmt.Errorf("insert skill recency %q: %w", r.Skill, err)
		}
	}
	return nil
}

// SkillRecencyFor returns recency rows for the candidate restricted to the
// given skills. The comparison is case-insensitive; rows store the
// first-seen spelling while JD skills arrive in arbitrary casing.
func (s *Store) SkillRecencyFor(ctx context.Context, candidateID int64, skills []string) ([]SkillRecency, error) {
	if len(skills) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT candidate_id, skill, last_used_date, COALESCE(source, '')
		FROM skill_recency
		WHERE candidate_id = $1 AND lower(skill) = ANY($2) AND last_used_date IS NOT NULL`,
		candidateID, pq.Array(lowerAll(skills)))
	if err != nil {
		return nil, fmt.Errorf("skill recency lookup: %w", err)
	}
	defer rows.Close()

	var out []SkillRecency
	for rows.Next() {
		var r SkillRecency
		if err := rows.Scan(&r.CandidateID, &r.Skill, &r.LastUsed, &r.Source); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// lowerAll folds query skills to match the lower(skill) comparison above.
func lowerAll(skills []string) []string {
	out := make([]string, len(skills))
	for i, s := range skills {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
