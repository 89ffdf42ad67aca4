package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const recallColumns = `c.id, c.name, COALESCE(c.current_title, ''), COALESCE(c.current_company, ''),
	COALESCE(c.location, ''), c.years_experience, c.skills`

// LexicalSearch runs an OR-of-terms full-text query over active candidates,
// ordered by ts_rank descending.
func (s *Store) LexicalSearch(ctx context.Context, terms []string, limit int) ([]RecallHit, error) {
	tsQuery := buildORQuery(terms)
	if tsQuery == "" {
		return nil, nil
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+recallColumns+`,
		       ts_rank(ci.lexical_tsv, to_tsquery('simple', $1)) AS lexical_score
		FROM candidates c
		JOIN candidate_index ci ON c.id = ci.candidate_id
		WHERE ci.lexical_tsv @@ to_tsquery('simple', $1)
		  AND c.status = 'active'
		ORDER BY lexical_score DESC
		LIMIT $2`, tsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	return scanRecallHits(rows)
}

// VectorSearch orders active candidates by ascending cosine distance to the
// query embedding and reports 1-distance as the similarity score.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]RecallHit, error) {
	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal query embedding: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+recallColumns+`,
		       1 - (ci.embedding <=> $1::vector) AS vector_score
		FROM candidates c
		JOIN candidate_index ci ON c.id = ci.candidate_id
		WHERE c.status = 'active' AND ci.embedding IS NOT NULL
		ORDER BY ci.embedding <=> $1::vector
		LIMIT $2`, string(embJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	return scanRecallHits(rows)
}

func scanRecallHits(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]RecallHit, error) {
	var out []RecallHit
	for rows.Next() {
		var h RecallHit
		var years *int
		if err := rows.Scan(&h.CandidateID, &h.Name, &h.CurrentTitle, &h.CurrentCompany,
			&h.Location, &years, pq.Array(&h.Skills), &h.Score); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		h.YearsExperience = years
		out = append(out, h)
	}
	return out, rows.Err()
}

// SearchCandidates is the plain keyword search: plainto_tsquery with a
// ts_headline snippet, no fusion.
func (s *Store) SearchCandidates(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(c.current_title, ''), COALESCE(c.current_company, ''), c.skills,
		       ts_rank(ci.lexical_tsv, plainto_tsquery('simple', $1)) AS score,
		       ts_headline('simple', COALESCE(c.current_title, '') || ' ' || COALESCE(c.current_company, ''),
		                   plainto_tsquery('simple', $1)) AS snippet
		FROM candidates c
		JOIN candidate_index ci ON c.id = ci.candidate_id
		WHERE ci.lexical_tsv @@ plainto_tsquery('simple', $1)
		  AND c.status = 'active'
		ORDER BY score DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("candidate search failed: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.CandidateID, &r.Name, &r.CurrentTitle, &r.CurrentCompany,
			pq.Array(&r.Skills), &r.Score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildORQuery converts a term list into a tsquery, e.g.
// ["Go", "Machine Learning"] -> "go | (machine & learning)".
func buildORQuery(terms []string) string {
	var parts []string
	for _, term := range terms {
		words := strings.Fields(sanitizeTerm(term))
		if len(words) == 0 {
			continue
		}
		if len(words) == 1 {
			parts = append(parts, words[0])
		} else {
			parts = append(parts, "("+strings.Join(words, " & ")+")")
		}
	}
	return strings.Join(parts, " | ")
}

// sanitizeTerm strips tsquery operator characters so user-supplied skills
// cannot break the query syntax.
func sanitizeTerm(term string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(term) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r >= 0x80: // keep non-ASCII letters
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}
