// Package index turns a candidate's relational rows into the searchable
// representation both recall channels read: a lexical text blob, a semantic
// embedding, JSON filter/feature snapshots and the derived skill-recency
// table.
package index

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/llm"
	"talent-match/internal/metrics"
	"talent-match/internal/storage"
)

const (
	maxFeatureSkills   = 10
	maxRecentEmployers = 3
)

// Store is the slice of the persistence layer the builder touches.
// Implemented by *storage.Store; faked in tests.
type Store interface {
	GetCandidate(ctx context.Context, id int64) (*storage.Candidate, error)
	ListExperiences(ctx context.Context, candidateID int64) ([]storage.Experience, error)
	ListProjects(ctx context.Context, candidateID int64) ([]storage.Project, error)
	ListEducation(ctx context.Context, candidateID int64) ([]storage.Education, error)
	GetIndexMeta(ctx context.Context, candidateID int64) (*storage.IndexMeta, error)
	UpsertIndex(ctx context.Context, candidateID int64, lexicalText string, embedding []float32,
		filtersJSON, featuresJSON []byte, version int, at time.Time) error
	ReplaceSkillRecency(ctx context.Context, candidateID int64, rows []storage.SkillRecency) error
	DeleteIndex(ctx context.Context, candidateID int64) error
	ListCandidateIDs(ctx context.Context, ids []int64, updatedSince *time.Time) ([]int64, error)
}

// Summarizer is the external collaborator pair the builder calls: a profile
// summary first, then the embedding of that summary (not of the raw blob).
type Summarizer interface {
	Summarize(ctx context.Context, profile llm.CandidateProfile) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Builder struct {
	store   Store
	runTx   func(ctx context.Context, fn func(Store) error) error
	llm     Summarizer
	version int
	log     *zap.Logger
}

// NewBuilder wires the builder to the live database: reads go through the
// pool, the index upsert and recency rebuild share one transaction.
func NewBuilder(db *storage.DB, svc Summarizer, cfg config.IndexSettings, log *zap.Logger) *Builder {
	return &Builder{
		store: db.Store(),
		runTx: func(ctx context.Context, fn func(Store) error) error {
			return db.WithTx(ctx, func(s *storage.Store) error { return fn(s) })
		},
		llm:     svc,
		version: cfg.EmbeddingVersion,
		log:     log,
	}
}

// BuildIndex rebuilds one candidate's search index. Returns true on success
// or when the staleness guard decides the existing index is current. A failed
// build leaves the previous index untouched and reports false; errors are
// logged, never propagated.
func (b *Builder) BuildIndex(ctx context.Context, candidateID int64, force bool) bool {
	cand, err := b.store.GetCandidate(ctx, candidateID)
	if err != nil || cand == nil {
		b.log.Warn("index build: candidate load failed",
			zap.Int64("candidate_id", candidateID), zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}

	if !force {
		meta, err := b.store.GetIndexMeta(ctx, candidateID)
		if err != nil {
			b.log.Warn("index build: meta load failed",
				zap.Int64("candidate_id", candidateID), zap.Error(err))
			metrics.IndexBuilds.WithLabelValues("failed").Inc()
			return false
		}
		if current(meta, cand, b.version) {
			metrics.IndexBuilds.WithLabelValues("skipped").Inc()
			return true
		}
	}

	experiences, err := b.store.ListExperiences(ctx, candidateID)
	if err != nil {
		b.log.Warn("index build: experiences load failed", zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}
	projects, err := b.store.ListProjects(ctx, candidateID)
	if err != nil {
		b.log.Warn("index build: projects load failed", zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}
	education, err := b.store.ListEducation(ctx, candidateID)
	if err != nil {
		b.log.Warn("index build: education load failed", zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}

	blob := lexicalBlob(cand, experiences, projects, education)

	summary, err := b.llm.Summarize(ctx, llm.CandidateProfile{
		Name:            cand.Name,
		CurrentTitle:    cand.CurrentTitle,
		CurrentCompany:  cand.CurrentCompany,
		Location:        cand.Location,
		YearsExperience: cand.YearsExperience,
		Skills:          cand.Skills,
		EducationLevel:  cand.EducationLevel,
	})
	if err != nil {
		b.log.Warn("index build: summarize failed",
			zap.Int64("candidate_id", candidateID), zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}

	// The embedding covers the summary, not the raw blob. Without a vector
	// the candidate cannot participate in vector recall, so failure here
	// fails the whole build.
	embedding, err := b.llm.Embed(ctx, summary)
	if err != nil {
		b.log.Warn("index build: embedding failed",
			zap.Int64("candidate_id", candidateID), zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}

	filtersJSON, err := json.Marshal(filterSnapshot(cand))
	if err != nil {
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}
	featuresJSON, err := json.Marshal(featureSnapshot(cand, experiences, education))
	if err != nil {
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}

	recency := recencyRows(candidateID, experiences, projects)

	err = b.runTx(ctx, func(s Store) error {
		if err := s.UpsertIndex(ctx, candidateID, blob, embedding,
			filtersJSON, featuresJSON, b.version, time.Now()); err != nil {
			return err
		}
		return s.ReplaceSkillRecency(ctx, candidateID, recency)
	})
	if err != nil {
		b.log.Warn("index build: write failed",
			zap.Int64("candidate_id", candidateID), zap.Error(err))
		metrics.IndexBuilds.WithLabelValues("failed").Inc()
		return false
	}

	b.log.Info("index built",
		zap.Int64("candidate_id", candidateID),
		zap.Int("skills", len(cand.Skills)),
		zap.Int("recency_rows", len(recency)))
	metrics.IndexBuilds.WithLabelValues("built").Inc()
	return true
}

// ReindexAll force-rebuilds the given candidates, or every candidate updated
// since the cutoff, or simply everything.
func (b *Builder) ReindexAll(ctx context.Context, candidateIDs []int64, updatedSince *time.Time) (success, failed int) {
	ids, err := b.store.ListCandidateIDs(ctx, candidateIDs, updatedSince)
	if err != nil {
		b.log.Error("reindex: listing candidates failed", zap.Error(err))
		return 0, 0
	}

	for _, id := range ids {
		if b.BuildIndex(ctx, id, true) {
			success++
		} else {
			failed++
		}
	}
	b.log.Info("reindex finished", zap.Int("success", success), zap.Int("failed", failed))
	return success, failed
}

// DeleteIndex removes the candidate's index row and recency rows.
func (b *Builder) DeleteIndex(ctx context.Context, candidateID int64) error {
	return b.store.DeleteIndex(ctx, candidateID)
}

// current is the staleness guard: the index may be reused only when it exists,
// was built with the configured embedding version, and postdates the last
// candidate update.
func current(meta *storage.IndexMeta, cand *storage.Candidate, version int) bool {
	return meta != nil &&
		meta.EmbeddingVersion == version &&
		meta.IndexUpdatedAt.After(cand.UpdatedAt)
}
