// Package ingest drives the write path: parse an uploaded resume, resolve the
// person's identity, create or merge the candidate inside one transaction and
// schedule the index rebuild after commit.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"talent-match/internal/identity"
	"talent-match/internal/index"
	"talent-match/internal/llm"
	"talent-match/internal/metrics"
	"talent-match/internal/resume"
	"talent-match/internal/storage"
)

// Extractor is the LLM slice used during ingestion.
type Extractor interface {
	ExtractResume(ctx context.Context, resumeText string) (*llm.ResumeExtraction, error)
}

// IngestRequest carries one resume submission. Either Reader (a file to
// parse) or Text (already-extracted plain text) must be set.
type IngestRequest struct {
	FileName string
	Reader   io.Reader
	Text     string
	Source   string
	Strategy identity.Strategy
}

// IngestResult reports what happened to the submission.
type IngestResult struct {
	CandidateID   int64              `json:"candidate_id"`
	ResumeID      int64              `json:"resume_id,omitempty"`
	Created       bool               `json:"created"`
	Duplicate     bool               `json:"duplicate"`
	MatchTier     identity.MatchTier `json:"match_tier"`
	FieldsChanged int                `json:"fields_changed"`
}

type Service struct {
	db       *storage.DB
	resolver *identity.Resolver
	extract  Extractor
	parser   *resume.Parser
	builder  *index.Builder
	queue    chan int64
	log      *zap.Logger
}

func NewService(db *storage.DB, resolver *identity.Resolver, extract Extractor,
	parser *resume.Parser, builder *index.Builder, queueSize int, log *zap.Logger) *Service {

	return &Service{
		db:       db,
		resolver: resolver,
		extract:  extract,
		parser:   parser,
		builder:  builder,
		queue:    make(chan int64, queueSize),
		log:      log,
	}
}

// StartWorker runs the post-commit reindex loop until ctx is cancelled.
// Ingestion enqueues candidate IDs after its transaction commits; the worker
// force-rebuilds each one so new content becomes searchable without blocking
// the upload request.
func (s *Service) StartWorker(ctx context.Context) {
	go func() {
		s.log.Info("reindex worker started")
		for {
			select {
			case <-ctx.Done():
				s.log.Info("reindex worker stopped")
				return
			case id := <-s.queue:
				if !s.builder.BuildIndex(ctx, id, true) {
					s.log.Warn("post-ingest reindex failed", zap.Int64("candidate_id", id))
				}
			}
		}
	}()
}

// IngestResume processes one submission end to end. Identity resolution and
// all candidate writes share a transaction serialized by an advisory lock on
// the strongest identity key, so concurrent submissions of the same person
// cannot both create a candidate.
func (s *Service) IngestResume(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	text := req.Text
	fileURI := req.FileName
	fileType := ""
	if text == "" {
		if req.Reader == nil {
			return nil, fmt.Errorf("either text or a file is required")
		}
		parsed, err := s.parser.ParseFile(req.FileName, req.Reader)
		if err != nil {
			return nil, fmt.Errorf("parse resume: %w", err)
		}
		text = parsed.Text
		fileType = parsed.FileType
		fileURI = s.parser.URI(req.FileName)
	}

	textHash := llm.TextHash(text)

	extraction, err := s.extract.ExtractResume(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract resume: %w", err)
	}
	if extraction.Name == "" {
		return nil, fmt.Errorf("extraction produced no candidate name")
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = identity.StrategyNewPriority
	}

	parsedID := identity.ParsedIdentity{
		Name:           extraction.Name,
		Email:          extraction.Email,
		Phone:          extraction.Phone,
		TextHash:       textHash,
		CurrentCompany: extraction.CurrentCompany,
	}

	var result IngestResult
	err = s.db.WithTx(ctx, func(tx *storage.Store) error {
		if err := tx.AdvisoryLock(ctx, lockKey(parsedID)); err != nil {
			return err
		}

		// The resumes.text_hash unique constraint makes resubmitting the
		// exact same document a no-op.
		if existing, err := tx.FindCandidateByTextHash(ctx, textHash); err != nil {
			return err
		} else if existing != nil {
			result = IngestResult{
				CandidateID: existing.ID,
				Duplicate:   true,
				MatchTier:   identity.TierStrong,
			}
			return nil
		}

		candidate, tier, err := s.resolver.Resolve(ctx, tx, parsedID)
		if err != nil {
			return err
		}
		result.MatchTier = tier

		if candidate == nil {
			candidate = &storage.Candidate{
				Name:            extraction.Name,
				Email:           extraction.Email,
				Phone:           extraction.Phone,
				Location:        extraction.Location,
				YearsExperience: extraction.YearsExperience,
				CurrentTitle:    extraction.CurrentTitle,
				CurrentCompany:  extraction.CurrentCompany,
				Skills:          extraction.Skills,
				EducationLevel:  extraction.EducationLevel,
				Source:          req.Source,
			}
			if _, err := tx.CreateCandidate(ctx, candidate); err != nil {
				return err
			}
			result.Created = true
		}
		result.CandidateID = candidate.ID

		res := &storage.Resume{
			CandidateID: candidate.ID,
			FileURI:     fileURI,
			FileType:    fileType,
			TextContent: text,
			TextHash:    textHash,
		}
		if _, err := tx.InsertResume(ctx, res); err != nil {
			return err
		}
		result.ResumeID = res.ID

		if !result.Created {
			lineage := identity.Merge(candidate, incomingFrom(extraction), res.ID, strategy)
			if err := tx.UpdateCandidate(ctx, candidate); err != nil {
				return err
			}
			if err := tx.InsertLineage(ctx, lineage); err != nil {
				return err
			}
			result.FieldsChanged = len(lineage)
		}

		return s.insertChildren(ctx, tx, candidate.ID, extraction)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case result.Duplicate:
		metrics.ResumesIngested.WithLabelValues("duplicate").Inc()
	case result.Created:
		metrics.ResumesIngested.WithLabelValues("created").Inc()
	default:
		metrics.ResumesIngested.WithLabelValues("merged").Inc()
	}

	if !result.Duplicate {
		s.enqueueReindex(ctx, result.CandidateID)
	}

	s.log.Info("resume ingested",
		zap.Int64("candidate_id", result.CandidateID),
		zap.String("tier", string(result.MatchTier)),
		zap.Bool("created", result.Created),
		zap.Bool("duplicate", result.Duplicate))
	return &result, nil
}

func (s *Service) insertChildren(ctx context.Context, tx *storage.Store, candidateID int64, ex *llm.ResumeExtraction) error {
	for _, e := range ex.Experiences {
		if err := tx.InsertExperience(ctx, &storage.Experience{
			CandidateID: candidateID,
			Company:     e.Company,
			Title:       e.Title,
			StartDate:   parseDate(e.StartDate),
			EndDate:     parseDate(e.EndDate),
			Skills:      e.Skills,
			Description: e.Description,
		}); err != nil {
			return err
		}
	}
	for _, p := range ex.Projects {
		if err := tx.InsertProject(ctx, &storage.Project{
			CandidateID: candidateID,
			Name:        p.Name,
			Role:        p.Role,
			StartDate:   parseDate(p.StartDate),
			EndDate:     parseDate(p.EndDate),
			Skills:      p.Skills,
		}); err != nil {
			return err
		}
	}
	for _, ed := range ex.Education {
		if err := tx.InsertEducation(ctx, &storage.Education{
			CandidateID: candidateID,
			School:      ed.School,
			Degree:      ed.Degree,
			Major:       ed.Major,
			StartDate:   parseDate(ed.StartDate),
			EndDate:     parseDate(ed.EndDate),
		}); err != nil {
			return err
		}
	}
	return nil
}

// enqueueReindex hands the candidate to the background worker; when the queue
// is full the rebuild runs inline instead of being dropped.
func (s *Service) enqueueReindex(ctx context.Context, candidateID int64) {
	select {
	case s.queue <- candidateID:
	default:
		s.log.Warn("reindex queue full, building inline", zap.Int64("candidate_id", candidateID))
		s.builder.BuildIndex(ctx, candidateID, true)
	}
}

// lockKey derives the advisory-lock key from the strongest identity field
// available, mirroring the resolution precedence.
func lockKey(id identity.ParsedIdentity) string {
	switch {
	case id.Email != "":
		return "ingest:email:" + strings.ToLower(id.Email)
	case id.Phone != "":
		return "ingest:phone:" + id.Phone
	case id.TextHash != "":
		return "ingest:hash:" + id.TextHash
	default:
		return "ingest:name:" + strings.ToLower(strings.TrimSpace(id.Name))
	}
}

func incomingFrom(ex *llm.ResumeExtraction) identity.Incoming {
	return identity.Incoming{
		Email:           ex.Email,
		Phone:           ex.Phone,
		Location:        ex.Location,
		YearsExperience: ex.YearsExperience,
		CurrentTitle:    ex.CurrentTitle,
		CurrentCompany:  ex.CurrentCompany,
		Skills:          ex.Skills,
		EducationLevel:  ex.EducationLevel,
	}
}

// parseDate accepts the ISO date shapes the extractor emits; anything else is
// treated as unknown.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
