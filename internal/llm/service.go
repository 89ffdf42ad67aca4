package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/metrics"
)

// ErrUnavailable is returned by every Service method when no provider is
// configured. Callers degrade per their own rules instead of panicking.
var ErrUnavailable = errors.New("llm provider not configured")

// EmbeddingCache stores embeddings keyed by a text hash. A nil cache is a
// valid no-op.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

// Service speaks to the external LLM collaborators: JD parsing, candidate
// summarization, embeddings and evidence generation. All calls go through one
// OpenAI-compatible endpoint.
type Service struct {
	client         *openai.Client
	model          string
	embeddingModel string
	embeddingDim   int
	timeout        time.Duration
	cache          EmbeddingCache
	log            *zap.Logger
}

// NewService builds the client, or returns nil when the provider is "none"
// (callers treat a nil service as "collaborators unavailable").
func NewService(cfg config.LLMSettings, cache EmbeddingCache, log *zap.Logger) *Service {
	if cfg.Provider == "" || cfg.Provider == "none" || cfg.APIKey == "" {
		return nil
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Service{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDim,
		timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
		cache:          cache,
		log:            log,
	}
}

// ParseJD extracts must/nice skills and filter criteria from a free-text job
// description.
func (s *Service) ParseJD(ctx context.Context, jdText string) (*ParsedJD, error) {
	prompt := fmt.Sprintf(`Analyze the following job description and extract key information.

Job description:
"""
%s
"""

Return ONLY valid JSON with this exact structure:
{
  "must_skills": ["hard requirements"],
  "nice_skills": ["preferred but not required"],
  "filters": {
    "location": null,
    "min_years": null,
    "max_years": null,
    "education_level": null
  },
  "notes": "other important remarks"
}

Use null for missing values and empty arrays when nothing was found.`, jdText)

	content, err := s.complete(ctx, "You are a recruiting analyst that extracts structured data from job descriptions. Return only valid JSON.", prompt)
	if err != nil {
		return nil, fmt.Errorf("jd parse: %w", err)
	}

	var parsed ParsedJD
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("jd parse: invalid response JSON: %w", err)
	}
	return &parsed, nil
}

// Summarize produces the short natural-language profile text the index
// builder embeds.
func (s *Service) Summarize(ctx context.Context, profile CandidateProfile) (string, error) {
	data, err := json.Marshal(profile)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Write a 2-3 sentence professional profile summary for this candidate.
Mention role, seniority, strongest skills and notable employers. Plain text only.

Candidate:
%s`, string(data))

	content, err := s.complete(ctx, "You are a recruiting assistant that writes concise candidate summaries.", prompt)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// Embed returns the dense vector for text. Failure is reported as an error,
// never as a zero vector.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if s == nil {
		return nil, ErrUnavailable
	}
	key := TextHash(text)
	if s.cache != nil {
		if emb, ok, err := s.cache.GetEmbedding(ctx, key); err == nil && ok {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return emb, nil
		}
		metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{truncate(text, 32000)},
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding request: empty response")
	}

	emb := resp.Data[0].Embedding
	if s.embeddingDim > 0 && len(emb) != s.embeddingDim {
		return nil, fmt.Errorf("embedding request: got %d dimensions, want %d", len(emb), s.embeddingDim)
	}

	if s.cache != nil {
		if err := s.cache.SetEmbedding(ctx, key, emb); err != nil {
			s.log.Debug("embedding cache write failed", zap.Error(err))
		}
	}
	return emb, nil
}

// GenerateEvidence asks the model for supporting snippets per matched skill.
func (s *Service) GenerateEvidence(ctx context.Context, candidateText string, matchedSkills []string, jdText string, maxEvidences int) ([]Evidence, error) {
	prompt := fmt.Sprintf(`Find concrete evidence in this candidate's background for the matched skills.

Matched skills: %s

Candidate background:
"""
%s
"""

For each skill return a snippet (the relevant sentence) and, when visible, the
period it covers. Return ONLY valid JSON:
{"evidences": [{"skill": "...", "snippet": "...", "period": "..."}]}

Return at most %d evidences.`, strings.Join(matchedSkills, ", "), truncate(candidateText, 2000), maxEvidences)

	content, err := s.complete(ctx, "You are a resume analyst. Return only valid JSON.", prompt)
	if err != nil {
		return nil, fmt.Errorf("evidence generation: %w", err)
	}

	var result struct {
		Evidences []Evidence `json:"evidences"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("evidence generation: invalid response JSON: %w", err)
	}
	if len(result.Evidences) > maxEvidences {
		result.Evidences = result.Evidences[:maxEvidences]
	}
	return result.Evidences, nil
}

// ExtractResume parses raw resume text into the structured form used by
// ingestion.
func (s *Service) ExtractResume(ctx context.Context, resumeText string) (*ResumeExtraction, error) {
	prompt := fmt.Sprintf(`You are an expert resume parser. Extract structured information from this resume.

Resume text:
"""
%s
"""

Return ONLY valid JSON with this structure:
{
  "name": "Full name",
  "email": null,
  "phone": null,
  "location": null,
  "years_experience": null,
  "current_title": null,
  "current_company": null,
  "skills": ["canonical skill names"],
  "education_level": null,
  "experiences": [{"company": "", "title": "", "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD", "skills": [], "description": ""}],
  "projects": [{"project_name": "", "role": "", "start_date": null, "end_date": null, "skills": []}],
  "education": [{"school": "", "degree": "", "major": "", "start_date": null, "end_date": null}]
}

Normalize skill names (e.g. "K8s" -> "Kubernetes"). Use null for missing
values, empty arrays when nothing was found, and ISO dates.`, truncate(resumeText, 24000))

	content, err := s.complete(ctx, "You are a resume parser. Return only valid JSON.", prompt)
	if err != nil {
		return nil, fmt.Errorf("resume extraction: %w", err)
	}

	var extraction ResumeExtraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		return nil, fmt.Errorf("resume extraction: invalid response JSON: %w", err)
	}
	return &extraction, nil
}

func (s *Service) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s == nil {
		return "", ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// TextHash is the sha256 hex digest used both as the resume content hash and
// as the embedding cache key.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
