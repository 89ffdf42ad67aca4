package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"talent-match/internal/llm"
	"talent-match/internal/storage"
)

type fakeStore struct {
	candidate   *storage.Candidate
	meta        *storage.IndexMeta
	experiences []storage.Experience
	projects    []storage.Project
	education   []storage.Education
	ids         []int64

	upserts     int
	lastBlob    string
	lastFilters []byte
	recency     []storage.SkillRecency
	deleted     []int64
}

func (f *fakeStore) GetCandidate(ctx context.Context, id int64) (*storage.Candidate, error) {
	return f.candidate, nil
}

func (f *fakeStore) ListExperiences(ctx context.Context, candidateID int64) ([]storage.Experience, error) {
	return f.experiences, nil
}

func (f *fakeStore) ListProjects(ctx context.Context, candidateID int64) ([]storage.Project, error) {
	return f.projects, nil
}

func (f *fakeStore) ListEducation(ctx context.Context, candidateID int64) ([]storage.Education, error) {
	return f.education, nil
}

func (f *fakeStore) GetIndexMeta(ctx context.Context, candidateID int64) (*storage.IndexMeta, error) {
	return f.meta, nil
}

func (f *fakeStore) UpsertIndex(ctx context.Context, candidateID int64, lexicalText string,
	embedding []float32, filtersJSON, featuresJSON []byte, version int, at time.Time) error {
	f.upserts++
	f.lastBlob = lexicalText
	f.lastFilters = filtersJSON
	return nil
}

func (f *fakeStore) ReplaceSkillRecency(ctx context.Context, candidateID int64, rows []storage.SkillRecency) error {
	f.recency = rows
	return nil
}

func (f *fakeStore) DeleteIndex(ctx context.Context, candidateID int64) error {
	f.deleted = append(f.deleted, candidateID)
	return nil
}

func (f *fakeStore) ListCandidateIDs(ctx context.Context, ids []int64, updatedSince *time.Time) ([]int64, error) {
	return f.ids, nil
}

type fakeLLM struct {
	summary    string
	summaryErr error
	embedding  []float32
	embedErr   error
}

func (f *fakeLLM) Summarize(ctx context.Context, profile llm.CandidateProfile) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, f.embedErr
}

func newTestBuilder(store *fakeStore, svc *fakeLLM) *Builder {
	return &Builder{
		store:   store,
		runTx:   func(ctx context.Context, fn func(Store) error) error { return fn(store) },
		llm:     svc,
		version: 1,
		log:     zap.NewNop(),
	}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func activeCandidate() *storage.Candidate {
	return &storage.Candidate{
		ID:        1,
		Name:      "Jane Smith",
		Skills:    []string{"Go", "PostgreSQL"},
		Status:    storage.StatusActive,
		UpdatedAt: time.Now().Add(-time.Hour),
	}
}

func TestBuildIndexStalenessGuardSkips(t *testing.T) {
	store := &fakeStore{
		candidate: activeCandidate(),
		meta:      &storage.IndexMeta{CandidateID: 1, EmbeddingVersion: 1, IndexUpdatedAt: time.Now()},
	}
	b := newTestBuilder(store, &fakeLLM{summary: "s", embedding: []float32{0.1}})

	ok := b.BuildIndex(context.Background(), 1, false)

	assert.True(t, ok)
	assert.Zero(t, store.upserts, "a current index must not be rebuilt")
}

func TestBuildIndexForceBypassesGuard(t *testing.T) {
	store := &fakeStore{
		candidate: activeCandidate(),
		meta:      &storage.IndexMeta{CandidateID: 1, EmbeddingVersion: 1, IndexUpdatedAt: time.Now()},
	}
	b := newTestBuilder(store, &fakeLLM{summary: "s", embedding: []float32{0.1}})

	ok := b.BuildIndex(context.Background(), 1, true)

	assert.True(t, ok)
	assert.Equal(t, 1, store.upserts)
}

func TestBuildIndexVersionMismatchRebuilds(t *testing.T) {
	store := &fakeStore{
		candidate: activeCandidate(),
		meta:      &storage.IndexMeta{CandidateID: 1, EmbeddingVersion: 0, IndexUpdatedAt: time.Now()},
	}
	b := newTestBuilder(store, &fakeLLM{summary: "s", embedding: []float32{0.1}})

	assert.True(t, b.BuildIndex(context.Background(), 1, false))
	assert.Equal(t, 1, store.upserts)
}

func TestBuildIndexEmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	store := &fakeStore{candidate: activeCandidate()}
	b := newTestBuilder(store, &fakeLLM{summary: "s", embedErr: errors.New("provider down")})

	ok := b.BuildIndex(context.Background(), 1, true)

	assert.False(t, ok)
	assert.Zero(t, store.upserts)
	assert.Nil(t, store.recency)
}

func TestBuildIndexSummarizeFailureFails(t *testing.T) {
	store := &fakeStore{candidate: activeCandidate()}
	b := newTestBuilder(store, &fakeLLM{summaryErr: errors.New("provider down")})

	assert.False(t, b.BuildIndex(context.Background(), 1, true))
	assert.Zero(t, store.upserts)
}

func TestBuildIndexWritesRecencyRows(t *testing.T) {
	store := &fakeStore{
		candidate: activeCandidate(),
		experiences: []storage.Experience{
			{Skills: []string{"Go"}, EndDate: datePtr(2023, time.June, 1)},
			{Skills: []string{"Go", "Kafka"}, EndDate: datePtr(2024, time.March, 1)},
			{Skills: []string{"Perl"}}, // no end date, skipped
		},
		projects: []storage.Project{
			{Skills: []string{"Kafka"}, EndDate: datePtr(2022, time.January, 1)},
		},
	}
	b := newTestBuilder(store, &fakeLLM{summary: "s", embedding: []float32{0.1}})

	require.True(t, b.BuildIndex(context.Background(), 1, true))

	byName := map[string]storage.SkillRecency{}
	for _, r := range store.recency {
		byName[r.Skill] = r
	}
	require.Len(t, byName, 2)
	assert.Equal(t, *datePtr(2024, time.March, 1), byName["Go"].LastUsed)
	assert.Equal(t, *datePtr(2024, time.March, 1), byName["Kafka"].LastUsed)
	assert.NotContains(t, byName, "Perl")
}

func TestReindexAllCountsOutcomes(t *testing.T) {
	store := &fakeStore{candidate: activeCandidate(), ids: []int64{1, 2, 3}}
	b := newTestBuilder(store, &fakeLLM{summary: "s", embedding: []float32{0.1}})

	success, failed := b.ReindexAll(context.Background(), nil, nil)

	assert.Equal(t, 3, success)
	assert.Zero(t, failed)
	assert.Equal(t, 3, store.upserts)
}

func TestLexicalBlobOrder(t *testing.T) {
	years := 7
	c := &storage.Candidate{
		Name:            "Jane Smith",
		CurrentTitle:    "Staff Engineer",
		CurrentCompany:  "Acme",
		Location:        "",
		YearsExperience: &years,
		Skills:          []string{"Go", "SQL"},
	}
	blob := lexicalBlob(c,
		[]storage.Experience{{Company: "Globex", Title: "Engineer", Skills: []string{"Python"}, Description: "built pipelines"}},
		[]storage.Project{{Name: "etl", Role: "lead", Skills: []string{"Airflow"}}},
		[]storage.Education{{School: "MIT", Degree: "BSc", Major: "CS"}},
	)

	assert.Equal(t,
		"Jane Smith Staff Engineer Acme Go SQL Globex Engineer Python built pipelines etl lead Airflow MIT BSc CS",
		blob)
}

func TestFilterSnapshotDropsNulls(t *testing.T) {
	years := 7
	full := filterSnapshot(&storage.Candidate{
		Location:        "Istanbul",
		YearsExperience: &years,
		EducationLevel:  "master",
		CurrentCompany:  "Acme",
	})
	assert.Equal(t, map[string]interface{}{
		"status":           "active",
		"location":         "Istanbul",
		"years_experience": 7,
		"education_level":  "master",
		"current_company":  "Acme",
	}, full)

	sparse := filterSnapshot(&storage.Candidate{})
	assert.Equal(t, map[string]interface{}{"status": "active"}, sparse)
}

func TestFeatureSnapshotCaps(t *testing.T) {
	skills := make([]string, 15)
	for i := range skills {
		skills[i] = string(rune('a' + i))
	}
	experiences := []storage.Experience{
		{Company: "A", Title: "t1"},
		{Company: ""},
		{Company: "B", Title: "t2"},
		{Company: "C", Title: "t3"},
		{Company: "D", Title: "t4"},
	}

	snap := featureSnapshot(&storage.Candidate{Skills: skills}, experiences,
		[]storage.Education{{School: "MIT"}, {School: "ODTU"}})

	assert.Len(t, snap["top_skills"], 10)
	assert.Len(t, snap["recent_employers"], 3)
	assert.Equal(t, []string{"MIT", "ODTU"}, snap["schools"])
}
