package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"talent-match/internal/config"
	"talent-match/internal/storage"
)

type fakeFinder struct {
	byContact  *storage.Candidate
	byTextHash *storage.Candidate
	byName     []*storage.Candidate
}

func (f *fakeFinder) FindCandidateByContact(ctx context.Context, email, phone string) (*storage.Candidate, error) {
	return f.byContact, nil
}

func (f *fakeFinder) FindCandidateByTextHash(ctx context.Context, textHash string) (*storage.Candidate, error) {
	return f.byTextHash, nil
}

func (f *fakeFinder) FindCandidatesByName(ctx context.Context, name string) ([]*storage.Candidate, error) {
	return f.byName, nil
}

func newTestResolver() *Resolver {
	return NewResolver(config.Default().Dedup, zap.NewNop())
}

func TestResolveContactMatchIgnoresNameMismatch(t *testing.T) {
	existing := &storage.Candidate{ID: 7, Name: "Jane Smith", Email: "a@x.com"}
	store := &fakeFinder{byContact: existing}

	c, tier, err := newTestResolver().Resolve(context.Background(), store, ParsedIdentity{
		Name:  "Completely Different Name",
		Email: "a@x.com",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, TierStrong, tier)
}

func TestResolveContactBeatsBetterWeakMatch(t *testing.T) {
	contactHit := &storage.Candidate{ID: 1, Name: "Ali Veli", CurrentCompany: "OldCo"}
	weakHit := &storage.Candidate{ID: 2, Name: "Ali Veli", CurrentCompany: "Acme Corp"}
	store := &fakeFinder{byContact: contactHit, byName: []*storage.Candidate{weakHit}}

	c, tier, err := newTestResolver().Resolve(context.Background(), store, ParsedIdentity{
		Name:           "Ali Veli",
		Email:          "ali@acme.com",
		CurrentCompany: "Acme Corp", // a perfect weak match for candidate 2
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, TierStrong, tier)
}

func TestResolveTextHashMatch(t *testing.T) {
	existing := &storage.Candidate{ID: 3, Name: "Jane Smith"}
	store := &fakeFinder{byTextHash: existing}

	c, tier, err := newTestResolver().Resolve(context.Background(), store, ParsedIdentity{
		Name:     "Jane Smith",
		TextHash: "deadbeef",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(3), c.ID)
	assert.Equal(t, TierStrong, tier)
}

func TestResolveWeakMatchPicksHighestSimilarity(t *testing.T) {
	store := &fakeFinder{byName: []*storage.Candidate{
		{ID: 10, Name: "Jane Smith", CurrentCompany: "Globex"},
		{ID: 11, Name: "Jane Smith", CurrentCompany: "Acme Corp."},
	}}

	c, tier, err := newTestResolver().Resolve(context.Background(), store, ParsedIdentity{
		Name:           "Jane Smith",
		CurrentCompany: "Acme Corp",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(11), c.ID)
	assert.Equal(t, TierWeak, tier)
}

func TestResolveNameAloneNeverMatches(t *testing.T) {
	store := &fakeFinder{byName: []*storage.Candidate{
		{ID: 10, Name: "Jane Smith"}, // no employer on file
	}}

	c, tier, err := newTestResolver().Resolve(context.Background(), store, ParsedIdentity{
		Name: "Jane Smith",
	})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, TierNone, tier)
}

func TestResolveWeakMatchBelowThresholdRejected(t *testing.T) {
	store := &fakeFinder{byName: []*storage.Candidate{
		{ID: 10, Name: "Jane Smith", CurrentCompany: "Initech"},
	}}

	c, tier, err := newTestResolver().Resolve(context.Background(), store, ParsedIdentity{
		Name:           "Jane Smith",
		CurrentCompany: "Globex Industries",
	})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, TierNone, tier)
}

func TestResolveEmptyIdentityFallsThrough(t *testing.T) {
	c, tier, err := newTestResolver().Resolve(context.Background(), &fakeFinder{}, ParsedIdentity{})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, TierNone, tier)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("Acme Corp", "acme corp"))
	assert.Equal(t, 0.0, Ratio("Acme", ""))
	assert.Equal(t, 1.0, Ratio("", ""))

	sim := Ratio("Acme Corp", "Acme Corporation")
	assert.Greater(t, sim, 0.7)
	assert.Less(t, sim, 1.0)

	assert.Less(t, Ratio("Initech", "Globex"), 0.5)
}
