package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talent-match/internal/identity"
	"talent-match/internal/llm"
)

func TestLockKeyFollowsResolutionPrecedence(t *testing.T) {
	assert.Equal(t, "ingest:email:a@x.com", lockKey(identity.ParsedIdentity{
		Email: "A@X.com", Phone: "555", TextHash: "h", Name: "Jane",
	}))
	assert.Equal(t, "ingest:phone:555", lockKey(identity.ParsedIdentity{
		Phone: "555", TextHash: "h", Name: "Jane",
	}))
	assert.Equal(t, "ingest:hash:h", lockKey(identity.ParsedIdentity{
		TextHash: "h", Name: "Jane",
	}))
	assert.Equal(t, "ingest:name:jane smith", lockKey(identity.ParsedIdentity{
		Name: " Jane Smith ",
	}))
}

func TestLockKeyStableForSameIdentity(t *testing.T) {
	a := lockKey(identity.ParsedIdentity{Email: "a@x.com"})
	b := lockKey(identity.ParsedIdentity{Email: "a@x.com", Name: "different name"})
	assert.Equal(t, a, b)
}

func TestParseDate(t *testing.T) {
	full := parseDate("2024-03-15")
	require.NotNil(t, full)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *full)

	month := parseDate("2024-03")
	require.NotNil(t, month)
	assert.Equal(t, 2024, month.Year())
	assert.Equal(t, time.March, month.Month())

	year := parseDate("2019")
	require.NotNil(t, year)
	assert.Equal(t, 2019, year.Year())

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("present"))
}

func TestIncomingFromExtraction(t *testing.T) {
	years := 6
	in := incomingFrom(&llm.ResumeExtraction{
		Email:           "a@x.com",
		YearsExperience: &years,
		Skills:          []string{"Go"},
	})
	assert.Equal(t, "a@x.com", in.Email)
	assert.Equal(t, []string{"Go"}, in.Skills)
	require.NotNil(t, in.YearsExperience)
	assert.Equal(t, 6, *in.YearsExperience)
}
