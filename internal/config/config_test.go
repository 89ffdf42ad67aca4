package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolvesSecretsFromEnv(t *testing.T) {
	t.Setenv("TALENT_DATABASE_URL", "postgres://localhost:5432/talent?sslmode=disable")
	t.Setenv("TALENT_LLM_APIKEY", "sk-test-key")
	t.Setenv("TALENT_LLM_BASEURL", "http://localhost:11434/v1")
	t.Setenv("TALENT_REDIS_PASSWORD", "hunter2")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test-key", s.LLM.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", s.LLM.BaseURL)
	assert.Equal(t, "hunter2", s.Redis.Password)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("TALENT_DATABASE_URL", "postgres://localhost:5432/talent?sslmode=disable")
	t.Setenv("TALENT_RANKING_WEIGHTVECTOR", "0.9")
	t.Setenv("TALENT_RECALL_TOPKFINAL", "7")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.9, s.Ranking.WeightVector)
	assert.Equal(t, 7, s.Recall.TopKFinal)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.25, s.Ranking.WeightLexical)
	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("TALENT_DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}
