package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerAllNormalizesQuerySkills(t *testing.T) {
	assert.Equal(t,
		[]string{"fastapi", "postgresql", "go"},
		lowerAll([]string{"FastAPI", " PostgreSQL ", "go"}))
	assert.Empty(t, lowerAll(nil))
}
