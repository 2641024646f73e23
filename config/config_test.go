package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Default()
	assert.Equal(t, 1000, s.ChunkSize)
	assert.Equal(t, 200, s.ChunkOverlap)
	assert.Equal(t, 1536, s.EmbeddingDimension)
	assert.Equal(t, 24*time.Hour, s.DecayWindow)
	assert.Equal(t, 0.1, s.PruneFloor)
	assert.Equal(t, 10, s.MaxDelegations)
	require.NoError(t, s.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STAFFMESH_CHUNK_SIZE", "500")
	t.Setenv("STAFFMESH_MEMORY_K", "7")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, s.ChunkSize)
	assert.Equal(t, 7, s.MemoryK)
}

func TestValidateRejectsBadOverlap(t *testing.T) {
	s := Default()
	s.ChunkOverlap = s.ChunkSize
	assert.Error(t, s.Validate())

	s = Default()
	s.ChunkSize = 0
	assert.Error(t, s.Validate())

	s = Default()
	s.PruneFloor = 1.5
	assert.Error(t, s.Validate())
}
