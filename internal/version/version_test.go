package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildDate)
}

func TestShort(t *testing.T) {
	// Just verify it returns the version string
	result := Short()
	assert.Equal(t, Version, result)
}

func TestFull(t *testing.T) {
	// Verify it returns formatted string with all fields
	result := Full()
	assert.Contains(t, result, Version)
	assert.Contains(t, result, GitCommit)
	assert.Contains(t, result, BuildDate)
	assert.Contains(t, result, "commit:")
	assert.Contains(t, result, "built:")
}

func TestInfo_JSONMarshaling(t *testing.T) {
	data, err := json.Marshal(Get())
	require.NoError(t, err)

	assert.Contains(t, string(data), "git_commit")
	assert.Contains(t, string(data), "build_date")
}
