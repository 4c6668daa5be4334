package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })

	Version = "v1.2"
	info := Get()
	assert.Equal(t, "1.2.0", info.Version)
	assert.Contains(t, info.String(), "dbdelta version 1.2.0")
	assert.Contains(t, info.FullString(), "Git Commit: ")

	Version = "dev"
	assert.Equal(t, "dev", Get().Version)
}

func TestAtLeast(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })
	Version = "0.3.1"

	ok, err := AtLeast("0.3.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AtLeast("1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = AtLeast("not a version")
	assert.Error(t, err)
}
