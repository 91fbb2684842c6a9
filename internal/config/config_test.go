package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, int64(1<<20), cfg.ReadLimit)
	assert.NotEmpty(t, cfg.Secret, "session cookies must never be keyed on an empty secret")
}

func TestLoadGeneratesDistinctFallbackSecrets(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")

	a, err := Load()
	require.NoError(t, err)
	b, err := Load()
	require.NoError(t, err)
	assert.NotEqual(t, a.Secret, b.Secret)
}
