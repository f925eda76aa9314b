package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeys(t *testing.T) {
	auth1, enc1, err := sessionKeys("secret")
	require.NoError(t, err)
	auth2, enc2, err := sessionKeys("secret")
	require.NoError(t, err)

	assert.Len(t, auth1, sessionKeySize)
	assert.Len(t, enc1, sessionKeySize)
	assert.Equal(t, auth1, auth2, "derivation is deterministic")
	assert.Equal(t, enc1, enc2)
	assert.NotEqual(t, auth1, enc1)

	other, _, err := sessionKeys("other")
	require.NoError(t, err)
	assert.NotEqual(t, auth1, other)
}

func TestSessionKeysEphemeral(t *testing.T) {
	a, _, err := sessionKeys("")
	require.NoError(t, err)
	b, _, err := sessionKeys("")
	require.NoError(t, err)
	assert.Len(t, a, sessionKeySize)
	assert.NotEqual(t, a, b)
}
