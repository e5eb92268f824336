package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	digest, err := HashToken("rl_live_abc123")
	require.NoError(t, err)

	ok, err := VerifyToken("rl_live_abc123", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyToken("rl_live_wrong", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTokenRejectsMalformedDigest(t *testing.T) {
	_, err := VerifyToken("token", "no-separator")
	assert.Error(t, err)

	_, err = VerifyToken("token", "!!!$###")
	assert.Error(t, err)
}

func TestAuthenticateRoles(t *testing.T) {
	opDigest, err := HashToken("op-token")
	require.NoError(t, err)
	extDigest, err := HashToken("ext-token")
	require.NoError(t, err)

	v := NewVerifier([]string{opDigest}, []string{extDigest}, "")

	role, ok := v.Authenticate("op-token")
	require.True(t, ok)
	assert.Equal(t, RoleOperator, role)

	role, ok = v.Authenticate("ext-token")
	require.True(t, ok)
	assert.Equal(t, RoleExternal, role)

	_, ok = v.Authenticate("unknown")
	assert.False(t, ok)

	_, ok = v.Authenticate("")
	assert.False(t, ok)
}

func TestOperatorWinsWhenTokenInBothLists(t *testing.T) {
	digest, err := HashToken("shared")
	require.NoError(t, err)

	v := NewVerifier([]string{digest}, []string{digest}, "")
	role, ok := v.Authenticate("shared")
	require.True(t, ok)
	assert.Equal(t, RoleOperator, role)
}

func TestVerifyReveal(t *testing.T) {
	revealDigest, err := HashToken("reveal-me")
	require.NoError(t, err)

	v := NewVerifier(nil, nil, revealDigest)
	assert.True(t, v.VerifyReveal("reveal-me"))
	assert.False(t, v.VerifyReveal("wrong"))
	assert.False(t, v.VerifyReveal(""))

	disabled := NewVerifier(nil, nil, "")
	assert.False(t, disabled.VerifyReveal("reveal-me"))
}
