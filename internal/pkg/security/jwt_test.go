package security

import (
	"Solace/internal/api/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	Init(config.JWTConfig{Secret: "test-secret", Issuer: "Solace"})

	token, err := GenerateToken("u1", "User")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.IdentityID)
	assert.Equal(t, "User", claims.IdentityKind)

	sig, err := ExtractSignature(token)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

func TestToken_RejectsTampered(t *testing.T) {
	Init(config.JWTConfig{Secret: "test-secret"})
	token, err := GenerateToken("e1", "Expert")
	require.NoError(t, err)

	Init(config.JWTConfig{Secret: "another-secret"})
	_, err = ValidateToken(token)
	assert.Error(t, err)

	_, err = ValidateToken("not.a.token")
	assert.Error(t, err)

	_, err = ExtractSignature("abc")
	assert.Error(t, err)
}
