package auth

import (
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseJWT(t *testing.T) {
	token := sign(t, "secret", &Claims{Username: "jdoe"})

	claims, err := ParseJWT(token, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, "jdoe", claims.Username)
}

func TestParseJWTWrongSecret(t *testing.T) {
	token := sign(t, "secret", &Claims{Username: "jdoe"})

	claims, err := ParseJWT(token, []byte("other"))
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestParseJWTGarbage(t *testing.T) {
	claims, err := ParseJWT("not.a.token", []byte("secret"))
	assert.Error(t, err)
	assert.Nil(t, claims)
}
