package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "rollcall"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("front-desk", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := Parse(token, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "front-desk", claims.Subject)
	assert.Equal(t, StaffRole, claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue("front-desk", testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "other-key", testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, _, err := Issue("front-desk", "someone-else", testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue("front-desk", testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.Error(t, err)
}

func TestParseRejectsNonStaffRole(t *testing.T) {
	claims := Claims{
		Role: "visitor",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "someone",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.Error(t, err)
}
