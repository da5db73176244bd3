package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret, sub, role string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	raw := signToken(t, testSecret, "user-1", "OWNER", time.Now().Add(time.Hour))

	p, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "OWNER", p.Role)
}

func TestVerifyFailures(t *testing.T) {
	v := NewVerifier(testSecret)

	tests := []struct {
		name string
		raw  string
	}{
		{"missing credential", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", signToken(t, "other-secret", "user-1", "OWNER", time.Now().Add(time.Hour))},
		{"expired", signToken(t, testSecret, "user-1", "OWNER", time.Now().Add(-time.Hour))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.raw)
			assert.True(t, errors.Is(err, ErrAuthFailed), "want ErrAuthFailed, got %v", err)
		})
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v := NewVerifier(testSecret)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "OWNER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestVerifyBearerAcceptsBothForms(t *testing.T) {
	v := NewVerifier(testSecret)
	raw := signToken(t, testSecret, "user-2", "STAFF", time.Now().Add(time.Hour))

	p, err := v.VerifyBearer("Bearer " + raw)
	require.NoError(t, err)
	assert.Equal(t, "user-2", p.UserID)

	p, err = v.VerifyBearer(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-2", p.UserID)
}
