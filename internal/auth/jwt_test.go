package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *JWTService {
	return NewJWTService("test-secret-please-rotate", 24, "meetscribe-tasks")
}

func TestGenerateValidate_RoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.Generate("user-42", "alice@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID, "tokens carry a unique jti")
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := newTestService().Generate("user-42", "")
	require.NoError(t, err)

	other := NewJWTService("a-different-secret", 24, "meetscribe-tasks")
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Tampered(t *testing.T) {
	svc := newTestService()
	token, err := svc.Generate("user-42", "")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = svc.Validate(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestServiceToken_RoundTrip(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateServiceToken()
	require.NoError(t, err)
	assert.NoError(t, svc.ValidateServiceToken(token))
}

func TestServiceToken_SubjectMismatch(t *testing.T) {
	minter := NewJWTService("shared-secret", 24, "some-other-service")
	verifier := NewJWTService("shared-secret", 24, "meetscribe-tasks")

	token, err := minter.GenerateServiceToken()
	require.NoError(t, err)
	assert.ErrorIs(t, verifier.ValidateServiceToken(token), ErrInvalidToken)
}

func TestServiceToken_UserTokenRejected(t *testing.T) {
	svc := newTestService()
	token, err := svc.Generate("user-42", "")
	require.NoError(t, err)

	// A user token has no service subject; it must not authorize task calls.
	assert.ErrorIs(t, svc.ValidateServiceToken(token), ErrInvalidToken)
}
