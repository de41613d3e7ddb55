package credential

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactly/core/internal/pkg/apperror"
)

func testSecrets() Secrets {
	return Secrets{
		Access:         "access-secret",
		Refresh:        "refresh-secret",
		Recover:        "recover-secret",
		Activation:     "activation-secret",
		PasswordChange: "password-change-secret",
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	token, err := s.Sign(KindAccess, "user-1", "session-1")
	require.NoError(t, err)

	claims, err := s.Verify(KindAccess, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestVerifyRejectsOtherKind(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	// A refresh token must never pass as an access token even though both
	// are HS256 JWTs with the same claim shape.
	token, err := s.Sign(KindRefresh, "user-1", "session-1")
	require.NoError(t, err)

	_, err = s.Verify(KindAccess, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrCredentialInvalid))
}

func TestVerifyEmptyToken(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	_, err = s.Verify(KindAccess, "")
	assert.True(t, errors.Is(err, apperror.ErrCredentialMissing))

	_, err = s.Verify(KindAccess, "   ")
	assert.True(t, errors.Is(err, apperror.ErrCredentialMissing))
}

func TestVerifyGarbage(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	_, err = s.Verify(KindAccess, "not.a.jwt")
	assert.True(t, errors.Is(err, apperror.ErrCredentialInvalid))
}

func TestVerifyExpired(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	token, err := s.SignWithTTL(KindAccess, "user-1", "", -time.Minute)
	// Negative ttl falls back to the kind default, so build a genuinely
	// expired token via a tiny positive ttl instead.
	require.NoError(t, err)
	_, err = s.Verify(KindAccess, token)
	require.NoError(t, err)

	token, err = s.SignWithTTL(KindAccess, "user-1", "", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = s.Verify(KindAccess, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrCredentialInvalid))
}

func TestSignEmptySubject(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	_, err = s.Sign(KindAccess, "", "session-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	secrets := testSecrets()
	secrets.Recover = ""
	_, err := NewSigner(secrets)
	require.Error(t, err)
}

func TestShortRefreshVariant(t *testing.T) {
	s, err := NewSigner(testSecrets())
	require.NoError(t, err)

	token, err := s.SignWithTTL(KindRefresh, "user-1", "session-1", RefreshShortTTL)
	require.NoError(t, err)

	claims, err := s.Verify(KindRefresh, token)
	require.NoError(t, err)
	remaining := time.Until(claims.ExpiresAt.Time)
	assert.LessOrEqual(t, remaining, RefreshShortTTL)
	assert.Greater(t, remaining, RefreshShortTTL-time.Minute)
}
