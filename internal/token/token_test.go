package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("access-secret", "refresh-secret", time.Minute, time.Hour)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTestService()

	signed, err := svc.SignAccess("user-1", "a@b.com", "user", 3)
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(signed)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	svc := newTestService()

	signed, err := svc.SignRefresh("user-1", 7)
	require.NoError(t, err)

	claims, err := svc.VerifyRefresh(signed)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, 7, claims.TokenVersion)
}

func TestVerify_Expired(t *testing.T) {
	svc := NewService("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	access, err := svc.SignAccess("user-1", "a@b.com", "user", 0)
	require.NoError(t, err)
	refresh, err := svc.SignRefresh("user-1", 0)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyRefresh(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_CrossClassSecrets(t *testing.T) {
	svc := newTestService()

	// A refresh token must not pass access verification and vice versa.
	refresh, err := svc.SignRefresh("user-1", 0)
	require.NoError(t, err)
	_, err = svc.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := svc.SignAccess("user-1", "a@b.com", "user", 0)
	require.NoError(t, err)
	_, err = svc.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Tampered(t *testing.T) {
	svc := newTestService()

	signed, err := svc.SignAccess("user-1", "a@b.com", "user", 0)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"

	_, err = svc.VerifyAccess(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	svc := newTestService()

	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := svc.VerifyAccess(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestDecodeUnverified(t *testing.T) {
	expired := NewService("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	signed, err := expired.SignRefresh("user-1", 5)
	require.NoError(t, err)

	// Verification fails but the payload is still recoverable for forensics.
	_, err = expired.VerifyRefresh(signed)
	require.ErrorIs(t, err, ErrInvalidToken)

	claims := expired.DecodeUnverified(signed)
	require.NotNil(t, claims)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, 5, claims.TokenVersion)
}

func TestDecodeUnverified_Garbage(t *testing.T) {
	svc := newTestService()

	assert.Nil(t, svc.DecodeUnverified(""))
	assert.Nil(t, svc.DecodeUnverified("not-a-token"))
}
