package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer([]byte("test-secret"), time.Minute, time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestIssueAndParse(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, err := issuer.Issue(7, "alice", "sess-1")
	require.NoError(t, err)

	access, err := issuer.Parse(pair.Access, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(7), access.UserID)
	assert.Equal(t, "alice", access.Username)
	assert.Equal(t, "sess-1", access.SessionID)
	assert.Equal(t, "7", access.Subject)

	refresh, err := issuer.Parse(pair.Refresh, TypeRefresh)
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt.Time))
}

func TestParseRejectsWrongType(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Issue(7, "alice", "sess-1")
	require.NoError(t, err)

	_, err = issuer.Parse(pair.Refresh, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = issuer.Parse(pair.Access, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t)
	issued := time.Now().Add(-2 * time.Minute)
	issuer.now = func() time.Time { return issued }
	access, err := issuer.Access(7, "alice", "sess-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(access, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer([]byte("other-secret"), time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := other.Issue(7, "alice", "sess-1")
	require.NoError(t, err)

	_, err = issuer.Parse(pair.Access, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 7, "typ": TypeAccess}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuerValidates(t *testing.T) {
	_, err := NewTokenIssuer(nil, time.Minute, time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer([]byte("s"), 0, time.Hour)
	assert.Error(t, err)
}
