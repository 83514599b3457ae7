package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClaims(subject string) SessionClaims {
	return SessionClaims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("secret", "pixora")

	token, err := v.IssueToken(validClaims("user_1"))
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", identity.UserID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, AuthTypeJWT, identity.Type)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("secret", "pixora")

	expired := validClaims("user_1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expiredToken, err := v.IssueToken(expired)
	require.NoError(t, err)

	noExpiry := validClaims("user_1")
	noExpiry.ExpiresAt = nil
	noExpiryToken, err := v.IssueToken(noExpiry)
	require.NoError(t, err)

	otherKey, err := NewJWTVerifier("other", "pixora").IssueToken(validClaims("user_1"))
	require.NoError(t, err)

	otherIssuer, err := NewJWTVerifier("secret", "elsewhere").IssueToken(validClaims("user_1"))
	require.NoError(t, err)

	noSubject, err := v.IssueToken(validClaims(""))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expiredToken,
		"no expiry":    noExpiryToken,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no subject":   noSubject,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.Error(t, err)
		})
	}
}

type stubVerifier struct {
	identity *Identity
	err      error
}

func (s stubVerifier) Verify(context.Context, string) (*Identity, error) {
	return s.identity, s.err
}

func TestChain(t *testing.T) {
	fail := stubVerifier{err: errors.New("nope")}
	ok := stubVerifier{identity: &Identity{Type: AuthTypeClerk, UserID: "user_1"}}

	identity, err := Chain(fail, ok).Verify(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "user_1", identity.UserID)

	_, err = Chain(fail, fail).Verify(context.Background(), "t")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
