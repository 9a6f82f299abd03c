package service

import (
	"testing"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestTokenService(now time.Time) *TokenService {
	s := NewTokenService(config.JWTConfig{Secret: "test-secret", Lifetime: 24 * time.Hour})
	s.now = func() time.Time { return now }
	return s
}

func tokenUser() *model.User {
	return &model.User{Model: gorm.Model{ID: 7}, Email: "ada@example.com", Password: "$2a$04$hash"}
}

func TestTokenService_IssueAndParse(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestTokenService(issued)

	token, expiresAt, err := s.Issue(tokenUser())
	require.NoError(t, err)
	assert.Equal(t, issued.Add(24*time.Hour), expiresAt)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.True(t, claims.ExpiresAt.Time.Equal(expiresAt))
	assert.True(t, s.MatchesUser(claims, tokenUser()))
}

func TestTokenService_TokensAreUnique(t *testing.T) {
	s := newTestTokenService(time.Now())

	first, _, err := s.Issue(tokenUser())
	require.NoError(t, err)
	second, _, err := s.Issue(tokenUser())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour)
	s := newTestTokenService(issued)
	token, expiresAt, err := s.Issue(tokenUser())
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	got, err := s.ExpiresAt(token)
	require.NoError(t, err)
	assert.True(t, got.Equal(expiresAt))
}

func TestTokenService_RejectsForeignSignature(t *testing.T) {
	s := newTestTokenService(time.Now())
	other := NewTokenService(config.JWTConfig{Secret: "other-secret", Lifetime: time.Hour})

	token, _, err := other.Issue(tokenUser())
	require.NoError(t, err)

	_, err = s.Parse(token)
	assert.Error(t, err)
	_, err = s.ExpiresAt(token)
	assert.Error(t, err)
}

func TestTokenService_FingerprintTracksPassword(t *testing.T) {
	s := newTestTokenService(time.Now())
	user := tokenUser()

	token, _, err := s.Issue(user)
	require.NoError(t, err)
	claims, err := s.Parse(token)
	require.NoError(t, err)

	user.Password = "$2a$04$changed"
	assert.False(t, s.MatchesUser(claims, user))
}
