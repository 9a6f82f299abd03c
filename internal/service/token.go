package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/account-service/config"
	"github.com/Payphone-Digital/account-service/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the bearer token payload: the user id plus a fingerprint of
// the credentials the token was issued against.
type Claims struct {
	UserID      uint   `json:"uid"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret:   []byte(cfg.Secret),
		lifetime: cfg.Lifetime,
		now:      time.Now,
	}
}

// Issue signs a token for user and returns it with its expiry.
func (s *TokenService) Issue(user *model.User) (string, time.Time, error) {
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.lifetime)

	claims := Claims{
		UserID:      user.ID,
		Fingerprint: s.Fingerprint(user.Email, user.Password),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies the signature and expiry of token.
func (s *TokenService) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s.parse(parser, token)
}

// ExpiresAt verifies the signature of token and returns its expiry even
// when that is already in the past.
func (s *TokenService) ExpiresAt(token string) (time.Time, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims, err := s.parse(parser, token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

func (s *TokenService) parse(parser *jwt.Parser, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Fingerprint is HMAC-SHA256 over email and password hash, hex encoded.
// A password change alters the hash and so orphans every earlier token.
func (s *TokenService) Fingerprint(email, passwordHash string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(email))
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// MatchesUser recomputes the fingerprint against the stored user.
func (s *TokenService) MatchesUser(claims *Claims, user *model.User) bool {
	expected := s.Fingerprint(user.Email, user.Password)
	return claims.UserID == user.ID && hmac.Equal([]byte(expected), []byte(claims.Fingerprint))
}
