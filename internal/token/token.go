package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: expired, malformed and
// mis-signed tokens all collapse into it so callers cannot build an oracle.
var ErrInvalidToken = errors.New("invalid token")

type AccessClaims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"tokenVersion"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	TokenVersion int `json:"tokenVersion"`
	jwt.RegisteredClaims
}

// Service signs and verifies the two token classes. Each class has its own
// secret and TTL; both are fixed at construction and immutable afterwards.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (s *Service) SignAccess(userID, email, role string, tokenVersion int) (string, error) {
	const op = "token.SignAccess"

	now := time.Now()
	claims := &AccessClaims{
		Email:        email,
		Role:         role,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (s *Service) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(tokenStr, claims, s.accessSecret); err != nil {
		return nil, err
	}

	return claims, nil
}

func (s *Service) SignRefresh(userID string, tokenVersion int) (string, error) {
	const op = "token.SignRefresh"

	now := time.Now()
	claims := &RefreshClaims{
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (s *Service) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.verify(tokenStr, claims, s.refreshSecret); err != nil {
		return nil, err
	}

	return claims, nil
}

func (s *Service) verify(tokenStr string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}

	return nil
}

// DecodeUnverified extracts refresh claims without checking signature or
// expiry. It exists only so reuse detection can recover a subject from a
// token that already failed verification; it must never authorize anything.
func (s *Service) DecodeUnverified(tokenStr string) *RefreshClaims {
	claims := &RefreshClaims{}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}

	return claims
}
