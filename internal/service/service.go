package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofrs/uuid"

	"datablog/internal/models"
	"datablog/internal/password"
	"datablog/internal/storage"
	"datablog/internal/token"
)

var (
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// TokenPair is what login and refresh hand back: a short-lived access token
// for the Authorization header and a refresh token bound for the cookie.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Service interface {
	Register(ctx context.Context, email, pw string) (models.User, error)
	Login(ctx context.Context, email, pw string) (TokenPair, models.User, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

type service struct {
	storage storage.Storage
	hasher  password.Hasher
	tokens  *token.Service
	log     *slog.Logger
}

func NewService(st storage.Storage, hasher password.Hasher, tokens *token.Service, lgr *slog.Logger) *service {
	return &service{
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
		log:     lgr,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, email, pw string) (models.User, error) {
	const op = "service.Register"

	email = normalizeEmail(email)

	if !password.ValidatePolicy(pw) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	if _, err := s.storage.GetUserByEmail(ctx, email); err == nil {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := s.hasher.Hash(pw)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.CreateUser(ctx, email, passwordHash, models.RoleUser)
	if err != nil {
		// The unique index closes the race the lookup above leaves open.
		if errors.Is(err, storage.ErrEmailTaken) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *service) Login(ctx context.Context, email, pw string) (TokenPair, models.User, error) {
	const op = "service.Login"

	email = normalizeEmail(email)

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Burn a comparable bcrypt verification so an unknown email is
			// not distinguishable from a wrong password by latency.
			s.hasher.VerifyDummy(pw)
			return TokenPair{}, models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return TokenPair{}, models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if ok := s.hasher.Verify(pw, user.PasswordHash); !ok {
		return TokenPair{}, models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokens(user.ID.String(), user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return TokenPair{}, models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Refresh rotates the presented refresh token. Every successful rotation bumps
// the user's tokenVersion and stamps the new pair with the bumped value, which
// is what makes a rotated-away token unusable: replaying it mismatches the
// counter, and the mismatch is treated as reuse, invalidating the whole session
// family. Any verification failure triggers the same forensic bump when a
// subject can still be recovered from the unverified payload.
func (s *service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	const op = "service.Refresh"

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.detectReuse(ctx, refreshToken)
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if claims.TokenVersion != user.TokenVersion {
		// A well-signed token carrying a stale counter is the replay signal.
		s.log.Warn("refresh token replay detected, revoking sessions",
			slog.String("op", op), slog.String("user_id", user.ID.String()))

		if err := s.storage.IncrementTokenVersion(ctx, user.ID); err != nil {
			s.log.Error("failed to bump token version", slog.String("op", op), slog.Any("error", err))
		}
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if err := s.storage.IncrementTokenVersion(ctx, user.ID); err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	// Stamp with the locally computed successor. If a concurrent bump raced
	// ahead the pair comes out stale and the user re-authenticates, which is
	// the safe direction.
	pair, err := s.issueTokens(user.ID.String(), user.Email, user.Role, user.TokenVersion+1)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// detectReuse recovers a subject from a token that failed verification and
// bumps that user's counter. The decoded claims authorize nothing.
func (s *service) detectReuse(ctx context.Context, refreshToken string) {
	const op = "service.detectReuse"

	claims := s.tokens.DecodeUnverified(refreshToken)
	if claims == nil || claims.Subject == "" {
		return
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return
	}

	s.log.Warn("unverifiable refresh token presented, revoking sessions",
		slog.String("op", op), slog.String("user_id", userID.String()))

	if err := s.storage.IncrementTokenVersion(ctx, userID); err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.log.Error("failed to bump token version", slog.String("op", op), slog.Any("error", err))
		}
	}
}

func (s *service) Logout(ctx context.Context, userID string) error {
	const op = "service.Logout"

	id, err := uuid.FromString(userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if err := s.storage.IncrementTokenVersion(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *service) issueTokens(userID, email, role string, tokenVersion int) (TokenPair, error) {
	access, err := s.tokens.SignAccess(userID, email, role, tokenVersion)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.tokens.SignRefresh(userID, tokenVersion)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
