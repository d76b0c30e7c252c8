package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"datablog/internal/models"
)

const usersTable = "users"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Storage is the credential-store contract the session lifecycle depends on.
// IncrementTokenVersion must be atomic at the store: concurrent logout and
// reuse-detection bumps on the same user must not lose an increment.
type Storage interface {
	CreateUser(ctx context.Context, email, passwordHash, role string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	IncrementTokenVersion(ctx context.Context, userID uuid.UUID) error
	Close()
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(context.Background(), dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, email, passwordHash, role string) (models.User, error) {
	const op = "storage.CreateUser"

	var user models.User
	query := fmt.Sprintf(`INSERT INTO %s(email, password_hash, user_role)
	VALUES ($1, $2, $3)
	RETURNING id, email, password_hash, user_role, token_version, created_at;`, usersTable)

	err := p.db.QueryRow(ctx, query, email, passwordHash, role).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TokenVersion,
		&user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	var user models.User
	query := fmt.Sprintf(`SELECT id, email, password_hash, user_role, token_version, created_at
	FROM %s WHERE lower(email)=lower($1);`, usersTable)

	err := p.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TokenVersion,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	var user models.User
	query := fmt.Sprintf(`SELECT id, email, password_hash, user_role, token_version, created_at
	FROM %s WHERE id=$1;`, usersTable)

	err := p.db.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TokenVersion,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// IncrementTokenVersion bumps the revocation counter in a single UPDATE so the
// increment happens store-side, never as a read-modify-write round trip.
func (p *PostgresStorage) IncrementTokenVersion(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.IncrementTokenVersion"

	query := fmt.Sprintf("UPDATE %s SET token_version = token_version + 1 WHERE id=$1;", usersTable)

	tag, err := p.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
