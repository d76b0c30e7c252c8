package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"datablog/internal/models"
)

// MemoryStorage is a mutex-guarded in-process Storage used by tests and local
// runs without a database. Increment semantics match the postgres store.
type MemoryStorage struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[uuid.UUID]models.User),
	}
}

func (m *MemoryStorage) CreateUser(_ context.Context, email, passwordHash, role string) (models.User, error) {
	const op = "storage.MemoryStorage.CreateUser"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		TokenVersion: 0,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[id] = user

	return user, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	const op = "storage.MemoryStorage.GetUserByEmail"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}

	return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
}

func (m *MemoryStorage) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.MemoryStorage.GetUserByID"

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return user, nil
}

func (m *MemoryStorage) IncrementTokenVersion(_ context.Context, userID uuid.UUID) error {
	const op = "storage.MemoryStorage.IncrementTokenVersion"

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	user.TokenVersion++
	m.users[userID] = user

	return nil
}

func (m *MemoryStorage) Close() {}
