package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryUserRepository is an in-process UserRepository.
// Accounts are lost when the process exits.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]User // keyed by username
}

// NewMemoryUserRepository creates an empty in-memory repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]User)}
}

// Create stores a copy of user. ID and CreatedAt are assigned if empty.
func (r *MemoryUserRepository) Create(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Username]; exists {
		return ErrUsernameExists
	}
	if user.ID == "" {
		user.ID = newUserID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.Username] = *user
	return nil
}

// GetByUsername returns a copy of the stored user.
func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// List returns all users ordered by creation date.
func (r *MemoryUserRepository) List(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}
