package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Secret signs and verifies tokens. It must not be empty.
	Secret string

	// TokenTTL defaults to DefaultTokenTTL when zero.
	TokenTTL time.Duration

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Manager registers operators, issues tokens, and checks them.
//
// Tokens are stateless: there is no revocation list, so a token stays
// valid until it expires even if the account is later removed.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Token checks take no locks.
type Manager struct {
	users  UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager backed by users.
func NewManager(users UserRepository, cfg ManagerConfig) (*Manager, error) {
	if users == nil {
		return nil, errors.New("auth: user repository is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("auth: token secret is required")
	}

	m := &Manager{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		now:    cfg.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTokenTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// CreateUser registers a new operator. The password is stored as an Argon2id hash.
// Returns ErrUsernameExists if the username is taken.
func (m *Manager) CreateUser(ctx context.Context, username, password string) (*User, error) {
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    m.now().UTC().Truncate(time.Second),
	}
	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// ListUsers returns every operator, oldest first.
func (m *Manager) ListUsers(ctx context.Context) ([]User, error) {
	users, err := m.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// IssueToken returns a signed token for username if password matches.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (m *Manager) IssueToken(ctx context.Context, username, password string) (string, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	return GenerateToken(user, m.secret, m.now(), m.ttl)
}

// Verify checks the token's signature and expiry and returns its claims.
func (m *Manager) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	return ParseToken(token, m.secret, m.now)
}

// Authorize reports whether token is authentic and unexpired.
// It never panics; malformed input is simply not authorised.
func (m *Manager) Authorize(token string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := m.Verify(token)
	return err == nil
}
