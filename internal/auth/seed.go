package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

const (
	seedUsername      = "admin"
	seedPasswordBytes = 16
)

// SeedAdmin creates the initial operator account if no users exist.
// Returns the generated password, or an empty string if seeding was skipped.
// The caller is responsible for showing the password to the operator once.
func SeedAdmin(ctx context.Context, m *Manager, logger *slog.Logger) (string, error) {
	count, err := m.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	buf := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(buf)

	if _, err := m.CreateUser(ctx, seedUsername, password); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", seedUsername,
		"action_required", "store the generated password securely",
	)
	return password, nil
}
