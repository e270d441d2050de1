// Package auth registers operators and issues the bearer tokens that gate
// catalog changes and script execution.
//
// Passwords are hashed with Argon2id. Tokens are HS256 JWTs that carry the
// user ID as subject and expire 24 hours after issue by default. Tokens are
// not revocable.
//
// Accounts live behind the UserRepository interface; SQLite and in-memory
// implementations are provided.
package auth
