package model

// User represents an application user as stored in the `users` table.
// The scheduling engine itself only consumes the user ID as an actor
// identifier on mutating calls; authentication lives in the auth
// handlers and middleware.  Timestamp fields carry the DB layout
// "2006-01-02 15:04:05" (UTC).
type User struct {
	ID           uint64 // users.id
	Email        string // users.email
	PasswordHash string // users.password_hash, bcrypt
	Role         string // ORGANIZER or VIEWER
	IsActive     bool   // users.is_active
	CreatedAt    string // users.created_at
	UpdatedAt    string // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of a token is stored, never the raw value.
type RefreshToken struct {
	ID        uint64  // refresh_tokens.id
	UserID    uint64  // refresh_tokens.user_id
	TokenHash string  // SHA-256 hex digest of the token value
	ExpiresAt string  // refresh_tokens.expires_at
	RevokedAt *string // refresh_tokens.revoked_at (null while active)
	CreatedAt string  // refresh_tokens.created_at
}
