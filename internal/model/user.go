package model

import "time"

// User is an account shared by the web and USSD channels.  The phone
// number is the universal identity key: a user may be created over
// USSD with only a phone and a PIN, and add email/password later for
// web access.  PasswordHash and PinHash are bcrypt digests; the plain
// values are never stored.
//
// Fields:
//
//	ID           – primary key identifier.
//	Name         – full name (from web registration or the USSD flow).
//	PhoneNumber  – unique E.164-like phone number.
//	Email        – unique email, nil for USSD-only users.
//	PasswordHash – bcrypt password hash, nil for USSD-only users.
//	PinHash      – bcrypt hash of the 4-digit USSD PIN, nil if unset.
//	IsAdmin      – grants access to admin-only endpoints.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	PhoneNumber  string    // users.phone_number
	Email        *string   // users.email (nullable)
	PasswordHash *string   // users.password_hash (nullable)
	PinHash      *string   // users.pin_hash (nullable)
	IsAdmin      bool      // users.is_admin
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// HasPin reports whether the user has completed USSD registration and
// can authorize bookings with a PIN.
func (u *User) HasPin() bool { return u.PinHash != nil && *u.PinHash != "" }

// RefreshToken models an entry in the `refresh_tokens` table.  Only a
// SHA-256 hash of the raw token is persisted.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
