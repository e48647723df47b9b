package core

import "time"

// User represents a registered platform account
type User struct {
	ID           string    // Unique user identifier
	Email        string    // Login email, unique
	Name         string    // Display name
	Role         string    // "student", "teacher" or "admin"
	PasswordHash []byte    // bcrypt hash of the password
	CreatedAt    time.Time // When the account was created
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	UserID        string    // Owner of the session
	Role          string    // Role at issuance time
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// TokenPair describes the lifetime of an issued access/refresh token pair.
// The descriptors use the wire format accepted by ParseExpiry.
type TokenPair struct {
	AccessTokenExpiresIn  string `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn string `json:"refreshTokenExpiresIn"`
}
