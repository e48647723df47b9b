package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	RefreshID string `json:"rid"` // ID of the linked refresh token
}

// RefreshClaims combines standard claims with the role needed to mint a
// successor session on rotation
type RefreshClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}
