package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest holds the sign-up payload. The role is derived from the
// email domain, never supplied by the caller.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FullName  string `json:"full_name" validate:"required"`
	ProgramID string `json:"program_id,omitempty"`
}

// LoginRequest holds credentials for authenticating an account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and account info.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	Account     AccountInfo `json:"account"`
}

// AccountInfo describes the authenticated account in responses.
type AccountInfo struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"full_name"`
	Role      Role    `json:"role"`
	ProgramID *string `json:"program_id,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID string  `json:"account_id"`
	Role      Role    `json:"role"`
	Email     string  `json:"email"`
	ProgramID *string `json:"program_id,omitempty"`
	jwt.RegisteredClaims
}
