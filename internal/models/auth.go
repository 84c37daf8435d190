package models

import "github.com/golang-jwt/jwt/v5"

// StaffRole mirrors the roles issued by the back-office identity provider.
type StaffRole string

const (
	RoleAdmin   StaffRole = "ADMIN"
	RoleManager StaffRole = "MANAGER"
	RoleAgent   StaffRole = "AGENT"
)

// JWTClaims is the payload of access tokens minted by the identity
// provider. This service only verifies them; issuing stays upstream.
type JWTClaims struct {
	UserID   string    `json:"user_id"`
	Role     StaffRole `json:"role"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	jwt.RegisteredClaims
}
