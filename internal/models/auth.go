package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity provider.
// Department and academic term travel in the token so leave operations can be
// scoped without a roundtrip to the user directory.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	Department   string   `json:"department"`
	AcademicTerm string   `json:"academic_term"`
	jwt.RegisteredClaims
}
