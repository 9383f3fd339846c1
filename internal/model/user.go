package model

import "github.com/golang-jwt/jwt/v5"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Identity is the authoritative user record. It is created at startup and never mutated.
type Identity struct {
	Name         string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Role         Role   `json:"role"`
}

type AuthUser struct {
	Username string `json:"username"`
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type AccessClaims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         AuthUser
}
