// Package auth issues and verifies admin tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role carried by tokens issued at admin login.
const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotAdmin           = errors.New("admin role required")
	ErrEmptySecret        = errors.New("token secret is empty")
)

type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

type Claims struct {
	Username     string `json:"username"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
	IsSuperAdmin bool   `json:"is_super_admin,omitempty"`
	// some issuers spell it in camel case
	SuperAdmin bool `json:"isSuperAdmin,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims grant access to admin routes.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin || c.IsSuperAdmin || c.SuperAdmin
}

// Sign issues an admin token for username.
func (ts TokenService) Sign(username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ts.Duration)

	claims := Claims{
		Username:  username,
		Role:      RoleAdmin,
		CreatedAt: now.UTC().Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	if len(ts.Secret) == 0 {
		return "", time.Time{}, ErrEmptySecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Parse verifies tokenString. An empty secret verifies nothing.
func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	if len(ts.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// enforce HS256
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Credentials is the single configured admin account.
type Credentials struct {
	Username string
	Password string
}

// Check compares username and password in constant time.
func (c Credentials) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	if !userOK || !passOK || c.Username == "" {
		return ErrInvalidCredentials
	}
	return nil
}
