package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ziadkadry99/classrag/internal/access"
)

// Tokens issues and verifies the signed bearer tokens that carry a
// principal's identity and role between requests.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token issuer/verifier with the given HMAC secret
// and token lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given user ID and role.
func (t *Tokens) Issue(userID string, role access.Role) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a token and returns the principal it carries.
// Any failure — bad signature, expiry, missing or unrecognized claims —
// is a denial; there is no partially-trusted principal.
func (t *Tokens) Verify(tokenString string) (access.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return access.Principal{}, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return access.Principal{}, fmt.Errorf("invalid token")
	}

	sub, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	role := access.Role(roleStr)
	if sub == "" || !role.Valid() {
		return access.Principal{}, fmt.Errorf("token missing subject or role")
	}

	return access.Principal{ID: sub, Role: role}, nil
}
