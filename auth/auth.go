// Package auth verifies the optional HS256 token presented on the
// WebSocket upgrade request.
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
)

var (
	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier checks tokens signed with a shared secret. A Verifier with an
// empty secret accepts every request.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether tokens are required.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify parses token and returns its subject claim.
func (v *Verifier) Verify(token string) (string, error) {
	if !v.Enabled() {
		return "", nil
	}
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// TokenFrom picks the token from the "token" query parameter, falling back
// to an "Authorization: Bearer" header.
func TokenFrom(query, authorization string) string {
	if query != "" {
		return query
	}
	const prefix = "bearer "
	if len(authorization) > len(prefix) && strings.EqualFold(authorization[:len(prefix)], prefix) {
		return strings.TrimSpace(authorization[len(prefix):])
	}
	return ""
}
