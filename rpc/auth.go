package rpc

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const authorityRole = "authority"

type authenticator struct {
	secret []byte
}

func newAuthenticator(secret []byte) *authenticator {
	return &authenticator{secret: secret}
}

// enabled reports whether admin methods demand a bearer token.
func (a *authenticator) enabled() bool {
	return len(a.secret) > 0
}

// requireAuth checks the Authorization header for a valid HS256 bearer token
// carrying the authority role.
func (a *authenticator) requireAuth(r *http.Request) *RPCError {
	if !a.enabled() {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "authorization required"}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	if role, _ := claims["role"].(string); role != authorityRole {
		return &RPCError{Code: codeUnauthorized, Message: "authority role required"}
	}
	return nil
}

// IssueToken mints a short-lived authority token. Exposed for the CLI and
// for test fixtures.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("rpc: token secret must not be empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": authorityRole,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
