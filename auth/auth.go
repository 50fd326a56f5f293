// Package auth guards the metrics endpoint with HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

var (
	// ErrEmptySecret is returned when the signing secret is empty.
	ErrEmptySecret = errors.New("secret cannot be empty")
	// ErrEmptyLogger is returned when the logger is nil.
	ErrEmptyLogger = errors.New("logger cannot be nil")
	// ErrNoToken is returned when the request has no bearer token.
	ErrNoToken = errors.New("no bearer token")
)

// Guard checks bearer tokens signed with a shared secret.
type Guard struct {
	secret []byte
	logger *log.Logger
}

// New creates a new Guard.
func New(secret string, logger *log.Logger) (*Guard, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if logger == nil {
		return nil, ErrEmptyLogger
	}

	return &Guard{
		secret: []byte(secret),
		logger: logger,
	}, nil
}

// IssueToken signs a token for subject that expires after ttl.
func (g *Guard) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(g.secret)
}

// Verify validates the value of an Authorization header.
func (g *Guard) Verify(authorization string) error {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return ErrNoToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	if raw == "" {
		return ErrNoToken
	}

	_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return nil
}

// Handler lets through only the requests carrying a valid token.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := g.Verify(req.Header.Get("Authorization")); err != nil {
			g.logger.Warn("Unauthorized metrics access", "remote", req.RemoteAddr, "err", err)
			rw.Header().Set("WWW-Authenticate", `Bearer realm="metrics"`)
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(rw, req)
	})
}
