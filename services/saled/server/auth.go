package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator verifies operator bearer tokens on admin endpoints. Tokens are
// HS256 JWTs signed with a shared secret distributed out of band.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	subject  string
}

// NewAuthenticator constructs an authenticator. Issuer, audience and subject
// are enforced only when non-empty.
func NewAuthenticator(secret []byte, issuer, audience, subject string) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("admin jwt secret required")
	}
	return &Authenticator{
		secret:   append([]byte{}, secret...),
		issuer:   strings.TrimSpace(issuer),
		audience: strings.TrimSpace(audience),
		subject:  strings.TrimSpace(subject),
	}, nil
}

// Middleware rejects requests without a valid operator token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		if err := a.verify(r.Header.Get("Authorization")); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) verify(header string) error {
	raw := strings.TrimSpace(header)
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		return fmt.Errorf("bearer token required")
	}
	raw = strings.TrimSpace(strings.TrimPrefix(raw, prefix))
	if raw == "" {
		return fmt.Errorf("bearer token empty")
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		options = append(options, jwt.WithAudience(a.audience))
	}
	if a.subject != "" {
		options = append(options, jwt.WithSubject(a.subject))
	}
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, options...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("token invalid")
	}
	return nil
}
