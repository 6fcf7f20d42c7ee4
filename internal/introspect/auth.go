package introspect

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReloadScope is the scope a token needs to reload the configuration
const ReloadScope = "mapping:reload"

// TokenAuthority issues and checks the HS256 tokens that guard the
// mutating endpoints of the server
type TokenAuthority struct {
	secret []byte
}

// NewTokenAuthority creates an authority signing with secret
func NewTokenAuthority(secret string) (*TokenAuthority, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 characters")
	}
	return &TokenAuthority{secret: []byte(secret)}, nil
}

// IssueToken creates a token for subject carrying scopes, valid for ttl
func (a *TokenAuthority) IssueToken(subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": strings.Join(scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Authorize validates a token and checks that it carries scope
func (a *TokenAuthority) Authorize(tokenString, scope string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	granted, _ := claims["scope"].(string)
	if !slices.Contains(strings.Fields(granted), scope) {
		return nil, fmt.Errorf("token lacks scope %s", scope)
	}
	return claims, nil
}

// requireScope rejects requests without a bearer token carrying scope
func requireScope(authority *TokenAuthority, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mapping"`)
				renderError(w, http.StatusUnauthorized, errors.New("missing bearer token"), "unauthorized")
				return
			}
			if _, err := authority.Authorize(tokenString, scope); err != nil {
				renderError(w, http.StatusForbidden, err, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
