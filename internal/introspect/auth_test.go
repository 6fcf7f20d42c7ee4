package introspect

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestNewTokenAuthority_ShortSecret(t *testing.T) {
	_, err := NewTokenAuthority("short")
	assert.EqualError(t, err, "token secret must be at least 16 characters")
}

func TestTokenAuthority_Authorize(t *testing.T) {
	authority, err := NewTokenAuthority(testSecret)
	require.NoError(t, err)
	other, err := NewTokenAuthority("fedcba9876543210fedcba")
	require.NoError(t, err)

	valid, err := authority.IssueToken("ci", []string{"mapping:read", ReloadScope}, time.Hour)
	require.NoError(t, err)
	readOnly, err := authority.IssueToken("ci", []string{"mapping:read"}, time.Hour)
	require.NoError(t, err)
	expired, err := authority.IssueToken("ci", []string{ReloadScope}, -time.Minute)
	require.NoError(t, err)
	foreign, err := other.IssueToken("ci", []string{ReloadScope}, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"scope": ReloadScope}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{name: "valid", token: valid},
		{name: "missing scope", token: readOnly, wantErr: "token lacks scope mapping:reload"},
		{name: "expired", token: expired, wantErr: "token is expired"},
		{name: "wrong secret", token: foreign, wantErr: "signature is invalid"},
		{name: "no expiry", token: noExpiry, wantErr: "exp claim is required"},
		{name: "garbage", token: "not-a-token", wantErr: "token is malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := authority.Authorize(tt.token, ReloadScope)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ci", claims["sub"])
		})
	}
}

func TestServer_ReloadRequiresToken(t *testing.T) {
	authority, err := NewTokenAuthority(testSecret)
	require.NoError(t, err)
	s := newTestServer(t, WithTokenAuthority(authority))

	reload := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/configuration/reload", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec
	}

	rec := reload("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="mapping"`, rec.Header().Get("WWW-Authenticate"))

	readOnly, err := authority.IssueToken("ci", []string{"mapping:read"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, reload("Bearer "+readOnly).Code)

	token, err := authority.IssueToken("ci", []string{ReloadScope}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reload("Bearer "+token).Code)

	// read-only endpoints stay open
	assert.Equal(t, http.StatusOK, get(t, s, "/types").Code)
}
