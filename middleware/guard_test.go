package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	sessions map[string]*authcore.Session
	calls    int
}

func (f *fakeValidator) ValidateSession(_ context.Context, token string) (*authcore.Session, error) {
	f.calls++
	s, ok := f.sessions[token]
	if !ok {
		return nil, authcore.ErrSessionInvalid
	}
	return s, nil
}

func sessionEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := authcore.SessionFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(s.AccountID))
	})
}

func TestGuard(t *testing.T) {
	v := &fakeValidator{sessions: map[string]*authcore.Session{
		"good": {AccountID: "acct-1", Role: authcore.RoleEditor},
	}}
	h := Guard(v)(sessionEcho(t))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"lower-case scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "acct-1", rec.Body.String())
			} else {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGuardNilEngine(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	Guard(nil)(sessionEcho(t)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	v := &fakeValidator{sessions: map[string]*authcore.Session{
		"viewer": {AccountID: "v", Role: authcore.RoleViewer},
		"admin":  {AccountID: "a", Role: authcore.RoleAdmin},
		"owner":  {AccountID: "o", Role: authcore.RoleOwner},
	}}
	h := Guard(v)(RequireRole(authcore.RoleAdmin)(sessionEcho(t)))

	for token, want := range map[string]int{
		"viewer": http.StatusForbidden,
		"admin":  http.StatusOK,
		"owner":  http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, token)
	}

	rec := httptest.NewRecorder()
	RequireRole(authcore.RoleViewer)(sessionEcho(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientInfo(t *testing.T) {
	var got authcore.ClientContext
	h := ClientInfo(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = authcore.ClientContextFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("User-Agent", "curl/8.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, authcore.ClientContext{IP: "203.0.113.9", UserAgent: "curl/8.0"}, got)
}
