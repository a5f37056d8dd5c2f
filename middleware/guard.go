package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// SessionValidator is the subset of [authcore.Engine] the guards need.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*authcore.Session, error)
}

// Guard rejects requests without a valid bearer session with 401 and
// attaches the session to the request context otherwise. Read it with
// [authcore.SessionFromContext].
func Guard(engine SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			sess, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcore.WithSession(r.Context(), sess)))
		})
	}
}

// RequireRole rejects requests whose session role ranks below min with 403.
// It must run after [Guard]; a request without a session gets 401.
func RequireRole(min authcore.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := authcore.SessionFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if !sess.Role.AtLeast(min) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientInfo attaches the caller's IP and user agent to the request context
// for handlers that call [authcore.Engine.Authenticate]. The IP is taken
// from RemoteAddr; put a trusted proxy middleware (such as chi's RealIP)
// in front when running behind a load balancer.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := authcore.ClientContext{
			IP:        remoteIP(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		}
		next.ServeHTTP(w, r.WithContext(authcore.WithClientContext(r.Context(), client)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
