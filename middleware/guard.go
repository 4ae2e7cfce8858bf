package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Verifier is satisfied by [goSession.Service].
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*goSession.TokenPayload, bool)
}

type payloadContextKey struct{}

// PayloadFromContext returns the verified token payload stored by [Guard].
func PayloadFromContext(ctx context.Context) (*goSession.TokenPayload, bool) {
	p, ok := ctx.Value(payloadContextKey{}).(*goSession.TokenPayload)
	return p, ok
}

// Guard admits requests carrying a valid access token in the Authorization
// header. Refresh tokens are rejected: they only buy new access tokens.
// Every rejection is a bare 401.
func Guard(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			payload, ok := v.VerifyToken(r.Context(), token)
			if !ok || payload.TokenType != goSession.TokenAccess {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), payloadContextKey{}, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestMetadata copies the caller's address and user agent into the
// request context so audit events can carry them.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ip := clientIP(r); ip != "" {
			ctx = goSession.WithClientIP(ctx, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = goSession.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
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

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
