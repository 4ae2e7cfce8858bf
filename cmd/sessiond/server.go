package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
)

const maxBodyBytes = 16 << 10

type server struct {
	svc        *goSession.Service
	log        *slog.Logger
	adminToken string
}

func newServer(svc *goSession.Service, log *slog.Logger, adminToken string) *server {
	return &server{svc: svc, log: log, adminToken: adminToken}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	guard := middleware.Guard(s.svc)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(s.svc).Handler())

	mux.HandleFunc("POST /v1/tokens/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/tokens/verify", s.handleVerify)
	mux.HandleFunc("POST /v1/tokens/revoke", s.handleRevokeToken)

	mux.Handle("GET /v1/sessions", guard(http.HandlerFunc(s.handleListSessions)))
	mux.Handle("DELETE /v1/sessions/{id}", guard(http.HandlerFunc(s.handleRevokeSession)))

	if s.adminToken != "" {
		mux.Handle("POST /v1/sessions", s.admin(http.HandlerFunc(s.handleIssue)))
		mux.Handle("DELETE /v1/users/{id}/sessions", s.admin(http.HandlerFunc(s.handleRevokeUser)))
	}

	return middleware.RequestMetadata(mux)
}

/*
====================================
REQUEST / RESPONSE SHAPES
====================================
*/

type issueRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type grantResponse struct {
	AccessToken      string     `json:"access_token"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
}

type payloadResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionResponse struct {
	SessionID  string    `json:"session_id"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	Current    bool      `json:"current"`
}

/*
====================================
HANDLERS
====================================
*/

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.svc.Health(r.Context())
	status := http.StatusOK
	if !h.RedisAvailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"redis_available":  h.RedisAvailable,
		"redis_latency_ms": h.RedisLatency.Milliseconds(),
	})
}

func (s *server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	pair, err := s.svc.GenerateTokenPair(r.Context(), req.UserID, req.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenPairResponse{
		SessionID:        pair.SessionID,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	grant, err := s.svc.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := grantResponse{
		AccessToken:     grant.AccessToken,
		AccessExpiresAt: grant.AccessExpiresAt,
		RefreshToken:    grant.RefreshToken,
	}
	if grant.RefreshToken != "" {
		resp.RefreshExpiresAt = &grant.RefreshExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payload, ok := s.svc.VerifyToken(r.Context(), req.Token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, payloadResponse{
		UserID:    payload.UserID,
		Email:     payload.Email,
		SessionID: payload.SessionID,
		TokenType: string(payload.TokenType),
		ExpiresAt: payload.ExpiresAt,
	})
}

func (s *server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.svc.RevokeToken(r.Context(), req.Token); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	payload, _ := middleware.PayloadFromContext(r.Context())

	sessions, err := s.svc.GetUserSessions(r.Context(), payload.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, info := range sessions {
		out = append(out, sessionResponse{
			SessionID:  info.SessionID,
			Email:      info.Email,
			CreatedAt:  info.CreatedAt,
			LastUsedAt: info.LastUsedAt,
			Current:    info.SessionID == payload.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRevokeSession lets a user end one of their own sessions. Sessions of
// other users read as not found.
func (s *server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	payload, _ := middleware.PayloadFromContext(r.Context())
	sessionID := r.PathValue("id")

	info, err := s.svc.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if info.UserID != payload.UserID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := s.svc.RevokeSession(r.Context(), sessionID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRevokeUser(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.RevokeAllUserTokens(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (s *server) admin(next http.Handler) http.Handler {
	want := []byte(s.adminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-Admin-Token"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*
====================================
HELPERS
====================================
*/

func (s *server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goSession.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, goSession.ErrRefreshRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many refresh attempts")
	case errors.Is(err, goSession.ErrSignatureInvalid):
		writeError(w, http.StatusBadRequest, "malformed token")
	case errors.Is(err, goSession.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, goSession.ErrStoreUnavailable):
		s.log.Error("session store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
