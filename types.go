package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType = jwt.TokenType

const (
	TokenAccess  = jwt.TokenAccess
	TokenRefresh = jwt.TokenRefresh
)

// TokenPayload is the verified content of a token.
type TokenPayload struct {
	UserID    string
	Email     string
	SessionID string
	TokenType TokenType
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
	Audience  []string
}

// TokenPair is returned by [Service.GenerateTokenPair].
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// AccessGrant is returned by [Service.RefreshAccessToken]. RefreshToken is
// set only when refresh rotation is enabled, and then replaces the token the
// client presented.
type AccessGrant struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionInfo is the caller-facing view of a session row.
type SessionInfo struct {
	SessionID  string
	UserID     string
	Email      string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// CleanupResult reports one sweep. DeletedCount is the number of session
// rows plus refresh and access records removed.
type CleanupResult struct {
	DeletedCount    int
	SessionsDeleted int
	RecordsDeleted  int
	IndexPruned     int
	Duration        time.Duration
}

// HealthStatus is a point-in-time store availability check.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

func payloadFromClaims(c *jwt.TokenClaims) *TokenPayload {
	p := &TokenPayload{
		UserID:    c.UserID,
		Email:     c.Email,
		SessionID: c.SessionID,
		TokenType: c.TokenType,
		TokenID:   c.ID,
		Issuer:    c.Issuer,
		Audience:  []string(c.Audience),
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
