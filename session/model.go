package session

import "time"

// CurrentSchemaVersion is written into every encoded session row.
const CurrentSchemaVersion = 1

// Session is the server-side record correlating a token pair with a user.
// It never carries token material.
type Session struct {
	SchemaVersion int       `json:"v"`
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUsedAt    time.Time `json:"lastUsedAt"`
}

// SweepResult reports what [Store.SweepWithoutTTL] removed.
type SweepResult struct {
	Sessions    int
	Records     int
	IndexPruned int
}
