package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionCorrupt is returned when a stored row cannot be decoded.
var ErrSessionCorrupt = errors.New("session row corrupt")

// Encode serialises s as JSON, stamping the current schema version.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.SessionID == "" || s.UserID == "" {
		return nil, errors.New("session requires session and user id")
	}
	out := *s
	out.SchemaVersion = CurrentSchemaVersion
	return json.Marshal(&out)
}

// Decode parses a stored row. Rows from a newer schema are rejected.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if s.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrSessionCorrupt, s.SchemaVersion)
	}
	if s.SessionID == "" || s.UserID == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrSessionCorrupt)
	}
	return &s, nil
}
