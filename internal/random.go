package internal

import "github.com/google/uuid"

// NewSessionID returns a random (version 4) UUID in canonical form.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ValidSessionID reports whether s is a canonical version 4 UUID, the only
// shape NewSessionID produces.
func ValidSessionID(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4
}
