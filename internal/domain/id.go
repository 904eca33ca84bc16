package domain

import "github.com/google/uuid"

// generateID creates a new unique session identifier.
func generateID() string {
	return uuid.New().String()
}

// NewSessionID returns a fresh identifier for a focus session.
func NewSessionID() string {
	return generateID()
}
