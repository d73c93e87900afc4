// Package uid provides utilities for generating globally unique identifiers.
// It leverages UUID v7 for time-ordered sorting and falls back to v4 if necessary.
package uid

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewUUID generates a unique identifier using the UUID v7 standard.
//
// UUID v7 is preferred as it is time-ordered (lexicographically sortable),
// making it efficient for store keys and server-side indexing.
// If v7 generation fails, it falls back to a random UUID v4 string.
func NewUUID() string {
	newID, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 (Random) to ensure an ID is always returned.
		return uuid.New().String()
	}
	return newID.String()
}

// NewEventID generates a unique identifier for a captured event.
//
// It currently uses the NewUUID standard. Separating this function allows
// for future changes in event ID formats (e.g., ULID or KSUID) without
// breaking the core UUID generation logic.
func NewEventID() string {
	return NewUUID()
}

// NewSessionID generates an identifier for a monitoring session.
func NewSessionID() string {
	return NewUUID()
}

// NewDeviceID generates the opaque identifier persisted under
// revi_device_id. Stable for the lifetime of the local store.
func NewDeviceID() string {
	return uuid.New().String()
}

// NewTraceID returns a 32-hex-character trace identifier compatible with
// W3C traceparent headers.
func NewTraceID() string {
	return randomHex(16)
}

// NewSpanID returns a 16-hex-character span identifier.
func NewSpanID() string {
	return randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		raw := uuid.New()
		return hex.EncodeToString(raw[:])[:n*2]
	}
	return hex.EncodeToString(buf)
}
