package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewConnectionID generates the opaque per-session connection identifier.
func NewConnectionID() string {
	return uuid.New().String()
}

// NewMessageID generates a stored-message identifier.
func NewMessageID() string {
	return uuid.New().String()
}

// NewRequestID generates a unique request ID for HTTP logging.
func NewRequestID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
