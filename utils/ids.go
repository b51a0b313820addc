package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewOrderID returns a short human-facing order reference such as ORD-1F3A9C07B2D4.
func NewOrderID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}

// NewGuestToken returns an opaque identifier for anonymous chat sessions.
func NewGuestToken() string {
	return uuid.NewString()
}
