package utils

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewOrderID(t *testing.T) {
	re := regexp.MustCompile(`^ORD-[0-9A-F]{12}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewOrderID()
		assert.Regexp(t, re, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestNewGuestToken(t *testing.T) {
	_, err := uuid.Parse(NewGuestToken())
	assert.NoError(t, err)
}
