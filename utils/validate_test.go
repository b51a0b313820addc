package utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Kind  string `json:"kind" validate:"required,oneof=A B"`
	Count int    `json:"count" validate:"min=1"`
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"x","kind":"A","count":2}`))
		var s sample
		require.NoError(t, DecodeAndValidate(r, &s))
		assert.Equal(t, "x", s.Name)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var s sample
		assert.EqualError(t, DecodeAndValidate(r, &s), "request body is empty")
	})

	t.Run("messages per field", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"kind":"C","count":0}`))
		var s sample
		err := DecodeAndValidate(r, &s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Name is required")
		assert.Contains(t, err.Error(), "Kind must be one of [A B]")
		assert.Contains(t, err.Error(), "Count must be at least 1")
	})
}
