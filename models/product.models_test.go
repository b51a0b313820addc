package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductFinalPrice(t *testing.T) {
	assert.Equal(t, 200000.0, Product{Price: 200000}.FinalPrice())
	assert.Equal(t, 180000.0, Product{Price: 200000, Discount: 10}.FinalPrice())
	assert.Equal(t, 66667.0, Product{Price: 100000, Discount: 33.333}.FinalPrice())
}
