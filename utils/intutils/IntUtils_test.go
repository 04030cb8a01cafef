package intutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProd(t *testing.T) {
	assert.Equal(t, 24, Prod(2, 3, 4))
	assert.Equal(t, 0, Prod(5, 0))
	assert.Equal(t, 1, Prod())
}
