package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualProgressBar(t *testing.T) {
	var out bytes.Buffer
	p := NewManualProgressBar(&out, 10, 4)
	assert.Equal(t, 0.0, p.Progress())
	assert.Equal(t, "|"+strings.Repeat(" ", 10)+"| [0.00% | elapsed: 0s]",
		p.String())

	p.Increment()
	p.Increment()
	assert.Equal(t, 0.5, p.Progress())
	assert.True(t, strings.HasPrefix(p.String(),
		"|"+strings.Repeat("█", 5)+strings.Repeat(" ", 5)+"| [50.00%"))

	// Progress saturates at the maximum
	for i := 0; i < 10; i++ {
		p.Increment()
	}
	assert.Equal(t, 1.0, p.Progress())

	p.Finish()
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
	assert.Contains(t, out.String(), "100.00%")
}
