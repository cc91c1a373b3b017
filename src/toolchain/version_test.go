package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("mypy 1.8.0 (compiled: yes)\n")
	assert.NoError(t, err)
	assert.Equal(t, "1.8.0", v.String())

	v, err = ParseVersion("mypy 0.910")
	assert.NoError(t, err)
	assert.Equal(t, "0.910.0", v.String())

	v, err = ParseVersion("mypy 1.11.0+dev.4f0fd0b1 (compiled: no)")
	assert.NoError(t, err)
	assert.Equal(t, "1.11.0", v.String())

	_, err = ParseVersion("Python 3.11.4")
	assert.Error(t, err)
}
