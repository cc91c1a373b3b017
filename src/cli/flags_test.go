package cli

import (
	"testing"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSize(t *testing.T) {
	opts := struct {
		Size ByteSize `short:"b"`
	}{}
	_, extraArgs, err := ParseFlags("test", &opts, []string{"test", "-b=64K"})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(extraArgs))
	assert.EqualValues(t, 64000, opts.Size)
}

func TestDuration(t *testing.T) {
	opts := struct {
		D Duration `short:"d"`
	}{}
	_, extraArgs, err := ParseFlags("test", &opts, []string{"test", "-d=3m"})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(extraArgs))
	assert.EqualValues(t, 3*time.Minute, opts.D)
}

func TestURL(t *testing.T) {
	opts := struct {
		U URL `short:"u"`
	}{}
	_, extraArgs, err := ParseFlags("test", &opts, []string{"test", "-u=http://localhost:9091"})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(extraArgs))
	assert.EqualValues(t, "http://localhost:9091", opts.U)
}

func TestPositionalArgs(t *testing.T) {
	opts := struct {
		Args struct {
			Files StdinStrings `positional-arg-name:"files"`
		} `positional-args:"true"`
	}{}
	_, _, err := ParseFlags("test", &opts, []string{"test", "a.py", "pkg"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a.py", "pkg"}, opts.Args.Files.Get())
}

func TestVersion(t *testing.T) {
	v, err := NewVersion(">=0.910.0")
	require.NoError(t, err)
	assert.True(t, v.IsGTE)
	assert.Equal(t, ">=0.910.0", v.String())
	assert.True(t, v.Matches(*semver.New("1.8.0")))
	assert.True(t, v.Matches(*semver.New("0.910.0")))
	assert.False(t, v.Matches(*semver.New("0.800.0")))

	v, err = NewVersion("1.8.0")
	require.NoError(t, err)
	assert.True(t, v.Matches(*semver.New("1.8.0")))
	assert.False(t, v.Matches(*semver.New("1.9.0")))

	assert.True(t, (&Version{}).Matches(*semver.New("0.1.0")))
}
