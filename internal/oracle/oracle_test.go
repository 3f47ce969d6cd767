package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUninterestingWithoutInteresting(t *testing.T) {
	_, err := New(Config{Path: "true", UninterestingStdout: "Foo"})
	assert.Error(t, err)
}

func TestCheckClassifiesByExitCode(t *testing.T) {
	o, err := New(Config{Path: "sh", Args: []string{"-c", "exit 139"}})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), []byte("input"))
	require.NoError(t, err)
	assert.True(t, v.Interesting) // 139 is within the augmented 128..255 range
	assert.Equal(t, 139, v.ExitCode)
}

func TestCheckNotInterestingOnCleanExit(t *testing.T) {
	o, err := New(Config{Path: "sh", Args: []string{"-c", "exit 0"}})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), []byte("input"))
	require.NoError(t, err)
	assert.False(t, v.Interesting)
}

func TestCheckInterestingStdoutPattern(t *testing.T) {
	o, err := New(Config{
		Path:              "sh",
		Args:              []string{"-c", "echo AddressSanitizer: heap-buffer-overflow"},
		InterestingStdout: DefaultInterestingPattern,
	})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, v.Interesting)
}

func TestCheckUninterestingOverridesInteresting(t *testing.T) {
	o, err := New(Config{
		Path:                "sh",
		Args:                []string{"-c", "echo 'AddressSanitizer and also TypeError'"},
		InterestingStdout:   DefaultInterestingPattern,
		UninterestingStdout: DefaultUninterestingPattern,
	})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, v.Interesting)
}

func TestCheckSignalDeathIsInterestingDespiteUninterestingOutput(t *testing.T) {
	o, err := New(Config{
		Path:                "sh",
		Args:                []string{"-c", "echo 'TypeError: boom' 1>&2; kill -SEGV $$"},
		InterestingStderr:   DefaultInterestingPattern,
		UninterestingStderr: DefaultUninterestingPattern,
	})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, v.Interesting)
	assert.NotZero(t, v.Signal)
}

func TestCheckSignalDeathIsInteresting(t *testing.T) {
	o, err := New(Config{Path: "sh", Args: []string{"-c", "kill -ABRT $$"}})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, v.Interesting)
	assert.Equal(t, 6, v.Signal)
}

func TestCheckTimesOut(t *testing.T) {
	o, err := New(Config{Path: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 10 * time.Millisecond})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, v.TimedOut)
}

func TestCheckSubstitutesAtFilePlaceholder(t *testing.T) {
	o, err := New(Config{Path: "sh", Args: []string{"-c", "cat \"$0\"", atFilePlaceholder}})
	require.NoError(t, err)

	v, err := o.Check(context.Background(), []byte("candidate contents"))
	require.NoError(t, err)
	assert.Contains(t, v.Stdout, "candidate contents")
}

func TestCloneIsIndependent(t *testing.T) {
	o, err := New(Config{Path: "true"})
	require.NoError(t, err)
	clone := o.Clone()
	assert.NotSame(t, o, clone)
	assert.Equal(t, o.path, clone.path)
}
