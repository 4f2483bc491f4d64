//go:build unix

package wakelock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireRelease(t *testing.T) {
	i := New("sleep", "30")
	assert.False(t, i.Held())

	require.NoError(t, i.Acquire())
	require.NoError(t, i.Acquire())
	assert.True(t, i.Held())

	require.NoError(t, i.Release())
	assert.False(t, i.Held())
	require.NoError(t, i.Release())
}

func TestReleaseAfterEarlyExit(t *testing.T) {
	i := New("true")
	require.NoError(t, i.Acquire())
	require.Eventually(t, func() bool { return !i.Held() }, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, i.Release(), ErrExited)
}

func TestAcquireMissingBinary(t *testing.T) {
	i := New("liveplay-no-such-inhibitor")
	assert.Error(t, i.Acquire())
	assert.False(t, i.Held())
	assert.NoError(t, i.Release())
}
