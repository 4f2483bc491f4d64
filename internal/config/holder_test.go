package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadEmitsDiff(t *testing.T) {
	path := writeFile(t, "timeout: 5\n")
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	ch := make(chan Patch, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("timeout: 7\nkeepScreenOn: true\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 7, h.Get().Timeout)
	select {
	case p := <-ch:
		require.NotNil(t, p.Timeout)
		assert.Equal(t, 7, *p.Timeout)
		require.NotNil(t, p.KeepScreenOn)
		assert.Nil(t, p.URL)
	default:
		t.Fatal("expected a patch notification")
	}
}

func TestHolder_ReloadFailureKeepsOld(t *testing.T) {
	path := writeFile(t, "timeout: 5\n")
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("timeout: -1\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 5, h.Get().Timeout)
}

func TestHolder_UnchangedReloadIsSilent(t *testing.T) {
	path := writeFile(t, "timeout: 5\n")
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	ch := make(chan Patch, 1)
	h.RegisterListener(ch)

	require.NoError(t, h.Reload(context.Background()))
	assert.Empty(t, ch)
}

func TestHolder_WatcherPicksUpWrite(t *testing.T) {
	path := writeFile(t, "timeout: 5\n")
	loader := NewLoader(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	ch := make(chan Patch, 4)
	h.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("timeout: 9\n"), 0o600))

	select {
	case p := <-ch:
		require.NotNil(t, p.Timeout)
		assert.Equal(t, 9, *p.Timeout)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver reload")
	}
}

func TestHolder_WatcherWithoutFileIsNoop(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader(""))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
