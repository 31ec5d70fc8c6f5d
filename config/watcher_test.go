package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherInitialLoad(t *testing.T) {
	path := writeConfig(t, validYAML)

	w, err := NewWatcher(path, func(*Config, error) {})
	require.NoError(t, err)

	cfg := w.Snapshot()
	require.NotNil(t, cfg.LR)
	assert.Equal(t, 0.0001, *cfg.LR)
	assert.Equal(t, uint32(0), w.ReloadCount())
}

func TestWatcherRejectsInvalidInitialConfig(t *testing.T) {
	path := writeConfig(t, "mode: 9\n")
	_, err := NewWatcher(path, func(*Config, error) {})
	assert.Error(t, err)
}

func TestWatcherPicksUpChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("debounced reload test")
	}

	path := writeConfig(t, validYAML)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config, err error) {
		if err == nil {
			select {
			case reloaded <- cfg:
			default:
			}
		}
	})
	require.NoError(t, err)

	// Give the watch goroutine a moment to register the file.
	time.Sleep(100 * time.Millisecond)

	updated := `mode: 1
model: edge
scale: 4
lr: 0.001
gan_loss: nsgan
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		require.NotNil(t, cfg.LR)
		assert.Equal(t, 0.001, *cfg.LR)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}

	snap := w.Snapshot()
	require.NotNil(t, snap.LR)
	assert.Equal(t, 0.001, *snap.LR)
}
