package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkRoundTrip(t *testing.T) {
	c := &Config{StateFile: filepath.Join(t.TempDir(), "nested", "watermark")}

	watermark, err := c.LoadWatermark()
	require.NoError(t, err)
	assert.Equal(t, int64(0), watermark, "missing state file means never synced")

	require.NoError(t, c.SaveWatermark(1704110400123))

	watermark, err = c.LoadWatermark()
	require.NoError(t, err)
	assert.Equal(t, int64(1704110400123), watermark)
}

func TestCorruptWatermark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark")
	require.NoError(t, os.WriteFile(path, []byte("yesterday"), 0600))

	c := &Config{StateFile: path}
	_, err := c.LoadWatermark()
	assert.ErrorContains(t, err, "corrupt state file")
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("BANKCTL_SERVER", "http://bank:9000")
	t.Setenv("BANKCTL_STATE_FILE", "/tmp/state")

	c := DefaultConfig()
	assert.Equal(t, "http://bank:9000", c.ServerURL)
	assert.Equal(t, "/tmp/state", c.StateFile)
	assert.Equal(t, "text", c.Output)
}
