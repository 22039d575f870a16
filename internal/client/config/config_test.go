package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:5555", c.ServerAddr)
	assert.Equal(t, 1*time.Second, c.ReadTimeout)
	assert.Equal(t, 128*1024, c.BufferSize)
	assert.Equal(t, 10*1024*1024, c.MaxFileSize)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "127.0.0.1:5555", cfg.ServerAddr)
	assert.Equal(t, 1*time.Second, cfg.ReadTimeout)
}
