package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDefaults(t *testing.T, c *Config) {
	t.Helper()
	assert.Equal(t, ":8081", c.EndpointAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, StoreFile, c.StoreBackend)
	assert.Equal(t, ".", c.DataDir)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, time.Duration(0), c.TokenTTL)
	assert.Equal(t, "https://integrate.api.nvidia.com/v1", c.DefaultUpstreamURL)
	assert.Equal(t, 30*time.Second, c.UpstreamTimeout)
	assert.Equal(t, 64, c.MaxBatchConcurrency)
	assert.Equal(t, SessionMemory, c.SessionBackend)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, "apifarm", c.S3Bucket)
	assert.Equal(t, "us-east-1", c.S3Region)
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assertDefaults(t, &c)
}

func TestLoadConfig_NonPositiveTimeoutFallsBack(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	for _, arg := range []string{"-timeout=0", "-timeout=-5"} {
		os.Args = []string{"apifarm-server", arg}
		c := LoadConfig()
		assert.Equal(t, DefaultUpstreamTimeout, c.UpstreamTimeout, arg)
	}
}

func TestLoadConfig_UsesDefaultsWithoutArgs(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"apifarm-server"}

	c := LoadConfig()
	require.NotNil(t, c)
	assertDefaults(t, c)
}
