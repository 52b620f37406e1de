package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = append([]string{"testbin"}, args...)
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func Test_parseFile_JSON(t *testing.T) {
	path := writeFile(t, "apifarm.json", `{
		"endpoint_addr": "0.0.0.0:9000",
		"store_backend": "postgres",
		"database_dsn": "postgres://x",
		"secret_key": "k",
		"token_ttl": "2h",
		"upstream_timeout": 5000000000,
		"max_batch_concurrency": 16,
		"s3_bucket": "b"
	}`)
	withArgs(t, "-config", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)

	assert.Equal(t, "0.0.0.0:9000", cfg.EndpointAddr)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.Equal(t, "k", cfg.SecretKey)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 16, cfg.MaxBatchConcurrency)
	assert.Equal(t, "b", cfg.S3Bucket)

	// untouched fields keep their defaults
	assert.Equal(t, SessionMemory, cfg.SessionBackend)
	assert.Equal(t, "https://integrate.api.nvidia.com/v1", cfg.DefaultUpstreamURL)
}

func Test_parseFile_YAML(t *testing.T) {
	path := writeFile(t, "apifarm.yaml", `
endpoint_addr: ":7000"
session_backend: redis
redis_url: redis://cache:6379/2
upstream_timeout: 45s
default_upstream_url: http://llm.local/v1
`)
	withArgs(t, "-c", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)

	assert.Equal(t, ":7000", cfg.EndpointAddr)
	assert.Equal(t, SessionRedis, cfg.SessionBackend)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, 45*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "http://llm.local/v1", cfg.DefaultUpstreamURL)
}

func Test_parseFile_NoFlagNoChange(t *testing.T) {
	withArgs(t)

	cfg := &Config{EndpointAddr: "defaults:1234", UpstreamTimeout: time.Minute}
	parseFile(cfg)

	assert.Equal(t, "defaults:1234", cfg.EndpointAddr)
	assert.Equal(t, time.Minute, cfg.UpstreamTimeout)
}

func Test_parseFile_Invalid(t *testing.T) {
	t.Run("bad json panics", func(t *testing.T) {
		withArgs(t, "-config", writeFile(t, "bad.json", `{ not json`))
		require.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("bad yaml panics", func(t *testing.T) {
		withArgs(t, "-config", writeFile(t, "bad.yml", "endpoint_addr: [unclosed"))
		require.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		withArgs(t, "-config", filepath.Join(t.TempDir(), "missing.json"))
		require.Panics(t, func() { parseFile(&Config{}) })
	})
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "apifarm.json", `{"endpoint_addr": ":7000", "secret_key": "from-file"}`)
	withArgs(t, "-c", path, "-a", ":7001")

	cfg := LoadConfig()

	assert.Equal(t, ":7001", cfg.EndpointAddr)
	assert.Equal(t, "from-file", cfg.SecretKey)
}
