package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhusq20/APIFarm/internal/flagx"
	"github.com/zhusq20/APIFarm/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. Durations use
// timex.Duration so "30s" and integer nanoseconds are both accepted.
type FileConfig struct {
	EndpointAddr        string         `json:"endpoint_addr" yaml:"endpoint_addr"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
	StoreBackend        string         `json:"store_backend" yaml:"store_backend"`
	DataDir             string         `json:"data_dir" yaml:"data_dir"`
	DatabaseDSN         string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey           string         `json:"secret_key" yaml:"secret_key"`
	TokenTTL            timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	DefaultUpstreamURL  string         `json:"default_upstream_url" yaml:"default_upstream_url"`
	UpstreamTimeout     timex.Duration `json:"upstream_timeout" yaml:"upstream_timeout"`
	MaxBatchConcurrency int            `json:"max_batch_concurrency" yaml:"max_batch_concurrency"`
	SessionBackend      string         `json:"session_backend" yaml:"session_backend"`
	RedisURL            string         `json:"redis_url" yaml:"redis_url"`
	S3AccessKey         string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region            string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix            string         `json:"s3_prefix" yaml:"s3_prefix"`
}

// parseFile overlays config with the file named by -c or -config. Files
// ending in .yaml or .yml are decoded as YAML, anything else as JSON. Only
// fields present in the file replace the current values. Unreadable or
// malformed files panic; the caller runs this during startup.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.applyTo(config)
}

func (fc *FileConfig) applyTo(c *Config) {
	setString(&c.EndpointAddr, fc.EndpointAddr)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.StoreBackend, fc.StoreBackend)
	setString(&c.DataDir, fc.DataDir)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SecretKey, fc.SecretKey)
	if fc.TokenTTL.Duration != 0 {
		c.TokenTTL = fc.TokenTTL.Duration
	}
	setString(&c.DefaultUpstreamURL, fc.DefaultUpstreamURL)
	if fc.UpstreamTimeout.Duration != 0 {
		c.UpstreamTimeout = fc.UpstreamTimeout.Duration
	}
	if fc.MaxBatchConcurrency != 0 {
		c.MaxBatchConcurrency = fc.MaxBatchConcurrency
	}
	setString(&c.SessionBackend, fc.SessionBackend)
	setString(&c.RedisURL, fc.RedisURL)
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.S3Prefix, fc.S3Prefix)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
