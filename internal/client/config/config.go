package config

import (
	"time"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/flagx"
)

// Config holds runtime settings for the APIFarm CLI.
//
// Fields:
//   - ServerURL: base URL of the APIFarm server.
//   - TokenFile: where the session token is kept between invocations.
//   - RequestTimeout: bound on a single HTTP request to the server.
type Config struct {
	ServerURL      string
	TokenFile      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with defaults. ServerURL comes from
// API_FARM_SERVER_URL and stays empty when it is unset.
func (c *Config) LoadDefaults() {
	c.ServerURL = flagx.EnvOr(common.ServerURLEnv, "")
	c.TokenFile = ".auth_token"
	c.RequestTimeout = 60 * time.Second
}

// LoadConfig applies defaults, then the optional config file, then the
// global flags found at the start of args. It returns the remaining
// arguments: the command and its own flags.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	gf, err := parseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if gf.configFile != "" {
		if err := parseFile(cfg, gf.configFile); err != nil {
			return nil, nil, err
		}
	}
	gf.applyTo(cfg)

	return cfg, gf.rest, nil
}
