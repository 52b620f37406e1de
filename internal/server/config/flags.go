package config

import (
	"flag"
	"os"
	"time"

	"github.com/zhusq20/APIFarm/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        HTTP bind address (e.g. ":8081")
//	-l string        log level (debug, info, warn, error)
//	-store string    store backend (file, sqlite, postgres, s3)
//	-data string     data directory for the file and sqlite backends
//	-d string        PostgreSQL DSN
//	-s string        session token HMAC secret
//	-t int           session token validity, minutes (0 = until logout)
//	-upstream string default upstream base URL
//	-timeout int     per-attempt upstream timeout, seconds
//	-sessions string token table backend (memory, redis)
//	-redis string    Redis URL
//
// os.Args is filtered through flagx.FilterArgs first so flags meant for
// other components (such as -c) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-l", "-store", "-data", "-d", "-s", "-t", "-upstream", "-timeout", "-sessions", "-redis",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "store backend")
	fs.StringVar(&config.DataDir, "data", config.DataDir, "data directory")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenTTL := fs.Int("t", int(config.TokenTTL.Minutes()), "session token validity (in minutes, 0 = until logout)")

	fs.StringVar(&config.DefaultUpstreamURL, "upstream", config.DefaultUpstreamURL, "default upstream base URL")

	upstreamTimeout := fs.Int("timeout", int(config.UpstreamTimeout.Seconds()), "per-attempt upstream timeout (in seconds)")

	fs.StringVar(&config.SessionBackend, "sessions", config.SessionBackend, "session token backend")
	fs.StringVar(&config.RedisURL, "redis", config.RedisURL, "redis URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenTTL = time.Duration(*tokenTTL) * time.Minute
	config.UpstreamTimeout = time.Duration(*upstreamTimeout) * time.Second
}
