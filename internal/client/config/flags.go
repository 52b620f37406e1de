package config

import (
	"flag"
	"io"
	"time"
)

// globalFlags are the flags accepted before the command name.
//
//	-config string    config file (JSON or YAML)
//	-s string         server base URL
//	-token-file string
//	-timeout int      request timeout in seconds
type globalFlags struct {
	configFile string
	set        map[string]bool
	serverURL  string
	tokenFile  string
	timeout    int
	rest       []string
}

// parseFlags stops at the first non-flag argument, so command flags such
// as "batch-chat -c 4" never reach this flag set.
func parseFlags(args []string) (*globalFlags, error) {
	gf := &globalFlags{set: map[string]bool{}}

	fs := flag.NewFlagSet("apifarm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&gf.configFile, "config", "", "path to config file (JSON or YAML)")
	fs.StringVar(&gf.serverURL, "s", "", "APIFarm server URL")
	fs.StringVar(&gf.tokenFile, "token-file", "", "file holding the session token")
	fs.IntVar(&gf.timeout, "timeout", 0, "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) { gf.set[f.Name] = true })
	gf.rest = fs.Args()
	return gf, nil
}

func (gf *globalFlags) applyTo(c *Config) {
	if gf.set["s"] {
		c.ServerURL = gf.serverURL
	}
	if gf.set["token-file"] {
		c.TokenFile = gf.tokenFile
	}
	if gf.set["timeout"] {
		c.RequestTimeout = time.Duration(gf.timeout) * time.Second
	}
}
