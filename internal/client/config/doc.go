// Package config loads runtime configuration for the APIFarm CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults), with the server URL
//     taken from API_FARM_SERVER_URL.
//  2. Optional JSON or YAML file selected with -config.
//  3. Global flags given before the command name.
//
// Supported flags
//
//	-s string           server base URL
//	-token-file string  session token file (default .auth_token)
//	-timeout int        request timeout (seconds)
//
// # File schema
//
// Durations use timex.Duration, so "60s" and integer nanoseconds both work:
//
//	{
//	  "server_url": "http://localhost:8081",
//	  "token_file": ".auth_token",
//	  "request_timeout": "60s"
//	}
package config
