// Package config loads proxy configuration from flags and environment
// variables, in the style of the teacher's config package
// (getEnvOrDefault-style fallbacks, a Load() constructor, a Validate()
// gate). The config provider is an external collaborator per the system's
// scope — this package only has to deliver a validated Config, not parse
// arbitrary CLI grammars.
package config

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"strings"
)

// Config holds all proxy configuration values.
type Config struct {
	Listen        string // proxy listen address, e.g. "127.0.0.1:8881"
	MetricsListen string // Prometheus /metrics listen address, e.g. ":9090"

	BlacklistFile string // newline-delimited host-fragment patterns
	AccessLogFile string // one line per completed connection; "" discards
	ErrorLogFile  string // one line per handler/pipe failure; "" discards

	NoBlacklist bool // fragment every CONNECT payload regardless of content
	Quiet       bool // suppress the terminal stats line entirely
	Verbose     bool // print a colorized [NON-CRITICAL] line per handler failure
}

// Load builds a Config from command-line flags, falling back to
// environment variables (so the same binary runs unchanged under a process
// supervisor or a .env file loaded by the caller) and finally to built-in
// defaults.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("dpiproxy", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.Listen, "listen", getEnvOrDefault("PROXY_LISTEN", "127.0.0.1:8881"), "proxy listen address")
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", getEnvOrDefault("PROXY_METRICS_LISTEN", ":9090"), "Prometheus metrics listen address")
	fs.StringVar(&cfg.BlacklistFile, "blacklist", getEnvOrDefault("PROXY_BLACKLIST_FILE", "blacklist.txt"), "path to blacklist file")
	fs.StringVar(&cfg.AccessLogFile, "log-access", getEnvOrDefault("PROXY_ACCESS_LOG", ""), "path to the access log")
	fs.StringVar(&cfg.ErrorLogFile, "log-error", getEnvOrDefault("PROXY_ERROR_LOG", ""), "path to the error log")

	noBlacklistDefault, _ := strconv.ParseBool(getEnvOrDefault("PROXY_NO_BLACKLIST", "false"))
	quietDefault, _ := strconv.ParseBool(getEnvOrDefault("PROXY_QUIET", "false"))
	verboseDefault, _ := strconv.ParseBool(getEnvOrDefault("PROXY_VERBOSE", "false"))
	fs.BoolVar(&cfg.NoBlacklist, "no-blacklist", noBlacklistDefault, "fragment every CONNECT payload, ignoring the blacklist")
	fs.BoolVar(&cfg.Quiet, "quiet", quietDefault, "suppress the terminal stats line")
	fs.BoolVar(&cfg.Verbose, "verbose", verboseDefault, "print non-critical errors to the terminal")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for errors that should stop startup.
func (c *Config) Validate() error {
	var errs []string

	if c.Listen == "" {
		errs = append(errs, "listen address is required")
	}
	if c.BlacklistFile == "" {
		errs = append(errs, "blacklist file path is required")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// getEnvOrDefault returns the environment variable value, or defaultValue
// if it's unset or empty.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
