// Package config reads server settings from the environment.
//
// Values come from the process environment, optionally seeded from .env
// files. Variables already set in the environment take precedence over the
// files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Environment variables read by Load.
const (
	EnvAddr             = "RPC_ADDR"
	EnvPath             = "RPC_PATH"
	EnvDiscoveryPath    = "RPC_DISCOVERY_PATH"
	EnvDiscoveryFile    = "RPC_DISCOVERY_FILE"
	EnvChainState       = "RPC_CHAIN_STATE"
	EnvMaxBodyBytes     = "RPC_MAX_BODY_BYTES"
	EnvMaxBatch         = "RPC_MAX_BATCH"
	EnvBatchConcurrency = "RPC_BATCH_CONCURRENCY"
	EnvLogLevel         = "RPC_LOG_LEVEL"
	EnvLogFormat        = "RPC_LOG_FORMAT"
	EnvMetricsPath      = "RPC_METRICS_PATH"
)

// HealthPath is the fixed route of the health check.
const HealthPath = "/healthz"

// Log formats accepted in RPC_LOG_FORMAT.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address.
	Addr string
	// Path is the route accepting JSON-RPC POSTs.
	Path string
	// DiscoveryPath is the route serving the discovery document over GET.
	// Empty disables the route; rpc.discover is always available.
	DiscoveryPath string
	// DiscoveryFile, if set, names a static OpenRPC document served in place
	// of the generated one.
	DiscoveryFile string
	// ChainState, if set, names the YAML chain state file.
	ChainState string

	MaxBodyBytes int64
	// MaxBatch caps the calls in one batch. 0 means no cap.
	MaxBatch int
	// BatchConcurrency bounds how many calls of a batch run at once.
	// 0 keeps the dispatcher default, a negative value removes the bound.
	BatchConcurrency int

	LogLevel  logrus.Level
	LogFormat string

	// MetricsPath is the route exposing Prometheus metrics. Empty disables it.
	MetricsPath string
}

// Default returns the settings used for unset variables.
func Default() Config {
	return Config{
		Addr:          ":8080",
		Path:          "/rpc",
		DiscoveryPath: "/rpc/discover",
		MaxBodyBytes:  1 << 20,
		MaxBatch:      100,
		LogLevel:      logrus.InfoLevel,
		LogFormat:     LogFormatText,
		MetricsPath:   "/metrics",
	}
}

// Load reads the configuration. Each env file is loaded if it exists; a
// missing file is not an error.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which reports the value of a
// variable and whether it is set.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		return strings.TrimSpace(v), ok
	}

	if v, ok := get(EnvAddr); ok && v != "" {
		c.Addr = v
	}
	if v, ok := get(EnvPath); ok && v != "" {
		c.Path = v
	}
	if v, ok := get(EnvDiscoveryPath); ok {
		c.DiscoveryPath = v
	}
	if v, ok := get(EnvMetricsPath); ok {
		c.MetricsPath = v
	}
	if v, ok := get(EnvDiscoveryFile); ok {
		c.DiscoveryFile = v
	}
	if v, ok := get(EnvChainState); ok {
		c.ChainState = v
	}

	if v, ok := get(EnvMaxBodyBytes); ok && v != "" {
		n, err := cast.ToInt64E(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: %s must be a positive integer, got %q", EnvMaxBodyBytes, v)
		}
		c.MaxBodyBytes = n
	}
	if v, ok := get(EnvMaxBatch); ok && v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("config: %s must be a non-negative integer, got %q", EnvMaxBatch, v)
		}
		c.MaxBatch = n
	}
	if v, ok := get(EnvBatchConcurrency); ok && v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s must be an integer, got %q", EnvBatchConcurrency, v)
		}
		c.BatchConcurrency = n
	}

	if v, ok := get(EnvLogLevel); ok && v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", EnvLogLevel, err)
		}
		c.LogLevel = level
	}
	if v, ok := get(EnvLogFormat); ok && v != "" {
		switch strings.ToLower(v) {
		case LogFormatText, LogFormatJSON:
			c.LogFormat = strings.ToLower(v)
		default:
			return Config{}, fmt.Errorf("config: %s must be %q or %q, got %q", EnvLogFormat, LogFormatText, LogFormatJSON, v)
		}
	}

	for name, p := range map[string]string{EnvPath: c.Path, EnvDiscoveryPath: c.DiscoveryPath, EnvMetricsPath: c.MetricsPath} {
		if p != "" && !strings.HasPrefix(p, "/") {
			return Config{}, fmt.Errorf("config: %s must start with /, got %q", name, p)
		}
	}
	routes := []struct{ name, path string }{
		{"health check", HealthPath},
		{EnvPath, c.Path},
		{EnvDiscoveryPath, c.DiscoveryPath},
		{EnvMetricsPath, c.MetricsPath},
	}
	seen := make(map[string]string, len(routes))
	for _, r := range routes {
		if r.path == "" {
			continue
		}
		if other, ok := seen[r.path]; ok {
			return Config{}, fmt.Errorf("config: routes must be distinct: %s and %s both use %q", other, r.name, r.path)
		}
		seen[r.path] = r.name
	}
	return c, nil
}

// NewLogger returns a logger configured with the level and format of c.
func NewLogger(c Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
