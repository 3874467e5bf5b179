// Package config loads process settings from the environment and the SLA
// policy from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/dispatch/internal/core/escalation"
	"github.com/example/dispatch/internal/core/sla"
	"github.com/example/dispatch/internal/db"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults
const (
	DefaultHTTPAddr      = ":8080"
	DefaultSweepInterval = time.Minute
	DefaultSweepWorkers  = 4
)

// Config holds the process settings.
type Config struct {
	DBDriver      string        // DISPATCH_DB_DRIVER: sqlite or postgres
	DBDSN         string        // DISPATCH_DB_DSN: file path for sqlite, URL for postgres
	HTTPAddr      string        // DISPATCH_HTTP_ADDR
	RedisAddr     string        // DISPATCH_REDIS_ADDR: events go to the log when empty
	PolicyFile    string        // DISPATCH_POLICY_FILE: optional YAML policy
	SweepInterval time.Duration // DISPATCH_SWEEP_INTERVAL
	SweepWorkers  int           // DISPATCH_SWEEP_WORKERS
}

// Load reads .env files (missing files are ignored) and then DISPATCH_*
// variables. Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		DBDriver:   strings.ToLower(getenv("DISPATCH_DB_DRIVER", DriverSQLite)),
		DBDSN:      os.Getenv("DISPATCH_DB_DSN"),
		HTTPAddr:   getenv("DISPATCH_HTTP_ADDR", DefaultHTTPAddr),
		RedisAddr:  os.Getenv("DISPATCH_REDIS_ADDR"),
		PolicyFile: os.Getenv("DISPATCH_POLICY_FILE"),
	}

	var err error
	if cfg.SweepInterval, err = parseDuration("DISPATCH_SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}
	if cfg.SweepWorkers, err = parseInt("DISPATCH_SWEEP_WORKERS", DefaultSweepWorkers); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBDSN == "" {
			if cfg.DBDSN, err = db.DefaultPath(); err != nil {
				return nil, err
			}
		}
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DISPATCH_DB_DSN is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown DISPATCH_DB_DRIVER %q (want sqlite or postgres)", cfg.DBDriver)
	}
	return cfg, nil
}

// LoadPolicy reads the configured policy file, or returns the built-in policy
// when none is set.
func (c *Config) LoadPolicy() (*sla.Policy, escalation.Rules, error) {
	if c.PolicyFile == "" {
		policy, err := sla.NewPolicy(nil, 0)
		return policy, escalation.DefaultRules(), err
	}
	return LoadPolicyFile(c.PolicyFile)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
