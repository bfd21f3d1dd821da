package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type Config struct {
	ListenAddr string `koanf:"listen_addr"`
	DSN        string `koanf:"dsn"`
	RedisURL   string `koanf:"redis_url"`

	// SessionTTL bounds how long an issued practice token stays
	// redeemable in the session store.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// StatsCacheTTL controls the Redis cache on /api/records/stats.
	StatsCacheTTL time.Duration `koanf:"stats_cache_ttl"`

	// SeedRecords inserts a handful of demo rows when the table is empty.
	SeedRecords bool `koanf:"seed_records"`
}

var defaults = map[string]interface{}{
	"listen_addr":     ":8080",
	"dsn":             "typing:typingpassword@tcp(localhost:3306)/typingclass?parseTime=true",
	"redis_url":       "redis://localhost:6379",
	"session_ttl":     "30m",
	"stats_cache_ttl": "60s",
	"seed_records":    false,
}

// Flags returns the flag set Load understands. The caller parses it so
// usage errors surface before any connection is attempted.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("typingclass", pflag.ExitOnError)
	f.String("config", "", "path to optional YAML config file")
	f.String("listen_addr", "", "HTTP listen address")
	f.String("dsn", "", "MySQL DSN")
	f.String("redis_url", "", "Redis URL")
	f.Bool("seed_records", false, "seed demo records into an empty table")
	return f
}

// Load layers configuration: defaults, then the optional YAML file, then
// TYPING_* environment variables, then parsed command-line flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("TYPING_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey maps TYPING_LISTEN_ADDR to listen_addr.
func envKey(s string) string {
	s = s[len("TYPING_"):]
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
