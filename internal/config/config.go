package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config
// file.
type Config struct {
	Pools            []string
	PgDSN            string
	SubgraphURL      string
	SnapshotInterval time.Duration
	BackfillHours    int
	RetentionDays    int
	FetchTimeout     time.Duration
	ListenAddr       string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into
// Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SAMPLER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("snapshot-interval", time.Hour)
	v.SetDefault("backfill-hours", 48)
	v.SetDefault("retention-days", 90)
	v.SetDefault("fetch-timeout", 10*time.Second)
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Pools:            getStringSlice(v, "pool"),
		PgDSN:            v.GetString("pg-dsn"),
		SubgraphURL:      v.GetString("subgraph-url"),
		SnapshotInterval: v.GetDuration("snapshot-interval"),
		BackfillHours:    v.GetInt("backfill-hours"),
		RetentionDays:    v.GetInt("retention-days"),
		FetchTimeout:     v.GetDuration("fetch-timeout"),
		ListenAddr:       v.GetString("listen"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the values every command depends on.
func (c Config) Validate() error {
	if len(c.Pools) == 0 {
		return fmt.Errorf("at least one tracked pool is required")
	}
	if c.SnapshotInterval < time.Minute {
		return fmt.Errorf("snapshot interval must be at least one minute")
	}
	if c.BackfillHours <= 0 {
		return fmt.Errorf("backfill hours must be positive")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
