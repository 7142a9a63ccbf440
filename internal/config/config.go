package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"autopoolScope/internal/chain"
)

const envPrefix = "AUTOPOOL"

// Common holds settings shared by every command.
type Common struct {
	Chain          chain.Profile
	RPCURL         string
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration
	CacheDir       string
	Out            string
	PGDSN          string
	LogLevel       string
	MetricsAddr    string
}

// newViper merges config file, environment variables, and flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain", "eth")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("out", "./data")
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Provider keys are commonly kept in ALCHEMY_KEY without our prefix.
	if err := v.BindEnv("alchemy-key", envPrefix+"_ALCHEMY_KEY", "ALCHEMY_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper) (Common, error) {
	profile, err := chain.Lookup(v.GetString("chain"))
	if err != nil {
		return Common{}, err
	}

	rpcURL := v.GetString("rpc")
	if rpcURL == "" {
		rpcURL, err = profile.AlchemyURL(v.GetString("alchemy-key"))
		if err != nil {
			return Common{}, fmt.Errorf("no rpc url for %s: %w", profile.Name, err)
		}
	}

	return Common{
		Chain:          profile,
		RPCURL:         rpcURL,
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		RequestTimeout: v.GetDuration("request-timeout"),
		CacheDir:       v.GetString("cache-dir"),
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		LogLevel:       v.GetString("log-level"),
		MetricsAddr:    v.GetString("metrics-addr"),
	}, nil
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

// getIntSlice parses a list such as "500,200,50" into ints.
func getIntSlice(v *viper.Viper, key string) ([]int, error) {
	items := getStringSlice(v, key)
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid positive integer %q", key, item)
		}
		out = append(out, n)
	}
	return out, nil
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
