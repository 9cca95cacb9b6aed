// Package config loads runtime settings from an optional config file and
// ACROSS_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/across/internal/mission"
)

// Config holds process-wide settings.
type Config struct {
	Workers         int
	CacheTTL        time.Duration
	CacheMaxEntries int
	TLECacheDir     string
	TLECacheFiles   int
	Offline         bool
	MetricsAddr     string
	LogLevel        slog.Level
	Missions        *mission.Registry
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		Workers:         runtime.NumCPU(),
		CacheTTL:        24 * time.Hour,
		CacheMaxEntries: 64,
		TLECacheDir:     "tle_cache",
		TLECacheFiles:   10,
		MetricsAddr:     ":9090",
		LogLevel:        slog.LevelInfo,
	}
}

// Load reads path (if non-empty) and the environment. Malformed scalar
// values are logged and replaced with defaults; malformed mission entries
// are errors.
func Load(path string, logger *slog.Logger) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ACROSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		logger.Info("config file loaded", "path", v.ConfigFileUsed())
	}
	return fromViper(v, logger)
}

func fromViper(v *viper.Viper, logger *slog.Logger) (Config, error) {
	cfg := Defaults()

	cfg.Workers = positiveInt(v, logger, "workers", cfg.Workers)
	cfg.CacheTTL = positiveDuration(v, logger, "cache.ttl", cfg.CacheTTL)
	cfg.CacheMaxEntries = positiveInt(v, logger, "cache.max_entries", cfg.CacheMaxEntries)
	cfg.TLECacheFiles = positiveInt(v, logger, "tle.cache_files", cfg.TLECacheFiles)

	if s := v.GetString("tle.cache_dir"); s != "" {
		cfg.TLECacheDir = s
	}
	if s := v.GetString("metrics.addr"); s != "" {
		cfg.MetricsAddr = s
	}
	if s := v.GetString("tle.offline"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			logger.Warn("invalid tle.offline value, using default", "value", s, "default", false)
		} else {
			cfg.Offline = b
		}
	}
	if s := v.GetString("log.level"); s != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(s)); err != nil {
			logger.Warn("invalid log.level value, using default", "value", s, "default", cfg.LogLevel.String())
		} else {
			cfg.LogLevel = lvl
		}
	}

	missions, err := loadMissions(v)
	if err != nil {
		return Config{}, err
	}
	reg, err := mission.NewRegistry(missions...)
	if err != nil {
		return Config{}, err
	}
	cfg.Missions = reg

	logger.Info("config",
		"workers", cfg.Workers,
		"cache_ttl_seconds", cfg.CacheTTL.Seconds(),
		"cache_max_entries", cfg.CacheMaxEntries,
		"tle_cache_dir", cfg.TLECacheDir,
		"offline", cfg.Offline,
		"missions", strings.Join(reg.IDs(), ","),
	)
	return cfg, nil
}

// loadMissions merges the missions.<id> tables over the built-ins. An id
// without a built-in defines a new mission.
func loadMissions(v *viper.Viper) ([]mission.Config, error) {
	byID := make(map[string]mission.Config)
	for _, m := range mission.Builtin() {
		byID[m.ID] = m
	}

	overrides := v.GetStringMap("missions")
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		key := "missions." + id
		m, ok := byID[id]
		if !ok {
			m = mission.Config{ID: id}
		}
		// Lists replace rather than merge.
		if v.IsSet(key + ".saa") {
			m.SAA = nil
		}
		if v.IsSet(key + ".instruments") {
			m.Instruments = nil
		}
		if err := v.UnmarshalKey(key, &m); err != nil {
			return nil, fmt.Errorf("mission %s: %w", id, err)
		}
		m.ID = strings.ToLower(id)
		if v.IsSet(key + ".tle.min_epoch") {
			t, err := time.Parse(time.RFC3339, v.GetString(key+".tle.min_epoch"))
			if err != nil {
				return nil, fmt.Errorf("mission %s: tle.min_epoch: %w", id, err)
			}
			m.TLE.MinEpoch = t
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		byID[m.ID] = m
	}

	out := make([]mission.Config, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func positiveInt(v *viper.Viper, logger *slog.Logger, key string, def int) int {
	s := v.GetString(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", s, "default", def)
		return def
	}
	return n
}

// positiveDuration accepts Go durations ("36h") or whole seconds.
func positiveDuration(v *viper.Viper, logger *slog.Logger, key string, def time.Duration) time.Duration {
	s := v.GetString(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		n, aerr := strconv.Atoi(s)
		if aerr != nil {
			d = 0
		} else {
			d = time.Duration(n) * time.Second
		}
	}
	if d <= 0 {
		logger.Warn("invalid "+key+" value, using default", "value", s, "default", def.String())
		return def
	}
	return d
}
