// Command across computes spacecraft visibility windows, SAA passages,
// instrument field-of-view coverage and trigger screening for the
// configured missions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/star/across/internal/cache"
	"github.com/star/across/internal/config"
	"github.com/star/across/internal/ephem"
	"github.com/star/across/internal/errs"
	"github.com/star/across/internal/propagation"
	"github.com/star/across/internal/tle"
	"github.com/star/across/internal/visibility"
)

const usage = `usage: across [-config file] <command> [flags]

commands:
  ephem     print a mission ephemeris
  windows   visibility windows for a target
  saa       SAA passages
  fov       probability of a target inside an instrument field of view
  trigger   screen a transient trigger
  serve     keep ephemerides warm and expose /metrics, /healthz, /readyz
`

// app holds the wired components shared by every command.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *tle.Store
	cache  *cache.EphemerisCache
	svc    *visibility.Service
}

func main() {
	configPath := flag.String("config", os.Getenv("ACROSS_CONFIG"), "config file (YAML, TOML or JSON)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	level.Set(slog.LevelWarn)

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	a := newApp(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var run func(context.Context, []string) error
	switch cmd {
	case "ephem":
		run = a.runEphem
	case "windows":
		run = a.runWindows
	case "saa":
		run = a.runSAA
	case "fov":
		run = a.runFOV
	case "trigger":
		run = a.runTrigger
	case "serve":
		run = a.runServe
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err := run(ctx, args); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, errs.ErrInput):
			fmt.Fprintf(os.Stderr, "across %s: %v\n", cmd, err)
			os.Exit(2)
		default:
			logger.Error("command failed", "command", cmd, "error", err)
			os.Exit(1)
		}
	}
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	store := tle.NewStore()
	tleCache := tle.NewCache(cfg.TLECacheDir, cfg.TLECacheFiles)
	if n, err := tle.LoadCache(tleCache, store, logger); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	} else {
		logger.Debug("TLE cache loaded", "entries", n)
	}

	opts := []tle.ProviderOption{tle.WithCache(tleCache)}
	if cfg.Offline {
		opts = append(opts, tle.Offline())
	}
	provider := tle.NewChainProvider(store, logger, opts...)

	pool := propagation.NewWorkerPool(propagation.PoolConfig{Workers: cfg.Workers}, logger)
	ephCache := cache.NewEphemerisCache(cache.Config{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries}, logger)
	svc := visibility.NewService(cfg.Missions, provider, ephem.NewEngine(pool, logger), ephCache, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		cache:  ephCache,
		svc:    svc,
	}
}
