package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/endpoint-gateway/config"
	"github.com/angeloszaimis/endpoint-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/endpoint-gateway/internal/endpoint"
	"github.com/angeloszaimis/endpoint-gateway/internal/forwarder"
	"github.com/angeloszaimis/endpoint-gateway/internal/handler"
	"github.com/angeloszaimis/endpoint-gateway/internal/healthcheck"
	"github.com/angeloszaimis/endpoint-gateway/internal/httpserver"
	"github.com/angeloszaimis/endpoint-gateway/internal/metrics"
	"github.com/angeloszaimis/endpoint-gateway/internal/state"
	"github.com/angeloszaimis/endpoint-gateway/internal/watcher"
	"github.com/angeloszaimis/endpoint-gateway/pkg/logger"
)

const (
	appName        = "endpoint-gateway"
	appDescription = "HTTP gateway forwarding named endpoints to their upstreams"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the gateway config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log, logCloser := logger.New(logger.Options{
		Level:       cfg.Logging.Level,
		AddSource:   cfg.Server.Environment != config.EnvProd,
		Environment: cfg.Server.Environment,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = run(ctx, cfg, log)
	cancel()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		log.Error("Gateway stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

// app is the wired gateway, minus the listening server.
type app struct {
	state    *state.State
	handler  *handler.Handler
	breakers *circuitbreaker.Registry
	prober   *healthcheck.Prober
	watcher  *watcher.Watcher
}

// buildApp wires every component and performs the initial endpoints load.
// A gateway whose first load fails does not start.
func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	source, err := endpoint.NewSource(cfg.Endpoints.Source, nil)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	store := endpoint.NewStore(log)
	st := state.New(store, reg, source, log)

	a := &app{state: st}

	if cfg.CircuitBreaker.Enabled {
		a.breakers = circuitbreaker.NewRegistry(
			cfg.CircuitBreaker.FailureThreshold,
			cfg.CircuitBreaker.ResetTimeout,
			func(name string, to gobreaker.State) {
				reg.SetBreakerState(name, breakerStateValue(to))
				log.Warn("Circuit breaker state changed",
					slog.String("endpoint", name),
					slog.String("state", to.String()))
			},
		)
		store.Subscribe(func(snap *endpoint.Snapshot) {
			a.breakers.Prune(snap.Names())
		})
	}

	if _, err := st.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial endpoints load: %w", err)
	}

	fwd := forwarder.New(store, forwarder.Options{
		DefaultTimeout: cfg.Forwarding.DefaultTimeout,
		DialTimeout:    cfg.Forwarding.DialTimeout,
		FlushInterval:  cfg.Forwarding.FlushInterval,
		MaxIdleConns:   cfg.Forwarding.MaxIdleConns,
		Breakers:       a.breakers,
		Recorder:       reg,
		Logger:         log,
	})

	a.handler = handler.New(log, st, fwd, handler.Options{
		Info: handler.BuildInfo{
			Version:     version,
			Name:        appName,
			Description: appDescription,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	if cfg.Probe.Enabled {
		a.prober = healthcheck.New(store, reg, cfg.Probe.Interval, cfg.Probe.Timeout, log)
	}

	if fileSource, ok := source.(endpoint.FileSource); ok && cfg.Endpoints.Watch {
		a.watcher, err = watcher.New(fileSource.Path, cfg.Endpoints.WatchDebounce, func(ctx context.Context) error {
			_, err := st.Reload(ctx)
			return err
		}, log)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// run serves until ctx is cancelled or a component fails, then shuts the
// server down gracefully.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(a.handler), httpserver.Options{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Gateway listening",
			slog.String("addr", cfg.Server.Address),
			slog.String("version", version),
			slog.Int("endpoints", a.state.Snapshot().Len()))
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		return srv.Shutdown(context.Background())
	})

	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(gctx)
		})
	}

	if a.prober != nil {
		g.Go(func() error {
			return a.prober.Run(gctx)
		})
	}

	return g.Wait()
}

func breakerStateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}
