package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wall-navigation/wall_nav"
	"wall-navigation/wall_nav/mavlink"
	"wall-navigation/wall_nav/sim"
)

func main() {
	var configPath string
	var transport string
	var metricsAddr string
	var logLevel string
	var startPaused bool
	flag.StringVar(&configPath, "config", "", "Path to YAML config (defaults fly the simulator).")
	flag.StringVar(&transport, "transport", "", "Override transport (sim, udp, mavlink).")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /status on host:port.")
	flag.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error).")
	flag.BoolVar(&startPaused, "start-paused", false, "Hold the loop until POST /resume.")
	flag.Parse()

	cfg := wall_nav.DefaultConfig()
	if configPath != "" {
		loaded, err := wall_nav.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config %q: %v", configPath, err)
		}
		cfg = loaded
	}
	if transport != "" {
		cfg.Transport = strings.ToLower(transport)
	}
	if metricsAddr != "" {
		cfg.Monitor.Enabled = true
		cfg.Monitor.Addr = metricsAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if startPaused {
		cfg.StartPaused = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := wall_nav.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("wallnav exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("wallnav shut down")
}

func run(cfg wall_nav.AppConfig, logger *zap.Logger) error {
	link, err := openLink(cfg)
	if err != nil {
		return fmt.Errorf("open %s link: %w", cfg.Transport, err)
	}
	if c, ok := link.(io.Closer); ok {
		defer c.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sup := wall_nav.NewSupervisor(cfg, link, wall_nav.NewMetrics(reg), logger.With(zap.String("transport", cfg.Transport)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wall_nav.RunMonitor(gCtx, cfg.Monitor, wall_nav.NewMonitorHandler(reg, sup), logger)
	})
	g.Go(func() error {
		if err := sup.Start(gCtx); err != nil {
			return err
		}
		return sup.Wait()
	})
	return g.Wait()
}

func openLink(cfg wall_nav.AppConfig) (wall_nav.FlightLink, error) {
	switch cfg.Transport {
	case wall_nav.TransportSim:
		return sim.New(cfg.Sim), nil
	case wall_nav.TransportUDP:
		return wall_nav.DialUDPLink(cfg.UDP)
	case wall_nav.TransportMAVLink:
		return mavlink.Dial(cfg.MAVLink)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
