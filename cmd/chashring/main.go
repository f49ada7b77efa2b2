package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/chashring/internal/algorithm"
	"github.com/devrev/chashring/internal/config"
	"github.com/devrev/chashring/internal/health"
	"github.com/devrev/chashring/internal/metrics"
	"github.com/devrev/chashring/internal/model"
	"github.com/devrev/chashring/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("hash_algorithm", cfg.HashRing.HashAlgorithm),
		zap.Int("default_replicas", cfg.HashRing.DefaultReplicas),
		zap.Int("machines", cfg.HashRing.Machines),
		zap.String("topology_file", cfg.Topology.File),
		zap.Int("key_count", cfg.Analyzer.KeyCount))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Ring check failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	hashFunc, err := algorithm.HashFuncByName(cfg.HashRing.HashAlgorithm)
	if err != nil {
		return err
	}

	ring := algorithm.NewRing(logger, algorithm.WithHashFunc(hashFunc))

	var recorder service.MetricsRecorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewMetrics(nil)
		hc := health.NewHealthChecker(ring, logger)
		go func() {
			if err := health.StartServer(hc, cfg.Metrics.Port, cfg.Metrics.Path, logger); err != nil {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	ringService := service.NewRingService(ring, recorder, logger)

	rng := rand.New(rand.NewSource(cfg.HashRing.Seed))
	taken := make(map[string]bool)

	var nodes []*model.PhysicalNode
	if cfg.Topology.File != "" {
		topo, err := config.LoadTopology(cfg.Topology.File, cfg.HashRing.DefaultReplicas)
		if err != nil {
			return err
		}
		nodes = topologyNodes(topo, taken)
	} else {
		nodes = generateNodes(rng, cfg.HashRing.Machines, cfg.HashRing.DefaultReplicas, taken)
	}

	for _, n := range nodes {
		if _, err := ringService.AddNode(ctx, n); err != nil {
			logger.Warn("Skipping node", zap.String("address", n.Address), zap.Error(err))
		}
	}

	logger.Info("Ring built",
		zap.String("ring_id", ring.ID()),
		zap.Int("nodes", ring.NodeCount()),
		zap.Int("virtual_nodes", ring.TotalVirtualNodes()))

	logger.Info("Injecting keys", zap.Int("key_count", cfg.Analyzer.KeyCount))
	stream := algorithm.NewKeyStream(cfg.Analyzer.KeySeed)
	for i := 0; i < cfg.Analyzer.KeyCount; i++ {
		if i%65536 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := ringService.Lookup(ctx, stream.Next()); err != nil {
			return err
		}
	}

	if err := writeSummary(os.Stdout, ringService.Summary()); err != nil {
		return err
	}

	disruption := service.NewDisruptionService(&service.DisruptionConfig{
		KeyCount:  cfg.Analyzer.KeyCount,
		KeySeed:   cfg.Analyzer.KeySeed,
		Workers:   cfg.Analyzer.Workers,
		BatchSize: cfg.Analyzer.BatchSize,
	}, recorder, logger)

	registered := ring.Nodes()
	if len(registered) > 1 {
		report, err := disruption.Measure(ctx, ring, model.RemoveNodeMutation(registered[1].Address))
		if err != nil {
			return err
		}
		writeReport(os.Stdout, report)
	}

	added := randomNode(rng, cfg.HashRing.DefaultReplicas, taken)
	report, err := disruption.Measure(ctx, ring, model.AddNodeMutation(added))
	if err != nil {
		return err
	}
	writeReport(os.Stdout, report)

	return nil
}

// initLogger builds the zap logger from logging configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
