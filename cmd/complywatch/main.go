package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/complywatch/complywatch/internal/alerting"
	"github.com/complywatch/complywatch/internal/config"
	"github.com/complywatch/complywatch/internal/datastore"
	"github.com/complywatch/complywatch/internal/differ"
	"github.com/complywatch/complywatch/internal/logger"
	"github.com/complywatch/complywatch/internal/models"
	"github.com/complywatch/complywatch/internal/monitor"
	"github.com/complywatch/complywatch/internal/notifier"
	"github.com/complywatch/complywatch/internal/registry"
	"github.com/complywatch/complywatch/internal/retention"
	"github.com/complywatch/complywatch/internal/rslimiter"
	"github.com/complywatch/complywatch/internal/scanner"
	"github.com/complywatch/complywatch/internal/scheduler"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	fmt.Println("ComplyWatch monitoring engine starting...")

	globalConfigFile := flag.String("globalconfig", "", "Path to the global YAML/JSON configuration file. If not set, built-in defaults are used.")
	globalConfigFileAlias := flag.String("gc", "", "Alias for --globalconfig")

	targetsFile := flag.String("targets", "", "Path to a YAML file of targets to register on startup.")
	targetsFileAlias := flag.String("t", "", "Alias for --targets")
	flag.Parse()

	if *globalConfigFile == "" && *globalConfigFileAlias != "" {
		*globalConfigFile = *globalConfigFileAlias
	}
	if *targetsFile == "" && *targetsFileAlias != "" {
		*targetsFile = *targetsFileAlias
	}

	gCfg, err := config.LoadGlobalConfig(*globalConfigFile)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not load global config using path '%s': %v", *globalConfigFile, err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not initialize logger: %v", err)
	}

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Fatal().Err(err).Msg("Configuration validation failed")
	}
	zLogger.Info().Msg("Configuration loaded and validated")

	targetStore, snapshotStore, alertStore, closeStores, err := buildStores(&gCfg.StorageConfig, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to initialize storage backend")
	}
	defer closeStores()

	provider, err := scanner.NewHTTPProvider(&gCfg.ScanConfig, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to initialize scan provider")
	}

	orch := scanner.NewScanOrchestrator(&gCfg.ScanConfig, provider, targetStore, snapshotStore, zLogger)
	detector := differ.NewChangeDetector(gCfg.DetectorConfig, zLogger)
	engine := alerting.NewAlertEngine(gCfg.DetectorConfig, alertStore, zLogger)

	dispatcher, err := notifier.NewAlertDispatcher(gCfg.NotificationConfig, alertStore, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Failed to initialize alert dispatcher")
	}

	targetRegistry := registry.NewTargetRegistry(targetStore, zLogger)
	service := monitor.NewMonitoringService(targetRegistry, snapshotStore, alertStore, orch, detector, engine, dispatcher, zLogger)

	limiter := rslimiter.NewResourceLimiter(gCfg.ResourceLimiterConfig, zLogger)
	limiter.Start()
	defer limiter.Stop()
	service.SetResourceReporter(limiter)

	sched := scheduler.NewScheduler(gCfg.SchedulerConfig, targetStore, service, limiter, zLogger)
	service.SetSchedulerState(sched)

	archiver := datastore.NewSnapshotArchiver(&gCfg.StorageConfig, zLogger)
	retentionJob := retention.NewRetentionJob(gCfg.RetentionConfig, snapshotStore, alertStore, archiver, zLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *targetsFile != "" {
		if err := registerSeedTargets(ctx, *targetsFile, service, zLogger); err != nil {
			zLogger.Fatal().Err(err).Str("file", *targetsFile).Msg("Failed to register seed targets")
		}
	}

	sched.Start(ctx)
	retentionJob.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zLogger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()
	sched.Stop()
	retentionJob.Stop()
	zLogger.Info().Msg("ComplyWatch stopped")
}

// buildStores selects the configured storage backend and returns the three
// repositories plus a close function.
func buildStores(cfg *config.StorageConfig, zLogger zerolog.Logger) (
	datastore.TargetRepository,
	datastore.SnapshotRepository,
	datastore.AlertRepository,
	func(),
	error,
) {
	if cfg.Backend == "sqlite" {
		db, err := datastore.NewDB(cfg.SQLiteDBPath, zLogger)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				zLogger.Error().Err(err).Msg("Failed to close database")
			}
		}
		return datastore.NewSQLiteTargetStore(db, zLogger),
			datastore.NewSQLiteSnapshotStore(db, zLogger),
			datastore.NewSQLiteAlertStore(db, zLogger),
			closeFn, nil
	}

	zLogger.Warn().Msg("Using in-memory storage, history is lost on restart")
	return datastore.NewMemoryTargetStore(),
		datastore.NewMemorySnapshotStore(),
		datastore.NewMemoryAlertStore(),
		func() {}, nil
}

// seedTarget is one entry of the startup targets file.
type seedTarget struct {
	URL                 string   `yaml:"url"`
	OwnerID             string   `yaml:"owner_id"`
	Cadence             string   `yaml:"cadence"`
	ComplianceThreshold float64  `yaml:"compliance_threshold"`
	NotifyEnabled       bool     `yaml:"notify_enabled"`
	NotifyChannels      []string `yaml:"notify_channels"`
}

// registerSeedTargets registers the targets listed in a YAML file. Invalid
// entries are logged and skipped.
func registerSeedTargets(ctx context.Context, path string, service *monitor.MonitoringService, zLogger zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read targets file: %w", err)
	}

	var seeds []seedTarget
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse targets file: %w", err)
	}

	registered := 0
	for _, seed := range seeds {
		_, err := service.RegisterTarget(ctx, registry.RegisterRequest{
			URL:                 seed.URL,
			OwnerID:             seed.OwnerID,
			Cadence:             models.Cadence(seed.Cadence),
			ComplianceThreshold: seed.ComplianceThreshold,
			NotifyEnabled:       seed.NotifyEnabled,
			NotifyChannels:      seed.NotifyChannels,
		})
		if err != nil {
			zLogger.Error().Err(err).Str("url", seed.URL).Msg("Skipping invalid seed target")
			continue
		}
		registered++
	}

	zLogger.Info().Int("registered", registered).Int("listed", len(seeds)).Msg("Seed targets registered")
	return nil
}
