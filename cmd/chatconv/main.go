package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/chatconv/internal/analysis"
	"github.com/rewired-gh/chatconv/internal/config"
	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/metrics"
	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/reader"
	"github.com/rewired-gh/chatconv/internal/report"
	"github.com/rewired-gh/chatconv/internal/storage"
	"github.com/rewired-gh/chatconv/internal/telegram"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	chatBuca   = flag.String("chat-buca", "", "Chat export for Bucaramanga (xlsx or csv)")
	chatBog    = flag.String("chat-bog", "", "Chat export for Bogotá (xlsx or csv)")
	rosterBuca = flag.String("roster-buca", "", "Registration roster for Bucaramanga (xlsx or csv)")
	rosterBog  = flag.String("roster-bog", "", "Registration roster for Bogotá (xlsx or csv)")
	outPath    = flag.String("out", "", "Write the result to this file instead of stdout")
	outFormat  = flag.String("format", "", "Output format: json or yaml")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg)
	if werr := metrics.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
		logger.Warn("Failed to write metrics textfile: %v", werr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not process the uploaded files: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Input.ChatBucaramanga, *chatBuca)
	override(&cfg.Input.ChatBogota, *chatBog)
	override(&cfg.Input.RosterBucaramanga, *rosterBuca)
	override(&cfg.Input.RosterBogota, *rosterBog)
	override(&cfg.Output.Path, *outPath)
	override(&cfg.Output.Format, *outFormat)
}

func run(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	in, err := reader.LoadInputs(ctx, reader.Paths{
		ChatBucaramanga:   cfg.Input.ChatBucaramanga,
		ChatBogota:        cfg.Input.ChatBogota,
		RosterBucaramanga: cfg.Input.RosterBucaramanga,
		RosterBogota:      cfg.Input.RosterBogota,
	}, reader.Options{
		ChatSheet:   cfg.Input.ChatSheet,
		RosterSheet: cfg.Input.RosterSheet,
		Progress:    cfg.Input.Progress,
	})
	if err != nil {
		metrics.RunFailures.Inc()
		return err
	}

	engine := analysis.New(analysis.Options{
		Location:          loc,
		KeepInvalidPhones: cfg.Analysis.KeepInvalidPhones,
		NoStatusLabel:     cfg.Analysis.NoStatusLabel,
	})
	result, err := engine.Analyze(in)
	if err != nil {
		return err
	}

	if err := writeResult(cfg, result); err != nil {
		return err
	}
	if cfg.Output.Summary {
		if err := report.WriteSummary(os.Stderr, result); err != nil {
			logger.Warn("Failed to print summary: %v", err)
		}
	}

	runID := uuid.NewString()
	if cfg.Storage.Enabled {
		if id, err := storeRun(ctx, cfg, result); err != nil {
			logger.Error("Failed to store run: %v", err)
		} else {
			runID = id
		}
	}

	if cfg.Telegram.Enabled {
		notify(ctx, cfg, runID, result)
	}

	logger.Info("Run %s completed in %v", runID, time.Since(startTime))
	return nil
}

func writeResult(cfg *config.Config, result models.AnalysisResult) error {
	if cfg.Output.Path == "" {
		return report.Encode(os.Stdout, result, cfg.Output.Format)
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, result, cfg.Output.Format); err != nil {
		return err
	}
	if err := storage.WriteFile(cfg.Output.Path, buf.Bytes()); err != nil {
		return err
	}
	logger.Info("Result written to %s", cfg.Output.Path)
	return nil
}

func storeRun(ctx context.Context, cfg *config.Config, result models.AnalysisResult) (string, error) {
	store, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	run, err := store.Save(ctx, result)
	if err != nil {
		return "", err
	}
	logger.Info("Stored run %s", run.ID)

	if removed, err := store.Rotate(ctx, cfg.Storage.MaxRuns); err != nil {
		logger.Warn("Failed to rotate runs: %v", err)
	} else if removed > 0 {
		logger.Debug("Removed %d old runs", removed)
	}
	return run.ID, nil
}

func notify(ctx context.Context, cfg *config.Config, runID string, result models.AnalysisResult) {
	client, err := telegram.NewClient(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.MaxRetries,
		cfg.Telegram.RetryDelayBase,
		cfg.Telegram.RatePerSecond,
	)
	if err != nil {
		logger.Error("Failed to initialize Telegram client: %v", err)
		return
	}
	if err := client.SendSummary(ctx, runID, result); err != nil {
		logger.Error("Failed to send Telegram notification: %v", err)
	}
}
