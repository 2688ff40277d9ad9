package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"hwr-classifier/internal/cfg"
	"hwr-classifier/internal/common"
	"hwr-classifier/internal/pipeline"
	"hwr-classifier/internal/report"

	"github.com/rs/zerolog"
)

func main() {
	var (
		configPath = flag.String("config", common.DefaultConfigPath, "Path to the recognizer configuration (.properties or .yaml)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	settings, err := cfg.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}

	levelName := settings.LogLevel()
	if *logLevel != "" {
		levelName = *logLevel
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		logger.Warn().Str("level", levelName).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	logger.Info().
		Str("config", *configPath).
		Str("classifier", settings.Classifier()).
		Str("train", settings.TrainFile()).
		Str("test", settings.TestFile()).
		Str("output", settings.OutputDir()).
		Msg("Starting recognizer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := pipeline.New(settings, logger).Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Run aborted")
		stop()
		os.Exit(1)
	}

	report.PrintSummary(os.Stdout, outcome.Summary())
}
