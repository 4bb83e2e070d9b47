package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/krivonosoff161/futures-exit-bot/internal/logger"
	"github.com/krivonosoff161/futures-exit-bot/pkg/config"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., exit_bot.json)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
	)
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Please specify a config file with -config flag")
		os.Exit(1)
	}

	// Credentials come from the environment, optionally via .env
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", *envFile, err)
		}
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(logger.Config{Level: cfg.Logging.Level, Console: cfg.Logging.Console})

	bot, err := NewExitBot(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble bot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start bot")
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	stop()
	bot.Stop()
}
