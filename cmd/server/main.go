package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/imrenagi/docstore/config"
	"github.com/imrenagi/docstore/server"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("failed to load env file")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize the logger
	_ = server.InitializeLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := server.New(server.Opts{Config: cfg})
	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run the server")
	}
}
