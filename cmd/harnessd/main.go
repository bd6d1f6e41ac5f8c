// Command harnessd runs the connection harness as a daemon: it loads the
// harness configuration, brings up every enabled connection, and keeps them
// alive until a termination signal arrives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillsenselab/harnesskit/config"
	"github.com/skillsenselab/harnesskit/harness"
	"github.com/skillsenselab/harnesskit/logger"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	envFile := flag.String("env", "", "path to .env file")
	checkHealth := flag.Bool("health", false, "connect, print health as JSON, and exit")
	flag.Parse()

	opts := []config.LoaderOption{}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	cfg, err := config.LoadHarness(opts...)
	if err != nil {
		logger.Fatal("failed to load configuration", logger.Fields(logger.FieldError, err.Error()))
	}

	h, err := harness.New(cfg)
	if err != nil {
		logger.Fatal("failed to build harness", logger.Fields(logger.FieldError, err.Error()))
	}
	log := logger.WithComponent("harnessd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := h.Start(ctx); err != nil {
		log.Fatal("harness start failed", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := h.ConnectAll(ctx); err != nil {
		log.Error("some connections failed", logger.ErrorFields("connect", err))
	}

	if *checkHealth {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(h.Health(ctx))
		if err := h.Stop(context.Background()); err != nil {
			os.Exit(1)
		}
		return
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	if err := h.Stop(context.Background()); err != nil {
		log.Error("harness stop failed", logger.ErrorFields("stop", err))
		os.Exit(1)
	}
}
