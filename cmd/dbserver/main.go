// Command dbserver runs the REST database gateway: a JWT-protected HTTP
// front for a PostgreSQL instance, for harness deployments where test steps
// cannot reach the database directly.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillsenselab/harnesskit/config"
	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/database"
	"github.com/skillsenselab/harnesskit/dbserver"
	"github.com/skillsenselab/harnesskit/logger"
	"github.com/skillsenselab/harnesskit/version"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	var cfg struct {
		Logging logger.Config   `mapstructure:"logging"`
		Server  dbserver.Config `mapstructure:"server"`
	}
	opts := []config.LoaderOption{}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if err := config.Load(&cfg, opts...); err != nil {
		logger.Fatal("failed to load configuration", logger.Fields(logger.FieldError, err.Error()))
	}

	logger.Init(cfg.Logging)
	log := logger.WithComponent("dbserver.main")
	log.Info("starting database gateway", logger.Fields("version", version.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := database.NewProvider(map[string]connection.Settings{
		"gateway": {
			database.SettingHost:     cfg.Server.Database.Host,
			database.SettingPort:     cfg.Server.Database.Port,
			database.SettingName:     cfg.Server.Database.Name,
			database.SettingUser:     cfg.Server.Database.User,
			database.SettingPassword: cfg.Server.Database.Password,
			database.SettingSSLMode:  cfg.Server.Database.SSLMode,
		},
	})

	conn, err := provider.CreateConnection(ctx, "gateway", nil)
	if err != nil {
		log.Fatal("database connection failed", logger.Fields(logger.FieldError, err.Error()))
	}
	store := conn.(*database.Conn)
	defer func() { _ = store.Close(context.Background()) }()

	srv, err := dbserver.New(cfg.Server, store, nil)
	if err != nil {
		log.Fatal("invalid server configuration", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := srv.Start(ctx); err != nil {
		log.Fatal("server start failed", logger.Fields(logger.FieldError, err.Error()))
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx := context.Background()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("server stop failed", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}
