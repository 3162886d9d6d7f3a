package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/config"
	"github.com/garyjia/travel-expense/internal/container"
	httpapi "github.com/garyjia/travel-expense/internal/interfaces/http"
	"github.com/garyjia/travel-expense/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "travel-expense",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting travel expense service",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("notifications", cfg.NotificationsEnabled()),
		zap.Bool("extraction", cfg.ExtractionEnabled()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := c.Services()
	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:          cfg.Server.Host,
			Port:          cfg.Server.Port,
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			MaxUploadSize: cfg.Server.MaxUploadSize,
		},
		httpapi.Services{
			Catalog:    services.Catalog,
			Expense:    services.Expense,
			Sheet:      services.Sheet,
			Approval:   services.Approval,
			Accounting: services.Accounting,
			Settlement: services.Settlement,
			Report:     services.Report,
		},
		httpapi.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		},
		container.NewServiceLogger(logger),
	)

	// Blocks until SIGINT/SIGTERM
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
