package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/catalog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/config"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/http"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/logger"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/secure"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/service"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/status"
)

func main() {
	envErr := godotenv.Load()
	log := logger.New(os.Getenv("ENV"))
	if envErr != nil {
		log.Warn().Msg("No .env file found, using environment")
	}

	log.Info().Msg("Starting Minecraft Portal...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := config.ResolveSecrets(ctx, cfg); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to resolve secrets")
	}
	cancel()

	// Initialize clients
	panelClient := client.NewPanelClient(cfg.Panel.APIURL, cfg.InternalSecret, cfg.Panel.Timeout, log)
	billingClient := client.NewBillingClient(cfg.Panel.APIURL, cfg.InternalSecret, cfg.Panel.Timeout, log)
	mcStatusClient := client.NewMCStatusClient(cfg.Status.MCStatusURL, cfg.Status.MCStatusTimeout)
	pinger := client.NewPinger(cfg.Status.PingTimeout)

	decrypter, err := secure.NewPasswordDecrypter(cfg.Encryption.PasswordKey, cfg.Encryption.PasswordCipher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize password decrypter")
	}
	if decrypter.Mode() == secure.ModeECB {
		log.Warn().Msg("SFTP passwords use legacy AES-ECB")
	}

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

	aggregator := status.NewAggregator(pinger, mcStatusClient, panelClient, logger.Component(log, "status"))

	// Initialize services
	billingService := service.NewBillingService(billingClient, log)
	dashboardService := service.NewDashboardService(panelClient, billingClient, aggregator, cat, billingService, log)

	handler := http.NewHandler(http.Services{
		Dashboard: dashboardService,
		Billing:   billingService,
		Files:     service.NewFileService(panelClient),
		Backups:   service.NewBackupService(panelClient, log),
		Settings:  service.NewSettingsService(panelClient, decrypter, log),
		Store:     service.NewStoreService(cfg.Stripe, cat, billingClient, log),
		Pinger:    pinger,
	}, http.HandlerOptions{
		ConsoleHost:     cfg.ConsoleHost(),
		ConsoleMaxLines: cfg.Console.MaxLines,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		PollInterval:    cfg.Status.PollInterval,
	}, log)

	// Initialize HTTP server
	server := http.NewServer(cfg, handler, logger.Component(log, "server"))

	// Start server in goroutine
	go func() {
		if err := server.Run(); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shut down")
	}

	log.Info().Msg("Server exited")
}
