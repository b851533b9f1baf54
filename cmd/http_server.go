package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/core/events"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
	"github.com/frahmantamala/photobooth-payment/internal/payment"
	"github.com/frahmantamala/photobooth-payment/internal/paymentgateway"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
	"github.com/frahmantamala/photobooth-payment/internal/printjob"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
	"github.com/frahmantamala/photobooth-payment/internal/transport/rest"
	"github.com/frahmantamala/photobooth-payment/internal/transport/swagger"
	"github.com/frahmantamala/photobooth-payment/internal/webhook"
	"github.com/frahmantamala/photobooth-payment/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that creates charges, receives webhooks and serves payment status`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	Router   *chi.Mux
	Store    *paymentstatus.Store
	EventBus *events.EventBus
	Logger   *slog.Logger
	stopLogs func()
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.stopLogs()

	rootCtx, stopStore := context.WithCancel(context.Background())
	deps.Store.Start(rootCtx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server",
		"address", addr,
		"env", deps.Config.Env,
		"gateway", deps.Config.Gateway.ResolvedBaseURL())

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			stopStore()
			deps.Store.Stop()
			deps.stopLogs()
			os.Exit(1)
		}
	}

	stopStore()
	deps.Store.Stop()
	deps.EventBus.Wait()
	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	stopLogs, err := logger.InitWithLoki(logger.Options{
		Env:     config.Env,
		Level:   config.Observability.Logging.Level,
		Format:  config.Observability.Logging.Format,
		LokiURL: config.Observability.Logging.LokiURL,
	})
	lg := logger.LoggerWrapper()
	if err != nil {
		lg.Warn("Loki logging disabled", "error", err)
	}

	if !config.IsProduction() {
		if _, err := swagger.Load(context.Background()); err != nil {
			stopLogs()
			return nil, fmt.Errorf("invalid API document: %w", err)
		}
	}

	if !config.Gateway.HasCredentials() {
		lg.Warn("Gateway credentials missing, charge creation will fail")
	}
	if config.Webhook.Secret == "" {
		lg.Warn("Webhook secret missing, signatures will not be verified")
	}

	router := chi.NewRouter()
	bus := events.NewEventBus(lg)

	store := paymentstatus.NewStore(
		paymentstatus.WithTTL(config.PaymentStatus.TTL),
		paymentstatus.WithSweepInterval(config.PaymentStatus.SweepInterval),
		paymentstatus.WithLogger(lg),
	)
	metrics.RegisterStoreSize(store.Len)

	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:       config.Gateway.ResolvedBaseURL(),
		APIKey:        config.Gateway.APIKey,
		MerchantID:    config.Gateway.MerchantID,
		Timeout:       config.Gateway.Timeout,
		LookupTimeout: config.Gateway.LookupTimeout,
	}, lg)

	statusService := paymentstatus.NewService(store, lg,
		paymentstatus.WithChargeLookup(gateway),
		paymentstatus.WithPublisher(bus),
		paymentstatus.WithAdmin(!config.IsProduction()),
	)
	paymentstatus.NewEventHandler(statusService, lg).RegisterEventHandlers(bus)

	paymentService := payment.NewService(gateway, payment.Config{
		MinAmount:     config.Payment.MinAmount,
		MaxAmount:     config.Payment.MaxAmount,
		DefaultAmount: config.Payment.DefaultAmount,
		Currency:      config.Payment.Currency,
		QRExpiry:      config.Payment.QRExpiry,
		PublicBaseURL: config.Server.PublicBaseURL,
	}, lg, payment.WithPublisher(bus))

	base := transport.NewBaseHandler(lg)
	verifier := webhook.NewVerifier(webhook.WithTolerance(config.Webhook.Tolerance))
	newReceiver := func(endpoint string) *webhook.Receiver {
		return webhook.NewReceiver(base, endpoint, config.Webhook.SecretFor(endpoint), statusService, webhook.WithVerifier(verifier))
	}

	handlers := rest.Handlers{
		Health:        rest.NewHealthHandler(store, gateway),
		Payment:       payment.NewHandler(base, paymentService),
		PaymentStatus: paymentstatus.NewHandler(base, statusService),
		Webhooks: []*webhook.Receiver{
			newReceiver(webhook.EndpointPrimary),
			newReceiver(webhook.EndpointBackup),
			newReceiver(webhook.EndpointStaging),
		},
		WebhookDebug: webhook.NewDebugHandler(base, config.Webhook.Secret, verifier),
		Print:        printjob.NewHandler(base, nil),
	}

	opts := rest.RouterOptions{Production: config.IsProduction()}
	if config.Observability.Metrics.Enabled {
		opts.MetricsPath = config.Observability.Metrics.Path
	}
	rest.RegisterAllRoutes(router, handlers, opts, lg)

	return &Dependencies{
		Config:   config,
		Router:   router,
		Store:    store,
		EventBus: bus,
		Logger:   lg,
		stopLogs: stopLogs,
	}, nil
}
