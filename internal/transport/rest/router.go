package rest

import (
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
	"github.com/frahmantamala/photobooth-payment/internal/payment"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
	"github.com/frahmantamala/photobooth-payment/internal/printjob"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
	"github.com/frahmantamala/photobooth-payment/internal/transport/middleware"
	"github.com/frahmantamala/photobooth-payment/internal/transport/swagger"
	"github.com/frahmantamala/photobooth-payment/internal/webhook"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

var webhookPaths = map[string]string{
	webhook.EndpointPrimary: "/api/webhook",
	webhook.EndpointBackup:  "/api/webhook/backup",
	webhook.EndpointStaging: "/api/webhook/staging",
}

// Handlers groups everything the router mounts. Nil handlers are skipped.
type Handlers struct {
	Health        *HealthHandler
	Payment       *payment.Handler
	PaymentStatus *paymentstatus.Handler
	Webhooks      []*webhook.Receiver
	WebhookDebug  *webhook.DebugHandler
	Print         *printjob.Handler
}

type RouterOptions struct {
	// Production hides the webhook debug endpoint and the API docs.
	Production bool
	// MetricsPath mounts the Prometheus handler when not empty.
	MetricsPath string
}

func RegisterAllRoutes(router *chi.Mux, handlers Handlers, opts RouterOptions, logger *slog.Logger) {
	base := transport.NewBaseHandler(logger)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.HandleError(w, apperrors.NewNotFoundError("Route not found"))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.HandleError(w, apperrors.NewMethodNotAllowedError("Method not allowed", apperrors.ErrCodeMethodNotAllowed))
	})

	if handlers.Health != nil {
		router.Get("/health", handlers.Health.HealthCheckHandler)
		router.Get("/ping", handlers.Health.PingHandler)
	}

	if opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, metrics.Handler())
	}

	if !opts.Production {
		router.Get(swagger.SpecPath, swagger.SpecHandler().ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	if handlers.Payment != nil {
		router.Post("/api/payment", handlers.Payment.CreateCharge)
	}

	if handlers.PaymentStatus != nil {
		router.Get("/api/payment-status", handlers.PaymentStatus.GetStatus)
		router.Post("/api/payment-status", handlers.PaymentStatus.UpdateStatus)
		router.Put("/api/payment-status", handlers.PaymentStatus.Admin)
	}

	for _, receiver := range handlers.Webhooks {
		path, ok := webhookPaths[receiver.Name()]
		if !ok {
			logger.Warn("RegisterAllRoutes: unknown webhook endpoint", "endpoint", receiver.Name())
			continue
		}
		router.Method(http.MethodPost, path, receiver)
	}

	if handlers.WebhookDebug != nil && !opts.Production {
		router.Get("/api/webhook/test", handlers.WebhookDebug.Generate)
		router.Post("/api/webhook/test", handlers.WebhookDebug.Verify)
	}

	if handlers.Print != nil {
		router.Post("/api/print", handlers.Print.Submit)
	}
}
