package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paytabs-commerce/internal/config"
	"paytabs-commerce/internal/db"
	"paytabs-commerce/internal/logger"
	"paytabs-commerce/internal/metrics"
	"paytabs-commerce/internal/middleware"
	"paytabs-commerce/internal/order"
	"paytabs-commerce/internal/payment"
	"paytabs-commerce/internal/payment/handler"
	"paytabs-commerce/internal/payment/webhook"
	"paytabs-commerce/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

// routeHandlers is the set of endpoints mounted by setupRouter.
type routeHandlers struct {
	Health   http.HandlerFunc
	Notify   http.HandlerFunc
	Return   http.HandlerFunc
	Cancel   http.HandlerFunc
	Checkout http.HandlerFunc
	Refund   http.HandlerFunc
}

func setupRouter(h routeHandlers, auth func(http.Handler) http.Handler, limiter *middleware.RateLimiter, origins ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS(origins...))
	r.Use(limiter.Middleware)

	r.Get("/health", h.Health)

	r.Route("/payment", func(r chi.Router) {
		r.Post("/notify/{gateway}", h.Notify)
		r.Post("/return/{orderID}", h.Return)
		r.Get("/cancel/{orderID}", h.Cancel)
		r.Post("/checkout/{orderID}", h.Checkout)
	})

	// Auth applies to admin routes only.
	r.With(auth, middleware.RequireAdmin).Post("/admin/payments/{paymentID}/refund", h.Refund)

	return r
}

func healthHandler(database *sql.DB, stats *metrics.Reconciliation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "OK", http.StatusOK
		if err := database.PingContext(ctx); err != nil {
			logger.FromCtx(r.Context()).Error("Health check ping failed", zap.Error(err))
			status, code = "DB_UNAVAILABLE", http.StatusServiceUnavailable
		}

		utils.WriteJSON(w, code, map[string]any{
			"status":         status,
			"reconciliation": stats.Snapshot(),
		})
	}
}

func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) (http.Handler, error) {
	gateway, err := payment.NewPaytabsGateway(cfg.PayTabs)
	if err != nil {
		return nil, err
	}

	stats := metrics.NewReconciliation()
	orderRepo := order.NewRepository(database)
	paymentRepo := payment.NewRepository(database)
	paymentSvc := payment.NewService(
		db.NewTransactor(database),
		orderRepo,
		paymentRepo,
		gateway,
		cfg.PayTabs,
		cfg.SiteURL,
		stats,
	)

	webhookHandler := webhook.NewWebhookHandler(paymentSvc, paymentSvc)
	apiHandler := handler.NewHandler(paymentSvc, paymentSvc, cfg.PayTabs.Framed)

	var origins []string
	if cfg.SiteURL != "" {
		origins = append(origins, cfg.SiteURL)
	}

	return setupRouter(routeHandlers{
		Health:   healthHandler(database, stats),
		Notify:   webhookHandler.NotifyHandler,
		Return:   webhookHandler.ReturnHandler,
		Cancel:   webhookHandler.CancelHandler,
		Checkout: apiHandler.CheckoutHandler,
		Refund:   apiHandler.RefundHandler,
	}, middleware.Auth(cfg.JWTSecret), middleware.NewRateLimiter(ctx), origins...), nil
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := newServer(ctx, cfg, database)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L().Error("Graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.L().Info("PayTabs payment service running",
		zap.String("port", cfg.AppPort),
		zap.String("region", cfg.PayTabs.Region))

	if err := startServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
