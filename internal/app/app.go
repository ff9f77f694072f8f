// Package app wires the storefront together: storage, domain services, the
// HTTP surface, the outbox worker, and graceful shutdown.
package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/canopyshop/storefront/internal/audit"
	"github.com/canopyshop/storefront/internal/domain/cart"
	"github.com/canopyshop/storefront/internal/domain/claim"
	"github.com/canopyshop/storefront/internal/domain/coupon"
	"github.com/canopyshop/storefront/internal/domain/order"
	"github.com/canopyshop/storefront/internal/handler"
	"github.com/canopyshop/storefront/internal/notify"
	"github.com/canopyshop/storefront/internal/outbox"
	"github.com/canopyshop/storefront/internal/repository"
	"github.com/canopyshop/storefront/pkg/health"
	"github.com/canopyshop/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox worker,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	claimRepo := repository.NewClaimRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	outboxStore := repository.NewOutboxStore(pool)
	directory := repository.NewUserDirectory(pool)

	// Domain services.
	auditRec := audit.LogRecorder{}
	couponValidator := coupon.NewRepoValidator(couponRepo)
	cartService := cart.NewService(cartRepo, catalogRepo)
	orderService := order.NewService(catalogRepo, couponValidator, orderRepo, directory)
	claimService := claim.NewService(claimRepo, orderRepo, auditRec)

	// Outbox worker dispatching committed side effects.
	worker := outbox.NewWorker(outboxStore,
		dispatcher(notify.LogSender{}, auditRec),
		cfg.Outbox.PollInterval)

	// HTTP surface: gin API routes plus health endpoints on one server.
	api := handler.Router(handler.Deps{
		Catalog:      catalogRepo,
		Carts:        cartService,
		Orders:       orderService,
		Claims:       claimService,
		APIKeys:      apikeyRepo,
		APIKeyPepper: []byte(cfg.APIKeyPepper),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key", "X-User-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(ctx)
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	// Graceful shutdown: on cancellation flip readiness, drain, then stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}

// dispatcher routes drained outbox records to their side-effect sinks.
func dispatcher(sender notify.Sender, rec audit.Recorder) outbox.DispatchFunc {
	return func(ctx context.Context, record outbox.Record) error {
		switch record.Kind {
		case outbox.KindNotification:
			var msg notify.Message
			if err := json.Unmarshal(record.Payload, &msg); err != nil {
				return errors.Wrap(err, "decode notification payload")
			}
			return sender.Send(ctx, msg)
		case outbox.KindAudit:
			var ev audit.Event
			if err := json.Unmarshal(record.Payload, &ev); err != nil {
				return errors.Wrap(err, "decode audit payload")
			}
			return rec.Record(ctx, ev)
		default:
			return errors.Errorf("unknown outbox kind %q", record.Kind)
		}
	}
}
