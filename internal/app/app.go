// Package app wires the coursemart API server.
package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/coursemart/internal/cache"
	"github.com/xenking/coursemart/internal/domain/auth"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
	"github.com/xenking/coursemart/internal/handler"
	"github.com/xenking/coursemart/internal/repository"
	"github.com/xenking/coursemart/internal/repository/memory"
	"github.com/xenking/coursemart/pkg/health"
	"github.com/xenking/coursemart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.Bool("cache", cfg.Redis.Addr != ""),
	)

	srv, err := newServer(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// server is the assembled application before it starts listening.
type server struct {
	handler http.Handler
	health  *health.Health
	closers []func()
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// stores are the persistence ports of the domain services.
type stores struct {
	coupons coupon.Store
	orders  order.Repository
	apikeys auth.Repository
}

func newServer(ctx context.Context, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config) (_ *server, rerr error) {
	srv := &server{health: health.New()}
	defer func() {
		if rerr != nil {
			srv.close()
		}
	}()
	srv.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := newStores(ctx, lg, srv, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.closers = append(srv.closers, func() { _ = rdb.Close() })
		srv.health.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		st.coupons = cache.NewCouponStore(st.coupons, rdb, cfg.Redis.TTL)
	}

	metrics, err := coupon.NewMetrics(mp)
	if err != nil {
		return nil, errors.Wrap(err, "create coupon metrics")
	}
	engine := coupon.NewEngine(st.coupons, metrics)
	committer := coupon.NewCommitter(st.coupons, metrics)
	orders := order.NewService(engine, committer, st.orders)
	admin := coupon.NewAdmin(st.coupons)

	h := handler.NewHandler(engine, orders, admin)
	security := handler.NewSecurityHandler(st.apikeys, []byte(cfg.APIKeyPepper))

	router := chi.NewRouter()
	router.Use(
		httpmiddleware.LogRequests(httpmiddleware.ChiRoute),
		httpmiddleware.Labeler(httpmiddleware.ChiRoute),
	)
	router.Get("/livez", srv.health.LiveEndpoint)
	router.Get("/readyz", srv.health.ReadyEndpoint)
	router.Route("/api", func(r chi.Router) {
		h.Mount(r, security)
	})

	srv.handler = httpmiddleware.Wrap(router,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Exempt: isProbe,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("coursemart-api", tp, mp),
	)
	return srv, nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

func newStores(ctx context.Context, lg *zap.Logger, srv *server, cfg *Config) (*stores, error) {
	if cfg.Storage == StorageMemory {
		var keys []auth.APIKeyInfo
		if cfg.AdminAPIKey != "" {
			keys = append(keys, auth.APIKeyInfo{
				ID:      "config",
				KeyHash: auth.HashKey(cfg.AdminAPIKey, []byte(cfg.APIKeyPepper)),
				Name:    "admin api key from config",
				Scopes:  []string{auth.ScopeCouponsAdmin},
			})
		} else {
			lg.Warn("No admin API key configured, coupon administration is unreachable")
		}
		return &stores{
			coupons: memory.NewCouponStore(),
			orders:  memory.NewOrderStore(),
			apikeys: memory.NewAPIKeyStore(keys...),
		}, nil
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	srv.closers = append(srv.closers, pool.Close)

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	srv.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))

	return &stores{
		coupons: repository.NewCouponRepository(pool),
		orders:  repository.NewOrderRepository(pool),
		apikeys: repository.NewAPIKeyRepository(pool),
	}, nil
}
