package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"warden/internal/audit"
	authhandler "warden/internal/auth/handler"
	authmetrics "warden/internal/auth/metrics"
	"warden/internal/auth/workers/cleanup"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/config"
	"warden/internal/platform/health"
	"warden/internal/platform/logger"
	"warden/internal/platform/metrics"
	"warden/internal/platform/tracer"
	httptransport "warden/internal/transport/http"
	"warden/pkg/platform/middleware/metadata"
	"warden/pkg/platform/middleware/request"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies, serves the router and runs the expiry reaper until
// SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "warden:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing warden",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"version", health.Version,
	)

	reg := metrics.NewRegistry(health.Version)
	authMetrics := authmetrics.New(reg)
	checks := health.New(cfg.Environment)

	tp, err := tracer.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	var tr tracer.Tracer = tracer.Noop{}
	if tp != nil {
		tr = tracer.NewOTel(tp)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(sctx); err != nil {
				log.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	st, err := openStores(ctx, cfg, log, checks, reg)
	if err != nil {
		return err
	}
	defer st.Close()

	sink, closeSink, err := newAuditSink(cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeSink()
	publisher := audit.NewPublisher(sink,
		audit.WithAsyncBuffer(1024),
		audit.WithPublisherLogger(log),
		audit.WithDroppedCounter(authMetrics.AuditDropped),
	)
	defer publisher.Close()

	tokens := jwttoken.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	svc := newAuthService(cfg, st, tokens, newNotifier(cfg, log, authMetrics), log, publisher, authMetrics, tr)

	if err := bootstrap(ctx, cfg, st.users, log); err != nil {
		return err
	}

	limiter, err := newRateLimiter(ctx, cfg, log, reg, checks, authMetrics)
	if err != nil {
		return err
	}
	defer limiter.Close()

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Auth:           authhandler.New(svc, log, authhandler.WithThrottle(limiter.middleware.RateLimit)),
		Tokens:         jwttoken.NewJWTServiceAdapter(tokens),
		Accounts:       svc,
		Health:         checks,
		Registry:       reg,
		Latency:        request.NewMetrics(reg),
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: proxies,
		RequestTimeout: cfg.RequestTimeout,
	})

	reaper, err := cleanup.New(st.users, st.codes,
		cleanup.WithRetention(cfg.Retention.UnverifiedWindow(), cfg.Retention.OAuthInactiveWindow()),
		cleanup.WithCleanupLogger(log),
		cleanup.WithMetrics(authMetrics),
		cleanup.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := reaper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.prune(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
