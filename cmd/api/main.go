package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"stockroom.app/internal/auth"
	"stockroom.app/internal/config"
	"stockroom.app/internal/gateway"
	"stockroom.app/internal/httpapi"
	"stockroom.app/internal/obs"
	"stockroom.app/internal/ratelimit"
	"stockroom.app/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("STOCKROOM_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Env, cfg.Log.Level, "stockroom-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	restore := obs.SetLogger(logger)
	defer restore()
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	tp, shutdownTracing, err := obs.InitTracing(obs.TracingConfig{
		ServiceName: "stockroom-api",
		Version:     version,
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger.Named("trace"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	store, err := pg.Open(cfg.PG.DSN, pg.PoolConfig{
		MaxOpenConns:    cfg.PG.MaxOpenConns,
		MaxIdleConns:    cfg.PG.MaxIdleConns,
		ConnMaxLifetime: cfg.PG.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.PG.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	gw, err := gateway.New(store.DB(),
		gateway.WithAcquireTimeout(cfg.Gateway.AcquireTimeout),
		gateway.WithCallTimeout(cfg.Gateway.CallTimeout),
		gateway.WithLogger(logger.Named("gateway")),
		gateway.WithTracerProvider(tp),
	)
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
	)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}
	hasher := auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashSlots)
	authSvc, err := auth.NewStoreService(store, hasher, issuer, logger.Named("auth"),
		auth.WithTracerProvider(tp),
	)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	defer authSvc.Close()

	limiter, closeLimiter, err := newLimiter(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}
	defer closeLimiter()

	probe := httpapi.ReadyProbe{Ping: store.Ping}
	api, err := httpapi.New(httpapi.Deps{
		Auth:              authSvc,
		Ops:               gw,
		Catalog:           store,
		Ready:             probe,
		Limiter:           limiter,
		Logger:            logger.Named("http"),
		Version:           version,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		AllowLocalOrigins: cfg.IsDev(),
		TrustedProxies:    cfg.HTTP.TrustedProxies,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		Tracer:            tp,
	})
	if err != nil {
		return fmt.Errorf("init http api: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grpcSrv := grpc.NewServer()
	health := httpapi.NewHealthReporter(probe, cfg.GRPC.PollInterval, logger.Named("grpc"))
	health.Register(grpcSrv)
	go health.Run(ctx)

	errCh := make(chan error, 2)
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		go func() {
			logger.Info("grpc health listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}
	go func() {
		logger.Info("starting stockroom-api",
			zap.String("version", version),
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	logger.Info("stopped")
	return runErr
}

func newLimiter(cfg config.RateLimitConfig) (ratelimit.Limiter, func(), error) {
	if cfg.Limit <= 0 {
		return ratelimit.Unlimited{}, func() {}, nil
	}
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.Limit, cfg.Window, ratelimit.MemoryConfig{}), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter, err := ratelimit.NewRedis(client, cfg.Limit, cfg.Window, "stockroom:rl:")
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return limiter, func() { _ = client.Close() }, nil
}
