package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/config"
	"github.com/kailas-cloud/normgate/internal/db"
	dbRedis "github.com/kailas-cloud/normgate/internal/db/redis"
	"github.com/kailas-cloud/normgate/internal/domain/norma"
	logpkg "github.com/kailas-cloud/normgate/internal/logger"
	"github.com/kailas-cloud/normgate/internal/metrics"
	quotarepo "github.com/kailas-cloud/normgate/internal/repository/quota"
	chiTransport "github.com/kailas-cloud/normgate/internal/transport/chi"
	"github.com/kailas-cloud/normgate/internal/transport/infoleg"
	openaiAns "github.com/kailas-cloud/normgate/internal/transport/openai"
	answeruc "github.com/kailas-cloud/normgate/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/normgate/internal/usecase/health"
	normauc "github.com/kailas-cloud/normgate/internal/usecase/norma"
	quotauc "github.com/kailas-cloud/normgate/internal/usecase/quota"
	resourceuc "github.com/kailas-cloud/normgate/internal/usecase/resource"
	usageuc "github.com/kailas-cloud/normgate/internal/usecase/usage"
	"github.com/kailas-cloud/normgate/internal/version"
)

func main() {
	flags := pflag.NewFlagSet("normgate", pflag.ContinueOnError)
	env := flags.String("env", config.GetEnv(), "environment name, selects config/<env>.yaml")
	configPath := flags.String("config", "", "explicit config file path (overrides --env)")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("normgate %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load(*env)
	}
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(*env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting normgate",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", *env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("resource_prefix", cfg.Upstream.ResourcePrefix),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register domain metrics explicitly (no init())
	metrics.RegisterDomainMetrics()

	ctx := context.Background()

	// Optional counter store
	var store db.Store
	if len(cfg.Database.Addrs) > 0 {
		store = connectStore(ctx, cfg.Database, logger)
		defer store.Close()
	}

	// Single quota tracker shared by the guarded client and the usage service.
	quota := quotauc.NewTracker(
		"infoleg", cfg.Database.KeyPrefix,
		cfg.Quota.DailyRequestLimit, cfg.Quota.MonthlyRequestLimit,
		quotauc.Action(cfg.Quota.Action), logger,
	)
	if store != nil {
		quota.WithStore(ctx, quotarepo.New(store, 24*time.Hour))
	}

	registry, err := infoleg.NewClient(&infoleg.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		APIPath:        cfg.Upstream.APIPath,
		RateLimitRPS:   cfg.Upstream.RateLimitRPS,
		RateLimitBurst: cfg.Upstream.RateLimitBurst,
		UserAgent:      version.UserAgent(),
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Failed to create registry client", zap.Error(err))
	}
	guarded := quotauc.NewGuardedUpstream(registry, quota, logger)

	rewriter, err := norma.NewRewriter(cfg.Upstream.Placeholder, cfg.Upstream.ResourcePrefix)
	if err != nil {
		logger.Fatal("Invalid link rewriter settings", zap.Error(err))
	}

	normaSvc := normauc.New(guarded, norma.DefaultPolicy(), rewriter)
	resourceSvc := resourceuc.New(guarded, rewriter)

	// Pass nil interfaces (not typed nil pointers) for disabled components.
	var (
		answerer      answeruc.Answerer
		answerChecker healthuc.Checker
	)
	if cfg.Answers.APIKey != "" {
		a := openaiAns.NewAnswerer(&openaiAns.Config{
			APIKey:       cfg.Answers.APIKey,
			BaseURL:      cfg.Answers.BaseURL,
			Model:        cfg.Answers.Model,
			SystemPrompt: cfg.Answers.SystemPrompt,
			Logger:       logger,
		})
		answerer, answerChecker = a, a
		logger.Info("Answer provider enabled", zap.String("model", cfg.Answers.Model))
	}
	answerSvc := answeruc.New(answerer, normaSvc)

	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	healthSvc := healthuc.New(registry, dbPinger, answerChecker)
	usageSvc := usageuc.New(quota)

	server := chiTransport.NewServer(chiTransport.Services{
		Normas:    normaSvc,
		Resources: resourceSvc,
		Answers:   answerSvc,
		Usage:     usageSvc,
		Health:    healthSvc,
	}, cfg.Upstream.ResourcePrefix, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys, cfg.Upstream.ResourcePrefix))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// connectStore opens the counter store and waits until it answers.
func connectStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) db.Store {
	var clientName string
	switch cfg.Driver {
	case "valkey", "redis":
		clientName = "normgate-" + cfg.Driver
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Driver))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Addrs,
		Password:   cfg.Password,
		ClientName: clientName,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")
	return store
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
