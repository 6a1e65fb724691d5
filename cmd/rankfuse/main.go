package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/config"
	"github.com/kailas-cloud/rankfuse/internal/db"
	dbRedis "github.com/kailas-cloud/rankfuse/internal/db/redis"
	"github.com/kailas-cloud/rankfuse/internal/domain"
	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	logpkg "github.com/kailas-cloud/rankfuse/internal/logger"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
	"github.com/kailas-cloud/rankfuse/internal/repository/scorecache"
	chiTransport "github.com/kailas-cloud/rankfuse/internal/transport/chi"
	"github.com/kailas-cloud/rankfuse/internal/transport/elastic"
	openaiScorer "github.com/kailas-cloud/rankfuse/internal/transport/openai"
	"github.com/kailas-cloud/rankfuse/internal/transport/zeroentropy"
	batchuc "github.com/kailas-cloud/rankfuse/internal/usecase/batch"
	fusionuc "github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
	"github.com/kailas-cloud/rankfuse/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting rankfuse API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("es_addrs", cfg.Elasticsearch.Addrs),
		zap.String("scorer_provider", cfg.Scorer.Provider),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	gateway, err := elastic.NewGateway(&elastic.Config{
		Addresses:          cfg.Elasticsearch.Addrs,
		Username:           cfg.Elasticsearch.Username,
		Password:           cfg.Elasticsearch.Password,
		APIKey:             cfg.Elasticsearch.APIKey,
		MaxRetries:         cfg.Elasticsearch.MaxRetries,
		InsecureSkipVerify: cfg.Elasticsearch.InsecureSkipVerify,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal("Failed to create search gateway", zap.Error(err))
	}

	// Optional score cache store
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.WaitForReady(ctx, 10*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to score cache")
	}

	scorer, err := buildScorer(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create scorer", zap.Error(err))
	}

	defaults, err := pipelineDefaults(cfg.Pipeline)
	if err != nil {
		logger.Fatal("Invalid pipeline defaults", zap.Error(err))
	}

	fusionSvc := fusionuc.New(gateway, scorer, defaults, logger)
	batchSvc := batchuc.New(fusionSvc, logger).WithMaxConcurrent(cfg.Pipeline.MaxConcurrent)
	healthSvc := healthuc.New(gateway, newScorerHealthChecker(scorer))

	server := chiTransport.NewServer(fusionSvc, batchSvc, healthSvc, defaults, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// buildScorer assembles the scorer chain: provider -> cached.
func buildScorer(cfg config.Config, store db.Store, logger *zap.Logger) (domain.RelevanceScorer, error) {
	var base domain.RelevanceScorer

	switch cfg.Scorer.Provider {
	case "zeroentropy":
		client, err := zeroentropy.NewClient(&zeroentropy.Config{
			BaseURL:           cfg.Scorer.BaseURL,
			APIKey:            cfg.Scorer.APIKey,
			Timeout:           time.Duration(cfg.Scorer.TimeoutSec) * time.Second,
			MaxRetries:        cfg.Scorer.MaxRetries,
			RequestsPerMinute: cfg.Scorer.RateLimit.RequestsPerMinute,
			Burst:             cfg.Scorer.RateLimit.Burst,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create zeroentropy client: %w", err)
		}
		base = client
	case "embedding":
		base = openaiScorer.NewScorer(&openaiScorer.Config{
			APIKey:     cfg.Scorer.OpenAI.APIKey,
			BaseURL:    cfg.Scorer.OpenAI.BaseURL,
			Model:      cfg.Scorer.OpenAI.EmbeddingModel,
			Dimensions: cfg.Scorer.OpenAI.Dimensions,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown scorer provider %q", cfg.Scorer.Provider)
	}

	if store != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		return scorecache.New(base, store, ttl, metrics.ScoreCacheTotal, logger), nil
	}
	return base, nil
}

func pipelineDefaults(p config.PipelineConfig) (domfusion.Config, error) {
	combine := true
	if p.CombineScores != nil {
		combine = *p.CombineScores
	}
	return domfusion.NewConfig(
		p.InitialFetchSize, p.RerankSize, p.FinalSize,
		"", combine, p.IndexWeight, p.RelevanceWeight,
	)
}

// scorerHealthChecker wraps domain.RelevanceScorer to implement health.ScorerChecker.
type scorerHealthChecker struct {
	scorer domain.RelevanceScorer
}

func newScorerHealthChecker(scorer domain.RelevanceScorer) *scorerHealthChecker {
	return &scorerHealthChecker{scorer: scorer}
}

func (h *scorerHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.scorer.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("scorer health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
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

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
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
