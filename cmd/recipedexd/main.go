package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipedex/internal/answerer"
	"github.com/kailas-cloud/recipedex/internal/config"
	"github.com/kailas-cloud/recipedex/internal/embcache"
	logpkg "github.com/kailas-cloud/recipedex/internal/logger"
	"github.com/kailas-cloud/recipedex/internal/metrics"
	"github.com/kailas-cloud/recipedex/internal/retriever"
	"github.com/kailas-cloud/recipedex/internal/store"
	chiTransport "github.com/kailas-cloud/recipedex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/recipedex/internal/transport/openai"
	"github.com/kailas-cloud/recipedex/internal/version"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recipedex server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("addr", cfg.HTTP.ListenAddr()),
		zap.String("store_path", cfg.Store.Path),
		zap.String("model", cfg.Generation.Model),
	)

	metrics.RegisterProviderMetrics()

	server := chiTransport.NewServer(chiTransport.Limits{
		DefaultResults: cfg.Retrieval.DefaultResults,
		MaxResults:     cfg.Retrieval.MaxResults,
	}, logger)

	// Load the store before accepting traffic on data routes. A failed load
	// leaves the process up and Degraded so the health check can say why
	// queries return 503.
	if err := loadServices(cfg, server, logger); err != nil {
		logger.Error("Store load failed, serving degraded", zap.Error(err))
		server.SetDegraded()
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	srv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
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

// loadServices reads the store from disk and wires the request path:
// cached query embedder -> retriever -> answerer.
func loadServices(cfg config.Config, server *chiTransport.Server, logger *zap.Logger) error {
	start := time.Now()
	logger.Info("Loading store", zap.String("path", cfg.Store.Path))

	st, err := store.Load(cfg.Store.Path)
	if err != nil {
		return err
	}

	logger.Info("Store loaded",
		zap.Int("documents", st.Len()),
		zap.Int("dimensions", st.Dimension()),
		zap.String("embedding_model", st.Model()),
		zap.Duration("took", time.Since(start)),
	)

	embedder := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	// Query embeddings read through the persisted cache; repeated questions
	// cost nothing. The store itself stays read-only.
	cached := embcache.New(embedder, st.EmbeddingCache(), metrics.EmbeddingCacheTotal)

	generator := openaiTransport.NewGenerator(openaiTransport.GeneratorConfig{
		APIKey:  cfg.Generation.APIKey,
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
	})

	retrieverSvc := retriever.New(st, cached, cfg.Retrieval.VectorWeight, logger)
	answererSvc := answerer.New(
		generator,
		cfg.Generation.ContextWindow,
		time.Duration(cfg.Generation.TimeoutSec)*time.Second,
		logger,
	)

	server.SetReady(retrieverSvc, answererSvc)
	logger.Info("Server ready to handle queries")
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
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogMiddleware emits a canonical log line per request and propagates X-Request-ID.
func requestLogMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWith(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
