package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/privacynet/internal/audit"
	"github.com/sujalbistaa/privacynet/internal/comments"
	"github.com/sujalbistaa/privacynet/internal/config"
	"github.com/sujalbistaa/privacynet/internal/db"
	routes "github.com/sujalbistaa/privacynet/internal/http"
	"github.com/sujalbistaa/privacynet/internal/logging"
	"github.com/sujalbistaa/privacynet/internal/privacy"
	"github.com/sujalbistaa/privacynet/internal/vault"
	"github.com/sujalbistaa/privacynet/internal/ws"
)

func main() {
	log := logging.NewJSON(os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Error(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error(ctx, "failed to initialize database", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "running database migrations")
	if err := db.Migrate(database); err != nil {
		log.Error(ctx, "failed to run migrations", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(log.With("component", "ws"))
	go hub.Run(ctx)

	recorder := audit.NewRecorder(audit.NewGormSink(database), log.With("component", "audit"), cfg.AuditQueueSize)

	tokenizer := privacy.NewTokenizer(newDetector(ctx, cfg, log), log.With("component", "tokenizer"), privacy.TokenizerConfig{
		Timeout:       cfg.DetectorTimeout,
		MinConfidence: cfg.DetectorMinConfidence,
	})

	limiter := routes.NewIPRateLimiter(rate.Limit(cfg.CommentRateLimitRPS), cfg.CommentRateLimitBurst)
	go limiter.Cleanup(ctx, 10*time.Minute, 30*time.Minute)

	env := &routes.Env{
		DB:       database,
		Hub:      hub,
		Comments: comments.NewService(database, tokenizer, recorder, hub, log.With("component", "comments"), cfg.MaxCommentLength),
		Vault:    vault.NewGormStore(database),
		Audit:    recorder,
		AuditLog: audit.NewGormSink(database),
		Limiter:  limiter,
		Log:      log,
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	routes.SetupRoutes(router, env, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(ctx, "server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "listen failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server forced to shutdown", "error", err)
	}

	recorder.Close()
	if err := db.Close(database); err != nil {
		log.Error(shutdownCtx, "failed to close database", "error", err)
	}
	log.Info(shutdownCtx, "server exiting")
}

// newDetector uses the remote classifier when an API key is configured and
// the local regex detector otherwise.
func newDetector(ctx context.Context, cfg *config.Config, log logging.Logger) privacy.Detector {
	if cfg.DetectorAPIKey == "" {
		log.Info(ctx, "no classifier API key, using regex PII detector")
		return privacy.NewRegexDetector()
	}
	log.Info(ctx, "using remote PII classifier", "model", cfg.DetectorModel)
	return privacy.NewClassifierDetector(&http.Client{Timeout: cfg.DetectorTimeout}, privacy.ClassifierConfig{
		URL:    cfg.DetectorURL,
		APIKey: cfg.DetectorAPIKey,
		Model:  cfg.DetectorModel,
	})
}
