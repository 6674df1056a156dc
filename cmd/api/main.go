package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/config"
	"github.com/xiaoyue/companion/internal/handler"
	"github.com/xiaoyue/companion/internal/logger"
	"github.com/xiaoyue/companion/internal/metrics"
	"github.com/xiaoyue/companion/internal/service/ai"
	"github.com/xiaoyue/companion/internal/service/companion"
	"github.com/xiaoyue/companion/internal/service/image"
	"github.com/xiaoyue/companion/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 没有 .env 时退回系统环境变量。
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	backend, err := newBackend(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage backend")
	}
	profileStore := store.NewService(backend, store.Config{MaxHistory: cfg.Store.MaxHistory}, log, m)

	var textGen companion.TextGenerator
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI, log)
		if err != nil {
			log.Warn().Err(err).Msg("AI 服务初始化失败，所有回复将使用降级回应")
		} else {
			textGen = aiSvc
			log.Info().Str("model", cfg.AI.Model).Msg("AI 服务已就绪")
		}
	} else {
		log.Info().Msg("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	var imageGen companion.ImageGenerator
	gen, err := image.NewGenerator(cfg.Image, log)
	if err != nil {
		log.Warn().Err(err).Msg("配图服务初始化失败，场景照片功能关闭")
	} else {
		imageGen = gen
		log.Info().Str("mode", cfg.Image.Mode).Msg("配图服务已就绪")
	}

	companionSvc := companion.NewService(profileStore, textGen, imageGen, companion.Config{
		ContextWindow: cfg.Store.ContextWindow,
	}, log, m)

	router := handler.NewRouter(companionSvc, registry, log)

	startServer(ctx, cfg.Server, router, log)
}

func newBackend(cfg config.StoreConfig) (store.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.NewSqliteBackend(cfg.SqlitePath)
	default:
		return store.NewFileBackend(cfg.FilePath)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", serverCfg.Addr).Msg("小跃 companion backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
