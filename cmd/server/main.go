package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/alert"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/bot"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/cache"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/config"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/db"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/handler"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/job"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/provider"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/repository"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/resolver"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/service"
	"github.com/Snakeau/telegram-stock-bot-sub001/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newAlertRepoFunc  = repository.NewAlertRepository
	newResolverFunc   = func() *resolver.Resolver { return resolver.New(resolver.NewRegistry()) }
	newProviderFunc   = func(tracer trace.Tracer) provider.SeriesProvider { return provider.NewYahooProvider(tracer) }
	newServiceFunc    = service.NewAlertService
	startTelegramFunc = bot.StartTelegramBot
	startCheckerFunc  = func(c *job.AlertChecker, ctx context.Context) { go c.Start(ctx) }
	newHandlerFunc    = handler.New
	newRouterFunc     = gin.Default
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
	startHTTPFunc     = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPFunc  = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	alertRepo := newAlertRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := alertRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	tickerResolver := newResolverFunc()
	seriesProvider := provider.NewCachedProvider(
		newProviderFunc(tracer),
		cache.Client,
		time.Duration(cfg.MarketCacheTTLSecs)*time.Second,
		tracer,
	)

	alertService := newServiceFunc(tracer, alertRepo, tickerResolver)
	engine := alert.NewEngine(alertRepo, cfg.AlertCooldownHours, nil)

	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	notifier := startTelegramFunc(alertService)

	checker := job.NewAlertChecker(
		tracer,
		alertRepo,
		tickerResolver,
		seriesProvider,
		engine,
		notifier,
		time.Duration(cfg.AlertCheckIntervalSec)*time.Second,
		time.Duration(cfg.AlertCycleBackoffSec)*time.Second,
		cfg.AlertMaxConcurrency,
	)
	startCheckerFunc(checker, ctx)

	h := newHandlerFunc(tracer, alertService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("telegram-stock-bot"))
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
