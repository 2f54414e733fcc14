package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/product-catalog/internal/config"
	"github.com/iyhunko/product-catalog/internal/gate"
	httpAPI "github.com/iyhunko/product-catalog/internal/http"
	"github.com/iyhunko/product-catalog/internal/http/controller"
	"github.com/iyhunko/product-catalog/internal/logger"
	"github.com/iyhunko/product-catalog/internal/metrics"
	"github.com/iyhunko/product-catalog/internal/repository/sql"
	"github.com/iyhunko/product-catalog/internal/service"
	"github.com/redis/go-redis/v9"
)

const (
	shutdownTimeout = 10 * time.Second
	statsQueueSize  = 4096
)

func main() {
	conf, err := config.LoadFromEnv()
	handleErr("loading config", err)

	logger.InitJSONLogger(conf.DebugMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.StartDB(ctx, conf.Database)
	handleErr("starting database", err)
	defer db.Close()

	productRepository := sql.NewProductRepository(db)
	productService := service.NewProductService(productRepository)

	var requestGate *gate.Gate
	if conf.Gate.Enabled {
		stats, closeStats := newStatsStore(ctx, conf.Redis)
		defer closeStats()

		requestGate = gate.New(gateOptions(conf, stats))
		requestGate.StartJanitor(ctx)
	}

	if !conf.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Start HTTP server
	ctr := controller.New(conf)
	productCtr := controller.NewProductController(productService)
	router := httpAPI.InitRouter(conf, gin.New(), ctr, productCtr, requestGate)

	httpServer := &http.Server{
		Addr:              ":" + conf.HTTPServer.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("port", conf.HTTPServer.Port),
			slog.String("env", conf.Env),
			slog.String("api_prefix", conf.HTTPServer.APIPrefix),
			slog.Bool("gate_enabled", conf.Gate.Enabled),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			handleErr("listening to HTTP requests", err)
		}
	}()

	metrics.StartMetricsServer(ctx, conf)

	<-ctx.Done()
	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error while shutting down HTTP server", slog.Any("err", err))
	}
}

func gateOptions(conf *config.Config, stats gate.StatsStore) gate.Options {
	allow := make([]gate.Category, 0, len(conf.Gate.BotAllow))
	for _, name := range conf.Gate.BotAllow {
		allow = append(allow, gate.ParseCategory(name))
	}

	return gate.Options{
		Mode:       gate.Mode(conf.Gate.Mode),
		Capacity:   conf.Gate.Capacity,
		RefillRate: conf.Gate.RefillRate,
		Interval:   conf.Gate.Interval,
		BotAllow:   allow,
		HealthPath: conf.HTTPServer.APIPrefix + "/health",
		Stats:      stats,
	}
}

// newStatsStore connects to Redis when configured. Without Redis only Prometheus counts decisions.
// Redis writes happen off the request path.
func newStatsStore(ctx context.Context, conf config.Redis) (gate.StatsStore, func()) {
	if !conf.Enabled() {
		return nil, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:                  conf.Addr,
		Password:              conf.Password,
		DB:                    conf.DB,
		DialTimeout:           2 * time.Second,
		ReadTimeout:           500 * time.Millisecond,
		WriteTimeout:          500 * time.Millisecond,
		MaxRetries:            1,
		ContextTimeoutEnabled: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		handleErr("connecting to redis", err)
	}

	store := gate.NewAsyncStatsStore(gate.NewRedisStatsStore(rdb,
		gate.WithStatsPrefix(conf.Prefix),
		gate.WithStatsTTL(conf.TTL),
	), statsQueueSize, time.Second)
	store.Start(ctx)

	return store, func() { _ = rdb.Close() }
}

func handleErr(msg string, err error) {
	if err != nil {
		log.Fatalf("error while %s: %v", msg, err)
	}
}
