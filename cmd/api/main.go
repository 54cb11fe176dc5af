package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brechodofuturo/marketplace/internal/auth"
	"github.com/brechodofuturo/marketplace/internal/cache"
	"github.com/brechodofuturo/marketplace/internal/config"
	h "github.com/brechodofuturo/marketplace/internal/http"
	"github.com/brechodofuturo/marketplace/internal/publisher"
	"github.com/brechodofuturo/marketplace/internal/repository"
	"github.com/brechodofuturo/marketplace/internal/service"
	"github.com/brechodofuturo/marketplace/internal/shipping"
	"github.com/brechodofuturo/marketplace/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	maxUploadFiles = 10
	maxUploadBytes = 5 << 20
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Info("marketplace api starting...")

	if err := run(cfg, log); err != nil {
		log.Error("marketplace api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds := &repository.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.DB.MigrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info("database migrations completed")

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}()
	carts := repository.NewCartRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return err
	}
	log.Info("connected to MongoDB", "database", cfg.MongoDB)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiration)

	users := service.NewUserService(repo, tokens, log)
	products := service.NewProductService(repo, cache.NewRedisProductCache(redisClient), log)
	categories := service.NewCategoryService(repo)
	cartService := service.NewCartService(carts, repo, cache.NewRedisCartCache(redisClient), log)
	orders := service.NewOrderService(repo, repo, repo, cartService, products, log)
	reviews := service.NewReviewService(repo, repo)

	carrierHTTP := &http.Client{Timeout: cfg.Carrier.RequestTimeout}
	carrierTokens := shipping.NewTokenManager(repo, cfg.Carrier, carrierHTTP, log)
	carrier := shipping.NewClient(cfg.Carrier, carrierTokens, carrierHTTP, log)
	quotes := shipping.NewService(repo, carrier, cfg.Carrier.OriginPostalCode)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		UploadDir:          cfg.UploadDir,
		StaticDir:          cfg.StaticDir,
	}, h.Deps{
		Users:      users,
		Products:   products,
		Categories: categories,
		Carts:      cartService,
		Orders:     orders,
		Reviews:    reviews,
		Shipping:   quotes,
		Carrier:    carrierTokens,
		Tokens:     tokens,
		Uploader:   h.NewUploader(cfg.UploadDir, maxUploadFiles, maxUploadBytes),
		Health: []h.HealthCheck{
			{Name: "postgres", Check: repo.Ping},
			{Name: "mongodb", Check: func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) }},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		Log: log,
	})

	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer poller.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	} else {
		log.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()

	log.Info("server exited")
	return nil
}
