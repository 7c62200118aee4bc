// Command server boots the storefront query engine process: config load,
// logger construction, singleton client construction, pipeline wiring, the
// Kafka cache-invalidation consumer, and graceful HTTP shutdown — matching
// search-service/cmd/main.go's bootstrap sequence.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-query-engine/internal/cache"
	"storefront-query-engine/internal/config"
	"storefront-query-engine/internal/configstore"
	"storefront-query-engine/internal/esclient"
	"storefront-query-engine/internal/events"
	"storefront-query-engine/internal/filterconfig"
	"storefront-query-engine/internal/httpapi"
	"storefront-query-engine/internal/logging"
	"storefront-query-engine/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	log.Println("server: starting storefront query engine")

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("server: failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("server: failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("server: configuration loaded", zap.Int("port", cfg.Server.Port))

	esClient, err := esclient.GetClient(&cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("server: failed to connect to elasticsearch", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.GetDSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("server: failed to connect to postgres", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.GetAddress(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("server: redis ping failed, config-store cache will degrade to Postgres reads", zap.Error(err))
	}

	postgresStore := configstore.NewPostgresStore(db)
	cachedStore := configstore.NewCachedStore(postgresStore, redisClient, cfg.Cache.ConfigStoreCacheTTL)
	resolver := filterconfig.NewResolver(cachedStore, cfg.Cache.ConfigLookupTTL)

	cacheManager := cache.NewManager(&cfg.Cache)
	defer cacheManager.Close()

	limiter := ratelimit.New(&cfg.RateLimit)
	defer limiter.Close()

	esWrapped := esclient.New(esClient)
	service := httpapi.NewService(resolver, cacheManager, esWrapped, logger)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()

	configConsumer, err := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConfigUpdatedTopic, cfg.Kafka.ConsumerGroup, cacheManager, logger)
	if err != nil {
		logger.Error("server: failed to build config-update consumer", zap.Error(err))
	} else {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("server: config-update consumer panicked", zap.Any("recover", r))
				}
			}()
			if err := configConsumer.Start(consumerCtx); err != nil && err != context.Canceled {
				logger.Error("server: config-update consumer stopped", zap.Error(err))
			}
		}()
		defer configConsumer.Close()
	}

	productConsumer, err := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ProductIndexedTopic, cfg.Kafka.ConsumerGroup, cacheManager, logger)
	if err != nil {
		logger.Error("server: failed to build product-indexed consumer", zap.Error(err))
	} else {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("server: product-indexed consumer panicked", zap.Any("recover", r))
				}
			}()
			if err := productConsumer.Start(consumerCtx); err != nil && err != context.Canceled {
				logger.Error("server: product-indexed consumer stopped", zap.Error(err))
			}
		}()
		defer productConsumer.Close()
	}

	gin.SetMode(cfg.Server.Mode)
	router := httpapi.SetupRouter(service, limiter, logger)

	srv := &http.Server{
		Addr:         ":" + itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server: listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server: failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: forced shutdown", zap.Error(err))
	}
	cancelConsumer()

	logger.Info("server: stopped")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
