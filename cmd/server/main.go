package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/saborportugues/api/internal/cache"
	"github.com/saborportugues/api/internal/config"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/events"
	"github.com/saborportugues/api/internal/payment"
	"github.com/saborportugues/api/internal/realtime"
	"github.com/saborportugues/api/internal/router"
	"github.com/saborportugues/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	// Slug cache (optional)
	var slugCache *cache.RedisCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("WARN: redis unreachable, slugs will be read from the database: %v", err)
		}
		slugCache = cache.NewRedisCache(client, cfg.SlugCacheTTL)
		log.Println("Slug cache enabled")
	}
	slugs := cache.NewSlugResolver(queries, slugCache)

	// Order event stream (optional)
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kp.Close()
		publisher = kp
		log.Printf("Publishing order events to %s", cfg.KafkaTopic)
	}

	// Checkout (optional)
	var checkout payment.Checkout = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		checkout = payment.NewStripeCheckout(cfg.StripeSecretKey)
	} else {
		log.Println("WARN: STRIPE_SECRET_KEY not set, subscription checkout disabled")
	}

	// Realtime: database notifications fan out to tracked order views
	hub := ws.NewHub()
	go hub.Run(ctx)
	go realtime.NewListener(pool, hub).Run(ctx)

	r := router.New(cfg, queries, pool, hub, slugs, publisher, checkout)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
