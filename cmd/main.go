/**
 * @description
 * This is the main entry point for the reconciliation-service. It is
 * responsible for initializing all components of the service, including
 * configuration, database connection, the Payrail API client, message
 * brokers, repositories, the core reconciliation engine, and the HTTP
 * server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/payrailclient: Client for the Payrail payment API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/orderflow/reconciliation-service/internal/api"
	"github.com/orderflow/reconciliation-service/internal/app"
	"github.com/orderflow/reconciliation-service/internal/config"
	"github.com/orderflow/reconciliation-service/internal/store"
	"github.com/orderflow/reconciliation-service/pkg/payrailclient"
	rmrabbit "github.com/orderflow/reconciliation-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.PayrailClientID) == "" || strings.TrimSpace(cfg.PayrailClientSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"payrail credentials must be configured\" env=PAYRAIL_CLIENT_ID,PAYRAIL_CLIENT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting reconciliation-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for reconciliation outcome events.
	// Outcomes are advisory, so a missing broker degrades to a fallback.
	var producer rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the Payrail API client used for event verification and
	// resource fetches.
	payrailClient := payrailclient.NewClient(
		cfg.PayrailClientID,
		cfg.PayrailClientSecret,
		cfg.PayrailCustomerID,
		cfg.PayrailUseSandbox,
		cfg.PayrailAPIBaseURL,
	)

	// Redis backs the duplicate-delivery guard. Without it the in-memory
	// guard keeps single-replica deployments covered.
	var dedup app.DedupGuard = app.NewMemoryDedupGuard()
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; using in-memory dedup guard\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory dedup guard\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory dedup guard\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				dedup = app.NewRedisDedupGuard(redisClient, cfg.RedisDedupPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the order resolver with the configured bounded-retry knobs.
	resolver := app.NewResolver(
		repository,
		time.Duration(cfg.ResolverInitialWaitMS)*time.Millisecond,
		time.Duration(cfg.ResolverRetryDelayMS)*time.Millisecond,
		cfg.ResolverRetryAttempts,
	)

	// Initialize the core reconciliation engine.
	reconciliationService := app.NewService(repository, payrailClient, resolver, producer, cfg.UpdateOrderOn)

	// Initialize the API handlers and router.
	webhookHandlers := api.NewWebhookHandlers(reconciliationService, dedup)
	router := api.ReconciliationRoutes(webhookHandlers, cfg.InternalAPIKey)

	// Wire up the order-placed consumer for retroactive reconciliation.
	orderPlacedConsumer := app.NewOrderPlacedConsumer(reconciliationService, repository)

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; retroactive reconciliation disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		orderBindings := map[string]func([]byte) bool{
			"order.placed": orderPlacedConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings("order_events", cfg.OrderEventQueue, orderBindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"order consumer start failed\" err=%v", err)
		}
		log.Println("level=info component=bootstrap msg=\"order-placed consumer started\"")
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
