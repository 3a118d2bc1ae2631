package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/outreach-engine/internal/compose"
	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/engine"
	"github.com/ignite/outreach-engine/internal/provider"
	"github.com/ignite/outreach-engine/internal/ratelimit"
	"github.com/ignite/outreach-engine/internal/repository/postgres"
	"github.com/ignite/outreach-engine/internal/service/campaign"
	"github.com/ignite/outreach-engine/internal/storage"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Starting outreach worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", configPath, err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis unreachable (%v), falling back to advisory locks", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
	}

	setupCtx := context.Background()
	docs, err := storage.NewS3Store(setupCtx, cfg.Storage.S3Bucket, cfg.Storage.S3Region, cfg.Storage.AWSProfile)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	var composer compose.Composer = compose.Static{}
	if cfg.Compose.Enabled {
		bedrock, err := compose.NewBedrockComposer(setupCtx, cfg.Compose.Region, cfg.Compose.ModelID)
		if err != nil {
			log.Printf("Bedrock unavailable (%v), using static messages", err)
		} else {
			composer = bedrock
			log.Printf("AI composition enabled (model %s)", cfg.Compose.ModelID)
		}
	}

	providerClient := provider.NewHTTPClient(provider.Options{
		BaseURL:        cfg.Provider.BaseURL,
		APIKey:         cfg.Provider.APIKey,
		TimeoutSeconds: cfg.Provider.TimeoutSeconds,
		MaxRetries:     cfg.Provider.MaxRetries,
	})

	campaigns := postgres.NewCampaignRepo(db)
	leads := postgres.NewLeadRepo(db)
	accounts := postgres.NewAccountRepo(db)
	steps := postgres.NewStepRepo(db)

	campaignService := campaign.NewService(campaigns, leads, accounts, docs)

	limits := ratelimit.LimitsFromEnv()
	if cfg.RateLimit.Daily > 0 {
		limits.Daily = cfg.RateLimit.Daily
	}
	if cfg.RateLimit.Weekly > 0 {
		limits.Weekly = cfg.RateLimit.Weekly
	}

	eng := engine.New(engine.Deps{
		Campaigns: campaigns,
		Leads:     leads,
		Accounts:  accounts,
		Steps:     steps,
		Workflows: docs,
		Provider:  providerClient,
		Composer:  composer,
		Starter:   campaignService,
		Limits:    limits,
	})

	driver := engine.NewTickDriver(eng, redisClient, db, engine.DriverConfig{
		StepInterval:   cfg.Engine.StepInterval(),
		HourlyInterval: cfg.Engine.HourlyInterval(),
	})
	driver.Start()

	webhooks := engine.NewWebhookServer(steps)
	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: webhooks.Router(),
	}
	go func() {
		log.Printf("Webhook server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Webhook server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Webhook server shutdown: %v", err)
	}
	driver.Stop()

	log.Println("Worker stopped")
}
