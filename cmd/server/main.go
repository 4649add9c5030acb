package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/videocampaign/internal/ai"
	"github.com/ignite/videocampaign/internal/api"
	"github.com/ignite/videocampaign/internal/batch"
	"github.com/ignite/videocampaign/internal/config"
	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/personalize"
	"github.com/ignite/videocampaign/internal/pkg/httpretry"
	"github.com/ignite/videocampaign/internal/pkg/logger"
	"github.com/ignite/videocampaign/internal/recipient"
	"github.com/ignite/videocampaign/internal/repository/memory"
	"github.com/ignite/videocampaign/internal/repository/postgres"
	"github.com/ignite/videocampaign/internal/stats"
	"github.com/ignite/videocampaign/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Configure(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		RedactPII:  cfg.Logging.ShouldRedactPII(),
	}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := openDatabase(ctx, cfg.Database)
	if db != nil {
		defer db.Close()
	}
	redisClient := openRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	gen, err := buildGenerator(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("Failed to initialize AI providers: %v", err)
	}

	engine, err := personalize.New(gen,
		personalize.WithTierTable(tierOverrides(cfg.Personalization)),
		personalize.WithBackgroundModel(cfg.Personalization.BackgroundModel),
		personalize.WithEmailTemplates(cfg.Personalization.SubjectTemplate, cfg.Personalization.BodyTemplate),
	)
	if err != nil {
		log.Fatalf("Failed to initialize personalization engine: %v", err)
	}

	artifacts, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	var repo recipient.Repository
	if db != nil {
		repo = postgres.NewRecipientRepo(db)
		log.Println("Recipient store: PostgreSQL")
	} else {
		repo = memory.NewRecipientRepo()
		log.Println("Recipient store: in-memory (DATABASE_URL not set)")
	}
	recipients := recipient.NewService(repo)

	var aggOpts []stats.Option
	if redisClient != nil {
		aggOpts = append(aggOpts, stats.WithCache(stats.NewCache(redisClient, cfg.Batch.StatsCacheTTL())))
	}
	agg := stats.NewAggregator(recipients, aggOpts...)

	var procOpts []batch.Option
	if artifacts != nil {
		procOpts = append(procOpts, batch.WithArtifactStore(artifacts))
	}
	mgrOpts := []batch.ManagerOption{
		batch.WithLockTTL(cfg.Batch.LockTTL()),
		batch.WithInvalidator(agg),
		batch.WithProcessorOptions(procOpts...),
	}
	if redisClient != nil {
		mgrOpts = append(mgrOpts, batch.WithRedis(redisClient))
	}
	if db != nil {
		mgrOpts = append(mgrOpts, batch.WithDB(db))
	}
	batches := batch.NewManager(engine, recipients, mgrOpts...)

	handlers := api.NewHandlers(engine, recipients, batches, agg, api.NewHealthChecker(db, redisClient))
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.Routes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	// Running batches finish their in-flight recipient before exit.
	if err := batches.Shutdown(shutdownCtx); err != nil {
		log.Printf("Batch shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// openDatabase returns nil when no URL is configured or the database is
// unreachable; the server then runs on the in-memory store.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) *sql.DB {
	if cfg.URL == "" {
		return nil
	}
	dsn := cfg.URL
	if !strings.Contains(dsn, "connect_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "connect_timeout=5"
	}
	log.Printf("DB URL host portion: ...@%s/...", extractHost(dsn))

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	return db
}

func openRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		log.Println("Redis not configured, using PG advisory locks and no stats cache")
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(cfg.Addr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed (%s): %v, continuing without Redis", cfg.Addr, err)
		client.Close()
		return nil
	}
	log.Printf("Redis connected: %s", cfg.Addr)
	return client
}

// buildGenerator assembles the provider chain in configured order, skipping
// providers without credentials.
func buildGenerator(ctx context.Context, cfg config.AIConfig) (ai.TextGenerator, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout()}
	doer := httpretry.NewRetryClient(httpClient, cfg.MaxRetries)

	var gens []ai.TextGenerator
	for _, p := range cfg.Providers {
		switch p {
		case "anthropic":
			if cfg.Anthropic.APIKey == "" {
				continue
			}
			gens = append(gens, ai.NewAnthropicClient(ai.AnthropicConfig{
				APIKey:    cfg.Anthropic.APIKey,
				Model:     cfg.Anthropic.Model,
				BaseURL:   cfg.Anthropic.BaseURL,
				MaxTokens: cfg.MaxTokens,
			}, doer))
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				continue
			}
			gens = append(gens, ai.NewOpenAIClient(ai.OpenAIConfig{
				APIKey:    cfg.OpenAI.APIKey,
				Model:     cfg.OpenAI.Model,
				BaseURL:   cfg.OpenAI.BaseURL,
				MaxTokens: cfg.MaxTokens,
			}, doer))
		case "bedrock":
			client, err := ai.NewBedrockClient(ctx, ai.BedrockConfig{
				Region:          cfg.Bedrock.Region,
				ModelID:         cfg.Bedrock.ModelID,
				AccessKeyID:     cfg.Bedrock.AccessKey,
				SecretAccessKey: cfg.Bedrock.SecretKey,
				MaxTokens:       cfg.MaxTokens,
			})
			if err != nil {
				return nil, fmt.Errorf("bedrock: %w", err)
			}
			gens = append(gens, client)
		}
	}
	chain := ai.NewChain(gens...)
	if chain.Len() == 0 {
		log.Println("Warning: no AI provider configured; smart and advanced tiers will fall back to basic")
	} else {
		log.Printf("AI providers: %d configured (%s)", chain.Len(), strings.Join(cfg.Providers, ", "))
	}
	return chain, nil
}

func tierOverrides(cfg config.PersonalizationConfig) personalize.TierTable {
	out := make(personalize.TierTable, len(cfg.Tiers))
	for name, o := range cfg.Tiers {
		out[domain.Tier(name)] = personalize.TierConfig{Cost: o.Cost, ProcessingTimeMs: o.ProcessingTimeMs}
	}
	return out
}
