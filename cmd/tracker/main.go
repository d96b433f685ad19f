package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shillz96/solsim-sub011/internal/buffer"
	"github.com/Shillz96/solsim-sub011/internal/cache"
	"github.com/Shillz96/solsim-sub011/internal/enrich"
	"github.com/Shillz96/solsim-sub011/internal/handlers"
	"github.com/Shillz96/solsim-sub011/internal/jobs"
	"github.com/Shillz96/solsim-sub011/internal/notify"
	"github.com/Shillz96/solsim-sub011/internal/observability"
	"github.com/Shillz96/solsim-sub011/internal/scheduler"
	"github.com/Shillz96/solsim-sub011/internal/score"
	"github.com/Shillz96/solsim-sub011/internal/state"
	"github.com/Shillz96/solsim-sub011/internal/storage"
	"github.com/Shillz96/solsim-sub011/internal/storage/memory"
	"github.com/Shillz96/solsim-sub011/internal/storage/migrations"
	pgstore "github.com/Shillz96/solsim-sub011/internal/storage/postgres"
	"github.com/Shillz96/solsim-sub011/internal/stream"
	"github.com/Shillz96/solsim-sub011/internal/txcount"
)

func main() {
	// Parse flags
	wsEndpoint := flag.String("ws-endpoint", "wss://pumpportal.fun/api/data", "Upstream event feed WebSocket endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Chain RPC endpoint for authority checks (empty to disable)")
	dasEndpoint := flag.String("das-endpoint", "", "DAS-capable RPC endpoint for metadata (defaults to --rpc-endpoint)")
	marketAPI := flag.String("market-api", "", "Market data API base URL (empty for the public default)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address for cache, buffer and notifications")
	redisDB := flag.Int("redis-db", 0, "Redis database number")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	rowTTL := flag.Duration("cache-row-ttl", cache.DefaultRowTTL, "Cached token row TTL")
	syncInterval := flag.Duration("sync-interval", 30*time.Second, "Write-behind buffer flush interval")
	scoreInterval := flag.Duration("score-interval", 2*time.Minute, "Hot score recompute interval")
	cleanupInterval := flag.Duration("cleanup-interval", 10*time.Minute, "Lifecycle cleanup interval")
	deadRetention := flag.Duration("dead-retention", 7*24*time.Hour, "How long dead tokens are kept before deletion")
	idleWindow := flag.Duration("idle-window", 10*time.Minute, "Activity window for the background job liveness gate")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lshortfile)

	metrics := observability.NewMetrics("")

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, metrics, options{
		wsEndpoint:      *wsEndpoint,
		rpcEndpoint:     *rpcEndpoint,
		dasEndpoint:     *dasEndpoint,
		marketAPI:       *marketAPI,
		postgresDSN:     *postgresDSN,
		redisAddr:       *redisAddr,
		redisDB:         *redisDB,
		useMemory:       *useMemory,
		rowTTL:          *rowTTL,
		syncInterval:    *syncInterval,
		scoreInterval:   *scoreInterval,
		cleanupInterval: *cleanupInterval,
		deadRetention:   *deadRetention,
		idleWindow:      *idleWindow,
	})

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type options struct {
	wsEndpoint      string
	rpcEndpoint     string
	dasEndpoint     string
	marketAPI       string
	postgresDSN     string
	redisAddr       string
	redisDB         int
	useMemory       bool
	rowTTL          time.Duration
	syncInterval    time.Duration
	scoreInterval   time.Duration
	cleanupInterval time.Duration
	deadRetention   time.Duration
	idleWindow      time.Duration
}

// run wires every component and consumes the feed until ctx is
// cancelled or the stream gives up.
func run(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, opts options) error {
	// Require --postgres-dsn unless --use-memory is explicitly set
	if !opts.useMemory && opts.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	var tokenStore storage.TokenStore = memory.NewTokenStore()
	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		tokenStore = pgstore.NewTokenStore(pool)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: opts.redisAddr,
		DB:   opts.redisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", opts.redisAddr, err)
	}

	cacheMgr := cache.NewManager(redisClient, opts.rowTTL)
	notifier := notify.NewRedisNotifier(redisClient)
	txCounter := txcount.NewCounter(txcount.DefaultConfig())

	bufMgr := buffer.NewManager(buffer.Options{
		Client:  redisClient,
		Store:   tokenStore,
		Logger:  logger,
		Metrics: metrics,
	})

	stateMgr := state.NewManager(state.Options{
		Store:     tokenStore,
		Cache:     cacheMgr,
		Publisher: notifier,
		Registry:  notifier,
		Logger:    logger,
		Metrics:   metrics,
	})

	enricher := enrich.NewEnricher(enrich.Options{
		Store:     tokenStore,
		Cache:     cacheMgr,
		Authority: authorityProvider(opts),
		Chain:     chainProvider(opts),
		Market:    enrich.NewDexScreenerProvider(opts.marketAPI, nil),
		Logger:    logger,
		Metrics:   metrics,
	})

	eventHandlers := handlers.New(handlers.Options{
		Store:     tokenStore,
		Buffer:    bufMgr,
		Cache:     cacheMgr,
		State:     stateMgr,
		TxCounter: txCounter,
		Enricher:  enricher,
		Logger:    logger,
		Metrics:   metrics,
	})
	defer eventHandlers.Wait()

	// Background jobs
	jobCfg := jobs.DefaultConfig()
	jobCfg.ScoreInterval = opts.scoreInterval
	jobCfg.CleanupInterval = opts.cleanupInterval
	jobCfg.SyncInterval = opts.syncInterval
	jobCfg.DeadRetention = opts.deadRetention

	runner := jobs.NewRunner(jobs.Deps{
		Store:    tokenStore,
		Buffer:   bufMgr,
		Cache:    cacheMgr,
		State:    stateMgr,
		Registry: notifier,
		Weights:  score.DefaultWeights(),
		Logger:   logger,
		Metrics:  metrics,
	}, jobCfg)

	jobMgr := scheduler.NewManager(scheduler.Options{
		Gate:    scheduler.NewRedisGate(redisClient, opts.idleWindow, logger),
		Logger:  logger,
		Metrics: metrics,
	})
	if err := runner.RegisterAll(jobMgr); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	jobMgr.Start(ctx)
	defer jobMgr.StopAll()

	// Flush whatever is still staged on the way out.
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer flushCancel()
		if synced, err := bufMgr.Sync(flushCtx); err != nil {
			logger.Printf("final buffer flush: %v", err)
		} else if synced > 0 {
			logger.Printf("final buffer flush synced %d tokens", synced)
		}
	}()

	// Stream ingestion
	client := stream.NewClient(stream.Options{
		Endpoint: opts.wsEndpoint,
		Logger:   logger,
		Metrics:  metrics,
	})

	streamDone := make(chan error, 1)
	go func() {
		streamDone <- client.Run(ctx)
	}()

	logger.Printf("Consuming events from %s", opts.wsEndpoint)
	return consume(ctx, logger, client, eventHandlers, streamDone)
}

// consume drains the event channels until the stream terminates.
// Handler errors are logged and never stop ingestion.
func consume(ctx context.Context, logger *log.Logger, client *stream.Client, h *handlers.Handlers, streamDone <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return <-streamDone
		case err := <-streamDone:
			return err
		case ev, ok := <-client.NewTokens():
			if !ok {
				return <-streamDone
			}
			if err := h.HandleNewToken(ctx, ev); err != nil {
				logger.Printf("handle new token %s: %v", ev.Mint, err)
			}
		case ev, ok := <-client.Swaps():
			if !ok {
				return <-streamDone
			}
			if err := h.HandleSwap(ctx, ev); err != nil {
				logger.Printf("handle swap %s: %v", ev.Mint, err)
			}
		case ev, ok := <-client.Migrations():
			if !ok {
				return <-streamDone
			}
			if err := h.HandleMigration(ctx, ev); err != nil {
				logger.Printf("handle migration %s: %v", ev.Mint, err)
			}
		case ev, ok := <-client.NewPools():
			if !ok {
				return <-streamDone
			}
			if err := h.HandleNewPool(ctx, ev); err != nil {
				logger.Printf("handle new pool %s: %v", ev.BaseMint, err)
			}
		}
	}
}

func authorityProvider(opts options) enrich.AuthorityProvider {
	if opts.rpcEndpoint == "" {
		return nil
	}
	return enrich.NewRPCAuthorityProvider(opts.rpcEndpoint, nil)
}

func chainProvider(opts options) enrich.ChainMetadataProvider {
	endpoint := opts.dasEndpoint
	if endpoint == "" {
		endpoint = opts.rpcEndpoint
	}
	if endpoint == "" {
		return nil
	}
	return enrich.NewDASMetadataProvider(endpoint, nil)
}
