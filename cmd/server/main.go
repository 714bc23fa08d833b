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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orsg/prisme/internal/api"
	"github.com/orsg/prisme/internal/cache"
	"github.com/orsg/prisme/internal/catalog"
	"github.com/orsg/prisme/internal/config"
	"github.com/orsg/prisme/internal/engine"
	"github.com/orsg/prisme/internal/generation"
	"github.com/orsg/prisme/internal/history"
	"github.com/orsg/prisme/internal/pkg/distlock"
	"github.com/orsg/prisme/internal/pkg/logger"
	"github.com/orsg/prisme/internal/repository/postgres"
	"github.com/orsg/prisme/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
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
	slash := strings.Index(rest, "/")
	if slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func loadConfig() *config.Config {
	path := os.Getenv("PRISME_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}
	return cfg
}

func main() {
	log.Println("PRISME report server (cmd/server/main.go)")

	cfg := loadConfig()
	logger.SetLevel(logger.ParseLevel(os.Getenv("PRISME_LOG_LEVEL")))

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Themes catalog
	store := catalog.NewStore(cfg.Paths.ThemesConfig)
	if cfg.Paths.WatchThemes {
		w, err := catalog.NewWatcher(store)
		if err != nil {
			log.Printf("[catalog] watcher unavailable, reload via POST /reload-config only: %v", err)
		} else if err := w.Start(ctx); err != nil {
			log.Printf("[catalog] watcher failed to start: %v", err)
		} else {
			defer w.Stop()
			log.Printf("[catalog] watching %s", cfg.Paths.ThemesConfig)
		}
	}

	output, err := storage.NewOutputDir(cfg.Paths.OutputDir)
	if err != nil {
		log.Fatalf("Failed to initialize output directory: %v", err)
	}

	// Backing services, all optional
	var db *sql.DB
	if cfg.History.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.History.DatabaseURL)
		if err != nil {
			log.Printf("[history] PostgreSQL unavailable at %s, using in-memory history: %v", extractHost(cfg.History.DatabaseURL), err)
			db = nil
		} else {
			defer db.Close()
			log.Printf("[history] connected to PostgreSQL at %s", extractHost(cfg.History.DatabaseURL))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisURL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("[cache] Redis unavailable, using in-memory years cache: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("[cache] connected to Redis")
		}
		pingCancel()
	}

	var publisher *storage.S3Publisher
	if cfg.Publish.Enabled() {
		publisher, err = storage.NewS3Publisher(ctx, cfg.Publish.S3Bucket, cfg.Publish.S3Region, cfg.Publish.S3Prefix, cfg.Publish.AWSProfile)
		if err != nil {
			log.Printf("[publish] S3 publishing disabled: %v", err)
			publisher = nil
		} else {
			log.Printf("[publish] mirroring reports to s3://%s/%s", cfg.Publish.S3Bucket, cfg.Publish.S3Prefix)
		}
	}

	// Report engine: process runner, optional coalescing, years cache
	proc, err := engine.NewProcessEngine(cfg.Engine, absPath(output.Path()), absPath(cfg.Paths.CSVSourcesDir))
	if err != nil {
		log.Fatalf("Failed to initialize report engine: %v", err)
	}
	var gen engine.ReportGenerator = proc
	if cfg.Engine.SingleFlight {
		gen = engine.NewShared(gen)
	}

	var yearsCache cache.YearsCache
	if redisClient != nil {
		yearsCache = cache.NewRedisCache(redisClient, cfg.Cache.YearsTTL())
	} else {
		mem := cache.NewMemoryCache(cfg.Cache.MemoryEntries, cfg.Cache.YearsTTL())
		store.OnReload(func(c *catalog.Catalog) {
			mem.Purge()
			logger.Info("years cache purged", "catalog_version", c.Version())
		})
		yearsCache = mem
	}
	gen = cache.NewGenerator(gen, yearsCache, func() uint64 { return store.Current().Version() })

	// Generation history
	var runs history.Store = history.NewMemoryStore(cfg.History.MemoryRecords)
	if db != nil {
		repo := postgres.NewHistoryRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Printf("[history] migration failed, using in-memory history: %v", err)
		} else {
			runs = repo
		}
	}

	opts := generation.Options{
		History:     runs,
		OutputDir:   output.Path(),
		MaxLogLines: cfg.History.MaxLogLines,
	}
	if publisher != nil {
		opts.Publisher = publisher
	}
	if cfg.Engine.SerializeIdentical {
		ttl := cfg.Engine.LockTTL()
		opts.Locks = func(key string) distlock.DistLock {
			return distlock.NewLock(redisClient, db, "generate:"+key, ttl)
		}
		opts.LockWait = ttl
		opts.LockTTL = ttl
	}
	orch := generation.New(gen, opts)

	handlers := api.NewHandlers(api.HandlerDeps{
		Catalog:      store,
		Orchestrator: orch,
		Output:       output,
		CSVDir:       cfg.Paths.CSVSourcesDir,
		AdminUsers:   cfg.Admin.Users,
	})
	var bucket api.BucketPinger
	if publisher != nil {
		bucket = publisher
	}
	hc := api.NewHealthChecker(cfg.Server.Version, store, output.Path(), db, redisClient, bucket)
	server := api.NewServer(cfg.Server, handlers, hc, cfg.Paths.FrontendDist)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info("server starting", "addr", addr, "version", cfg.Server.Version,
			"themes", cfg.Paths.ThemesConfig, "output", output.Path(), "engine", cfg.Engine.WorkDir)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
