package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/config"
	"github.com/storymine-hq/storymine-engine/pkg/database"
	"github.com/storymine-hq/storymine-engine/pkg/handlers"
	"github.com/storymine-hq/storymine-engine/pkg/logging"
	"github.com/storymine-hq/storymine-engine/pkg/middleware"
	"github.com/storymine-hq/storymine-engine/pkg/repositories"
	"github.com/storymine-hq/storymine-engine/pkg/retry"
	"github.com/storymine-hq/storymine-engine/pkg/server"
	"github.com/storymine-hq/storymine-engine/pkg/services"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Strings("storymap_candidates", cfg.StoryMap.Candidates()),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("narrative_llm", cfg.Anthropic.APIKey != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database bootstrap. Failure is not fatal: the service serves degraded
	// and a background loop keeps retrying until it connects.
	dbManager := database.NewManager(&cfg.Database, logger)
	defer dbManager.Close()
	if err := dbManager.Connect(ctx); err != nil {
		dbManager.StartReconnectLoop(ctx, database.ReconnectInterval)
	} else if !cfg.IsProduction() {
		provisionSchema(cfg, logger)
	}

	cache, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Cache)
	})
	if err != nil {
		logger.Warn("Redis unavailable, stats caching disabled", zap.Error(err))
		cache = nil
	}
	if cache != nil {
		defer cache.Close()
	}

	upstream := storymap.NewClient(storymap.Config{
		Candidates:     cfg.StoryMap.Candidates(),
		APIKey:         cfg.StoryMap.APIKey,
		ProbeTimeout:   cfg.StoryMap.ProbeTimeout,
		RequestTimeout: cfg.StoryMap.RequestTimeout,
	}, logger)
	if url := upstream.Discover(ctx); url != storymap.Unavailable {
		logger.Info("StoryMap API located", zap.String("base_url", url))
	}

	articleRepo := repositories.NewArticleRepository(dbManager, cfg.Database.QueryTimeout)
	entityRepo := repositories.NewEntityRepository(dbManager, cfg.Database.QueryTimeout)
	statsRepo := repositories.NewStatsRepository(dbManager, cfg.Database.QueryTimeout)

	chatSvc := services.NewChatService(upstream, logger)
	statsSvc := services.NewStatsService(dbManager, []services.TierProbe{
		{Name: "intelligence", Counts: statsRepo.IntelligenceCounts},
		{Name: "legacy", Counts: statsRepo.LegacyCounts},
	}, cache, cfg.Cache.TTL, logger)
	narrativeSvc := services.NewNarrativeService(upstream, articleRepo,
		cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, dbManager, upstream, logger).RegisterRoutes(mux)
	handlers.NewArticlesHandler(articleRepo, upstream, logger).RegisterRoutes(mux)
	handlers.NewEntitiesHandler(entityRepo, upstream, logger).RegisterRoutes(mux)
	handlers.NewSearchHandler(upstream, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatSvc, logger).RegisterRoutes(mux)
	handlers.NewStatsHandler(statsSvc, upstream, logger).RegisterRoutes(mux)
	handlers.NewNarrativeHandler(narrativeSvc, logger).RegisterRoutes(mux)

	handler := middleware.CORS(cfg.CORSOrigin)(middleware.RequestLogger(logger)(mux))

	srv := server.New(server.Options{
		BindAddr: cfg.BindAddr,
		Port:     cfg.Port,
		PortFile: cfg.PortFile,
	}, handler, logger)
	if err := srv.Listen(); err != nil {
		logger.Fatal("Failed to bind", zap.Error(err))
	}

	logger.Info("Starting storymine-engine",
		zap.Int("port", srv.Port()), zap.String("version", cfg.Version))
	if err := srv.Serve(ctx); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Stopped")
}

// provisionSchema applies the bundled migrations over a short-lived
// database/sql handle, which is what the migrate driver expects.
func provisionSchema(cfg *config.Config, logger *zap.Logger) {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Warn("Schema provisioning skipped", zap.Error(err))
		return
	}
	defer db.Close()

	if err := database.RunMigrations(db, "migrations", logger); err != nil {
		logger.Warn("Schema provisioning failed",
			zap.String("error", logging.SanitizeError(err)))
	}
}
