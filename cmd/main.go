package main

import (
	"context"
	"fmt"
	"os"

	"github.com/openfolk/contacts-backend/internal/data/db"
	"github.com/openfolk/contacts-backend/internal/data/repos"
	"github.com/openfolk/contacts-backend/internal/handlers"
	"github.com/openfolk/contacts-backend/internal/middleware"
	"github.com/openfolk/contacts-backend/internal/modules/aggregation"
	"github.com/openfolk/contacts-backend/internal/modules/derived"
	"github.com/openfolk/contacts-backend/internal/modules/lookup"
	"github.com/openfolk/contacts-backend/internal/modules/usage"
	"github.com/openfolk/contacts-backend/internal/observability"
	"github.com/openfolk/contacts-backend/internal/platform/envutil"
	"github.com/openfolk/contacts-backend/internal/platform/locale"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
	"github.com/openfolk/contacts-backend/internal/realtime"
	"github.com/openfolk/contacts-backend/internal/realtime/bus"
	"github.com/openfolk/contacts-backend/internal/server"
	"github.com/openfolk/contacts-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Tracing + metrics
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "contacts-backend",
		Environment: envutil.Str("DEPLOY_ENV", "development"),
		Version:     envutil.Str("SERVICE_VERSION", "dev"),
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}
	metrics := observability.Init(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	metrics.StartPostgresCollector(ctx, log, thePG)
	metrics.StartTableCountCollector(ctx, log, thePG)
	metrics.StartRedisCollector(ctx, log, os.Getenv("REDIS_ADDR"))
	metrics.StartServer(ctx, log, envutil.Str("METRICS_ADDR", ""))

	// Repos
	log.Info("Setting up repos from main...")
	bundle := repos.NewBundle(thePG, log)

	// Locale
	locales := locale.NewSettings(envutil.Str("CONTACTS_LOCALE", "en"), log)

	// Usage ranking config
	usageCfg := usage.DefaultConfig()
	if path := envutil.Str("USAGE_CONFIG_PATH", ""); path != "" {
		usageCfg, err = usage.LoadConfig(path)
		if err != nil {
			log.Error("Could not load usage config", "error", err, "path", path)
			os.Exit(1)
		}
	}

	// Modules
	log.Info("Setting up modules from main...")
	engine := aggregation.NewEngine(bundle, log)
	computer := derived.NewComputer(thePG, bundle, locales, log)
	resolver := lookup.NewResolver(bundle, log)
	tracker := usage.NewTracker(bundle, usageCfg, log)

	// Change bus
	var changeBus bus.Bus
	if os.Getenv("REDIS_ADDR") != "" {
		changeBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Error("Could not init redis change bus", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("REDIS_ADDR not set, using in-process change bus")
		changeBus = bus.NewLocalBus(log)
	}
	defer changeBus.Close()
	if err := changeBus.StartForwarder(ctx, func(e realtime.ChangeEvent) {
		observability.Current().IncChangeEvent(string(e.Type))
	}); err != nil {
		log.Warn("Could not start change event forwarder", "error", err)
	}

	// Services
	log.Info("Setting up services from main...")
	contactService := services.NewContactService(thePG, log, bundle, engine, computer, resolver, locales, changeBus)
	usageService := services.NewUsageService(thePG, log, bundle, tracker)
	lookupService := services.NewLookupService(thePG, log, bundle, resolver)
	syncService := services.NewSyncService(thePG, log, bundle, engine, computer, resolver, locales, changeBus)

	// Handlers
	log.Info("Setting up handlers from main...")
	rawContactHandler := handlers.NewRawContactHandler(contactService)
	contactHandler := handlers.NewContactHandler(contactService)
	groupHandler := handlers.NewGroupHandler(contactService)
	usageHandler := handlers.NewUsageHandler(usageService)
	lookupHandler := handlers.NewLookupHandler(lookupService)
	syncHandler := handlers.NewSyncHandler(syncService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		RequestLogger:     middleware.NewRequestLogger(log),
		RawContactHandler: rawContactHandler,
		ContactHandler:    contactHandler,
		GroupHandler:      groupHandler,
		UsageHandler:      usageHandler,
		LookupHandler:     lookupHandler,
		SyncHandler:       syncHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
