package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/openfolk/contacts-backend/internal/handlers"
	"github.com/openfolk/contacts-backend/internal/middleware"
)

type RouterConfig struct {
	RequestLogger     *middleware.RequestLogger
	RawContactHandler *handlers.RawContactHandler
	ContactHandler    *handlers.ContactHandler
	GroupHandler      *handlers.GroupHandler
	UsageHandler      *handlers.UsageHandler
	LookupHandler     *handlers.LookupHandler
	SyncHandler       *handlers.SyncHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("contacts-backend"))
	if cfg.RequestLogger != nil {
		router.Use(cfg.RequestLogger.Handler())
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Raw contacts and their data rows
		api.POST("/raw-contacts", cfg.RawContactHandler.Create)
		api.GET("/raw-contacts/:id", cfg.RawContactHandler.Get)
		api.DELETE("/raw-contacts/:id", cfg.RawContactHandler.Delete)
		api.PUT("/raw-contacts/:id/aggregation-mode", cfg.RawContactHandler.SetAggregationMode)
		api.PUT("/raw-contacts/:id/starred", cfg.RawContactHandler.SetStarred)
		api.POST("/raw-contacts/:id/data", cfg.RawContactHandler.AddDataRow)
		api.PUT("/data/:id", cfg.RawContactHandler.UpdateDataRow)
		api.DELETE("/data/:id", cfg.RawContactHandler.DeleteDataRow)

		// Aggregate contacts
		api.GET("/contacts/:id", cfg.ContactHandler.Get)
		api.PUT("/contacts/:id/starred", cfg.ContactHandler.SetStarred)
		api.PUT("/contacts/:id/pin", cfg.ContactHandler.Pin)
		api.DELETE("/contacts/:id/pin", cfg.ContactHandler.Unpin)
		api.POST("/aggregation-exceptions", cfg.ContactHandler.SetException)
		api.DELETE("/aggregation-exceptions", cfg.ContactHandler.ClearException)
		api.PUT("/locale", cfg.ContactHandler.SetLocale)

		// Accounts and groups
		api.POST("/accounts", cfg.GroupHandler.CreateAccount)
		api.PUT("/accounts/:id/ungrouped-visible", cfg.GroupHandler.SetUngroupedVisible)
		api.POST("/groups", cfg.GroupHandler.CreateGroup)
		api.PUT("/groups/:id/visible", cfg.GroupHandler.SetVisible)
		api.DELETE("/groups/:id", cfg.GroupHandler.Delete)

		// Usage and rankings
		api.POST("/usage", cfg.UsageHandler.Record)
		api.DELETE("/usage", cfg.UsageHandler.DeleteAll)
		api.GET("/rankings/frequent", cfg.UsageHandler.Frequent)
		api.GET("/rankings/starred", cfg.UsageHandler.Starred)
		api.GET("/rankings/combined", cfg.UsageHandler.Combined)
		api.GET("/rankings/decayed", cfg.UsageHandler.Decayed)

		// Lookup
		api.GET("/lookup/:key", cfg.LookupHandler.Resolve)
		api.GET("/phone-lookup", cfg.LookupHandler.ByPhone)
		api.GET("/phone-lookup/rows", cfg.LookupHandler.ByPhoneRows)

		// Sync adapters
		api.GET("/sync/accounts/:id/dirty", cfg.SyncHandler.ListDirty)
		api.POST("/sync/clear-dirty", cfg.SyncHandler.ClearDirty)
		api.GET("/sync/deleted", cfg.SyncHandler.DeletedSince)
		api.DELETE("/sync/raw-contacts/:id", cfg.SyncHandler.PurgeRawContact)
	}

	return router
}
