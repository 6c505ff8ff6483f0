package handlers

import (
	"pulseprint"
	"pulseprint/internal/logger"
	"pulseprint/internal/registry"
	"pulseprint/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	reg      *registry.Registry
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. The registry is
// needed directly for the WebSocket event stream.
func NewHandler(services *service.Service, reg *registry.Registry, log *logger.Logger) *Handler {
	return &Handler{services: services, reg: reg, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// WebSocket event stream (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerPrinterRoutes(api)
		h.registerLogRoutes(api)
		h.registerPreferenceRoutes(api)
	}
}

func (h *Handler) registerPrinterRoutes(api *gin.RouterGroup) {
	printers := api.Group("/printers")
	{
		printers.GET("/", h.listPrinters)
		printers.POST("/", h.addPrinter)
		printers.GET("/:id", h.getPrinter)
		printers.DELETE("/:id", h.removePrinter)
		// Body example: {"action":"pause"}
		printers.POST("/:id/command", h.sendCommand)
		printers.POST("/:id/pause", h.commandShortcut(pulseprint.ActionPause))
		printers.POST("/:id/resume", h.commandShortcut(pulseprint.ActionResume))
		printers.POST("/:id/stop", h.commandShortcut(pulseprint.ActionStop))
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

func (h *Handler) registerPreferenceRoutes(api *gin.RouterGroup) {
	prefs := api.Group("/preferences")
	{
		prefs.GET("/", h.listPreferences)
		prefs.GET("/:key", h.getPreference)
		prefs.PUT("/:key", h.setPreference)
	}
}
