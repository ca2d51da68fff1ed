// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/app/handlers"
	"github.com/linkcrm/lead-engine/app/middleware"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app                 *fiber.App
	config              *config.ProductionConfig
	allocationHandler   handlers.AllocationHandlerInterface
	ruleHandler         handlers.RuleHandlerInterface
	communityHandler    handlers.CommunityHandlerInterface
	notificationHandler handlers.NotificationHandlerInterface
	statsHandler        handlers.StatsHandlerInterface
	authMiddleware      *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	allocationHandler handlers.AllocationHandlerInterface,
	ruleHandler handlers.RuleHandlerInterface,
	communityHandler handlers.CommunityHandlerInterface,
	notificationHandler handlers.NotificationHandlerInterface,
	statsHandler handlers.StatsHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Lead Engine API",
		ServerHeader: "lead-engine",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:                 app,
		config:              cfg,
		allocationHandler:   allocationHandler,
		ruleHandler:         ruleHandler,
		communityHandler:    communityHandler,
		notificationHandler: notificationHandler,
		statsHandler:        statsHandler,
		authMiddleware:      authMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Prometheus scrape endpoint outside the API group
	if r.config.Metrics.Enabled {
		r.app.Get(r.config.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// API documentation route (development only)
	if os.Getenv("APP_ENV") == "development" || os.Getenv("APP_ENV") == "local" {
		api.Get("/docs", r.getAPIDocumentation)
		log.Println("API documentation enabled for development")
	}

	// Apply general rate limiting to all API routes (aligned with nginx)
	api.Use(limiter.New(limiter.Config{
		Max:        2000,            // Maximum 2000 requests (matches nginx api zone)
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/v1/health"
		},
	}))

	// All engine endpoints require an authenticated caller
	authenticated := r.authMiddleware.Authenticate()

	// Lead allocation endpoints
	leads := api.Group("/leads")
	leads.Post("/allocate", r.allocationHandler.AllocateLead, authenticated)
	leads.Post("/allocate/test", r.allocationHandler.TestAllocation, authenticated)
	leads.Post("/reassign", r.allocationHandler.ManualReassign, authenticated)

	// Allocation rule management
	rules := api.Group("/rules")
	rules.Post("/", r.ruleHandler.CreateAllocationRule, authenticated)
	rules.Get("/", r.ruleHandler.ListAllocationRules, authenticated)
	rules.Put("/:rule_id", r.ruleHandler.UpdateAllocationRule, authenticated)
	rules.Delete("/:rule_id", r.ruleHandler.DeleteAllocationRule, authenticated)

	// Community mapping and reallocation
	communities := api.Group("/communities")
	communities.Post("/mapping-rules", r.communityHandler.CreateMappingRule, authenticated)
	communities.Get("/mapping-rules", r.communityHandler.ListMappingRules, authenticated)
	communities.Post("/mapping-rules/test", r.communityHandler.TestMapping, authenticated)
	communities.Put("/mapping-rules/:mapping_rule_id", r.communityHandler.UpdateMappingRule, authenticated)
	communities.Delete("/mapping-rules/:mapping_rule_id", r.communityHandler.DeleteMappingRule, authenticated)
	communities.Post("/reallocate", r.communityHandler.ReallocateByCommunity, authenticated)

	// Batch reallocation gets its own stricter limit: one run can touch
	// thousands of followups
	batch := communities.Group("/reallocate/batch")
	batch.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	}))
	batch.Post("/", r.communityHandler.BatchReallocateByCommunity, authenticated)

	// Duplicate notifications
	notifications := api.Group("/notifications")
	notifications.Get("/duplicates", r.notificationHandler.ListPendingNotifications, authenticated)
	notifications.Post("/duplicates/:notification_id/handled", r.notificationHandler.MarkNotificationHandled, authenticated)

	// Allocation statistics
	stats := api.Group("/stats")
	stats.Get("/allocation", r.statsHandler.GetAllocationStats, authenticated)
	stats.Get("/allocation/export", r.statsHandler.ExportAllocationReport, authenticated)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.config.Security.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// XLSX exports are already deflate-compressed
			contentType := c.Get("Content-Type")
			return strings.Contains(contentType, "spreadsheetml")
		},
	}))

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// HTTP metrics
	if r.config.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "lead-engine-api",
		},
	})
}

// API documentation endpoint
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	docs := GetRouteDocumentation()
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Lead Engine API Documentation",
			"version":     "1.0.0",
			"description": "Lead allocation, duplicate detection, and community reallocation API",
			"endpoints":   docs,
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/leads/allocate",
			"description": "Allocate a new lead to a sales user",
			"parameters": map[string]any{
				"organization_id": "string (required) - Organization UUID",
				"lead_data":       "object (required) - Lead intake payload",
				"directive":       "object (optional) - Explicit assignment directive",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/leads/allocate/test",
			"description": "Dry-run the allocation pipeline without persisting",
			"parameters": map[string]any{
				"organization_id": "string (required) - Organization UUID",
				"lead_data":       "object (required) - Hypothetical lead payload",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/leads/reassign",
			"description": "Manually reassign a lead to another user",
			"parameters": map[string]any{
				"leadid":      "string (required) - Lead ID",
				"new_user_id": "number (required) - Target user ID",
				"reason":      "string (optional) - Reassignment reason",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/rules",
			"description": "List allocation rules of an organization",
			"parameters": map[string]any{
				"organization_id": "string (required) - Organization UUID",
				"is_active":       "bool (optional) - Filter by active state",
			},
		},
		{
			"method":      "POST",
			"path":        "/api/v1/communities/reallocate/batch",
			"description": "Reallocate every lead of a community to its organization admin",
			"parameters": map[string]any{
				"community":  "string (required) - Community name",
				"date_start": "string (optional) - Creation date lower bound (YYYY-MM-DD)",
				"date_end":   "string (optional) - Creation date upper bound (YYYY-MM-DD)",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/stats/allocation",
			"description": "Allocation statistics over a date window",
			"parameters": map[string]any{
				"organization_id": "string (required) - Organization UUID",
				"date_start":      "string (optional) - Start date (YYYY-MM-DD)",
				"date_end":        "string (optional) - End date (YYYY-MM-DD)",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/health",
			"description": "Health check endpoint",
			"parameters":  map[string]any{},
		},
	}
}
