// Package router provides HTTP routing, middleware configuration, and server setup for the parcel hub API
package router

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"slices"
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
	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/handlers"
	"github.com/jashub/parcelhub/app/middleware"
	"github.com/jashub/parcelhub/config"
	_ "github.com/jashub/parcelhub/docs"
	"github.com/jashub/parcelhub/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const (
	healthPath    = "/api/v1/health"
	healthTimeout = 3 * time.Second
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// HealthCheck is a named dependency check reported by the health endpoint
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Dependencies are the handlers and collaborators the routes are wired to
type Dependencies struct {
	Parcel      handlers.ParcelHandlerInterface
	ParcelAdmin handlers.ParcelAdminHandlerInterface
	Payment     handlers.PaymentHandlerInterface
	Report      handlers.ReportHandlerInterface
	Contact     handlers.ContactHandlerInterface
	AdminAuth   *middleware.AdminAuthMiddleware
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Health      []HealthCheck
	AccessLog   io.Writer
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app  *fiber.App
	cfg  *config.ProductionConfig
	deps Dependencies
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, deps Dependencies) *FiberRouter {
	fcfg := fiber.Config{
		AppName:      "ParcelHub API",
		ServerHeader: "ParcelHub",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  strictJSONDecoder,
	}
	if len(cfg.Server.TrustedProxies) > 0 {
		fcfg.TrustProxy = true
		fcfg.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies}
		fcfg.ProxyHeader = cfg.Server.ProxyHeader
	}

	return &FiberRouter{
		app:  fiber.New(fcfg),
		cfg:  cfg,
		deps: deps,
	}
}

// strictJSONDecoder rejects unknown fields and trailing data in request bodies
func strictJSONDecoder(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled && r.deps.Gatherer != nil {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.cfg.Deployment.IsDevelopment() {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.app.Get("/swagger", r.serveSwaggerUI)
		log.Println("API documentation enabled for development")
	}

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	// Public tracking
	parcels := api.Group("/parcels")
	parcels.Get("/", r.deps.Parcel.ListByRecipient)
	parcels.Get("/track/:trackingNumber", r.deps.Parcel.Track)
	parcels.Get("/track/:trackingNumber/quote", r.deps.Parcel.Quote)

	// Simulated checkout with a stricter limit against pickup code guessing
	payments := api.Group("/payments", r.rateLimiter(r.cfg.Security.PaymentRateLimit, nil))
	payments.Post("/", r.deps.Payment.Pay)
	payments.Post("/receipts/verify", r.deps.Payment.VerifyReceipt)

	contact := api.Group("/contact")
	contact.Get("/captcha", r.deps.Contact.Captcha)
	contact.Post("/", r.rateLimiter(r.cfg.Security.ContactRateLimit, nil), r.deps.Contact.Create)

	admin := api.Group("/admin", r.deps.AdminAuth.Authenticate())

	adminParcels := admin.Group("/parcels")
	adminParcels.Post("/", r.deps.ParcelAdmin.Receive)
	adminParcels.Get("/", r.deps.ParcelAdmin.List)
	adminParcels.Get("/:uuid", r.deps.ParcelAdmin.Get)
	adminParcels.Put("/:uuid", r.deps.ParcelAdmin.Update)
	adminParcels.Patch("/:uuid/status", r.deps.ParcelAdmin.UpdateStatus)
	adminParcels.Delete("/:uuid", r.deps.ParcelAdmin.Delete)
	adminParcels.Post("/:uuid/pickup-code", r.deps.ParcelAdmin.RegeneratePickupCode)

	admin.Get("/payments", r.deps.Payment.AdminList)

	admin.Get("/reports/summary", r.deps.Report.Summary)
	admin.Get("/reports/parcels.xlsx", r.deps.Report.Excel)

	adminContact := admin.Group("/contact-messages")
	adminContact.Get("/", r.deps.Contact.AdminList)
	adminContact.Patch("/:uuid/read", r.deps.Contact.MarkRead)
	adminContact.Delete("/:uuid", r.deps.Contact.Delete)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// rateLimiter limits requests per client IP within the configured window
func (r *FiberRouter) rateLimiter(limit int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: r.cfg.Security.RateLimitWindow,
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
		Next: next,
	})
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Recovery first so panics anywhere below are turned into 500s
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))

	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	if r.deps.HTTPMetrics != nil {
		r.app.Use(r.deps.HTTPMetrics.Handler())
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	origins := r.cfg.Security.AllowedOrigins
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			utils.AdminAPIKeyHeader,
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			fiber.HeaderContentDisposition,
		},
		// wildcard origins cannot be combined with credentials
		AllowCredentials: r.cfg.Security.AllowCredentials && !slices.Contains(origins, "*"),
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if r.cfg.Logging.AccessLog && r.deps.AccessLog != nil {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.deps.AccessLog,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	r.app.Use(r.securityMiddleware)
}

// securityMiddleware blocks configured client IPs
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	if len(r.cfg.Security.IPBlacklist) > 0 && slices.Contains(r.cfg.Security.IPBlacklist, c.IP()) {
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "Access denied from this IP address",
			Error: dto.ErrorDetail{
				Code: "ACCESS_DENIED",
			},
		})
	}
	return c.Next()
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

// healthCheck pings every dependency. Any failure turns the response into 503.
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	checks := make(fiber.Map, len(r.deps.Health))
	healthy := true
	for _, hc := range r.deps.Health {
		if hc.Ping == nil {
			checks[hc.Name] = "disabled"
			continue
		}
		if err := hc.Ping(ctx); err != nil {
			healthy = false
			checks[hc.Name] = "down: " + err.Error()
			continue
		}
		checks[hc.Name] = "ok"
	}

	status, message, state := fiber.StatusOK, "Service is healthy", "ok"
	if !healthy {
		status, message, state = fiber.StatusServiceUnavailable, "Service is degraded", "degraded"
	}

	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    state,
			"checks":    checks,
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "parcelhub-api",
		},
	})
}

// serveSwaggerJSON serves the registered OpenAPI document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
}

func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(swaggerUIPage)
}

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>ParcelHub API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/api/v1/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers, including body limit and routing errors
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			message = fe.Message
			errCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		log.Printf("Error %d: %v", code, err)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
