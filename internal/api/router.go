package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/push"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log *logrus.Logger
	// DB is nil when the server runs on in-memory storage.
	DB          SchemaChecker
	Hub         *push.Hub
	Masters     MasterRepository
	Audit       AuditRepository
	Auth        AuthRepository
	Employees   EmployeeRepository
	Batches     BatchRepository
	Sessions    middleware.SessionParser
	Users       UserChecker
	CORSOrigins []string
	Version     string
	Development bool
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB
	rateLimit   = 100     // requests per second per IP
	rateBurst   = 200     // token bucket burst size

	// Login attempts per second per IP; the brute-force guard limits per email.
	loginRate  = 1
	loginBurst = 20
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders(!deps.Development))
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, "global", rateLimit, rateBurst, middleware.ByClientIP).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	r := responder{log: deps.Log, dev: deps.Development}

	var hub ClientCounter
	if deps.Hub != nil {
		hub = deps.Hub
	}

	health := NewHealthHandler(deps.DB, hub, deps.Log, deps.Version)
	auth := NewAuthHandler(deps.Auth, r)
	masters := NewMasterHandler(deps.Masters, deps.Audit, r)
	employees := NewEmployeeHandler(deps.Employees, deps.Audit, deps.Users, r)
	batches := NewBatchHandler(deps.Batches, deps.Audit, r)
	pushes := NewPushHandler(ctx, deps.Hub, deps.Users, deps.CORSOrigins, r)

	// Health, readiness and login are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)
	loginLimit := middleware.NewRateLimiter(ctx, "login", loginRate, loginBurst, middleware.ByClientIP)
	api.POST("/auth/login", loginLimit.Handler(), auth.Login)

	api.Use(middleware.AuthMiddleware(deps.Sessions, deps.Users, deps.Log))

	api.GET("/auth/session", auth.Session)

	// Master data, one route set per kind.
	admin := api.Group("/admin")
	admin.GET("/kinds", masters.Kinds)
	for _, kind := range models.Kinds() {
		g := admin.Group("/" + kind.Path)
		g.GET("", masters.List(kind))
		g.POST("", masters.Create(kind))
		g.PUT("", masters.Update(kind))
		g.DELETE("", masters.Delete(kind))
		g.GET("/audit", masters.Audit(kind))
	}

	// Employees.
	emp := admin.Group("/employees", middleware.RequireRole(models.RoleAdmin))
	emp.GET("", employees.List)
	emp.POST("", employees.Create)
	emp.PUT("", employees.Update)
	emp.DELETE("", employees.Delete)
	emp.GET("/audit", employees.Audit)

	// Batches.
	api.GET("/batches", batches.List)
	api.POST("/batches", batches.Create)
	api.GET("/batches/audit", batches.Audit)
	api.GET("/batches/:id", batches.Get)
	api.PATCH("/batches/:id/status", batches.UpdateStatus)
	api.PATCH("/batches/:id/tests/:testId/status", batches.UpdateTestStatus)
	api.DELETE("/batches/:id", batches.Delete)

	// Change subscriptions.
	if deps.Hub != nil {
		api.GET("/sse/master-data", pushes.SSE)
		api.GET("/ws/master-data", pushes.WebSocket)
	}
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	useJSONFieldNames()

	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api"), deps)

	return r
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid := middleware.RequestIDFrom(c); rid != "" {
			fields["request_id"] = rid
		}
		if uid := c.GetString(middleware.UserIDKey); uid != "" {
			fields["user_id"] = uid
		}
		log.WithFields(fields).Info("request")
	}
}
