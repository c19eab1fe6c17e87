package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"asistencia/internal/attendance"
	"asistencia/internal/auth"
	"asistencia/internal/cloudinary"
	"asistencia/internal/config"
	"asistencia/internal/device"
	"asistencia/internal/event"
	"asistencia/internal/httpmiddleware"
	"asistencia/internal/store"
	"asistencia/internal/student"
	"asistencia/internal/user"

	areapkg "asistencia/internal/area"
)

// Server wires the services into gin handlers.
type Server struct {
	cfg        config.App
	db         *store.DB
	redis      *store.Redis
	areas      *areapkg.Service
	devices    *device.Service
	students   *student.Service
	users      *user.Service
	events     *event.Service
	registrar  *attendance.Service
	cdn        *cloudinary.Client
	limiter    *httpmiddleware.SimpleTokenBucket
}

// New builds a server. cdn may be nil when Cloudinary is not configured.
func New(cfg config.App, db *store.DB, redisClient *store.Redis,
	areas *areapkg.Service, devices *device.Service, students *student.Service,
	users *user.Service, events *event.Service, registrar *attendance.Service,
	cdn *cloudinary.Client) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		redis:     redisClient,
		areas:     areas,
		devices:   devices,
		students:  students,
		users:     users,
		events:    events,
		registrar: registrar,
		cdn:       cdn,
		limiter:   httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
	}
}

// Router assembles the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	r.POST("/v1/auth/login", s.login)

	// Unauthenticated hardware path: scan ingestion and event polling.
	scans := r.Group("/v1/scans", s.limiter.GinMiddleware())
	scans.POST("", s.registerScan)
	scans.GET("/active-event", s.activeEventForDevice)

	authd := r.Group("/v1", auth.RequireUser(s.cfg.JWTSigningKey, s.cfg.JWTIssuer))
	{
		authd.GET("/auth/me", s.me)

		authd.GET("/areas", s.listAreas)
		authd.POST("/areas", auth.RequireAdmin(), s.createArea)
		authd.GET("/areas/:id", s.getArea)
		authd.PUT("/areas/:id", auth.RequireAdmin(), s.updateArea)
		authd.DELETE("/areas/:id", auth.RequireAdmin(), s.deleteArea)

		authd.GET("/devices", s.listDevices)
		authd.POST("/devices", s.createDevice)
		authd.GET("/devices/:id", s.getDevice)
		authd.PUT("/devices/:id", s.updateDevice)
		authd.DELETE("/devices/:id", s.deleteDevice)

		authd.GET("/students", s.listStudents)
		authd.POST("/students", s.createStudent)
		authd.GET("/students/:id", s.getStudent)
		authd.PUT("/students/:id", s.updateStudent)
		authd.GET("/students/:id/attendance", s.studentAttendance)
		authd.GET("/carnets/:code", s.studentByCarnet)

		authd.GET("/events", s.listEvents)
		authd.POST("/events", s.createEvent)
		authd.GET("/events/:id", s.getEvent)
		authd.PUT("/events/:id", s.updateEvent)
		authd.DELETE("/events/:id", s.deleteEvent)
		authd.GET("/events/:id/attendance", s.eventAttendance)
		authd.GET("/events/:id/attendance/stats", s.eventStats)
		authd.POST("/events/:id/photos", s.addEventPhoto)
		authd.DELETE("/events/:id/photos/:photoID", s.removeEventPhoto)

		authd.GET("/users", s.listUsers)
		authd.POST("/users", s.createUser)
		authd.PUT("/users/:id", s.updateUser)
		authd.DELETE("/users/:id", s.deleteUser)

		authd.POST("/attendance", s.registerManual)
		authd.DELETE("/attendance/:id", auth.RequireAdmin(), s.deleteAttendance)

		authd.GET("/export/attendance", s.exportAttendance)
	}

	return r
}

func (s *Server) healthz(c *gin.Context) {
	redisHealthy := s.redis.Healthy(c.Request.Context())
	dbHealthy := s.db != nil && s.db.Client.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}

// CORS middleware for browser requests from the dashboard SPA.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
