package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/careportal/internal/middleware"
	"github.com/jwalitptl/careportal/internal/model"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// RoleHandler serves both dashboards, mounting its routes once per role.
type RoleHandler interface {
	RegisterPatientRoutes(*gin.RouterGroup)
	RegisterDoctorRoutes(*gin.RouterGroup)
}

type ProfileHandler interface {
	Handler
	RegisterProfileRoutes(*gin.RouterGroup)
	RegisterDoctorRoutes(*gin.RouterGroup)
}

type Handlers struct {
	Auth        Handler
	Health      Handler
	Appointment RoleHandler
	Record      RoleHandler
	Profile     ProfileHandler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	Security       middleware.SecurityConfig
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// Metrics is the request instrumentation middleware, optional.
	Metrics gin.HandlerFunc
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
	)
	if config.Metrics != nil {
		engine.Use(config.Metrics)
	}
	if config.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(config.RequestTimeout))
	}
	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Auth.RegisterRoutes(api)

	dashboard := api.Group("/dashboard")
	dashboard.Use(r.auth.Authenticate())
	r.setupDashboard(dashboard)
}

func (r *Router) setupDashboard(rg *gin.RouterGroup) {
	r.handlers.Profile.RegisterRoutes(rg)

	patient := rg.Group("/patient")
	patient.Use(r.auth.RequireRole(model.RolePatient))
	r.handlers.Appointment.RegisterPatientRoutes(patient)
	r.handlers.Profile.RegisterProfileRoutes(patient)
	r.handlers.Record.RegisterPatientRoutes(r.uploads(patient))

	doctor := rg.Group("/doctor")
	doctor.Use(r.auth.RequireRole(model.RoleDoctor))
	r.handlers.Appointment.RegisterDoctorRoutes(doctor)
	r.handlers.Profile.RegisterDoctorRoutes(doctor)
	r.handlers.Record.RegisterDoctorRoutes(r.uploads(doctor))
}

// uploads caps request bodies on the record routes.
func (r *Router) uploads(rg *gin.RouterGroup) *gin.RouterGroup {
	g := rg.Group("")
	if r.config.MaxUploadBytes > 0 {
		g.Use(middleware.SizeLimit(r.config.MaxUploadBytes))
	}
	return g
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
