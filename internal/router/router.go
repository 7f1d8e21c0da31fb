package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/trace-api/internal/handler"
	catalogH "github.com/jwalitptl/trace-api/internal/handler/catalog"
	historyH "github.com/jwalitptl/trace-api/internal/handler/history"
	ledgerH "github.com/jwalitptl/trace-api/internal/handler/ledger"
	organizationH "github.com/jwalitptl/trace-api/internal/handler/organization"
	recallH "github.com/jwalitptl/trace-api/internal/handler/recall"
	"github.com/jwalitptl/trace-api/internal/middleware"
	"github.com/jwalitptl/trace-api/internal/model"
)

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	orgH     *organizationH.Handler
	catalogH *catalogH.Handler
	ledgerH  *ledgerH.Handler
	recallH  *recallH.Handler
	historyH *historyH.Handler
	h        *handler.Handler
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	RateLimit     rate.Limit
	RateBurst     int
	Timeout       time.Duration
	MetricsPrefix string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	orgH *organizationH.Handler,
	catalogH *catalogH.Handler,
	ledgerH *ledgerH.Handler,
	recallH *recallH.Handler,
	historyH *historyH.Handler,
	h *handler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()

	engine := gin.New()

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		orgH:     orgH,
		catalogH: catalogH,
		ledgerH:  ledgerH,
		recallH:  recallH,
		historyH: historyH,
		h:        h,
		metrics:  initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		gin.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(config.Timeout),
		middleware.RequestID(),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.setupHealthCheck(api)
	r.setupPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("", r.h.HealthCheck)
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
		health.GET("/metrics", r.h.MetricsHandler)
	}
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/organizations", r.orgH.Register)

	// Anyone holding a physical unit can trace it by its printed code.
	rg.GET("/trace", r.historyH.TraceByCode)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	orgs := rg.Group("/organizations")
	{
		orgs.GET("", r.orgH.List)
		orgs.GET("/:id", r.orgH.Get)
	}

	products := rg.Group("/products")
	{
		products.GET("", r.catalogH.ListProducts)
		products.GET("/:id", r.catalogH.GetProduct)
		products.POST("", r.auth.RequireType(model.OrgTypeManufacturer), r.catalogH.CreateProduct)
		products.POST("/:id/deactivate", r.catalogH.DeactivateProduct)
	}

	lots := rg.Group("/lots")
	{
		lots.GET("", r.catalogH.ListLots)
		lots.GET("/:id", r.catalogH.GetLot)
		lots.GET("/:id/status", r.catalogH.LotStatus)
		lots.POST("", r.auth.RequireType(model.OrgTypeManufacturer), r.ledgerH.Produce)
	}

	shipments := rg.Group("/shipments")
	{
		shipments.GET("", r.historyH.ListShipments)
		shipments.GET("/:id", r.historyH.GetShipment)
		shipments.POST("", r.auth.RequireType(model.OrgTypeManufacturer, model.OrgTypeDistributor), r.ledgerH.Ship)
		shipments.POST("/:id/recall", r.recallH.RecallShipment)
		shipments.POST("/:id/return", r.recallH.ReturnShipment)
	}

	treatments := rg.Group("/treatments")
	{
		treatments.GET("", r.historyH.ListTreatments)
		treatments.GET("/:id", r.historyH.GetTreatment)
		treatments.POST("", r.auth.RequireType(model.OrgTypeHospital), r.ledgerH.Treat)
		treatments.POST("/:id/recall", r.recallH.RecallTreatment)
	}

	rg.POST("/disposals", r.ledgerH.Dispose)

	history := rg.Group("/history")
	{
		history.GET("", r.historyH.ListSummaries)
		history.GET("/feed", r.historyH.ListSummariesCursor)
	}

	rg.GET("/codes/:id/trace", r.historyH.TraceCode)

	rg.GET("/inventory", r.catalogH.Inventory)
	rg.GET("/inventory/expired", r.catalogH.ExpiredStock)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}

func (r *Router) Use(middleware ...gin.HandlerFunc) {
	r.engine.Use(middleware...)
}
