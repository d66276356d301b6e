package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/delivery/http/middleware"
	"github.com/Harsh-BH/threatrelay/internal/orchestrator"
	"github.com/Harsh-BH/threatrelay/internal/poller"
	"github.com/Harsh-BH/threatrelay/internal/repository"
	"github.com/Harsh-BH/threatrelay/internal/usecase"
)

// RouterDeps holds everything the HTTP layer needs.
type RouterDeps struct {
	Dispatch  *usecase.DispatchJobUsecase
	Probe     *usecase.ProbeWorkflowUsecase
	Workflows WorkflowLister
	Callback  *usecase.ReceiveCallbackUsecase
	Status    *usecase.CheckStatusUsecase
	Record    *usecase.RecordEventUsecase
	List      *usecase.ListEventsUsecase

	HealthChecks map[string]repository.Pinger
	Policy       poller.Policy

	PublicBaseURL   string
	RateLimitPerMin int
	MaxBodyBytes    int64
	Logger          *zap.Logger
}

// NewRouter creates and configures the Gin router with all routes and middleware.
// ctx bounds background middleware goroutines.
func NewRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.HealthChecks, logger)
		v1.GET("/health", healthHandler.Health)

		// Worker callbacks and status checks stay outside the rate limit;
		// a poller checks every couple of seconds.
		cbHandler := NewCallbackHandler(deps.Callback, deps.Status, logger)
		v1.POST("/callback", middleware.BodySizeLimit(deps.MaxBodyBytes), cbHandler.Callback)
		v1.GET("/check-status", cbHandler.CheckStatus)

		limited := v1.Group("")
		limited.Use(middleware.RateLimiter(ctx, deps.RateLimitPerMin))
		limited.Use(middleware.BodySizeLimit(deps.MaxBodyBytes))

		dispatchHandler := NewDispatchHandler(deps.Dispatch, deps.Probe, deps.Workflows, deps.PublicBaseURL, logger)
		limited.GET("/workflows", dispatchHandler.List)
		limited.GET("/workflows/:workflow", dispatchHandler.Probe)
		limited.POST("/workflows/:workflow/dispatch", dispatchHandler.Dispatch)

		eventHandler := NewEventHandler(deps.Record, deps.List, logger)
		limited.GET("/events", eventHandler.List)
		limited.POST("/events", eventHandler.Record)

		// Analyses run in-process: dispatch through the proxy usecase and
		// poll the local status check.
		streamHandler := NewStreamHandler(
			orchestrator.DispatcherFunc(deps.Dispatch.Execute),
			poller.StatusCheckerFunc(deps.Status.Execute),
			deps.Policy,
			deps.PublicBaseURL,
			logger,
		)
		limited.GET("/analyses/stream", streamHandler.Stream)
	}

	return router
}
