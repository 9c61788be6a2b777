package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/infra/config"
	"github.com/slamint/account-management/internal/transport/http/handlers"
	"github.com/slamint/account-management/internal/transport/http/middleware"
	"github.com/slamint/account-management/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Provisioning *usecase.ProvisioningService
	Directory    *usecase.DirectoryService
	Departments  *usecase.DepartmentService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Verifier *middleware.TokenVerifier
	Metrics  *middleware.HTTPMetrics
	Services ServiceSet
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authenticated := []gin.HandlerFunc{
		deps.Verifier.RequireAuth(),
		middleware.Provision(deps.Services.Provisioning, deps.Logger),
	}
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	api := r.Group("/api/v1")
	api.Use(authenticated...)
	{
		meHandler := handlers.NewMeHandler(deps.Services.Directory)
		api.GET("/me", meHandler.Get)
		api.PATCH("/me", meHandler.Update)

		userHandler := handlers.NewUserHandler(deps.Services.Directory)
		users := api.Group("/admin/users")
		{
			// Reads are open to every authenticated caller; the result is
			// shaped and scoped by the caller's own role.
			users.GET("", userHandler.List)
			users.GET("/roles", userHandler.ListRoles)
			users.GET("/:id", userHandler.Get)

			users.POST("/invite", adminOnly, userHandler.Invite)
			users.PUT("/bulk/manager", adminOnly, userHandler.BulkReassignManager)
			users.PUT("/:id/status", adminOnly, userHandler.ChangeStatus)
			users.PUT("/:id/department", adminOnly, userHandler.AssignDepartment)
			users.PUT("/:id/manager", adminOnly, userHandler.AssignManager)
			users.PUT("/:id/role", adminOnly, userHandler.ChangeRole)
			users.DELETE("/:id", adminOnly, userHandler.Delete)
		}

		departmentHandler := handlers.NewDepartmentHandler(deps.Services.Departments)
		departments := api.Group("/departments")
		{
			departments.GET("", departmentHandler.List)
			departments.GET("/:id", departmentHandler.Get)
			departments.POST("", adminOnly, departmentHandler.Create)
			departments.PUT("/:id", adminOnly, departmentHandler.Update)
			departments.DELETE("/:id", adminOnly, departmentHandler.Delete)
		}
	}

	return r
}
