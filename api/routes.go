package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailbackup/api/handlers"
	"github.com/customeros/mailbackup/api/middleware"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/services"
)

const AppSource = "mailbackup-api"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string, runHistorySize int) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)

	accounts := handlers.NewAccountsHandler(repos, s.EventsService.Publisher, runHistorySize)

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	}))
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		account := api.Group("/accounts/:id")
		{
			account.GET("", accounts.Status())
			account.GET("/runs", accounts.ListRuns())
			account.POST("/sync", accounts.RequestSync())
		}
	}
}
