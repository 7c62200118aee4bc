package httpapi

import (
	"storefront-query-engine/internal/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter wires the three storefront routes plus /healthz, matching
// search-service/internal/router/router.go's route-group shape.
func SetupRouter(svc *Service, limiter *ratelimit.Limiter, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggingMiddleware(logger))
	router.Use(ErrorLoggingMiddleware(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * 60 * 60,
	}))

	router.GET("/healthz", HealthCheck)

	storefront := router.Group("/storefront")
	storefront.Use(ValidateShopDomain())
	storefront.Use(RateLimitMiddleware(limiter))
	{
		h := &Handlers{service: svc, logger: logger}
		storefront.GET("/products", h.Products)
		storefront.GET("/filters", h.Filters)
		storefront.GET("/search", h.Search)
	}

	return router
}
