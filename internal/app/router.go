package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"xangloans/internal/handler"
	"xangloans/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	LoanHandler    *handler.LoanHandler
	PaymentHandler *handler.PaymentHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Loan application routes.
		loans := v1.Group("/loans")
		{
			loans.POST("", deps.LoanHandler.CreateLoan)
			loans.GET("/:id", deps.LoanHandler.GetLoan)
			loans.POST("/:id/payments", deps.PaymentHandler.InitiatePayment)
			loans.GET("/:id/payments/status", deps.PaymentHandler.GetPaymentStatus)
		}

		// Gateway webhook. Must stay reachable from the M-Pesa side.
		payments := v1.Group("/payments")
		{
			payments.POST("/mpesa/callback", deps.PaymentHandler.MpesaCallback)
		}
	}

	return router
}
