package api

import (
	"storefront-api/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine) {
	// API route group
	api := r.Group("/api")
	{
		// Payment verification and checkout (client-facing)
		api.POST("/verify-payment", VerifyPayment)
		api.POST("/orders", CreateOrder)

		// Gateway webhook (the gateway calls this, signature-checked)
		api.POST("/gateway/webhook", GatewayWebhook)

		// Customer order queries
		api.GET("/customers/:id/orders", GetCustomerOrders)
		api.GET("/customers/:id/orders/count", GetCustomerOrderCount)

		// Admin order queries (require API key)
		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.GET("/orders", GetOrders)
			admin.GET("/orders/counts", GetOrderCounts)
			admin.GET("/orders/revenue", GetRevenue)
			admin.GET("/orders/:id", GetOrder)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "storefront-api",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
