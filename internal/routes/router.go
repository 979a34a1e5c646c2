package routes

import (
	"agentspace/internal/handlers"
	"agentspace/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires up every route of the application. Public auth routes go
// first; everything else sits behind AuthMiddleware.
func SetupRoutes(r *gin.Engine) {
	RegisterAuthRoutes(r)

	// The remittance webhook authenticates with a shared secret header
	// instead of a user token.
	r.POST("/webhooks/carrier-remittance", handlers.CarrierRemittanceWebhookHandler)

	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware())
	{
		RegisterAPIRoutes(authRequired)
	}
}
