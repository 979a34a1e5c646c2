package routes

import (
	"agentspace/internal/handlers"
	"agentspace/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes registers every authenticated API route.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	apiGroup := api.Group("/api")
	{
		profile := apiGroup.Group("/profile")
		{
			profile.GET("", handlers.GetProfileHandler)
			profile.PUT("", handlers.UpdateProfileHandler)
		}

		deals := apiGroup.Group("/deals")
		{
			deals.GET("", handlers.ListDealsHandler)
			deals.POST("", handlers.CreateDealHandler)
			deals.GET("/export", middleware.PermissionMiddleware("deals_export"), handlers.ExportDealsHandler)
			deals.GET("/:id", handlers.GetDealHandler)
			deals.PUT("/:id", handlers.UpdateDealHandler)
			deals.POST("/:id/status", handlers.ChangeDealStatusHandler)
			deals.DELETE("/:id", middleware.PermissionMiddleware("deals_delete"), handlers.DeleteDealHandler)
		}

		clients := apiGroup.Group("/clients")
		{
			clients.GET("", handlers.ListClientsHandler)
			clients.POST("", handlers.CreateClientHandler)
			clients.GET("/:id", handlers.GetClientHandler)
			clients.PUT("/:id", handlers.UpdateClientHandler)
			clients.DELETE("/:id", middleware.PermissionMiddleware("clients_delete"), handlers.DeleteClientHandler)
		}

		carriers := apiGroup.Group("/carriers")
		{
			carriers.GET("", handlers.ListCarriersHandler)
			carriers.POST("", middleware.PermissionMiddleware("carriers_edit"), handlers.CreateCarrierHandler)
			carriers.GET("/:id", handlers.GetCarrierHandler)
			carriers.PUT("/:id", middleware.PermissionMiddleware("carriers_edit"), handlers.UpdateCarrierHandler)
			carriers.DELETE("/:id", middleware.PermissionMiddleware("carriers_edit"), handlers.DeleteCarrierHandler)
			carriers.GET("/:id/products", handlers.ListProductsHandler)
			carriers.POST("/:id/products", middleware.PermissionMiddleware("carriers_edit"), handlers.CreateProductHandler)
		}

		products := apiGroup.Group("/products")
		products.Use(middleware.PermissionMiddleware("carriers_edit"))
		{
			products.PUT("/:id", handlers.UpdateProductHandler)
			products.DELETE("/:id", handlers.DeleteProductHandler)
		}

		reports := apiGroup.Group("/commission-reports")
		reports.Use(middleware.PermissionMiddleware("commissions_view"))
		{
			reports.POST("", middleware.PermissionMiddleware("commissions_upload"), handlers.UploadCommissionReportHandler)
			reports.POST("/recognize", middleware.PermissionMiddleware("commissions_upload"), handlers.RecognizeStatementHandler)
			reports.GET("", handlers.ListCommissionReportsHandler)
			reports.GET("/archive/download", handlers.DownloadReportArchiveHandler)
			reports.GET("/:id", handlers.GetCommissionReportHandler)
			reports.GET("/:id/entries", handlers.ListCommissionEntriesHandler)
			reports.DELETE("/:id", middleware.PermissionMiddleware("commissions_delete"), handlers.DeleteCommissionReportHandler)
		}

		payroll := apiGroup.Group("/payroll")
		payroll.Use(middleware.PermissionMiddleware("payroll_view"))
		{
			payroll.POST("/runs", middleware.PermissionMiddleware("payroll_manage"), handlers.CreatePayrollRunHandler)
			payroll.GET("/runs", handlers.ListPayrollRunsHandler)
			payroll.GET("/runs/:id", handlers.GetPayrollRunHandler)
			payroll.GET("/runs/:id/export", handlers.ExportPayrollRunHandler)
			payroll.POST("/runs/:id/finalize", middleware.PermissionMiddleware("payroll_manage"), handlers.FinalizePayrollRunHandler)
			payroll.GET("/runs/:id/agents/:agentId", handlers.GetPayrollAgentDetailHandler)
		}

		apiGroup.GET("/scoreboard", handlers.GetScoreboardHandler)

		quotes := apiGroup.Group("/quotes")
		{
			quotes.POST("/price", handlers.PriceQuoteHandler)
			quotes.GET("", handlers.ListQuotesHandler)
			quotes.POST("", handlers.CreateQuoteHandler)
			quotes.GET("/:id", handlers.GetQuoteHandler)
			quotes.PUT("/:id", handlers.UpdateQuoteHandler)
			quotes.DELETE("/:id", handlers.DeleteQuoteHandler)
		}

		nipr := apiGroup.Group("/nipr/verifications")
		{
			nipr.POST("", handlers.SubmitVerificationHandler)
			nipr.POST("/document", handlers.SubmitVerificationDocumentHandler)
			nipr.GET("/active", handlers.GetActiveVerificationHandler)
			nipr.GET("/:id", handlers.GetVerificationHandler)
			nipr.GET("/:id/ws", func(c *gin.Context) {
				handlers.VerificationWSEndpoint(c)
			})
		}

		users := apiGroup.Group("/users")
		users.Use(middleware.PermissionMiddleware("users_view"))
		{
			users.GET("", handlers.ListUsersHandler)
			users.POST("", middleware.PermissionMiddleware("users_edit"), handlers.CreateUserHandler)
			users.GET("/:id", handlers.GetUserHandler)
			users.PUT("/:id", middleware.PermissionMiddleware("users_edit"), handlers.UpdateUserHandler)
			users.DELETE("/:id", middleware.PermissionMiddleware("users_delete"), handlers.DeleteUserHandler)
		}

		apiGroup.GET("/roles", middleware.PermissionMiddleware("users_view"), handlers.ListRolesHandler)

		apiGroup.POST("/uploads", handlers.UploadFileHandler)
	}
}
