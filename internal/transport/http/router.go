package http

import (
	"github.com/gin-contrib/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"

	"fulfillment-service/internal/service"
)

func Router(h *Handler) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-User-Id", "X-User-Role", "X-Session-Id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(Identity())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/stock/validate", h.ValidateStock)

		rsv := v1.Group("/reservations")
		{
			rsv.POST("", h.ReserveStock)
			rsv.GET("", h.ListSessionReservations)
			rsv.GET("/:id", h.GetReservation)
			rsv.POST("/:id/confirm", h.ConfirmReservation)
			rsv.POST("/:id/release", h.ReleaseReservation)
			rsv.POST("/cleanup", RoleRequired(service.RoleAdmin), h.CleanupExpired)
		}

		rf := v1.Group("/refunds")
		{
			rf.POST("", AuthRequired(), h.CreateRefund)
			rf.GET("/my", AuthRequired(), h.GetUserRefunds)
			rf.GET("/analytics", RoleRequired(service.RoleAdmin, service.RoleVendor), h.GetRefundAnalytics)
			rf.PATCH("/:id/status", RoleRequired(service.RoleAdmin, service.RoleVendor), h.UpdateRefundStatus)
			rf.POST("/:id/process", RoleRequired(service.RoleAdmin), h.ProcessRefund)
		}

		v1.GET("/stores/:id/refunds", RoleRequired(service.RoleAdmin, service.RoleVendor), h.GetStoreRefunds)
	}

	return r
}
