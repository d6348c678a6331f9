package router

import (
	"feedbacker/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupFeedbackRoutes(e *echo.Echo, handler *rest.FeedbackHandler) {
	feedback := e.Group("/feedback")

	feedback.POST("", handler.Submit)
	feedback.GET("/:id/full", handler.GetFull)
	feedback.GET("/:id/audio-url", handler.AudioURL)
	feedback.GET("/:id/redirect-audio", handler.RedirectAudio)
	feedback.GET("/shop/:shop_id", handler.ListByShop)
}

func SetupAdminRoutes(e *echo.Echo, handler *rest.AdminHandler, authRequired echo.MiddlewareFunc) {
	admin := e.Group("/admin/api")

	admin.POST("/login", handler.Login)

	admin.GET("/feedbacks", handler.ListFeedbacks, authRequired)
	admin.GET("/feedbacks/export", handler.Export, authRequired)
	admin.GET("/settings", handler.GetSettings, authRequired)
	admin.PUT("/settings", handler.UpdateSettings, authRequired)
}
