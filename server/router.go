package server

import (
	"time"

	httpHandler "social-gateway/interfaces/http"
	"social-gateway/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(
	authHandler httpHandler.IAuthHandler,
	socialHandler httpHandler.ISocialHandler,
	healthHandler httpHandler.IHealthHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "https://localhost:4200", "http://localhost:4201", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// The callback is hit by the platform's redirect and carries no session;
	// identity comes from the consumed state token.
	router.GET("/auth/:platform/callback", authHandler.Callback)

	auth := router.Group("/auth")
	auth.Use(middleware.Auth())
	auth.GET("/:platform", authHandler.Authorize)

	api := router.Group("/api")
	api.Use(middleware.Auth())
	api.GET("/:platform/status", authHandler.Status)
	api.POST("/:platform/disconnect", authHandler.Disconnect)
	api.POST("/:platform/post", socialHandler.Post)
	api.GET("/:platform/account", socialHandler.Account)

	router.POST("/healthz", healthHandler.Healthz)

	return router
}
