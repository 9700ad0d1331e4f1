package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/privacynet/internal/config"
	"github.com/sujalbistaa/privacynet/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, cfg *config.Config) {
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: cfg.CORSOrigin != "*",
	}))

	requireUser := AuthMiddleware([]byte(cfg.JWTSecret))

	api := router.Group("/api")
	{
		api.GET("/health", env.Health)

		posts := api.Group("/posts", requireUser)
		posts.GET("", env.GetPosts)
		posts.POST("", env.CreatePost)
		posts.DELETE("/:id", env.DeletePost)

		cm := api.Group("/comments", requireUser)
		cm.GET("/:postId", env.GetComments)
		cm.GET("/:postId/inbox", env.GetInbox)
		cm.POST("", RateLimitMiddleware(env.Limiter), env.CreateComment)
		cm.DELETE("/:id", env.DeleteComment)

		account := api.Group("/account", requireUser)
		account.GET("/audit-log", env.GetAuditLog)
		account.GET("/export", env.ExportAccount)
		account.DELETE("", env.DeleteAccount)

		admin := api.Group("/admin", AdminAuthMiddleware(cfg.AdminToken))
		admin.GET("/audit", env.GetAuditEvents)
	}

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(env.Hub, cfg.CORSOrigin, c.Writer, c.Request)
	})
}
