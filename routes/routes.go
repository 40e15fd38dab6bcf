package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"threadline/handlers"
	"threadline/metrics"
	"threadline/middleware"
	"threadline/session"
	"threadline/websocket"
)

type Config struct {
	Handler        *handlers.Handler
	Sessions       *session.Manager
	Hub            *websocket.Hub
	Metrics        *metrics.Metrics
	Limiter        *middleware.RateLimiter
	Logger         *zap.Logger
	AllowedOrigins []string
	Cookie         middleware.CookieConfig
}

func SetupRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(cfg.Logger), middleware.Logger(cfg.Logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": cfg.Sessions.Len(),
			"time":     time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	withSession := middleware.Session(cfg.Sessions, cfg.Cookie, cfg.Logger)
	router.GET("/ws", withSession, cfg.Hub.Handler())

	h := cfg.Handler
	api := router.Group("/api")
	api.Use(withSession, middleware.RateLimit(cfg.Limiter))
	{
		api.GET("/state", h.State)
		api.GET("/feed", h.Feed)

		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.POST("/password-reset", h.RequestPasswordReset)
		auth.GET("/me", h.Me)

		communities := api.Group("/communities")
		communities.GET("", h.ListCommunities)
		communities.GET("/:id", h.GetCommunity)
		communities.GET("/:id/posts", h.CommunityPosts)

		posts := api.Group("/posts")
		posts.GET("/:id", h.GetPost)
		posts.GET("/:id/comments", h.ListComments)

		// Protected routes
		private := api.Group("")
		private.Use(middleware.RequireUser())
		private.POST("/communities", h.CreateCommunity)
		private.GET("/communities/mine", h.MyCommunities)
		private.PATCH("/communities/:id", h.UpdateCommunityImage)
		private.POST("/communities/:id/join", h.JoinCommunity)
		private.POST("/communities/:id/leave", h.LeaveCommunity)
		private.POST("/communities/:id/membership", h.ToggleMembership)
		private.GET("/communities/:id/votes", h.CommunityVotes)
		private.POST("/posts", h.CreatePost)
		private.DELETE("/posts/:id", h.DeletePost)
		private.POST("/posts/:id/vote", h.Vote)
		private.POST("/posts/:id/comments", h.CreateComment)
		private.DELETE("/comments/:id", h.DeleteComment)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
