package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/cinesync/internal/handler"
	"github.com/user/cinesync/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 认证 ====================
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}

	// ==================== 电影（公开）====================
	movies := r.Group("/api/movies")
	{
		movies.GET("", h.ListMovies)
		movies.GET("/featured", h.FeaturedMovies)
		movies.GET("/search", h.SearchMovies)
		movies.GET("/:id", h.GetMovie)
	}

	// ==================== 管理后台 ====================
	admin := r.Group("/api/admin")
	admin.Use(middleware.RequireAuth(h.Config.AppSecret))
	admin.Use(middleware.RequireAdmin())
	{
		admin.PUT("/movies/:id/featured", h.SetFeatured)

		// TMDB 同步
		sync := admin.Group("/sync")
		{
			sync.POST("/popular", h.SyncPopular)
			sync.POST("/top-rated", h.SyncTopRated)
			sync.POST("/upcoming", h.SyncUpcoming)
			sync.POST("/now-playing", h.SyncNowPlaying)
			sync.POST("/all-categories", h.SyncAllCategories)
			sync.POST("/by-genres", h.SyncByGenres)
			sync.POST("/by-ids", h.SyncByIDs)
			sync.POST("/movie/:tmdbId", h.SyncMovie)
			sync.GET("/genres", h.SyncGenres)
		}
	}
}
