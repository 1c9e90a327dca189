package handler

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cinesync/internal/utils"
)

type listMoviesQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"page_size,default=20" binding:"min=1,max=100"`
	Genre    string `form:"genre"`
}

// ListMovies 分页查询本地电影列表
func (h *Handler) ListMovies(c *gin.Context) {
	var query listMoviesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	movies, total, err := h.Repos.Movie.List(query.Page, query.PageSize, query.Genre)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}

	utils.Success(c, gin.H{
		"movies":    movies,
		"total":     total,
		"page":      query.Page,
		"page_size": query.PageSize,
	})
}

// GetMovie 查询电影详情并累加播放量
func (h *Handler) GetMovie(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		utils.BadRequest(c, "无效的电影 ID")
		return
	}

	movie, err := h.Repos.Movie.FindByID(id)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "电影不存在")
		return
	}

	// 播放量统计失败不影响详情返回
	if err := h.Repos.Movie.IncrementViewCount(id); err != nil {
		log.Printf("[Movie] 累加播放量失败 (ID: %d): %v", id, err)
	} else {
		movie.ViewCount++
	}

	utils.Success(c, movie)
}

// FeaturedMovies 查询精选电影
func (h *Handler) FeaturedMovies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	movies, err := h.Repos.Movie.Featured(limit)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"movies": movies})
}

type searchMoviesQuery struct {
	Q    string `form:"q" binding:"required,min=1"`
	Page int    `form:"page,default=1" binding:"min=1"`
}

// SearchMovies 代理 TMDB 搜索，结果进 LRU 缓存
func (h *Handler) SearchMovies(c *gin.Context) {
	var query searchMoviesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	cacheKey := fmt.Sprintf("%s:%d", query.Q, query.Page)
	if cached, ok := h.searchCache.Get(cacheKey); ok {
		utils.Success(c, gin.H{"results": cached, "cached": true})
		return
	}

	results, err := h.TMDB.SearchMovies(query.Q, query.Page)
	if err != nil {
		log.Printf("[Movie] TMDB 搜索失败 (q: %s): %v", query.Q, err)
		utils.Error(c, 502, "上游搜索失败")
		return
	}

	h.searchCache.Set(cacheKey, results)
	utils.Success(c, gin.H{"results": results, "cached": false})
}

type setFeaturedRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

// SetFeatured 设置精选标记（管理员）
func (h *Handler) SetFeatured(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		utils.BadRequest(c, "无效的电影 ID")
		return
	}

	var req setFeaturedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	modified, err := h.Repos.Movie.SetFeatured(id, *req.Featured)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if !modified {
		utils.NotFound(c, "电影不存在")
		return
	}

	utils.Success(c, gin.H{"id": id, "featured": *req.Featured})
}
