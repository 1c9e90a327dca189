package handler

import (
	"fmt"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cinesync/internal/service"
	"github.com/user/cinesync/internal/utils"
)

// inlineSyncLimit ID 列表不超过该数量时同步执行并直接返回结果，
// 超过则交给后台执行；这是调用方策略，同步服务本身不关心
const inlineSyncLimit = 5

type syncPagesQuery struct {
	Pages int `form:"pages,default=1" binding:"min=1,max=5"`
}

type syncCategoryPagesQuery struct {
	Pages int `form:"pages,default=1" binding:"min=1,max=3"`
}

type syncByIDsRequest struct {
	TMDBIDs []int `json:"tmdb_ids" binding:"required,min=1,max=100,dive,min=1"`
}

type syncByGenresRequest struct {
	GenreIDs []int `json:"genre_ids" binding:"required,min=1,max=20,dive,min=1"`
}

// runInBackground 在后台 goroutine 中执行同步任务
// 恢复 panic 并记日志，后台任务不能拖垮进程
func (h *Handler) runInBackground(name string, task func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Sync] 后台任务 %s 发生恐慌: %v", name, r)
			}
		}()
		task()
	}()
}

// syncCategory 生成单个分类的同步入口
// 页数有上限（最多 5 页），避免单次请求占用后台太久
func (h *Handler) syncCategory(category service.Category) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query syncPagesQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			utils.BadRequest(c, bindError(err))
			return
		}

		pages := query.Pages
		h.runInBackground(string(category), func() {
			h.Sync.SyncCategory(category, pages)
		})

		utils.SuccessWithMessage(c, fmt.Sprintf("正在后台同步 %s 分类 %d 页电影", category, pages), gin.H{
			"status":   "started",
			"category": category,
			"pages":    pages,
		})
	}
}

// SyncPopular 同步热门电影
func (h *Handler) SyncPopular(c *gin.Context) {
	h.syncCategory(service.CategoryPopular)(c)
}

// SyncTopRated 同步高分电影
func (h *Handler) SyncTopRated(c *gin.Context) {
	h.syncCategory(service.CategoryTopRated)(c)
}

// SyncUpcoming 同步即将上映电影
func (h *Handler) SyncUpcoming(c *gin.Context) {
	h.syncCategory(service.CategoryUpcoming)(c)
}

// SyncNowPlaying 同步正在上映电影
func (h *Handler) SyncNowPlaying(c *gin.Context) {
	h.syncCategory(service.CategoryNowPlaying)(c)
}

// SyncMovie 同步单部电影，同步执行并返回本地 ID
func (h *Handler) SyncMovie(c *gin.Context) {
	tmdbID, err := strconv.Atoi(c.Param("tmdbId"))
	if err != nil || tmdbID < 1 {
		utils.BadRequest(c, "无效的 TMDB ID")
		return
	}

	movieID, ok := h.Sync.SyncMovieByID(tmdbID)
	if !ok {
		utils.InternalServerError(c, fmt.Sprintf("无法同步电影 %d", tmdbID))
		return
	}

	utils.SuccessWithMessage(c, fmt.Sprintf("同步电影 %d 成功", tmdbID), gin.H{
		"movie_id": movieID,
	})
}

// SyncByIDs 按 ID 列表同步
// 小批量（不超过 5 个）同步执行并返回结果，大批量转后台
func (h *Handler) SyncByIDs(c *gin.Context) {
	var req syncByIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	if len(req.TMDBIDs) > inlineSyncLimit {
		ids := req.TMDBIDs
		h.runInBackground("by-ids", func() {
			h.Sync.SyncMoviesFromIDs(ids)
		})

		utils.SuccessWithMessage(c, fmt.Sprintf("正在后台同步 %d 部电影", len(ids)), gin.H{
			"status":      "started",
			"movie_count": len(ids),
		})
		return
	}

	result := h.Sync.SyncMoviesFromIDs(req.TMDBIDs)
	utils.SuccessWithMessage(c, fmt.Sprintf("同步完成：成功 %d，失败 %d", result.Success, result.Failed), gin.H{
		"status":  "completed",
		"results": result,
	})
}

// SyncAllCategories 同步全部四个标准分类
func (h *Handler) SyncAllCategories(c *gin.Context) {
	var query syncCategoryPagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	pages := query.Pages
	h.runInBackground("all-categories", func() {
		h.Sync.SyncAllCategories(pages)
	})

	totalPages := pages * len(service.AllCategories)
	utils.SuccessWithMessage(c, fmt.Sprintf("正在后台同步全部分类共 %d 页电影", totalPages), gin.H{
		"status":             "started",
		"pages_per_category": pages,
		"total_pages":        totalPages,
	})
}

// SyncByGenres 按类型集合同步
func (h *Handler) SyncByGenres(c *gin.Context) {
	var query syncCategoryPagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	var req syncByGenresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, bindError(err))
		return
	}

	pages := query.Pages
	genreIDs := req.GenreIDs
	h.runInBackground("by-genres", func() {
		h.Sync.SyncMoviesByGenres(genreIDs, pages)
	})

	totalPages := pages * len(genreIDs)
	utils.SuccessWithMessage(c, fmt.Sprintf("正在后台同步 %d 个类型共 %d 页电影", len(genreIDs), totalPages), gin.H{
		"status":          "started",
		"genre_count":     len(genreIDs),
		"pages_per_genre": pages,
		"total_pages":     totalPages,
	})
}

// SyncGenres 获取 TMDB 类型列表（管理端选择类型用）
func (h *Handler) SyncGenres(c *gin.Context) {
	genres, err := h.TMDB.GetGenres()
	if err != nil {
		log.Printf("[Sync] 获取类型列表失败: %v", err)
		utils.Error(c, 502, "获取类型列表失败")
		return
	}
	utils.Success(c, gin.H{"genres": genres})
}
