package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/user/cinesync/internal/config"
	"github.com/user/cinesync/internal/model"
	"github.com/user/cinesync/internal/repository"
	"github.com/user/cinesync/internal/service"
	"github.com/user/cinesync/internal/utils"
)

// SyncRunner 同步服务能力，便于测试时替换
type SyncRunner interface {
	SyncMovieByID(tmdbID int) (int, bool)
	SyncMoviesFromIDs(tmdbIDs []int) *model.SyncResult
	SyncCategory(category service.Category, pages int) *model.SyncResult
	SyncAllCategories(pagesPerCategory int) *model.SyncResult
	SyncMoviesByGenres(genreIDs []int, pagesPerGenre int) *model.SyncResult
}

// Handler HTTP 处理器
type Handler struct {
	Repos       *repository.Repositories
	Config      *config.Config
	TMDB        *service.TMDBClient
	Sync        SyncRunner
	searchCache *utils.SearchCache[[]service.MovieSummary]
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config) *Handler {
	// 创建 TMDB 客户端
	tmdbClient := service.NewTMDBClient(service.TMDBConfig{
		APIKey:       cfg.TMDBAPIKey,
		BaseURL:      cfg.TMDBBaseURL,
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Language:     cfg.TMDBLanguage,
		IncludeAdult: cfg.TMDBIncludeAdult,
		Timeout:      cfg.TMDBTimeout,
	})

	// 创建同步服务
	syncService := service.NewSyncService(tmdbClient, repos.Movie, cfg.SyncPacing, cfg.SyncMaxAttempts)

	return &Handler{
		Repos:       repos,
		Config:      cfg,
		TMDB:        tmdbClient,
		Sync:        syncService,
		searchCache: utils.NewSearchCache[[]service.MovieSummary](1000, time.Hour),
	}
}

// bindError 将参数校验错误转成可读消息
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("参数 %s 校验失败（规则: %s）", fe.Field(), fe.Tag())
	}
	return "请求参数无效"
}
