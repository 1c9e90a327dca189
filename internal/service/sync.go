package service

import (
	"log"
	"strconv"
	"time"

	"github.com/user/cinesync/internal/model"
	"golang.org/x/sync/singleflight"
)

// ContentClient 同步所依赖的内容客户端能力
type ContentClient interface {
	GetMovies(category Category, page int) ([]MovieSummary, error)
	DiscoverMovies(opts DiscoverOptions) ([]MovieSummary, error)
	GetMovieDetails(tmdbID int) (*MovieDetail, error)
	ToMovieCreate(detail *MovieDetail) (*model.MovieCreate, error)
}

// MovieStore 同步所依赖的存储能力
// 先查后写不是原子操作，两个并发同步同一 TMDB ID 可能丢失更新（接受此缺口）
type MovieStore interface {
	FindByTMDBID(tmdbID int) (*model.Movie, error)
	Insert(m *model.MovieCreate) (int, error)
	Update(tmdbID int, m *model.MovieCreate) (bool, error)
}

// SyncService 电影同步服务
// 单次操作内严格串行执行，不并发请求上游，靠请求间停顿控制速率；
// 调用方决定是否放到后台执行，服务本身不关心执行环境
type SyncService struct {
	client      ContentClient
	store       MovieStore
	maxAttempts int
	pacing      time.Duration
	sleep       func(time.Duration)
	group       singleflight.Group
}

// NewSyncService 创建同步服务
// pacing 同时是请求间停顿和重试退避的基准时间
func NewSyncService(client ContentClient, store MovieStore, pacing time.Duration, maxAttempts int) *SyncService {
	if pacing <= 0 {
		pacing = 500 * time.Millisecond
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &SyncService{
		client:      client,
		store:       store,
		maxAttempts: maxAttempts,
		pacing:      pacing,
		sleep:       time.Sleep,
	}
}

// fetchDetailWithRetry 带重试的详情抓取
// 指数退避：第 n 次重试前等待 pacing * 2^n；
// 重试耗尽后返回 nil 而不是报错，单部电影失败不能中断整批同步
func (s *SyncService) fetchDetailWithRetry(tmdbID int) *MovieDetail {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		detail, err := s.client.GetMovieDetails(tmdbID)
		if err == nil {
			return detail
		}

		if attempt == s.maxAttempts {
			log.Printf("[Sync] 获取电影 %d 详情失败，已尝试 %d 次: %v", tmdbID, s.maxAttempts, err)
			return nil
		}

		wait := s.pacing * time.Duration(1<<attempt)
		log.Printf("[Sync] %v 后重试电影 %d（第 %d/%d 次）: %v", wait, tmdbID, attempt, s.maxAttempts, err)
		s.sleep(wait)
	}
	return nil
}

// processAndSave 转换并入库单部电影
// 已存在则只更新 TMDB 来源字段，本地字段（精选标记、播放量）保持不变；
// 任何单项失败只记日志并计入失败数，不向外传播
func (s *SyncService) processAndSave(detail *MovieDetail) (int, bool) {
	create, err := s.client.ToMovieCreate(detail)
	if err != nil {
		log.Printf("[Sync] 电影数据转换失败: %v", err)
		return 0, false
	}

	existing, err := s.store.FindByTMDBID(create.TMDBID)
	if err != nil {
		log.Printf("[Sync] 查询电影 %d 失败: %v", create.TMDBID, err)
		return 0, false
	}

	if existing != nil {
		modified, err := s.store.Update(create.TMDBID, create)
		if err != nil {
			log.Printf("[Sync] 更新电影 %d 失败: %v", create.TMDBID, err)
			return 0, false
		}
		if modified {
			log.Printf("[Sync] 已更新电影: %s (TMDB ID: %d)", create.Title, create.TMDBID)
		}
		return existing.ID, true
	}

	id, err := s.store.Insert(create)
	if err != nil {
		log.Printf("[Sync] 新增电影 %d 失败: %v", create.TMDBID, err)
		return 0, false
	}
	log.Printf("[Sync] 已新增电影: %s (TMDB ID: %d)", create.Title, create.TMDBID)
	return id, true
}

// SyncMovieByID 同步单部电影，返回本地 ID
// singleflight 合并同一 TMDB ID 的并发请求，避免重复抓取
func (s *SyncService) SyncMovieByID(tmdbID int) (int, bool) {
	val, _, _ := s.group.Do(strconv.Itoa(tmdbID), func() (interface{}, error) {
		detail := s.fetchDetailWithRetry(tmdbID)
		if detail == nil {
			return 0, nil
		}
		id, ok := s.processAndSave(detail)
		if !ok {
			return 0, nil
		}
		return id, nil
	})
	id := val.(int)
	return id, id > 0
}

// SyncMoviesFromIDs 按 ID 列表同步多部电影
// 条目之间插入固定停顿（最后一条之后不停顿）
func (s *SyncService) SyncMoviesFromIDs(tmdbIDs []int) *model.SyncResult {
	result := model.NewSyncResult()
	result.Total = len(tmdbIDs)

	for i, tmdbID := range tmdbIDs {
		if i > 0 {
			s.sleep(s.pacing)
		}

		if id, ok := s.SyncMovieByID(tmdbID); ok {
			result.Success++
			result.MovieIDs = append(result.MovieIDs, id)
		} else {
			result.Failed++
		}
	}

	return result
}

// syncSummaries 处理一页列表数据
// 列表接口的数据不完整，每条都重新抓取完整详情再入库
func (s *SyncService) syncSummaries(summaries []MovieSummary) *model.SyncResult {
	result := model.NewSyncResult()
	result.Total = len(summaries)

	for i, summary := range summaries {
		if i > 0 {
			s.sleep(s.pacing)
		}

		detail := s.fetchDetailWithRetry(summary.ID)
		if detail == nil {
			result.Failed++
			continue
		}

		if id, ok := s.processAndSave(detail); ok {
			result.Success++
			result.MovieIDs = append(result.MovieIDs, id)
		} else {
			result.Failed++
		}
	}

	return result
}

// SyncCategory 同步指定分类的前 N 页
// 页按升序处理；某一页列表请求失败时跳过该页，继续后面的页
func (s *SyncService) SyncCategory(category Category, pages int) *model.SyncResult {
	if pages < 1 {
		pages = 1
	}
	overall := model.NewSyncResult()

	for page := 1; page <= pages; page++ {
		log.Printf("[Sync] 正在同步 %s 第 %d/%d 页", category, page, pages)

		summaries, err := s.client.GetMovies(category, page)
		if err != nil {
			log.Printf("[Sync] 获取 %s 第 %d 页失败: %v", category, page, err)
			continue
		}

		pageResult := s.syncSummaries(summaries)
		overall.Merge(pageResult)
		log.Printf("[Sync] %s 第 %d 页完成: 成功 %d，失败 %d", category, page, pageResult.Success, pageResult.Failed)
	}

	return overall
}

// SyncAllCategories 同步全部四个标准分类
// 汇总各分类统计并对电影 ID 去重（同一部电影可能出现在多个分类）
func (s *SyncService) SyncAllCategories(pagesPerCategory int) *model.SyncResult {
	overall := model.NewSyncResult()
	overall.Categories = make(map[string]model.CategoryResult, len(AllCategories))

	for _, category := range AllCategories {
		log.Printf("[Sync] 开始同步分类: %s", category)
		res := s.SyncCategory(category, pagesPerCategory)
		overall.Merge(res)
		overall.Categories[string(category)] = model.CategoryResult{
			Success: res.Success,
			Failed:  res.Failed,
		}
	}

	overall.DedupeMovieIDs()
	log.Printf("[Sync] 全分类同步完成。总数: %d，成功: %d，失败: %d",
		overall.Total, overall.Success, overall.Failed)
	return overall
}

// SyncMoviesByGenres 按类型集合同步
// 类型之间插入加倍停顿（只在两个类型之间，不在首个之前或末个之后），
// 进一步压低对上游的突发请求
func (s *SyncService) SyncMoviesByGenres(genreIDs []int, pagesPerGenre int) *model.SyncResult {
	if pagesPerGenre < 1 {
		pagesPerGenre = 1
	}
	overall := model.NewSyncResult()
	overall.GenresProcessed = len(genreIDs)

	for i, genreID := range genreIDs {
		if i > 0 {
			s.sleep(s.pacing * 2)
		}
		log.Printf("[Sync] 正在同步类型 %d 的电影", genreID)

		for page := 1; page <= pagesPerGenre; page++ {
			if page > 1 {
				s.sleep(s.pacing)
			}

			summaries, err := s.client.DiscoverMovies(DiscoverOptions{
				GenreIDs: []int{genreID},
				Page:     page,
			})
			if err != nil {
				log.Printf("[Sync] 获取类型 %d 第 %d 页失败: %v", genreID, page, err)
				continue
			}

			pageResult := s.syncSummaries(summaries)
			overall.Merge(pageResult)
			log.Printf("[Sync] 类型 %d 第 %d 页完成: 成功 %d，失败 %d",
				genreID, page, pageResult.Success, pageResult.Failed)
		}
	}

	return overall
}
