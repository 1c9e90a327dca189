package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/user/cinesync/internal/model"
)

// Category TMDB 固定电影分类
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTopRated   Category = "top_rated"
	CategoryUpcoming   Category = "upcoming"
	CategoryNowPlaying Category = "now_playing"
)

// AllCategories 全部标准分类，按同步顺序排列
var AllCategories = []Category{CategoryPopular, CategoryTopRated, CategoryUpcoming, CategoryNowPlaying}

// Valid 判断是否为合法分类
func (c Category) Valid() bool {
	switch c {
	case CategoryPopular, CategoryTopRated, CategoryUpcoming, CategoryNowPlaying:
		return true
	}
	return false
}

const (
	videoSiteYouTube = "YouTube"
	videoTypeTrailer = "Trailer"
	youtubeWatchURL  = "https://www.youtube.com/watch?v=%s"

	trailerCacheTTL = 6 * time.Hour
	genreCacheTTL   = 24 * time.Hour
)

// TMDBConfig TMDB 客户端配置
type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	IncludeAdult bool
	Timeout      time.Duration
}

// TMDBClient TMDB API 客户端
// 无状态，只持有固定配置和本地缓存，不做并发控制
type TMDBClient struct {
	config     TMDBConfig
	httpClient *http.Client
	cache      *cache.Cache
}

// NewTMDBClient 创建 TMDB 客户端
func NewTMDBClient(cfg TMDBConfig) *TMDBClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = "https://image.tmdb.org/t/p/"
	}
	if cfg.Language == "" {
		cfg.Language = "vi-VN"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TMDBClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache: cache.New(trailerCacheTTL, 10*time.Minute),
	}
}

// MovieSummary 列表接口返回的电影摘要（数据不完整，不直接入库）
type MovieSummary struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	GenreIDs     []int   `json:"genre_ids"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
}

// Genre 类型
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Video 预告片等视频元数据
type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// CastMember 演员
type CastMember struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

// CrewMember 职员
type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// Credits 演职员表
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// VideoList 视频列表
type VideoList struct {
	Results []Video `json:"results"`
}

// MovieDetail 详情接口返回的完整电影数据
// 通过 append_to_response 一次请求带回视频和演职员
type MovieDetail struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Overview     string     `json:"overview"`
	ReleaseDate  string     `json:"release_date"`
	Genres       []Genre    `json:"genres"`
	Runtime      int        `json:"runtime"`
	VoteAverage  float64    `json:"vote_average"`
	VoteCount    int        `json:"vote_count"`
	PosterPath   string     `json:"poster_path"`
	BackdropPath string     `json:"backdrop_path"`
	Videos       *VideoList `json:"videos"`
	Credits      *Credits   `json:"credits"`
}

// DiscoverOptions 发现接口过滤条件
type DiscoverOptions struct {
	GenreIDs []int
	SortBy   string
	Year     int
	Page     int
}

type listResponse struct {
	Page         int            `json:"page"`
	Results      []MovieSummary `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// getJSON 发起 GET 请求并解析 JSON 响应
// 失败按超时 / 网络不可达 / 非 2xx 三类包装，调用方用 errors.Is/As 区分
func (c *TMDBClient) getJSON(endpoint string, params url.Values, target interface{}) error {
	query := url.Values{}
	query.Set("api_key", c.config.APIKey)
	query.Set("language", c.config.Language)
	query.Set("include_adult", strconv.FormatBool(c.config.IncludeAdult))
	for key, values := range params {
		for _, v := range values {
			query.Set(key, v)
		}
	}

	reqURL := c.config.BaseURL + endpoint + "?" + query.Encode()
	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
			return fmt.Errorf("%w: %s", ErrUpstreamTimeout, endpoint)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}
	return nil
}

// GetMovies 获取指定分类的电影列表，page 从 1 开始
func (c *TMDBClient) GetMovies(category Category, page int) ([]MovieSummary, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("未知的电影分类: %s", category)
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var result listResponse
	if err := c.getJSON("/movie/"+string(category), params, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// DiscoverMovies 按条件发现电影
func (c *TMDBClient) DiscoverMovies(opts DiscoverOptions) ([]MovieSummary, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "popularity.desc"
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("sort_by", sortBy)
	params.Set("page", strconv.Itoa(page))
	if len(opts.GenreIDs) > 0 {
		ids := make([]string, 0, len(opts.GenreIDs))
		for _, id := range opts.GenreIDs {
			ids = append(ids, strconv.Itoa(id))
		}
		params.Set("with_genres", strings.Join(ids, ","))
	}
	if opts.Year > 0 {
		params.Set("primary_release_year", strconv.Itoa(opts.Year))
	}

	var result listResponse
	if err := c.getJSON("/discover/movie", params, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// SearchMovies 搜索电影
func (c *TMDBClient) SearchMovies(query string, page int) ([]MovieSummary, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))

	var result listResponse
	if err := c.getJSON("/search/movie", params, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// GetMovieDetails 获取电影完整详情
// 通过 append_to_response 在同一次请求中带回视频和演职员，避免 N+1
func (c *TMDBClient) GetMovieDetails(tmdbID int) (*MovieDetail, error) {
	params := url.Values{}
	params.Set("append_to_response", "videos,credits")

	var detail MovieDetail
	if err := c.getJSON(fmt.Sprintf("/movie/%d", tmdbID), params, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetMovieVideos 获取电影视频列表
func (c *TMDBClient) GetMovieVideos(tmdbID int) ([]Video, error) {
	var result VideoList
	if err := c.getJSON(fmt.Sprintf("/movie/%d/videos", tmdbID), nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// GetGenres 获取电影类型列表（带缓存）
func (c *TMDBClient) GetGenres() ([]Genre, error) {
	if cached, ok := c.cache.Get("genres"); ok {
		return cached.([]Genre), nil
	}

	var result struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.getJSON("/genre/movie/list", nil, &result); err != nil {
		return nil, err
	}
	c.cache.Set("genres", result.Genres, genreCacheTTL)
	return result.Genres, nil
}

// GetTrailerURL 获取电影预告片地址，没有合适视频时返回空串
func (c *TMDBClient) GetTrailerURL(tmdbID int) (string, error) {
	cacheKey := "trailer:" + strconv.Itoa(tmdbID)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	videos, err := c.GetMovieVideos(tmdbID)
	if err != nil {
		return "", err
	}

	trailerURL := selectTrailer(videos)
	c.cache.Set(cacheKey, trailerURL, trailerCacheTTL)
	return trailerURL, nil
}

// selectTrailer 预告片选取策略，优先级固定：
// 官方 YouTube 预告片 > 任意 YouTube 预告片 > 任意 YouTube 视频 > 无
// 同一部电影常有多条预告片（先导预告、正式预告），该顺序保证结果确定
func selectTrailer(videos []Video) string {
	var anyTrailer, anyVideo *Video
	for i := range videos {
		v := &videos[i]
		if v.Site != videoSiteYouTube {
			continue
		}
		if v.Type == videoTypeTrailer {
			if v.Official {
				return fmt.Sprintf(youtubeWatchURL, v.Key)
			}
			if anyTrailer == nil {
				anyTrailer = v
			}
		}
		if anyVideo == nil {
			anyVideo = v
		}
	}
	if anyTrailer != nil {
		return fmt.Sprintf(youtubeWatchURL, anyTrailer.Key)
	}
	if anyVideo != nil {
		return fmt.Sprintf(youtubeWatchURL, anyVideo.Key)
	}
	return ""
}

// ImageURL 拼接完整图片地址，纯字符串操作，path 为空时返回空串
func (c *TMDBClient) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "w500"
	}
	return c.config.ImageBaseURL + size + path
}

// ToMovieCreate 将 TMDB 详情转换为入库结构
// 详情里已带视频列表时直接本地选取预告片；
// 没带时才额外请求一次 /videos（这一步是转换中唯一的网络调用）
func (c *TMDBClient) ToMovieCreate(detail *MovieDetail) (*model.MovieCreate, error) {
	if detail == nil || detail.ID == 0 {
		return nil, &MappingError{Reason: "缺少 TMDB ID"}
	}
	if detail.Title == "" {
		return nil, &MappingError{TMDBID: detail.ID, Reason: "缺少标题"}
	}

	genres := make([]string, 0, len(detail.Genres))
	for _, g := range detail.Genres {
		genres = append(genres, g.Name)
	}

	create := &model.MovieCreate{
		TMDBID:         detail.ID,
		Title:          detail.Title,
		Overview:       detail.Overview,
		ReleaseDate:    detail.ReleaseDate,
		Genres:         genres,
		RuntimeMinutes: detail.Runtime,
		VoteAverage:    detail.VoteAverage,
		VoteCount:      detail.VoteCount,
		PosterPath:     detail.PosterPath,
		BackdropPath:   detail.BackdropPath,
	}

	if detail.Videos != nil {
		create.TrailerURL = selectTrailer(detail.Videos.Results)
	} else {
		trailerURL, err := c.GetTrailerURL(detail.ID)
		if err != nil {
			return nil, err
		}
		create.TrailerURL = trailerURL
	}

	return create, nil
}
