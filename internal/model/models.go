package model

import (
	"time"

	"github.com/lib/pq"
)

// User 用户模型
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Movie 电影模型（TMDB 同步数据）
// TMDBID 是不可变的自然键，每个 TMDB ID 对应一条本地记录
// IsFeatured 和 ViewCount 为本地字段，同步永远不会覆盖
type Movie struct {
	ID             int            `json:"id" db:"id"`
	TMDBID         int            `json:"tmdb_id" db:"tmdb_id" gorm:"unique"`
	Title          string         `json:"title" db:"title"`
	Overview       string         `json:"overview" db:"overview"`
	ReleaseDate    string         `json:"release_date" db:"release_date"`
	Genres         pq.StringArray `json:"genres" db:"genres" gorm:"type:text[]"`
	RuntimeMinutes int            `json:"runtime_minutes" db:"runtime_minutes"`
	VoteAverage    float64        `json:"vote_average" db:"vote_average" gorm:"index"`
	VoteCount      int            `json:"vote_count" db:"vote_count"`
	PosterPath     string         `json:"poster_path" db:"poster_path"`
	BackdropPath   string         `json:"backdrop_path" db:"backdrop_path"`
	TrailerURL     string         `json:"trailer_url" db:"trailer_url"`
	IsFeatured     bool           `json:"is_featured" db:"is_featured"`
	ViewCount      int            `json:"view_count" db:"view_count"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at" gorm:"index"`
}

// MovieCreate 同步写入的电影字段（仅 TMDB 来源字段，不含本地字段）
type MovieCreate struct {
	TMDBID         int      `json:"tmdb_id"`
	Title          string   `json:"title"`
	Overview       string   `json:"overview"`
	ReleaseDate    string   `json:"release_date"`
	Genres         []string `json:"genres"`
	RuntimeMinutes int      `json:"runtime_minutes"`
	VoteAverage    float64  `json:"vote_average"`
	VoteCount      int      `json:"vote_count"`
	PosterPath     string   `json:"poster_path"`
	BackdropPath   string   `json:"backdrop_path"`
	TrailerURL     string   `json:"trailer_url"`
}

// CategoryResult 单个分类的同步统计
type CategoryResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// SyncResult 同步结果统计
type SyncResult struct {
	Total           int                       `json:"total"`
	Success         int                       `json:"success"`
	Failed          int                       `json:"failed"`
	MovieIDs        []int                     `json:"movie_ids"`
	Categories      map[string]CategoryResult `json:"categories,omitempty"`
	GenresProcessed int                       `json:"genres_processed,omitempty"`
}

// NewSyncResult 创建空的同步结果
func NewSyncResult() *SyncResult {
	return &SyncResult{MovieIDs: []int{}}
}

// Merge 合并另一份统计结果
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.Total += other.Total
	r.Success += other.Success
	r.Failed += other.Failed
	r.MovieIDs = append(r.MovieIDs, other.MovieIDs...)
}

// DedupeMovieIDs 去重，保留首次出现的顺序
// 同一部电影可能同时出现在多个分类中
func (r *SyncResult) DedupeMovieIDs() {
	seen := make(map[int]struct{}, len(r.MovieIDs))
	deduped := r.MovieIDs[:0]
	for _, id := range r.MovieIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	r.MovieIDs = deduped
}
