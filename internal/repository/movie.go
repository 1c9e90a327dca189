package repository

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/user/cinesync/internal/model"
	"gorm.io/gorm"
)

// MovieRepository 电影仓库
// 注意：FindByTMDBID 之后再 Insert/Update 不是原子操作，
// 两个并发同步任务处理同一个 TMDB ID 时可能互相覆盖（接受此缺口，不加锁）
type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// FindByTMDBID 根据 TMDB ID 查找电影，未找到返回 nil
func (r *MovieRepository) FindByTMDBID(tmdbID int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Where("tmdb_id = ?", tmdbID).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// FindByID 根据本地 ID 查找电影，未找到返回 nil
func (r *MovieRepository) FindByID(id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Where("id = ?", id).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movie, nil
}

// Insert 创建新电影记录，本地字段取默认值（view_count=0, is_featured=false）
func (r *MovieRepository) Insert(m *model.MovieCreate) (int, error) {
	now := time.Now()
	var id int
	err := r.db.Raw(`
		INSERT INTO movies (tmdb_id, title, overview, release_date, genres,
		                    runtime_minutes, vote_average, vote_count,
		                    poster_path, backdrop_path, trailer_url,
		                    is_featured, view_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, 0, $12, $12)
		RETURNING id
	`, m.TMDBID, m.Title, m.Overview, m.ReleaseDate, pq.Array(m.Genres),
		m.RuntimeMinutes, m.VoteAverage, m.VoteCount,
		m.PosterPath, m.BackdropPath, m.TrailerURL, now).Row().Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update 按 TMDB ID 更新 TMDB 来源字段和 updated_at
// 不触碰 is_featured、view_count、created_at
func (r *MovieRepository) Update(tmdbID int, m *model.MovieCreate) (bool, error) {
	result := r.db.Exec(`
		UPDATE movies SET
			title = $1,
			overview = $2,
			release_date = $3,
			genres = $4,
			runtime_minutes = $5,
			vote_average = $6,
			vote_count = $7,
			poster_path = $8,
			backdrop_path = $9,
			trailer_url = $10,
			updated_at = $11
		WHERE tmdb_id = $12
	`, m.Title, m.Overview, m.ReleaseDate, pq.Array(m.Genres),
		m.RuntimeMinutes, m.VoteAverage, m.VoteCount,
		m.PosterPath, m.BackdropPath, m.TrailerURL, time.Now(), tmdbID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 分页查询电影列表，可按类型过滤
func (r *MovieRepository) List(page, pageSize int, genre string) ([]model.Movie, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.Model(&model.Movie{})
	if genre != "" {
		query = query.Where("? = ANY(genres)", genre)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movies []model.Movie
	err := query.Order("vote_average DESC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&movies).Error
	if err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

// Featured 查询精选电影
func (r *MovieRepository) Featured(limit int) ([]model.Movie, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	var movies []model.Movie
	err := r.db.Where("is_featured = true").
		Order("updated_at DESC").
		Limit(limit).
		Find(&movies).Error
	if err != nil {
		return nil, err
	}
	return movies, nil
}

// IncrementViewCount 播放量加一
func (r *MovieRepository) IncrementViewCount(id int) error {
	return r.db.Exec(`UPDATE movies SET view_count = view_count + 1 WHERE id = $1`, id).Error
}

// SetFeatured 设置精选标记
func (r *MovieRepository) SetFeatured(id int, featured bool) (bool, error) {
	result := r.db.Exec(`UPDATE movies SET is_featured = $1 WHERE id = $2`, featured, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
