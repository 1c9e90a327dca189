package service

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/user/cinesync/internal/model"
)

// fakeClient 可编程的内容客户端，按字段覆盖各能力
type fakeClient struct {
	getMovies      func(category Category, page int) ([]MovieSummary, error)
	discoverMovies func(opts DiscoverOptions) ([]MovieSummary, error)
	getDetails     func(tmdbID int) (*MovieDetail, error)
	toCreate       func(detail *MovieDetail) (*model.MovieCreate, error)

	mu          sync.Mutex
	detailCalls map[int]int
}

func (f *fakeClient) GetMovies(category Category, page int) ([]MovieSummary, error) {
	if f.getMovies == nil {
		return nil, nil
	}
	return f.getMovies(category, page)
}

func (f *fakeClient) DiscoverMovies(opts DiscoverOptions) ([]MovieSummary, error) {
	if f.discoverMovies == nil {
		return nil, nil
	}
	return f.discoverMovies(opts)
}

func (f *fakeClient) GetMovieDetails(tmdbID int) (*MovieDetail, error) {
	f.mu.Lock()
	if f.detailCalls == nil {
		f.detailCalls = make(map[int]int)
	}
	f.detailCalls[tmdbID]++
	f.mu.Unlock()

	if f.getDetails != nil {
		return f.getDetails(tmdbID)
	}
	return &MovieDetail{ID: tmdbID, Title: fmt.Sprintf("Movie %d", tmdbID)}, nil
}

func (f *fakeClient) ToMovieCreate(detail *MovieDetail) (*model.MovieCreate, error) {
	if f.toCreate != nil {
		return f.toCreate(detail)
	}
	if detail == nil || detail.ID == 0 || detail.Title == "" {
		return nil, &MappingError{TMDBID: 0, Reason: "missing required fields"}
	}
	return &model.MovieCreate{TMDBID: detail.ID, Title: detail.Title}, nil
}

// fakeStore 内存电影存储，按 TMDB ID 建索引
type fakeStore struct {
	mu      sync.Mutex
	byTMDB  map[int]*model.Movie
	nextID  int
	inserts int
	updates int

	findErr   error
	insertErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byTMDB: make(map[int]*model.Movie), nextID: 1}
}

func (f *fakeStore) FindByTMDBID(tmdbID int) (*model.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	m, ok := f.byTMDB[tmdbID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) Insert(m *model.MovieCreate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserts++
	id := f.nextID
	f.nextID++
	f.byTMDB[m.TMDBID] = &model.Movie{
		ID:          id,
		TMDBID:      m.TMDBID,
		Title:       m.Title,
		Overview:    m.Overview,
		Genres:      m.Genres,
		VoteAverage: m.VoteAverage,
	}
	return id, nil
}

func (f *fakeStore) Update(tmdbID int, m *model.MovieCreate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	existing, ok := f.byTMDB[tmdbID]
	if !ok {
		return false, nil
	}
	f.updates++
	// 只覆盖 TMDB 来源字段，本地字段保持不变
	existing.Title = m.Title
	existing.Overview = m.Overview
	existing.Genres = m.Genres
	existing.VoteAverage = m.VoteAverage
	return true, nil
}

// newTestSync 创建同步服务并把停顿改为记录而不是真睡
func newTestSync(client ContentClient, store MovieStore, pacing time.Duration, maxAttempts int) (*SyncService, *[]time.Duration) {
	s := NewSyncService(client, store, pacing, maxAttempts)
	sleeps := &[]time.Duration{}
	s.sleep = func(d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	return s, sleeps
}

func TestSyncMovieByIDInsertThenUpdate(t *testing.T) {
	client := &fakeClient{}
	store := newFakeStore()
	s, _ := newTestSync(client, store, time.Second, 3)

	id1, ok := s.SyncMovieByID(550)
	if !ok || id1 == 0 {
		t.Fatalf("first sync failed: id=%d ok=%v", id1, ok)
	}

	id2, ok := s.SyncMovieByID(550)
	if !ok {
		t.Fatal("second sync failed")
	}
	if id2 != id1 {
		t.Fatalf("expected stable local id, got %d then %d", id1, id2)
	}
	if store.inserts != 1 || store.updates != 1 {
		t.Fatalf("expected 1 insert and 1 update, got %d/%d", store.inserts, store.updates)
	}
	if len(store.byTMDB) != 1 {
		t.Fatalf("expected single record, got %d", len(store.byTMDB))
	}
}

func TestSyncPreservesLocalFields(t *testing.T) {
	client := &fakeClient{}
	store := newFakeStore()
	store.byTMDB[550] = &model.Movie{
		ID:         7,
		TMDBID:     550,
		Title:      "Old Title",
		IsFeatured: true,
		ViewCount:  37,
	}
	s, _ := newTestSync(client, store, time.Second, 3)

	id, ok := s.SyncMovieByID(550)
	if !ok || id != 7 {
		t.Fatalf("sync failed: id=%d ok=%v", id, ok)
	}

	m := store.byTMDB[550]
	if m.Title != "Movie 550" {
		t.Fatalf("title not refreshed: %q", m.Title)
	}
	if !m.IsFeatured || m.ViewCount != 37 {
		t.Fatalf("local fields clobbered: featured=%v views=%d", m.IsFeatured, m.ViewCount)
	}
}

func TestFetchDetailRetryBackoff(t *testing.T) {
	client := &fakeClient{
		getDetails: func(tmdbID int) (*MovieDetail, error) {
			return nil, ErrUpstreamUnreachable
		},
	}
	store := newFakeStore()
	s, sleeps := newTestSync(client, store, time.Second, 3)

	_, ok := s.SyncMovieByID(550)
	if ok {
		t.Fatal("expected sync to fail")
	}
	if got := client.detailCalls[550]; got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	// 退避序列：第一次重试前 2s，第二次重试前 4s，耗尽后不再等待
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(*sleeps, want) {
		t.Fatalf("unexpected backoff schedule: %v", *sleeps)
	}
	if store.inserts != 0 {
		t.Fatalf("expected no writes, got %d inserts", store.inserts)
	}
}

func TestFetchDetailRecoversMidRetry(t *testing.T) {
	calls := 0
	client := &fakeClient{
		getDetails: func(tmdbID int) (*MovieDetail, error) {
			calls++
			if calls < 3 {
				return nil, ErrUpstreamTimeout
			}
			return &MovieDetail{ID: tmdbID, Title: "Late Success"}, nil
		},
	}
	store := newFakeStore()
	s, sleeps := newTestSync(client, store, time.Second, 3)

	id, ok := s.SyncMovieByID(550)
	if !ok || id == 0 {
		t.Fatalf("expected recovery on third attempt: id=%d ok=%v", id, ok)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", *sleeps)
	}
	if store.byTMDB[550].Title != "Late Success" {
		t.Fatalf("unexpected title: %q", store.byTMDB[550].Title)
	}
}

func TestSyncMoviesFromIDsPartialFailure(t *testing.T) {
	client := &fakeClient{
		getDetails: func(tmdbID int) (*MovieDetail, error) {
			if tmdbID == 3 {
				return nil, &UpstreamError{StatusCode: 500}
			}
			return &MovieDetail{ID: tmdbID, Title: fmt.Sprintf("Movie %d", tmdbID)}, nil
		},
	}
	store := newFakeStore()
	s, _ := newTestSync(client, store, time.Second, 2)

	result := s.SyncMoviesFromIDs([]int{1, 2, 3, 4, 5})
	if result.Total != 5 || result.Success != 4 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.MovieIDs) != 4 {
		t.Fatalf("expected 4 movie ids, got %v", result.MovieIDs)
	}
	if len(store.byTMDB) != 4 {
		t.Fatalf("expected 4 stored movies, got %d", len(store.byTMDB))
	}
	if _, ok := store.byTMDB[3]; ok {
		t.Fatal("failed movie should not be stored")
	}
}

func TestSyncMoviesFromIDsPacingBetweenItems(t *testing.T) {
	client := &fakeClient{}
	store := newFakeStore()
	s, sleeps := newTestSync(client, store, 100*time.Millisecond, 3)

	s.SyncMoviesFromIDs([]int{1, 2, 3})

	// 三条成功无重试，只有条目之间的两次停顿
	want := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}
	if !reflect.DeepEqual(*sleeps, want) {
		t.Fatalf("unexpected pacing: %v", *sleeps)
	}
}

func TestSyncMoviesFromIDsEmpty(t *testing.T) {
	client := &fakeClient{}
	store := newFakeStore()
	s, sleeps := newTestSync(client, store, time.Second, 3)

	result := s.SyncMoviesFromIDs(nil)
	if result.Total != 0 || result.Success != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.MovieIDs == nil || len(result.MovieIDs) != 0 {
		t.Fatalf("expected empty non-nil movie ids, got %v", result.MovieIDs)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %v", *sleeps)
	}
}

func TestSyncCategorySkipsFailedPage(t *testing.T) {
	client := &fakeClient{
		getMovies: func(category Category, page int) ([]MovieSummary, error) {
			if page == 1 {
				return nil, ErrUpstreamUnreachable
			}
			return []MovieSummary{{ID: 10}, {ID: 11}}, nil
		},
	}
	store := newFakeStore()
	s, _ := newTestSync(client, store, time.Second, 2)

	result := s.SyncCategory(CategoryPopular, 2)
	if result.Total != 2 || result.Success != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSyncCategoryConvertFailureCounted(t *testing.T) {
	client := &fakeClient{
		getMovies: func(category Category, page int) ([]MovieSummary, error) {
			return []MovieSummary{{ID: 1}, {ID: 2}}, nil
		},
		toCreate: func(detail *MovieDetail) (*model.MovieCreate, error) {
			if detail.ID == 2 {
				return nil, &MappingError{TMDBID: 2, Reason: "missing title"}
			}
			return &model.MovieCreate{TMDBID: detail.ID, Title: detail.Title}, nil
		},
	}
	store := newFakeStore()
	s, _ := newTestSync(client, store, time.Second, 2)

	result := s.SyncCategory(CategoryTopRated, 1)
	if result.Total != 2 || result.Success != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSyncAllCategoriesDedupAndBreakdown(t *testing.T) {
	// 550 同时出现在 popular 和 now_playing 里
	pages := map[Category][]MovieSummary{
		CategoryPopular:    {{ID: 550}, {ID: 551}},
		CategoryTopRated:   {{ID: 552}},
		CategoryUpcoming:   {},
		CategoryNowPlaying: {{ID: 550}},
	}
	client := &fakeClient{
		getMovies: func(category Category, page int) ([]MovieSummary, error) {
			return pages[category], nil
		},
	}
	store := newFakeStore()
	s, _ := newTestSync(client, store, time.Second, 2)

	result := s.SyncAllCategories(1)
	if result.Total != 4 || result.Success != 4 || result.Failed != 0 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	// 去重后 3 个本地 ID，保序
	if len(result.MovieIDs) != 3 {
		t.Fatalf("expected 3 deduped ids, got %v", result.MovieIDs)
	}
	if len(result.Categories) != 4 {
		t.Fatalf("expected breakdown for 4 categories, got %v", result.Categories)
	}
	if got := result.Categories[string(CategoryPopular)]; got.Success != 2 {
		t.Fatalf("unexpected popular breakdown: %+v", got)
	}
	if got := result.Categories[string(CategoryUpcoming)]; got.Success != 0 || got.Failed != 0 {
		t.Fatalf("unexpected upcoming breakdown: %+v", got)
	}
}

func TestSyncMoviesByGenresPacing(t *testing.T) {
	var gotGenres []int
	client := &fakeClient{
		discoverMovies: func(opts DiscoverOptions) ([]MovieSummary, error) {
			gotGenres = append(gotGenres, opts.GenreIDs...)
			return nil, nil
		},
	}
	store := newFakeStore()
	s, sleeps := newTestSync(client, store, 100*time.Millisecond, 2)

	result := s.SyncMoviesByGenres([]int{28, 35}, 1)
	if result.GenresProcessed != 2 {
		t.Fatalf("unexpected genres processed: %d", result.GenresProcessed)
	}
	if !reflect.DeepEqual(gotGenres, []int{28, 35}) {
		t.Fatalf("unexpected discover calls: %v", gotGenres)
	}
	// 空页无条目停顿，只有类型之间恰好一次加倍停顿
	want := []time.Duration{200 * time.Millisecond}
	if !reflect.DeepEqual(*sleeps, want) {
		t.Fatalf("unexpected pacing: %v", *sleeps)
	}
}

func TestSyncMoviesByGenresPageFailureContinues(t *testing.T) {
	client := &fakeClient{
		discoverMovies: func(opts DiscoverOptions) ([]MovieSummary, error) {
			if opts.GenreIDs[0] == 28 {
				return nil, ErrUpstreamUnreachable
			}
			return []MovieSummary{{ID: 600}}, nil
		},
	}
	store := newFakeStore()
	s, _ := newTestSync(client, store, time.Second, 2)

	result := s.SyncMoviesByGenres([]int{28, 35}, 1)
	if result.Total != 1 || result.Success != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.GenresProcessed != 2 {
		t.Fatalf("unexpected genres processed: %d", result.GenresProcessed)
	}
}

func TestProcessAndSaveStoreErrors(t *testing.T) {
	client := &fakeClient{}

	store := newFakeStore()
	store.findErr = errors.New("connection reset")
	s, _ := newTestSync(client, store, time.Second, 2)
	if _, ok := s.SyncMovieByID(1); ok {
		t.Fatal("expected failure on find error")
	}

	store = newFakeStore()
	store.insertErr = errors.New("constraint violation")
	s, _ = newTestSync(client, store, time.Second, 2)
	if _, ok := s.SyncMovieByID(2); ok {
		t.Fatal("expected failure on insert error")
	}

	store = newFakeStore()
	store.byTMDB[3] = &model.Movie{ID: 1, TMDBID: 3}
	store.updateErr = errors.New("deadlock")
	s, _ = newTestSync(client, store, time.Second, 2)
	if _, ok := s.SyncMovieByID(3); ok {
		t.Fatal("expected failure on update error")
	}
}
