package model

import (
	"reflect"
	"testing"
)

func TestSyncResultMerge(t *testing.T) {
	r := NewSyncResult()
	r.Merge(&SyncResult{Total: 3, Success: 2, Failed: 1, MovieIDs: []int{1, 2}})
	r.Merge(&SyncResult{Total: 2, Success: 2, MovieIDs: []int{3, 4}})
	r.Merge(nil)

	if r.Total != 5 || r.Success != 4 || r.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", r)
	}
	if !reflect.DeepEqual(r.MovieIDs, []int{1, 2, 3, 4}) {
		t.Fatalf("unexpected movie ids: %v", r.MovieIDs)
	}
}

func TestDedupeMovieIDsKeepsFirstSeenOrder(t *testing.T) {
	r := &SyncResult{MovieIDs: []int{5, 3, 5, 1, 3, 9}}
	r.DedupeMovieIDs()
	if !reflect.DeepEqual(r.MovieIDs, []int{5, 3, 1, 9}) {
		t.Fatalf("unexpected deduped ids: %v", r.MovieIDs)
	}

	// 空列表保持为空非 nil
	r = NewSyncResult()
	r.DedupeMovieIDs()
	if r.MovieIDs == nil || len(r.MovieIDs) != 0 {
		t.Fatalf("expected empty non-nil ids, got %v", r.MovieIDs)
	}
}
