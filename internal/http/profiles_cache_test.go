package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Clark-Hu/specialist-directory/internal/cache"
	"github.com/Clark-Hu/specialist-directory/internal/config"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
)

func newRedisCache(tb testing.TB) (*cache.Cache, *miniredis.Miniredis) {
	tb.Helper()
	mr := miniredis.RunT(tb)
	c := cache.New(context.Background(), cache.Options{Addr: mr.Addr()})
	if !c.Enabled() {
		tb.Fatalf("cache against miniredis should be enabled")
	}
	tb.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestServeCached_SkipsStoreWhenInvalidatedDuringLoad(t *testing.T) {
	c, mr := newRedisCache(t)
	srv := New(config.Config{Port: "0"}, Deps{Cache: c, Logger: logger.Nop()})
	key := cache.ProfileDetailKey(1, false)
	gens := []string{cache.ProfileGenKey(1), cache.GenCatalog}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	var hit map[string]any
	srv.serveCached(rec, req, key, gens, &hit, func(ctx context.Context) (any, error) {
		// A review commits while the old detail is being read.
		if err := c.InvalidateProfile(ctx, 1); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		return map[string]any{"rating": 0, "review_count": 0}, nil
	})
	expectStatus(t, rec, http.StatusOK)
	if mr.Exists(key) {
		t.Fatalf("detail loaded before invalidation was cached")
	}

	rec = httptest.NewRecorder()
	srv.serveCached(rec, req, key, gens, &hit, func(context.Context) (any, error) {
		return map[string]any{"rating": 4.5, "review_count": 2}, nil
	})
	expectStatus(t, rec, http.StatusOK)
	if !mr.Exists(key) {
		t.Fatalf("detail loaded without interference was not cached")
	}
}

func TestProfileDetail_CacheFollowsWrites(t *testing.T) {
	c, mr := newRedisCache(t)
	srv := buildTestServerWithCache(t, c)
	cat := createCatalog(t, srv)
	owner, ownerToken := createUser(t, srv, false)
	_, staff := createUser(t, srv, true)
	_, reader := createUser(t, srv, false)
	profile := createProfile(t, srv, owner, cat)
	path := fmt.Sprintf("/api/v1/profiles/%d/", profile.ID)

	rec := do(t, srv, http.MethodGet, path, reader, nil)
	expectStatus(t, rec, http.StatusOK)
	if !mr.Exists(cache.ProfileDetailKey(profile.ID, false)) || !mr.Exists(cache.ProfileOwnerKey(profile.ID)) {
		t.Fatalf("detail and owner should be cached after first read")
	}

	rec = do(t, srv, http.MethodPost, path+"reviews/", reader, map[string]any{
		"rating": 4, "text": "Solid work", "reviewer_name": "Ada",
	})
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, srv, http.MethodGet, path, reader, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[profileDetailResponse](t, rec); got.ReviewCount != 1 || got.Rating != 4.0 {
		t.Fatalf("stats after review = %v/%d, want 4.0/1", got.Rating, got.ReviewCount)
	}

	// Catalog rows are embedded in the detail.
	rec = do(t, srv, http.MethodPatch, fmt.Sprintf("/api/v1/admin/technologies/%d/", cat.tech.ID), staff,
		map[string]any{"name": "Golang"})
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, srv, http.MethodGet, path, reader, nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[profileDetailResponse](t, rec)
	if len(got.Technologies) != 1 || got.Technologies[0].Name != "Golang" {
		t.Fatalf("technologies after rename = %+v", got.Technologies)
	}

	rec = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/admin/technologies/%d/", cat.tech.ID), staff, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, srv, http.MethodGet, path, ownerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[profileDetailResponse](t, rec); len(got.Technologies) != 0 {
		t.Fatalf("deleted technology still linked: %+v", got.Technologies)
	}
}
