package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestBypassWhenNotConfigured(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, Options{})
	if c.Enabled() {
		t.Fatalf("cache without address should be disabled")
	}

	if err := c.SetJSON(ctx, KeyTechnologies, []string{"go"}, time.Minute); err != nil {
		t.Fatalf("SetJSON in bypass: %v", err)
	}
	var out []string
	hit, err := c.GetJSON(ctx, KeyTechnologies, &out)
	if err != nil || hit {
		t.Fatalf("GetJSON in bypass = %v, %v", hit, err)
	}
	if err := c.InvalidateProfile(ctx, 1); err != nil {
		t.Fatalf("InvalidateProfile in bypass: %v", err)
	}
	if err := c.InvalidateCatalog(ctx); err != nil {
		t.Fatalf("InvalidateCatalog in bypass: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close in bypass: %v", err)
	}
}

func TestBypassWhenUnreachable(t *testing.T) {
	c := New(context.Background(), Options{Addr: "127.0.0.1:1"})
	if c.Enabled() {
		t.Fatalf("unreachable redis should put the cache in bypass mode")
	}
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	if c.Enabled() {
		t.Fatalf("nil cache reported enabled")
	}
	hit, err := c.GetJSON(context.Background(), "k", new(int))
	if hit || err != nil {
		t.Fatalf("nil GetJSON = %v, %v", hit, err)
	}
}

func TestProfileDetailKey(t *testing.T) {
	if got := ProfileDetailKey(7, false); got != "profile:7:detail:public" {
		t.Fatalf("public key = %q", got)
	}
	if got := ProfileDetailKey(7, true); got != "profile:7:detail:private" {
		t.Fatalf("private key = %q", got)
	}
}

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(context.Background(), Options{Addr: mr.Addr()})
	if !c.Enabled() {
		t.Fatalf("cache against miniredis should be enabled")
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSetJSONIfCurrent_StoresWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	key := ProfileDetailKey(1, false)

	st, err := c.Stamp(ctx, ProfileGenKey(1), GenCatalog)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	stored, err := c.SetJSONIfCurrent(ctx, key, map[string]int{"review_count": 2}, 0, st)
	if err != nil || !stored {
		t.Fatalf("SetJSONIfCurrent = %v, %v", stored, err)
	}

	var got map[string]int
	if hit, err := c.GetJSON(ctx, key, &got); err != nil || !hit || got["review_count"] != 2 {
		t.Fatalf("GetJSON = %v, %v, %v", hit, err, got)
	}
	if ttl := mr.TTL(key); ttl != 5*time.Minute {
		t.Fatalf("ttl = %v, want default", ttl)
	}
}

func TestSetJSONIfCurrent_SkipsAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	key := ProfileDetailKey(1, false)

	st, err := c.Stamp(ctx, ProfileGenKey(1), GenCatalog)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	// A write commits and invalidates while the stale value is being loaded.
	if err := c.InvalidateProfile(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	stored, err := c.SetJSONIfCurrent(ctx, key, map[string]int{"review_count": 0}, 0, st)
	if err != nil {
		t.Fatalf("SetJSONIfCurrent: %v", err)
	}
	if stored || mr.Exists(key) {
		t.Fatalf("stale value stored after invalidation")
	}

	st, _ = c.Stamp(ctx, ProfileGenKey(1), GenCatalog)
	if err := c.InvalidateCatalog(ctx); err != nil {
		t.Fatalf("invalidate catalog: %v", err)
	}
	if stored, _ := c.SetJSONIfCurrent(ctx, key, "stale", 0, st); stored || mr.Exists(key) {
		t.Fatalf("stale value stored after catalog change")
	}
}

func TestInvalidateCatalog_DropsProfileDetails(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	keep := "unrelated"
	for _, k := range []string{KeyTechnologies, ProfileDetailKey(3, false), ProfileDetailKey(4, true), ProfileOwnerKey(3), keep} {
		if err := c.SetJSON(ctx, k, 1, time.Minute); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	if err := c.InvalidateCatalog(ctx); err != nil {
		t.Fatalf("InvalidateCatalog: %v", err)
	}

	for _, k := range []string{KeyTechnologies, ProfileDetailKey(3, false), ProfileDetailKey(4, true)} {
		if mr.Exists(k) {
			t.Fatalf("%s survived catalog invalidation", k)
		}
	}
	if !mr.Exists(keep) || !mr.Exists(ProfileOwnerKey(3)) {
		t.Fatalf("catalog invalidation removed unrelated keys")
	}
	if got, _ := mr.Get(GenCatalog); got != "1" {
		t.Fatalf("catalog generation = %q, want 1", got)
	}
}

func TestInvalidateProfile_DropsOwnerAndBumpsGeneration(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	_ = c.SetJSON(ctx, ProfileOwnerKey(9), int64(42), 0)
	_ = c.SetJSON(ctx, ProfileDetailKey(9, true), "detail", 0)
	for i := 0; i < 2; i++ {
		if err := c.InvalidateProfile(ctx, 9); err != nil {
			t.Fatalf("InvalidateProfile: %v", err)
		}
	}
	if mr.Exists(ProfileOwnerKey(9)) || mr.Exists(ProfileDetailKey(9, true)) {
		t.Fatalf("profile keys survived invalidation")
	}
	if got, _ := mr.Get(ProfileGenKey(9)); got != "2" {
		t.Fatalf("profile generation = %q, want 2", got)
	}
}
