// Package cache is a JSON read-through cache on Redis. When Redis is not
// configured or not reachable every call becomes a no-op miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/specialist-directory/internal/logger"
)

// Keys for cached catalog lists.
const (
	KeyTechnologies     = "catalog:technologies"
	KeyEmploymentTypes  = "catalog:employment-types"
	KeySpecialistLevels = "catalog:specialist-levels"
)

// GenCatalog is bumped on every catalog change. Profile details embed catalog
// rows, so their writes are stamped with it too.
const GenCatalog = "gen:catalog"

var errStale = errors.New("cache: generation moved")

// Options configures the Redis connection.
type Options struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
	Logger     *logger.Logger
}

// Cache wraps a Redis client. A nil client means bypass mode.
type Cache struct {
	client *redis.Client
	logger *logger.Logger
	ttl    time.Duration

	warnedUnavailable atomic.Bool
}

// New connects to Redis and pings it. An empty Addr or a failed ping yields a
// Cache in bypass mode rather than an error.
func New(ctx context.Context, opts Options) *Cache {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "cache")
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		log.Info("redis not configured, cache disabled")
		return &Cache{logger: log, ttl: ttl}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, bypassing cache", "addr", addr, "error", err)
		_ = client.Close()
		return &Cache{logger: log, ttl: ttl}
	}

	log.Info("redis connected", "addr", addr)
	return &Cache{client: client, logger: log, ttl: ttl}
}

// Enabled reports whether a Redis connection is in use.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) warnUnavailableOnce(err error) {
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		c.logger.Warn("redis call failed, serving without cache", "error", err)
	}
}

// GetJSON decodes the value at key into out. It reports false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		c.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value under key. ttl <= 0 uses the default.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, b, ttl).Err(); err != nil {
		c.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// Stamp holds generation counters read before a value was loaded.
type Stamp struct {
	keys []string
	gens []int64
}

// Stamp reads the current values of genKeys. Missing counters read as zero.
func (c *Cache) Stamp(ctx context.Context, genKeys ...string) (Stamp, error) {
	st := Stamp{keys: genKeys}
	if !c.Enabled() || len(genKeys) == 0 {
		return st, nil
	}
	gens, err := readGenerations(ctx, c.client, genKeys)
	if err != nil {
		c.warnUnavailableOnce(err)
		return st, err
	}
	st.gens = gens
	return st, nil
}

// SetJSONIfCurrent stores value under key only while every counter in st
// still holds the value it had when st was taken. It reports false when an
// invalidation happened in between and nothing was written.
func (c *Cache) SetJSONIfCurrent(ctx context.Context, key string, value any, ttl time.Duration, st Stamp) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	if len(st.keys) == 0 {
		return true, c.SetJSON(ctx, key, value, ttl)
	}
	if len(st.gens) != len(st.keys) {
		return false, nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGenerations(ctx, tx, st.keys)
		if err != nil {
			return err
		}
		if !slices.Equal(cur, st.gens) {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, st.keys...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		c.warnUnavailableOnce(err)
		return false, err
	}
}

func readGenerations(ctx context.Context, r redis.Cmdable, keys []string) ([]int64, error) {
	vals, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	gens := make([]int64, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("generation %s: %w", keys[i], err)
		}
		gens[i] = n
	}
	return gens, nil
}

func (c *Cache) bump(ctx context.Context, genKey string) error {
	if err := c.client.Incr(ctx, genKey).Err(); err != nil {
		c.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// DeleteByPattern removes every key matching a glob pattern.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if err := c.client.Del(ctx, k).Err(); err != nil {
			c.logger.Warn("redis delete failed", "key", k, "pattern", pattern, "error", err)
		}
	}
	return iter.Err()
}

// ProfileDetailKey names the cached detail view of a profile. private marks
// the variant that includes non-public contacts.
func ProfileDetailKey(profileID int64, private bool) string {
	scope := "public"
	if private {
		scope = "private"
	}
	return fmt.Sprintf("profile:%d:detail:%s", profileID, scope)
}

// ProfileOwnerKey names the cached owner id of a profile.
func ProfileOwnerKey(profileID int64) string {
	return fmt.Sprintf("profile:%d:owner", profileID)
}

// ProfileGenKey names the generation counter of a profile.
func ProfileGenKey(profileID int64) string {
	return fmt.Sprintf("gen:profile:%d", profileID)
}

// InvalidateProfile drops every cached view of a profile. The counter is
// bumped first so a reader that loaded before the change cannot store it.
func (c *Cache) InvalidateProfile(ctx context.Context, profileID int64) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.bump(ctx, ProfileGenKey(profileID)); err != nil {
		return err
	}
	return c.Delete(ctx,
		ProfileDetailKey(profileID, false),
		ProfileDetailKey(profileID, true),
		ProfileOwnerKey(profileID),
	)
}

// InvalidateCatalog drops the cached catalog lists and every profile detail,
// since details embed employment, level and technology rows.
func (c *Cache) InvalidateCatalog(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.bump(ctx, GenCatalog); err != nil {
		return err
	}
	if err := c.DeleteByPattern(ctx, "catalog:*"); err != nil {
		return err
	}
	return c.DeleteByPattern(ctx, "profile:*:detail:*")
}
