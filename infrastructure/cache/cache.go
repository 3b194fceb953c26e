package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

const recordKeyPrefix = "catalog:record:"

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RecordCache stores catalog records as JSON strings. A nil client turns every call
// into a miss.
type RecordCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ repository.IRecordCache = (*RecordCache)(nil)

func NewRecordCache(client *redis.Client, ttl time.Duration) *RecordCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RecordCache{client: client, ttl: ttl}
}

func recordKey(id string) string { return recordKeyPrefix + id }

func (c *RecordCache) GetRecord(ctx context.Context, id string) (*model.RemoteRecord, error) {
	if c.client == nil {
		return nil, nil
	}
	val, err := c.client.Get(ctx, recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.RemoteRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *RecordCache) SetRecord(ctx context.Context, record *model.RemoteRecord) error {
	if c.client == nil || record == nil {
		return nil
	}
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, recordKey(record.ID), b, c.ttl).Err()
}

func (c *RecordCache) Invalidate(ctx context.Context, ids ...string) error {
	if c.client == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, recordKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// CachedCatalog is a cache-aside decorator over a catalog. Cache failures are
// logged and never surface to callers.
type CachedCatalog struct {
	repository.ICatalog
	cache repository.IRecordCache
}

func NewCachedCatalog(inner repository.ICatalog, cache repository.IRecordCache) *CachedCatalog {
	return &CachedCatalog{ICatalog: inner, cache: cache}
}

func (c *CachedCatalog) Get(ctx context.Context, id string) (*model.RemoteRecord, error) {
	if rec, err := c.cache.GetRecord(ctx, id); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Record cache read failed")
	} else if rec != nil {
		return rec, nil
	}

	rec, err := c.ICatalog.Get(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	if err := c.cache.SetRecord(ctx, rec); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Record cache write failed")
	}
	return rec, nil
}

func (c *CachedCatalog) Update(ctx context.Context, id string, patch model.RemotePatch) (bool, error) {
	ok, err := c.ICatalog.Update(ctx, id, patch)
	c.invalidate(ctx, id)
	return ok, err
}

func (c *CachedCatalog) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	ok, err := c.ICatalog.Delete(ctx, id, ownerID)
	c.invalidate(ctx, id)
	return ok, err
}

func (c *CachedCatalog) ResetAll(ctx context.Context, ownerID, confirmationToken string) (int, error) {
	var ids []string
	if records, err := c.ICatalog.ListByOwner(ctx, ownerID); err == nil {
		for _, r := range records {
			ids = append(ids, r.ID)
		}
	}
	n, err := c.ICatalog.ResetAll(ctx, ownerID, confirmationToken)
	c.invalidate(ctx, ids...)
	return n, err
}

func (c *CachedCatalog) invalidate(ctx context.Context, ids ...string) {
	if err := c.cache.Invalidate(ctx, ids...); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Record cache invalidation failed")
	}
}
