package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dengjianbo3/magellan/pkg/models"
)

const sessionKeyPrefix = "dd:session:"

// RedisStore persists session records as JSON values under
// "dd:session:{id}". Live sessions have no expiry; MarkTerminal sets
// the key TTL and Redis handles eviction natively.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given Redis URL
// (redis://[user:pass@]host:port/db) and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *models.SessionRecord) error {
	cp, err := copyRecord(rec)
	if err != nil {
		return err
	}
	touch(cp)
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	// KEEPTTL preserves a retention countdown already set by
	// MarkTerminal, e.g. a Put that records a late human review note.
	return s.client.Set(ctx, sessionKeyPrefix+rec.ID, data, redis.KeepTTL).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	var rec models.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*models.SessionRecord, error) {
	var out []*models.SessionRecord
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", iter.Val(), err)
		}
		var rec models.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", iter.Val(), err)
		}
		out = append(out, &rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning sessions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) MarkTerminal(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKeyPrefix+id, ttl).Result()
	if err != nil {
		return fmt.Errorf("expiring session %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
